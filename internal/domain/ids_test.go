package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidID(t *testing.T) {
	assert.True(t, ValidID("6f1c2b7e-3a4d-4e5f-8a9b-0c1d2e3f4a5b"))
	assert.False(t, ValidID("o-1"))
	assert.False(t, ValidID(""))

	assert.Equal(t, "", InvalidID([]string{"6f1c2b7e-3a4d-4e5f-8a9b-0c1d2e3f4a5b"}))
	assert.Equal(t, "nope", InvalidID([]string{"6f1c2b7e-3a4d-4e5f-8a9b-0c1d2e3f4a5b", "nope"}))
}
