package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCard(t *testing.T) {
	_, err := NewCard("4111111111111111", "Ana Lima", "123", "12/30", "VISA")
	require.NoError(t, err)

	cases := map[string][4]string{
		"short number":   {"4111", "Ana Lima", "123", "12/30"},
		"letters":        {"4111abcd11111111", "Ana Lima", "123", "12/30"},
		"missing name":   {"4111111111111111", " ", "123", "12/30"},
		"long cvv":       {"4111111111111111", "Ana Lima", "12345", "12/30"},
		"missing expiry": {"4111111111111111", "Ana Lima", "123", ""},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewCard(c[0], c[1], c[2], c[3], "VISA")
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestCardSnapshotHidesSecrets(t *testing.T) {
	card, err := NewCard("4111111111111234", "Ana Lima", "123", "12/30", "VISA")
	require.NoError(t, err)

	snap := card.Snapshot()
	assert.Equal(t, "1234", snap.Last4)

	data, err := json.Marshal(snap)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "4111111111111234")
	assert.NotContains(t, string(data), `"cvv"`)
}

func TestCardSnapshotOfShortNumber(t *testing.T) {
	card := Card{Number: "12", HolderName: "Ana", CVV: "1", ExpiryDate: "12/30"}

	var snap CardSnapshot
	require.NotPanics(t, func() { snap = card.Snapshot() })
	assert.Equal(t, "12", snap.Last4)
	assert.ErrorIs(t, card.Validate(), ErrValidation)
}

func TestCustomerEmbedsIdentity(t *testing.T) {
	c := Customer{ID: "c-1", Identity: Identity{Name: "Ana", Email: "ana@example.com"}}
	assert.Equal(t, "ana@example.com", c.Email)
}
