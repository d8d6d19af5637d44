package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/bookstore-orderflow/internal/domain"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrUnauthorized, http.StatusForbidden},
		{domain.Errorf(domain.KindOutOfStock, "none left"), http.StatusConflict},
		{fmt.Errorf("wrap: %w", domain.ErrInvalidStatusTransition), http.StatusConflict},
		{domain.ErrInvalidPaymentSplit, http.StatusUnprocessableEntity},
		{domain.ErrEmptyCart, http.StatusUnprocessableEntity},
		{domain.ErrValidation, http.StatusBadRequest},
		{errors.New("db down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}

func TestWriteDomainError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("domain error exposes kind and message", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteDomainError(logger, rec, domain.Errorf(domain.KindOutOfStock, "book b-1 has 0 units"))

		assert.Equal(t, http.StatusConflict, rec.Code)
		var body map[string]string
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, "out_of_stock", body["kind"])
		assert.Equal(t, "book b-1 has 0 units", body["error"])
	})

	t.Run("infrastructure error is hidden", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteDomainError(logger, rec, errors.New("pq: connection refused"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "pq")
	})
}

func TestCustomerID(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	rec := httptest.NewRecorder()
	_, ok := CustomerID(logger, rec, req)
	assert.False(t, ok)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req.Header.Set(CustomerHeader, "c-1")
	id, ok := CustomerID(logger, httptest.NewRecorder(), req)
	assert.True(t, ok)
	assert.Equal(t, "c-1", id)
}
