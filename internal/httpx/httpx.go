// Package httpx maps domain failures onto HTTP and writes JSON responses.
package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/bookstore-orderflow/internal/domain"
)

// CustomerHeader carries the already authenticated customer id.
const CustomerHeader = "X-Customer-ID"

var statusByKind = map[domain.Kind]int{
	domain.KindNotFound:                http.StatusNotFound,
	domain.KindUnauthorized:            http.StatusForbidden,
	domain.KindOutOfStock:              http.StatusConflict,
	domain.KindInvalidStockTransition:  http.StatusConflict,
	domain.KindInvalidStatusTransition: http.StatusConflict,
	domain.KindConflict:                http.StatusConflict,
	domain.KindInvalidPaymentSplit:     http.StatusUnprocessableEntity,
	domain.KindEmptyCart:               http.StatusUnprocessableEntity,
	domain.KindInvalidCoupon:           http.StatusUnprocessableEntity,
	domain.KindValidation:              http.StatusBadRequest,
}

func StatusFor(err error) int {
	if status, ok := statusByKind[domain.KindOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func WriteJSON(logger *slog.Logger, w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func WriteError(logger *slog.Logger, w http.ResponseWriter, status int, message string) {
	WriteJSON(logger, w, status, map[string]string{"error": message})
}

// WriteDomainError answers with the status of err's kind. Infrastructure
// errors are logged and hidden behind a generic message.
func WriteDomainError(logger *slog.Logger, w http.ResponseWriter, err error) {
	var derr *domain.Error
	if !errors.As(err, &derr) {
		logger.Error("request failed", "error", err)
		WriteError(logger, w, http.StatusInternalServerError, "internal server error")
		return
	}
	WriteJSON(logger, w, StatusFor(err), map[string]string{
		"error": derr.Error(),
		"kind":  string(derr.Kind),
	})
}

// CustomerID returns the caller's customer id or writes 401 and returns false.
func CustomerID(logger *slog.Logger, w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.Header.Get(CustomerHeader)
	if id == "" {
		WriteError(logger, w, http.StatusUnauthorized, "missing "+CustomerHeader+" header")
		return "", false
	}
	return id, true
}

func DecodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domain.Errorf(domain.KindValidation, "invalid request body: %v", err)
	}
	return nil
}
