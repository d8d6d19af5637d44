// Package worker settles orders from payment outcomes and sweeps orders whose
// payment never settled.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/joao-fontenele/bookstore-orderflow/internal/domain"
)

type Settler interface {
	ApplyPaymentOutcome(ctx context.Context, outcome domain.PaymentOutcomeEvent) (domain.Order, error)
}

type PaymentOutcomeHandler struct {
	settler Settler
	logger  *slog.Logger
}

func NewPaymentOutcomeHandler(settler Settler, logger *slog.Logger) *PaymentOutcomeHandler {
	return &PaymentOutcomeHandler{
		settler: settler,
		logger:  logger,
	}
}

// Handle applies one payment outcome. Outcomes the order state machine
// refuses are logged and acknowledged; only infrastructure failures are
// returned so the message is redelivered.
func (h *PaymentOutcomeHandler) Handle(ctx context.Context, payload []byte) error {
	var event domain.PaymentOutcomeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		h.logger.Error("discarding malformed payment outcome", "error", err)
		return nil
	}

	h.logger.Info("processing payment outcome", "order_id", event.OrderID, "payment_status", event.Status)

	order, err := h.settler.ApplyPaymentOutcome(ctx, event)
	var derr *domain.Error
	switch {
	case err == nil:
		h.logger.Info("order settled", "order_id", order.ID, "status", order.Status)
		return nil
	case errors.As(err, &derr):
		h.logger.Warn("payment outcome rejected", "order_id", event.OrderID, "kind", derr.Kind, "error", err)
		return nil
	default:
		h.logger.Error("failed to apply payment outcome", "error", err, "order_id", event.OrderID)
		return fmt.Errorf("apply payment outcome: %w", err)
	}
}
