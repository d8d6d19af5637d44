// Package paymentsim stands in for the card processor: it answers payment
// requests with a randomized outcome after a bounded number of attempts.
package paymentsim

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/joao-fontenele/bookstore-orderflow/internal/domain"
	"github.com/joao-fontenele/bookstore-orderflow/internal/messaging"
)

type AttemptStore interface {
	Latest(ctx context.Context, orderID string) (Attempt, bool, error)
	Record(ctx context.Context, a *Attempt) error
}

type Options struct {
	ApprovalRate float64
	MaxAttempts  int
}

type Simulator struct {
	attempts  AttemptStore
	publisher messaging.Publisher
	opts      Options
	logger    *slog.Logger
	rand      func() float64
	now       func() time.Time
}

func NewSimulator(attempts AttemptStore, publisher messaging.Publisher, opts Options, logger *slog.Logger) *Simulator {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	return &Simulator{
		attempts:  attempts,
		publisher: publisher,
		opts:      opts,
		logger:    logger,
		rand:      rand.Float64,
		now:       time.Now,
	}
}

// Handle charges the card of one payment request and publishes a single
// outcome. Attempts already recorded for the order count against the budget,
// so a redelivered request does not get a fresh set of tries, and an order
// that was already approved is never charged again.
func (s *Simulator) Handle(ctx context.Context, payload []byte) error {
	var req domain.PaymentRequestedEvent
	if err := json.Unmarshal(payload, &req); err != nil {
		s.logger.Error("discarding malformed payment request", "error", err)
		return nil
	}

	last, charged, err := s.attempts.Latest(ctx, req.OrderID)
	if err != nil {
		return err
	}

	outcome := domain.PaymentOutcomeEvent{OrderID: req.OrderID, Status: domain.PaymentDenied}
	attempt := last.Attempt
	if charged && last.Status == domain.PaymentApproved {
		// Already charged; only the outcome went missing.
		outcome.Status = domain.PaymentApproved
		outcome.Message = last.Message
	}
	for outcome.Status != domain.PaymentApproved && attempt < s.opts.MaxAttempts {
		attempt++
		a := s.charge(req, attempt)
		if err := s.attempts.Record(ctx, &a); err != nil {
			return err
		}

		s.logger.Info("payment attempt", "order_id", req.OrderID, "attempt", attempt, "status", a.Status)

		outcome.Message = a.Message
		outcome.Status = a.Status
	}

	if outcome.Message == "" {
		outcome.Message = fmt.Sprintf("payment denied after %d attempts", attempt)
	}
	outcome.Timestamp = s.now().UTC()

	if err := s.publisher.Publish(ctx, req.OrderID, outcome); err != nil {
		return fmt.Errorf("publish payment outcome: %w", err)
	}

	s.logger.Info("payment outcome published", "order_id", req.OrderID, "status", outcome.Status, "attempts", attempt)
	return nil
}

func (s *Simulator) charge(req domain.PaymentRequestedEvent, attempt int) Attempt {
	a := Attempt{
		OrderID:   req.OrderID,
		Attempt:   attempt,
		Status:    domain.PaymentDenied,
		Amount:    req.Amount,
		CreatedAt: s.now().UTC(),
	}

	switch {
	case len(req.Card.Number) != 16 || req.Card.CVV == "":
		a.Message = "card data rejected by issuer"
	case s.rand() < s.opts.ApprovalRate:
		a.Status = domain.PaymentApproved
		a.Message = "transaction approved"
	default:
		a.Message = fmt.Sprintf("transaction declined on attempt %d", attempt)
	}
	return a
}
