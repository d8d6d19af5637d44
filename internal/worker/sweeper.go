package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joao-fontenele/bookstore-orderflow/internal/domain"
	"github.com/joao-fontenele/bookstore-orderflow/internal/orders"
)

type PaymentReconciler interface {
	StalePayments(ctx context.Context, olderThan time.Duration, limit int) ([]orders.StalePayment, error)
	RetryPayment(ctx context.Context, stale orders.StalePayment) bool
	CancelUnpaid(ctx context.Context, orderID, reason string) (domain.Order, error)
}

type CouponExpirer interface {
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)
}

type SweeperConfig struct {
	StaleAfter  time.Duration
	MaxRequests int
	Interval    time.Duration
	BatchSize   int
}

// Sweeper periodically re-requests payment for orders stuck in PROCESSING
// and cancels those that exhausted their requests.
type Sweeper struct {
	reconciler PaymentReconciler
	coupons    CouponExpirer
	cfg        SweeperConfig
	logger     *slog.Logger
	now        func() time.Time
}

func NewSweeper(reconciler PaymentReconciler, coupons CouponExpirer, cfg SweeperConfig, logger *slog.Logger) *Sweeper {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Sweeper{
		reconciler: reconciler,
		coupons:    coupons,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

type SweepResult struct {
	Retried  int
	Canceled int
	Failed   int
	Expired  int64
}

// Run sweeps every interval until ctx is canceled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			res, err := s.SweepOnce(ctx)
			if err != nil {
				s.logger.Error("sweep failed", "error", err)
				continue
			}
			if res != (SweepResult{}) {
				s.logger.Info("sweep finished", "retried", res.Retried, "canceled", res.Canceled, "failed", res.Failed, "expired_coupons", res.Expired)
			}
		}
	}
}

func (s *Sweeper) SweepOnce(ctx context.Context) (SweepResult, error) {
	var res SweepResult

	if s.coupons != nil {
		n, err := s.coupons.ExpireOverdue(ctx, s.now().UTC())
		if err != nil {
			return res, fmt.Errorf("expire coupons: %w", err)
		}
		res.Expired = n
	}

	stale, err := s.reconciler.StalePayments(ctx, s.cfg.StaleAfter, s.cfg.BatchSize)
	if err != nil {
		return res, fmt.Errorf("list stale payments: %w", err)
	}

	for _, p := range stale {
		if p.Requests < s.cfg.MaxRequests {
			if s.reconciler.RetryPayment(ctx, p) {
				res.Retried++
			} else {
				res.Failed++
			}
			continue
		}

		reason := fmt.Sprintf("no payment outcome after %d requests", p.Requests)
		_, err := s.reconciler.CancelUnpaid(ctx, p.OrderID, reason)
		switch {
		case err == nil:
			res.Canceled++
		case errors.Is(err, domain.ErrInvalidStatusTransition):
			s.logger.Info("order settled before cancellation", "order_id", p.OrderID)
		default:
			res.Failed++
			s.logger.Error("failed to cancel unpaid order", "error", err, "order_id", p.OrderID)
		}
	}
	return res, nil
}
