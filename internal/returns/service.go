// Package returns runs the return and exchange workflow: requests move
// through their state tables and, once completed, give stock back and
// compensate the customer with a coupon.
package returns

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/joao-fontenele/bookstore-orderflow/internal/coupons"
	"github.com/joao-fontenele/bookstore-orderflow/internal/customers"
	"github.com/joao-fontenele/bookstore-orderflow/internal/db"
	"github.com/joao-fontenele/bookstore-orderflow/internal/domain"
	"github.com/joao-fontenele/bookstore-orderflow/internal/inventory"
)

// Notifier delivers a message to a customer address.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

type StoreInput struct {
	CustomerID   string            `json:"-"`
	Type         domain.ReturnType `json:"type"`
	StockUnitIDs []string          `json:"stock_unit_ids"`
	Description  string            `json:"description"`
}

type Service struct {
	db       *sql.DB
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds the workflow. notifier may be nil, in which case
// completion notices are only logged.
func NewService(conn *sql.DB, notifier Notifier, logger *slog.Logger) *Service {
	return &Service{
		db:       conn,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Store opens a request in the REQUESTED status of its type. The referenced
// units must be SOLD to the customer in a delivered order and not already
// part of an open request. Inventory is untouched until completion.
func (s *Service) Store(ctx context.Context, in StoreInput) (domain.ReturnRequest, error) {
	if len(in.StockUnitIDs) == 0 {
		return domain.ReturnRequest{}, domain.Errorf(domain.KindValidation, "request must reference at least one stock unit")
	}

	var req domain.ReturnRequest
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := customers.NewRepository(tx).Get(ctx, in.CustomerID); err != nil {
			return err
		}

		repo := NewRepository(tx)
		items, err := s.returnableItems(ctx, repo, in.CustomerID, in.StockUnitIDs)
		if err != nil {
			return err
		}

		req, err = domain.NewReturnRequest(in.Type, in.CustomerID, in.Description, items, s.now().UTC())
		if err != nil {
			return err
		}
		return repo.Create(ctx, &req)
	})
	if err != nil {
		return domain.ReturnRequest{}, err
	}

	s.logger.Info("return request created", "request_id", req.ID, "type", req.Type, "customer_id", req.CustomerID, "items", len(req.Items))
	return req, nil
}

func (s *Service) returnableItems(ctx context.Context, repo *Repository, customerID string, unitIDs []string) ([]domain.ReturnItem, error) {
	if dup := firstDuplicate(unitIDs); dup != "" {
		return nil, domain.Errorf(domain.KindValidation, "stock unit %s referenced more than once", dup)
	}
	if bad := domain.InvalidID(unitIDs); bad != "" {
		return nil, domain.Errorf(domain.KindUnauthorized, "stock unit %s was not bought by customer %s", bad, customerID)
	}

	found, err := repo.soldUnits(ctx, unitIDs)
	if err != nil {
		return nil, err
	}

	items := make([]domain.ReturnItem, 0, len(unitIDs))
	for _, id := range unitIDs {
		sold, ok := found[id]
		switch {
		case !ok, sold.customerID != customerID:
			return nil, domain.Errorf(domain.KindUnauthorized, "stock unit %s was not bought by customer %s", id, customerID)
		case sold.orderStatus != domain.OrderDelivered:
			return nil, domain.Errorf(domain.KindValidation, "stock unit %s belongs to order %s which is %s, not delivered", id, sold.item.OrderID, sold.orderStatus)
		case sold.unitStatus != domain.StockSold:
			return nil, domain.Errorf(domain.KindValidation, "stock unit %s is %s, not sold", id, sold.unitStatus)
		case sold.openRequest:
			return nil, domain.Errorf(domain.KindConflict, "stock unit %s is already part of an open request", id)
		case sold.completed:
			return nil, domain.Errorf(domain.KindConflict, "stock unit %s was already returned from order %s", id, sold.item.OrderID)
		}
		items = append(items, sold.item)
	}
	return items, nil
}

func (s *Service) Get(ctx context.Context, id, customerID string) (domain.ReturnRequest, error) {
	req, err := NewRepository(s.db).Get(ctx, id, false)
	if err != nil {
		return domain.ReturnRequest{}, err
	}
	if customerID != "" && req.CustomerID != customerID {
		return domain.ReturnRequest{}, domain.Errorf(domain.KindUnauthorized, "return request %s does not belong to customer %s", id, customerID)
	}
	return req, nil
}

func (s *Service) List(ctx context.Context, customerID string) ([]domain.ReturnRequest, error) {
	return NewRepository(s.db).ListByCustomer(ctx, customerID)
}

// UpdateStatus moves a request along its table. Reaching a COMPLETED status
// releases every referenced unit and issues a refund coupon in the same
// transaction; the customer is notified after commit.
func (s *Service) UpdateStatus(ctx context.Context, id string, to domain.ReturnStatus) (domain.ReturnRequest, error) {
	var (
		req      domain.ReturnRequest
		customer domain.Customer
		coupon   *domain.Coupon
	)
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		repo := NewRepository(tx)
		var err error
		req, err = repo.Get(ctx, id, true)
		if err != nil {
			return err
		}

		from := req.Status
		if err := req.SetStatus(to); err != nil {
			return err
		}
		now := s.now().UTC()
		if err := repo.UpdateStatus(ctx, id, from, to, now); err != nil {
			return err
		}
		req.UpdatedAt = now

		if !to.IsCompleted() {
			return nil
		}

		if err := inventory.NewLedger(tx).Release(ctx, req.StockUnitIDs()); err != nil {
			return err
		}

		customer, err = customers.NewRepository(tx).Get(ctx, req.CustomerID)
		if err != nil {
			return err
		}

		c := domain.NewRefundCoupon(req.CustomerID, req.RefundAmount(), now)
		if err := coupons.NewRepository(tx).Issue(ctx, &c); err != nil {
			return err
		}
		if err := repo.AttachCoupon(ctx, id, c.ID); err != nil {
			return err
		}
		req.CouponCode = c.Code
		coupon = &c
		return nil
	})
	if err != nil {
		return domain.ReturnRequest{}, err
	}

	s.logger.Info("return request status updated", "request_id", id, "status", to)
	if coupon != nil {
		s.notify(ctx, customer, req, *coupon)
	}
	return req, nil
}

func (s *Service) notify(ctx context.Context, customer domain.Customer, req domain.ReturnRequest, coupon domain.Coupon) {
	subject := fmt.Sprintf("Your %s request was completed", kindLabel(req.Type))
	body := fmt.Sprintf("Hello %s, your %s request %s was completed. Use coupon %s worth %s before %s.",
		customer.Name, kindLabel(req.Type), req.ID, coupon.Code, coupon.Discount.StringFixed(2), coupon.ExpiresAt.Format(time.DateOnly))

	if s.notifier == nil {
		s.logger.Warn("notifier not configured", "request_id", req.ID, "coupon", coupon.Code)
		return
	}
	if err := s.notifier.Send(ctx, customer.Email, subject, body); err != nil {
		s.logger.Error("failed to notify customer", "error", err, "request_id", req.ID, "customer_id", customer.ID)
		return
	}
	s.logger.Info("customer notified", "request_id", req.ID, "customer_id", customer.ID)
}

func kindLabel(t domain.ReturnType) string {
	if t == domain.ReturnTypeExchange {
		return "exchange"
	}
	return "return"
}

func firstDuplicate(ids []string) string {
	sorted := slices.Sorted(slices.Values(ids))
	for i := 1; i < len(sorted); i++ {
		if sorted[i] == sorted[i-1] {
			return sorted[i]
		}
	}
	return ""
}
