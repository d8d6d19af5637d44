// Package orders turns carts into paid orders and drives the order lifecycle.
package orders

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/bookstore-orderflow/internal/cart"
	"github.com/joao-fontenele/bookstore-orderflow/internal/coupons"
	"github.com/joao-fontenele/bookstore-orderflow/internal/customers"
	"github.com/joao-fontenele/bookstore-orderflow/internal/db"
	"github.com/joao-fontenele/bookstore-orderflow/internal/domain"
	"github.com/joao-fontenele/bookstore-orderflow/internal/inventory"
	"github.com/joao-fontenele/bookstore-orderflow/internal/messaging"
	"github.com/joao-fontenele/bookstore-orderflow/internal/payment"
	"github.com/joao-fontenele/bookstore-orderflow/internal/telemetry"
)

type CheckoutInput struct {
	CustomerID string `json:"-"`
	AddressID  string `json:"address_id"`
	CouponCode string `json:"coupon_code,omitempty"`
	// IgnoreInvalidCoupon checks out without a discount instead of failing
	// when the coupon cannot be applied.
	IgnoreInvalidCoupon bool                        `json:"ignore_invalid_coupon,omitempty"`
	Payments            []domain.PaymentInstruction `json:"payments"`
}

type Options struct {
	MinItemFreight decimal.Decimal
}

type Service struct {
	db        *sql.DB
	validator *payment.Validator
	publisher messaging.Publisher
	metrics   *telemetry.Metrics
	logger    *slog.Logger
	opts      Options
	now       func() time.Time
}

// NewService builds the order service. publisher may be nil, in which case
// payment requests are left for the stale payment sweep.
func NewService(conn *sql.DB, validator *payment.Validator, publisher messaging.Publisher, metrics *telemetry.Metrics, logger *slog.Logger, opts Options) *Service {
	return &Service{
		db:        conn,
		validator: validator,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		opts:      opts,
		now:       time.Now,
	}
}

// Checkout converts the customer's cart into a PROCESSING order inside one
// transaction, then asks for payment. Nothing persists if any step before
// the commit fails; a failed payment request does not undo the order.
func (s *Service) Checkout(ctx context.Context, in CheckoutInput) (domain.Order, error) {
	var order domain.Order
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		order, err = s.checkout(ctx, tx, in)
		return err
	})
	if err != nil {
		s.metrics.CheckoutFailed(ctx, string(domain.KindOf(err)))
		return domain.Order{}, err
	}

	s.metrics.CheckoutCompleted(ctx)
	s.logger.Info("order created", "order_id", order.ID, "customer_id", order.CustomerID, "amount", order.Transaction.Amount.StringFixed(2))

	s.requestPayment(ctx, order.ID, order.Transaction.Amount, order.Transaction.Payments[0].Card, 1)
	return order, nil
}

func (s *Service) checkout(ctx context.Context, tx *sql.Tx, in CheckoutInput) (domain.Order, error) {
	now := s.now().UTC()
	customerRepo := customers.NewRepository(tx)

	if _, err := customerRepo.Get(ctx, in.CustomerID); err != nil {
		return domain.Order{}, err
	}
	cartRepo := cart.NewRepository(tx)
	if _, err := cartRepo.Lock(ctx, in.CustomerID); err != nil {
		return domain.Order{}, err
	}
	c, err := cartRepo.Load(ctx, in.CustomerID)
	if err != nil {
		return domain.Order{}, err
	}
	if c.IsEmpty() {
		return domain.Order{}, domain.Errorf(domain.KindEmptyCart, "cart of customer %s is empty", in.CustomerID)
	}

	payments, err := s.resolveCards(ctx, customerRepo, in)
	if err != nil {
		return domain.Order{}, err
	}

	address, err := customerRepo.OwnedAddress(ctx, in.CustomerID, in.AddressID)
	if err != nil {
		return domain.Order{}, err
	}

	couponRepo := coupons.NewRepository(tx)
	coupon, err := s.resolveCoupon(ctx, couponRepo, in, now)
	if err != nil {
		return domain.Order{}, err
	}

	itemsTotal := c.Total()
	freight := c.Freight(s.opts.MinItemFreight)
	net := itemsTotal.Add(freight)
	if coupon != nil {
		net = net.Sub(coupon.DiscountOn(itemsTotal))
	}
	if err := s.validator.Validate(in.Payments, net); err != nil {
		return domain.Order{}, err
	}

	if err := c.CheckSellable(); err != nil {
		return domain.Order{}, err
	}
	if err := inventory.NewLedger(tx).SellReserved(ctx, c.ID, c.StockUnitIDs(), now); err != nil {
		return domain.Order{}, err
	}

	order := domain.Order{
		CustomerID: in.CustomerID,
		Status:     domain.OrderProcessing,
		Address:    address.Snapshot(),
		Freight:    freight,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	for _, item := range c.Items {
		order.Items = append(order.Items, domain.OrderItem{
			StockUnitID: item.StockUnit.ID,
			BookID:      item.Book.ID,
			Code:        item.StockUnit.Code,
			UnitPrice:   item.UnitPrice(),
		})
	}

	repo := NewOrderRepository(tx)
	if err := repo.Create(ctx, &order); err != nil {
		return domain.Order{}, err
	}

	var couponID string
	if coupon != nil {
		if err := couponRepo.Consume(ctx, coupon.ID); err != nil {
			return domain.Order{}, err
		}
		couponID = coupon.ID
	}

	txn := domain.NewTransaction(payments, couponID, now)
	txn.OrderID = order.ID
	if err := repo.CreateTransaction(ctx, &txn); err != nil {
		return domain.Order{}, err
	}
	order.Transaction = &txn

	if _, err := cartRepo.RemoveItems(ctx, c.ID, c.ItemIDs()); err != nil {
		return domain.Order{}, err
	}

	return order, nil
}

// resolveCards turns each instruction into the card payment it will charge.
func (s *Service) resolveCards(ctx context.Context, repo *customers.Repository, in CheckoutInput) ([]domain.CardPayment, error) {
	if len(in.Payments) == 0 {
		return nil, domain.Errorf(domain.KindInvalidPaymentSplit, "at least one payment instrument is required")
	}

	payments := make([]domain.CardPayment, 0, len(in.Payments))
	for _, p := range in.Payments {
		var (
			card domain.Card
			err  error
		)
		switch {
		case p.CardID != "":
			card, err = repo.OwnedCard(ctx, in.CustomerID, p.CardID)
		case p.Card != nil:
			card, err = domain.NewCard(p.Card.Number, p.Card.HolderName, p.Card.CVV, p.Card.ExpiryDate, p.Card.Brand)
		default:
			err = domain.Errorf(domain.KindValidation, "payment instruction needs a card id or card data")
		}
		if err != nil {
			return nil, err
		}
		payments = append(payments, domain.CardPayment{Amount: p.Amount, Card: card.Snapshot()})
	}
	return payments, nil
}

func (s *Service) resolveCoupon(ctx context.Context, repo *coupons.Repository, in CheckoutInput, now time.Time) (*domain.Coupon, error) {
	if in.CouponCode == "" {
		return nil, nil
	}
	coupon, err := repo.Validate(ctx, in.CouponCode, now)
	if err != nil {
		if in.IgnoreInvalidCoupon && errors.Is(err, domain.ErrInvalidCoupon) {
			s.logger.Warn("ignoring unusable coupon", "customer_id", in.CustomerID, "coupon", in.CouponCode, "error", err)
			return nil, nil
		}
		return nil, err
	}
	if coupon.CustomerID != "" && coupon.CustomerID != in.CustomerID {
		return nil, domain.Errorf(domain.KindUnauthorized, "coupon %s belongs to another customer", in.CouponCode)
	}
	return &coupon, nil
}

// requestPayment publishes a payment request for the order. Delivery
// problems are logged and counted, never returned.
func (s *Service) requestPayment(ctx context.Context, orderID string, amount decimal.Decimal, card domain.CardSnapshot, attempt int) bool {
	if s.publisher == nil {
		s.logger.Warn("payment channel not configured, leaving order for the sweep", "order_id", orderID)
		return false
	}

	event := domain.NewPaymentRequestedEvent(orderID, amount, card, attempt, s.now().UTC())
	if err := s.publisher.Publish(ctx, orderID, event); err != nil {
		s.metrics.PublishFailed(ctx)
		s.logger.Warn("failed to publish payment request", "error", err, "order_id", orderID, "attempt", attempt)
		return false
	}

	if err := NewOrderRepository(s.db).MarkPaymentRequested(ctx, orderID, s.now().UTC()); err != nil {
		s.logger.Error("failed to record payment request", "error", err, "order_id", orderID)
	}
	return true
}

// Get returns an order. A non-empty customerID restricts access to that
// customer's orders.
func (s *Service) Get(ctx context.Context, id, customerID string) (domain.Order, error) {
	order, err := NewOrderRepository(s.db).Get(ctx, id, false)
	if err != nil {
		return domain.Order{}, err
	}
	if customerID != "" && order.CustomerID != customerID {
		return domain.Order{}, domain.Errorf(domain.KindUnauthorized, "order %s does not belong to customer %s", id, customerID)
	}
	return order, nil
}

func (s *Service) List(ctx context.Context, customerID string) ([]domain.Order, error) {
	return NewOrderRepository(s.db).ListByCustomer(ctx, customerID)
}

// UpdateStatus applies a status change, releasing the order's stock when the
// new status is REJECTED or CANCELED.
func (s *Service) UpdateStatus(ctx context.Context, id string, to domain.OrderStatus) (domain.Order, error) {
	var order domain.Order
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		order, err = s.transition(ctx, tx, id, to)
		return err
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.metrics.StatusTransition(ctx, string(to))
	s.logger.Info("order status updated", "order_id", id, "status", to)
	return order, nil
}

func (s *Service) transition(ctx context.Context, tx *sql.Tx, id string, to domain.OrderStatus) (domain.Order, error) {
	repo := NewOrderRepository(tx)
	order, err := repo.Get(ctx, id, true)
	if err != nil {
		return domain.Order{}, err
	}

	from := order.Status
	if err := order.SetStatus(to); err != nil {
		return domain.Order{}, err
	}
	now := s.now().UTC()
	if err := repo.UpdateStatus(ctx, id, from, to, now); err != nil {
		return domain.Order{}, err
	}
	order.UpdatedAt = now

	if to.ReleasesStock() {
		if err := inventory.NewLedger(tx).Release(ctx, order.StockUnitIDs()); err != nil {
			return domain.Order{}, err
		}
	}
	return order, nil
}

// ApplyPaymentOutcome settles a PROCESSING order: APPROVED on an approved
// payment, REJECTED (with stock released) on a denied one. Outcomes for
// unknown or already settled orders fail with InvalidStatusTransition.
func (s *Service) ApplyPaymentOutcome(ctx context.Context, outcome domain.PaymentOutcomeEvent) (domain.Order, error) {
	var to domain.OrderStatus
	switch outcome.Status {
	case domain.PaymentApproved:
		to = domain.OrderApproved
	case domain.PaymentDenied:
		to = domain.OrderRejected
	default:
		return domain.Order{}, domain.Errorf(domain.KindValidation, "unknown payment status %q", outcome.Status)
	}

	var order domain.Order
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		repo := NewOrderRepository(tx)
		current, err := repo.Get(ctx, outcome.OrderID, true)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Errorf(domain.KindInvalidStatusTransition, "payment outcome for unknown order %s", outcome.OrderID)
		}
		if err != nil {
			return err
		}
		if current.Status != domain.OrderProcessing {
			return domain.Errorf(domain.KindInvalidStatusTransition, "payment outcome for order %s in status %s", outcome.OrderID, current.Status)
		}

		order, err = s.transition(ctx, tx, outcome.OrderID, to)
		if err != nil {
			return err
		}
		if err := repo.RecordPaymentOutcome(ctx, outcome.OrderID, outcome.Status, outcome.Message); err != nil {
			return err
		}
		order.Transaction.PaymentStatus = outcome.Status
		order.Transaction.PaymentMessage = outcome.Message
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.metrics.StatusTransition(ctx, string(to))
	s.logger.Info("payment outcome applied", "order_id", outcome.OrderID, "payment_status", outcome.Status, "status", to)
	return order, nil
}

// StalePayments lists PROCESSING orders with no payment request newer than
// olderThan.
func (s *Service) StalePayments(ctx context.Context, olderThan time.Duration, limit int) ([]StalePayment, error) {
	return NewOrderRepository(s.db).ListStalePayments(ctx, s.now().UTC().Add(-olderThan), limit)
}

// RetryPayment republishes the payment request of a stale order.
func (s *Service) RetryPayment(ctx context.Context, stale StalePayment) bool {
	return s.requestPayment(ctx, stale.OrderID, stale.Amount, stale.Card, stale.Requests+1)
}

// CancelUnpaid cancels a PROCESSING order that never received a payment
// outcome and releases its stock.
func (s *Service) CancelUnpaid(ctx context.Context, orderID, reason string) (domain.Order, error) {
	var order domain.Order
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		repo := NewOrderRepository(tx)
		current, err := repo.Get(ctx, orderID, true)
		if err != nil {
			return err
		}
		if current.Status != domain.OrderProcessing {
			return domain.Errorf(domain.KindInvalidStatusTransition, "order %s was settled as %s", orderID, current.Status)
		}

		order, err = s.transition(ctx, tx, orderID, domain.OrderCanceled)
		if err != nil {
			return err
		}
		return repo.RecordPaymentOutcome(ctx, orderID, domain.PaymentPending, reason)
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.metrics.StatusTransition(ctx, string(domain.OrderCanceled))
	s.logger.Warn("unpaid order canceled", "order_id", orderID, "reason", reason)
	return order, nil
}
