//go:build integration

package orders

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/joao-fontenele/bookstore-orderflow/internal/cart"
	"github.com/joao-fontenele/bookstore-orderflow/internal/coupons"
	"github.com/joao-fontenele/bookstore-orderflow/internal/domain"
	"github.com/joao-fontenele/bookstore-orderflow/internal/httpx"
	"github.com/joao-fontenele/bookstore-orderflow/internal/messaging"
	"github.com/joao-fontenele/bookstore-orderflow/internal/payment"
	"github.com/joao-fontenele/bookstore-orderflow/internal/telemetry"
	"github.com/joao-fontenele/bookstore-orderflow/internal/testutil"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []domain.PaymentRequestedEvent
	err    error
}

func (c *capturePublisher) Publish(_ context.Context, _ string, event any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.events = append(c.events, event.(domain.PaymentRequestedEvent))
	return nil
}

type memGuard struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (g *memGuard) Claim(_ context.Context, scope, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.keys[scope+key] {
		return domain.Errorf(domain.KindConflict, "duplicate request")
	}
	g.keys[scope+key] = true
	return nil
}

func (g *memGuard) Forget(_ context.Context, scope, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.keys, scope+key)
	return nil
}

type env struct {
	conn *sql.DB
	cart *cart.Service
}

// shopperWithCart seeds a shopper holding one unit priced at price in the cart.
// Units cost 80% of price under a 25% markup.
func (e env) shopperWithCart(ctx context.Context, t *testing.T, price string) (testutil.Shopper, string) {
	t.Helper()

	shopper := testutil.SeedShopper(ctx, t, e.conn)
	bookID := testutil.SeedBook(ctx, t, e.conn, "25")
	cost := decimal.RequireFromString(price).Mul(decimal.RequireFromString("0.8")).StringFixed(2)
	units := testutil.SeedUnits(ctx, t, e.conn, bookID, cost, 1)

	_, err := e.cart.AddItem(ctx, shopper.ID, bookID, 1)
	require.NoError(t, err)
	return shopper, units[0]
}

func pay(cardID, amount string) domain.PaymentInstruction {
	return domain.PaymentInstruction{CardID: cardID, Amount: decimal.RequireFromString(amount)}
}

func newService(conn *sql.DB, publisher *capturePublisher, minFreight int64) *Service {
	var pub messaging.Publisher
	if publisher != nil {
		pub = publisher
	}
	return NewService(conn, payment.NewValidator(decimal.NewFromInt(10)), pub, telemetry.NopMetrics(), testutil.DiscardLogger(),
		Options{MinItemFreight: decimal.NewFromInt(minFreight)})
}

// counterTotal sums every data point of the named int64 counter.
func counterTotal(rm metricdata.ResourceMetrics, name string) int64 {
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if m.Name != name || !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

func TestCheckout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	conn := testutil.SetupPostgres(ctx, t)
	e := env{conn: conn, cart: cart.NewService(conn, telemetry.NopMetrics(), testutil.DiscardLogger(), decimal.Zero)}

	t.Run("single card pays items plus freight", func(t *testing.T) {
		pub := &capturePublisher{}
		svc := newService(conn, pub, 10)
		shopper, unitID := e.shopperWithCart(ctx, t, "50")

		order, err := svc.Checkout(ctx, CheckoutInput{
			CustomerID: shopper.ID,
			AddressID:  shopper.AddressID,
			Payments:   []domain.PaymentInstruction{pay(shopper.CardIDs[0], "60")},
		})
		require.NoError(t, err)

		assert.Equal(t, domain.OrderProcessing, order.Status)
		assert.Equal(t, "10.00", order.Freight.StringFixed(2))
		require.Len(t, order.Items, 1)
		assert.Equal(t, "50.00", order.Items[0].UnitPrice.StringFixed(2))

		status, sold := testutil.UnitStatus(ctx, t, conn, unitID)
		assert.Equal(t, "SOLD", status)
		assert.True(t, sold)

		view, err := e.cart.Get(ctx, shopper.ID)
		require.NoError(t, err)
		assert.True(t, view.IsEmpty())

		require.Len(t, pub.events, 1)
		assert.Equal(t, order.ID, pub.events[0].OrderID)
		assert.Equal(t, 1, pub.events[0].Attempt)
		assert.Equal(t, "4111111111111111", pub.events[0].Card.Number)

		stored, err := svc.Get(ctx, order.ID, shopper.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentPending, stored.Transaction.PaymentStatus)
		assert.Equal(t, "60.00", stored.Transaction.Amount.StringFixed(2))
		assert.Equal(t, "Rua das Flores", stored.Address.Street)
	})

	t.Run("a payment request that cannot be published leaves the order processing", func(t *testing.T) {
		reader := sdkmetric.NewManualReader()
		metrics, err := telemetry.NewMetricsFrom(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
		require.NoError(t, err)
		pub := &capturePublisher{err: errors.New("broker unavailable")}
		svc := NewService(conn, payment.NewValidator(decimal.NewFromInt(10)), pub, metrics, testutil.DiscardLogger(),
			Options{MinItemFreight: decimal.NewFromInt(10)})
		shopper, unitID := e.shopperWithCart(ctx, t, "50")

		order, err := svc.Checkout(ctx, CheckoutInput{
			CustomerID: shopper.ID,
			AddressID:  shopper.AddressID,
			Payments:   []domain.PaymentInstruction{pay(shopper.CardIDs[0], "60")},
		})
		require.NoError(t, err)
		assert.Empty(t, pub.events)

		stored, err := svc.Get(ctx, order.ID, shopper.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderProcessing, stored.Status)
		assert.Equal(t, domain.PaymentPending, stored.Transaction.PaymentStatus)

		status, _ := testutil.UnitStatus(ctx, t, conn, unitID)
		assert.Equal(t, "SOLD", status)

		var rm metricdata.ResourceMetrics
		require.NoError(t, reader.Collect(ctx, &rm))
		assert.Equal(t, int64(1), counterTotal(rm, "payment.publish.failures"))
		assert.Equal(t, int64(1), counterTotal(rm, "checkout.completed"))
	})

	t.Run("two cards split the net total", func(t *testing.T) {
		svc := newService(conn, &capturePublisher{}, 0)
		shopper, _ := e.shopperWithCart(ctx, t, "50")

		order, err := svc.Checkout(ctx, CheckoutInput{
			CustomerID: shopper.ID,
			AddressID:  shopper.AddressID,
			Payments:   []domain.PaymentInstruction{pay(shopper.CardIDs[0], "20"), pay(shopper.CardIDs[1], "30")},
		})
		require.NoError(t, err)

		stored, err := svc.Get(ctx, order.ID, "")
		require.NoError(t, err)
		require.Len(t, stored.Transaction.Payments, 2)
		sum := stored.Transaction.Payments[0].Amount.Add(stored.Transaction.Payments[1].Amount)
		assert.Equal(t, "50.00", sum.StringFixed(2))
		assert.Equal(t, "1111", stored.Transaction.Payments[0].Card.Last4)
	})

	t.Run("a card below the minimum that is not last fails and leaves nothing behind", func(t *testing.T) {
		svc := newService(conn, &capturePublisher{}, 0)
		shopper, unitID := e.shopperWithCart(ctx, t, "50")

		_, err := svc.Checkout(ctx, CheckoutInput{
			CustomerID: shopper.ID,
			AddressID:  shopper.AddressID,
			Payments:   []domain.PaymentInstruction{pay(shopper.CardIDs[0], "5"), pay(shopper.CardIDs[1], "45")},
		})
		assert.ErrorIs(t, err, domain.ErrInvalidPaymentSplit)

		status, _ := testutil.UnitStatus(ctx, t, conn, unitID)
		assert.Equal(t, "BLOCKED", status)

		view, err := e.cart.Get(ctx, shopper.ID)
		require.NoError(t, err)
		assert.Len(t, view.Items, 1)

		listed, err := svc.List(ctx, shopper.ID)
		require.NoError(t, err)
		assert.Empty(t, listed)
	})

	t.Run("empty cart", func(t *testing.T) {
		svc := newService(conn, nil, 0)
		shopper := testutil.SeedShopper(ctx, t, conn)

		_, err := svc.Checkout(ctx, CheckoutInput{
			CustomerID: shopper.ID,
			AddressID:  shopper.AddressID,
			Payments:   []domain.PaymentInstruction{pay(shopper.CardIDs[0], "50")},
		})
		assert.ErrorIs(t, err, domain.ErrEmptyCart)
	})

	t.Run("another customer's card is refused", func(t *testing.T) {
		svc := newService(conn, nil, 0)
		shopper, _ := e.shopperWithCart(ctx, t, "50")
		other := testutil.SeedShopper(ctx, t, conn)

		_, err := svc.Checkout(ctx, CheckoutInput{
			CustomerID: shopper.ID,
			AddressID:  shopper.AddressID,
			Payments:   []domain.PaymentInstruction{pay(other.CardIDs[0], "50")},
		})
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("percentage coupon discounts the items and is consumed", func(t *testing.T) {
		svc := newService(conn, nil, 0)
		shopper, _ := e.shopperWithCart(ctx, t, "50")
		coupon := domain.Coupon{
			Code:       "TENOFF-" + shopper.ID[:8],
			CustomerID: shopper.ID,
			Type:       domain.CouponPercentage,
			Discount:   decimal.NewFromInt(10),
			Status:     domain.CouponAvailable,
			ExpiresAt:  time.Now().Add(24 * time.Hour),
		}
		require.NoError(t, coupons.NewRepository(conn).Issue(ctx, &coupon))

		order, err := svc.Checkout(ctx, CheckoutInput{
			CustomerID: shopper.ID,
			AddressID:  shopper.AddressID,
			CouponCode: coupon.Code,
			Payments:   []domain.PaymentInstruction{pay(shopper.CardIDs[0], "45")},
		})
		require.NoError(t, err)
		assert.Equal(t, coupon.ID, order.Transaction.CouponID)

		used, err := coupons.NewRepository(conn).GetByCode(ctx, coupon.Code)
		require.NoError(t, err)
		assert.Equal(t, domain.CouponUsed, used.Status)
	})

	t.Run("unusable coupon can be ignored", func(t *testing.T) {
		svc := newService(conn, nil, 0)
		shopper, _ := e.shopperWithCart(ctx, t, "50")

		_, err := svc.Checkout(ctx, CheckoutInput{
			CustomerID: shopper.ID,
			AddressID:  shopper.AddressID,
			CouponCode: "DOES-NOT-EXIST",
			Payments:   []domain.PaymentInstruction{pay(shopper.CardIDs[0], "50")},
		})
		assert.ErrorIs(t, err, domain.ErrInvalidCoupon)

		_, err = svc.Checkout(ctx, CheckoutInput{
			CustomerID:          shopper.ID,
			AddressID:           shopper.AddressID,
			CouponCode:          "DOES-NOT-EXIST",
			IgnoreInvalidCoupon: true,
			Payments:            []domain.PaymentInstruction{pay(shopper.CardIDs[0], "50")},
		})
		assert.NoError(t, err)
	})

	t.Run("replayed idempotency key is rejected", func(t *testing.T) {
		svc := newService(conn, nil, 0)
		h := NewHandler(svc, &memGuard{keys: map[string]bool{}}, testutil.DiscardLogger())
		shopper, _ := e.shopperWithCart(ctx, t, "50")

		body := `{"address_id":"` + shopper.AddressID + `","payments":[{"card_id":"` + shopper.CardIDs[0] + `","amount":"50"}]}`
		send := func() *httptest.ResponseRecorder {
			req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body))
			req.Header.Set(httpx.CustomerHeader, shopper.ID)
			req.Header.Set(IdempotencyHeader, "checkout-1")
			rec := httptest.NewRecorder()
			h.HandleCheckout(rec, req)
			return rec
		}

		first := send()
		require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

		second := send()
		assert.Equal(t, http.StatusConflict, second.Code)
	})
}

func TestOrderLifecycle(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	conn := testutil.SetupPostgres(ctx, t)
	e := env{conn: conn, cart: cart.NewService(conn, telemetry.NopMetrics(), testutil.DiscardLogger(), decimal.Zero)}

	checkout := func(t *testing.T, svc *Service) (domain.Order, string) {
		t.Helper()
		shopper, unitID := e.shopperWithCart(ctx, t, "50")
		order, err := svc.Checkout(ctx, CheckoutInput{
			CustomerID: shopper.ID,
			AddressID:  shopper.AddressID,
			Payments:   []domain.PaymentInstruction{pay(shopper.CardIDs[0], "50")},
		})
		require.NoError(t, err)
		return order, unitID
	}

	t.Run("skipping states is rejected", func(t *testing.T) {
		svc := newService(conn, nil, 0)
		order, _ := checkout(t, svc)

		_, err := svc.UpdateStatus(ctx, order.ID, domain.OrderShipped)
		assert.ErrorIs(t, err, domain.ErrInvalidStatusTransition)

		stored, err := svc.Get(ctx, order.ID, "")
		require.NoError(t, err)
		assert.Equal(t, domain.OrderProcessing, stored.Status)
	})

	t.Run("approved payment then delivery", func(t *testing.T) {
		svc := newService(conn, nil, 0)
		order, unitID := checkout(t, svc)

		settled, err := svc.ApplyPaymentOutcome(ctx, domain.PaymentOutcomeEvent{OrderID: order.ID, Status: domain.PaymentApproved, Message: "transaction approved"})
		require.NoError(t, err)
		assert.Equal(t, domain.OrderApproved, settled.Status)

		for _, next := range []domain.OrderStatus{domain.OrderShipping, domain.OrderShipped, domain.OrderDelivered} {
			_, err := svc.UpdateStatus(ctx, order.ID, next)
			require.NoError(t, err)
		}

		stored, err := svc.Get(ctx, order.ID, "")
		require.NoError(t, err)
		assert.Equal(t, domain.OrderDelivered, stored.Status)
		assert.Equal(t, domain.PaymentApproved, stored.Transaction.PaymentStatus)
		assert.Equal(t, "transaction approved", stored.Transaction.PaymentMessage)

		status, _ := testutil.UnitStatus(ctx, t, conn, unitID)
		assert.Equal(t, "SOLD", status)

		_, err = svc.UpdateStatus(ctx, order.ID, domain.OrderCanceled)
		assert.ErrorIs(t, err, domain.ErrInvalidStatusTransition)
	})

	t.Run("denied payment rejects the order and releases stock", func(t *testing.T) {
		svc := newService(conn, nil, 0)
		order, unitID := checkout(t, svc)

		settled, err := svc.ApplyPaymentOutcome(ctx, domain.PaymentOutcomeEvent{OrderID: order.ID, Status: domain.PaymentDenied, Message: "declined"})
		require.NoError(t, err)
		assert.Equal(t, domain.OrderRejected, settled.Status)

		status, sold := testutil.UnitStatus(ctx, t, conn, unitID)
		assert.Equal(t, "AVAILABLE", status)
		assert.False(t, sold)

		_, err = svc.ApplyPaymentOutcome(ctx, domain.PaymentOutcomeEvent{OrderID: order.ID, Status: domain.PaymentApproved})
		assert.ErrorIs(t, err, domain.ErrInvalidStatusTransition)
	})

	t.Run("outcome for an unknown order", func(t *testing.T) {
		svc := newService(conn, nil, 0)

		_, err := svc.ApplyPaymentOutcome(ctx, domain.PaymentOutcomeEvent{OrderID: "9b0d8c4e-2f1a-4c3b-9d8e-7f6a5b4c3d2e", Status: domain.PaymentApproved})
		assert.ErrorIs(t, err, domain.ErrInvalidStatusTransition)

		_, err = svc.ApplyPaymentOutcome(ctx, domain.PaymentOutcomeEvent{OrderID: "not-an-id", Status: domain.PaymentApproved})
		assert.ErrorIs(t, err, domain.ErrInvalidStatusTransition)
	})

	t.Run("orders are private to their customer", func(t *testing.T) {
		svc := newService(conn, nil, 0)
		order, _ := checkout(t, svc)
		other := testutil.SeedShopper(ctx, t, conn)

		_, err := svc.Get(ctx, order.ID, other.ID)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("unpaid orders are retried then canceled", func(t *testing.T) {
		offline := newService(conn, nil, 0)
		order, unitID := checkout(t, offline)

		pub := &capturePublisher{}
		online := newService(conn, pub, 0)

		stale, err := online.StalePayments(ctx, 0, 100)
		require.NoError(t, err)
		var found *StalePayment
		for i := range stale {
			if stale[i].OrderID == order.ID {
				found = &stale[i]
			}
		}
		require.NotNil(t, found)
		assert.Equal(t, 0, found.Requests)
		assert.Equal(t, "50.00", found.Amount.StringFixed(2))

		require.True(t, online.RetryPayment(ctx, *found))
		require.Len(t, pub.events, 1)
		assert.Equal(t, 1, pub.events[0].Attempt)

		canceled, err := online.CancelUnpaid(ctx, order.ID, "no payment outcome after 3 requests")
		require.NoError(t, err)
		assert.Equal(t, domain.OrderCanceled, canceled.Status)

		status, _ := testutil.UnitStatus(ctx, t, conn, unitID)
		assert.Equal(t, "AVAILABLE", status)

		stored, err := online.Get(ctx, order.ID, "")
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentPending, stored.Transaction.PaymentStatus)
		assert.Equal(t, "no payment outcome after 3 requests", stored.Transaction.PaymentMessage)

		_, err = online.CancelUnpaid(ctx, order.ID, "again")
		assert.ErrorIs(t, err, domain.ErrInvalidStatusTransition)
	})
}
