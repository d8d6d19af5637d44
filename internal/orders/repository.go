package orders

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/bookstore-orderflow/internal/db"
	"github.com/joao-fontenele/bookstore-orderflow/internal/domain"
)

type OrderRepository struct {
	q db.Querier
}

func NewOrderRepository(q db.Querier) *OrderRepository {
	return &OrderRepository{q: q}
}

// Create inserts the order and its lines, assigning the order id.
func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	order.ID = uuid.New().String()

	address, err := json.Marshal(order.Address)
	if err != nil {
		return fmt.Errorf("marshal address: %w", err)
	}

	_, err = r.q.ExecContext(ctx, `
		INSERT INTO orders (id, customer_id, status, address, freight, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`, order.ID, order.CustomerID, order.Status, string(address), order.Freight, order.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for _, item := range order.Items {
		_, err = r.q.ExecContext(ctx, `
			INSERT INTO order_items (order_id, stock_unit_id, unit_price)
			VALUES ($1, $2, $3)
		`, order.ID, item.StockUnitID, item.UnitPrice)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	return nil
}

// CreateTransaction inserts the transaction and one card payment per
// instrument, in instruction order.
func (r *OrderRepository) CreateTransaction(ctx context.Context, txn *domain.Transaction) error {
	txn.ID = uuid.New().String()

	var couponID any
	if txn.CouponID != "" {
		couponID = txn.CouponID
	}
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO transactions (id, order_id, amount, date, coupon_id, payment_status, last_payment_request_at)
		VALUES ($1, $2, $3, $4, $5, $6, $4)
	`, txn.ID, txn.OrderID, txn.Amount, txn.Date, couponID, txn.PaymentStatus)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}

	for i := range txn.Payments {
		p := &txn.Payments[i]
		p.ID = uuid.New().String()
		_, err = r.q.ExecContext(ctx, `
			INSERT INTO card_payments (id, transaction_id, position, amount, brand, holder_name, number, last4, cvv, expiry_date)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, p.ID, txn.ID, i, p.Amount, p.Card.Brand, p.Card.HolderName, p.Card.Number, p.Card.Last4, p.Card.CVV, p.Card.ExpiryDate)
		if err != nil {
			return fmt.Errorf("insert card payment: %w", err)
		}
	}

	return nil
}

const orderColumns = `id, customer_id, status, address, freight, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (domain.Order, error) {
	var (
		o       domain.Order
		address []byte
	)
	if err := row.Scan(&o.ID, &o.CustomerID, &o.Status, &address, &o.Freight, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return domain.Order{}, err
	}
	if err := json.Unmarshal(address, &o.Address); err != nil {
		return domain.Order{}, fmt.Errorf("unmarshal address: %w", err)
	}
	o.Items = []domain.OrderItem{}
	return o, nil
}

// Get loads an order with its lines and transaction. With lock set the order
// row stays locked until the caller's transaction ends.
func (r *OrderRepository) Get(ctx context.Context, id string, lock bool) (domain.Order, error) {
	if !domain.ValidID(id) {
		return domain.Order{}, domain.Errorf(domain.KindNotFound, "order %s not found", id)
	}
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}

	order, err := scanOrder(r.q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, domain.Errorf(domain.KindNotFound, "order %s not found", id)
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("get order: %w", err)
	}

	orders := []domain.Order{order}
	if err := r.attach(ctx, orders); err != nil {
		return domain.Order{}, err
	}
	return orders[0], nil
}

func (r *OrderRepository) ListByCustomer(ctx context.Context, customerID string) ([]domain.Order, error) {
	if !domain.ValidID(customerID) {
		return []domain.Order{}, nil
	}
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE customer_id = $1
		ORDER BY created_at DESC
	`, customerID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer func() { _ = rows.Close() }()

	orders := []domain.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.attach(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// attach loads lines, transactions and card payments for orders with one
// query per table.
func (r *OrderRepository) attach(ctx context.Context, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}

	byID := make(map[string]*domain.Order, len(orders))
	ids := make([]string, 0, len(orders))
	for i := range orders {
		byID[orders[i].ID] = &orders[i]
		ids = append(ids, orders[i].ID)
	}

	itemRows, err := r.q.QueryContext(ctx, `
		SELECT oi.order_id, oi.stock_unit_id, su.book_id, su.code, oi.unit_price
		FROM order_items oi
		JOIN stock_units su ON su.id = oi.stock_unit_id
		WHERE oi.order_id = ANY($1::uuid[])
		ORDER BY su.code
	`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("list order items: %w", err)
	}
	defer func() { _ = itemRows.Close() }()

	for itemRows.Next() {
		var (
			orderID string
			item    domain.OrderItem
		)
		if err := itemRows.Scan(&orderID, &item.StockUnitID, &item.BookID, &item.Code, &item.UnitPrice); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		byID[orderID].Items = append(byID[orderID].Items, item)
	}
	if err := itemRows.Err(); err != nil {
		return err
	}

	txnRows, err := r.q.QueryContext(ctx, `
		SELECT id, order_id, amount, date, COALESCE(coupon_id::text, ''), payment_status, payment_message
		FROM transactions
		WHERE order_id = ANY($1::uuid[])
	`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("list transactions: %w", err)
	}
	defer func() { _ = txnRows.Close() }()

	txnByID := make(map[string]*domain.Transaction)
	var txnIDs []string
	for txnRows.Next() {
		txn := &domain.Transaction{Payments: []domain.CardPayment{}}
		if err := txnRows.Scan(&txn.ID, &txn.OrderID, &txn.Amount, &txn.Date, &txn.CouponID, &txn.PaymentStatus, &txn.PaymentMessage); err != nil {
			return fmt.Errorf("scan transaction: %w", err)
		}
		byID[txn.OrderID].Transaction = txn
		txnByID[txn.ID] = txn
		txnIDs = append(txnIDs, txn.ID)
	}
	if err := txnRows.Err(); err != nil {
		return err
	}
	if len(txnIDs) == 0 {
		return nil
	}

	payRows, err := r.q.QueryContext(ctx, `
		SELECT id, transaction_id, amount, brand, holder_name, number, last4, cvv, expiry_date
		FROM card_payments
		WHERE transaction_id = ANY($1::uuid[])
		ORDER BY transaction_id, position
	`, pq.Array(txnIDs))
	if err != nil {
		return fmt.Errorf("list card payments: %w", err)
	}
	defer func() { _ = payRows.Close() }()

	for payRows.Next() {
		var (
			txnID string
			p     domain.CardPayment
		)
		if err := payRows.Scan(&p.ID, &txnID, &p.Amount, &p.Card.Brand, &p.Card.HolderName, &p.Card.Number, &p.Card.Last4, &p.Card.CVV, &p.Card.ExpiryDate); err != nil {
			return fmt.Errorf("scan card payment: %w", err)
		}
		txn := txnByID[txnID]
		txn.Payments = append(txn.Payments, p)
	}
	return payRows.Err()
}

// UpdateStatus moves the order from one status to another. It fails with
// InvalidStatusTransition if the stored status is no longer from.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus, at time.Time) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE orders SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`, to, at, id, from)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.Errorf(domain.KindInvalidStatusTransition, "order %s is no longer %s", id, from)
	}
	return nil
}

func (r *OrderRepository) RecordPaymentOutcome(ctx context.Context, orderID string, status domain.PaymentStatus, message string) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE transactions SET payment_status = $1, payment_message = $2
		WHERE order_id = $3
	`, status, message, orderID)
	if err != nil {
		return fmt.Errorf("record payment outcome: %w", err)
	}
	return nil
}

// MarkPaymentRequested counts one more delivered payment request.
func (r *OrderRepository) MarkPaymentRequested(ctx context.Context, orderID string, at time.Time) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE transactions
		SET payment_requests = payment_requests + 1, last_payment_request_at = $1
		WHERE order_id = $2
	`, at, orderID)
	if err != nil {
		return fmt.Errorf("mark payment requested: %w", err)
	}
	return nil
}

// StalePayment is a PROCESSING order still waiting for a payment outcome.
type StalePayment struct {
	OrderID  string
	Requests int
	Amount   decimal.Decimal
	Card     domain.CardSnapshot
}

// ListStalePayments returns PROCESSING orders whose last payment request, or
// creation when none was delivered, is older than before.
func (r *OrderRepository) ListStalePayments(ctx context.Context, before time.Time, limit int) ([]StalePayment, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT o.id, t.payment_requests, t.amount,
		       cp.brand, cp.holder_name, cp.number, cp.last4, cp.cvv, cp.expiry_date
		FROM orders o
		JOIN transactions t ON t.order_id = o.id
		JOIN card_payments cp ON cp.transaction_id = t.id AND cp.position = 0
		WHERE o.status = $1 AND t.last_payment_request_at < $2
		ORDER BY t.last_payment_request_at
		LIMIT $3
	`, domain.OrderProcessing, before, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale payments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var stale []StalePayment
	for rows.Next() {
		var s StalePayment
		if err := rows.Scan(&s.OrderID, &s.Requests, &s.Amount,
			&s.Card.Brand, &s.Card.HolderName, &s.Card.Number, &s.Card.Last4, &s.Card.CVV, &s.Card.ExpiryDate); err != nil {
			return nil, fmt.Errorf("scan stale payment: %w", err)
		}
		stale = append(stale, s)
	}
	return stale, rows.Err()
}
