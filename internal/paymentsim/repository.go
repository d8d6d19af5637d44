package paymentsim

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/bookstore-orderflow/internal/db"
	"github.com/joao-fontenele/bookstore-orderflow/internal/domain"
)

// Attempt is one simulated charge against an order's primary card.
type Attempt struct {
	ID        string
	OrderID   string
	Attempt   int
	Status    domain.PaymentStatus
	Message   string
	Amount    decimal.Decimal
	CreatedAt time.Time
}

type AttemptRepository struct {
	q db.Querier
}

func NewAttemptRepository(q db.Querier) *AttemptRepository {
	return &AttemptRepository{q: q}
}

// Latest returns the highest-numbered attempt for the order. ok is false
// when the order was never charged.
func (r *AttemptRepository) Latest(ctx context.Context, orderID string) (a Attempt, ok bool, err error) {
	err = r.q.QueryRowContext(ctx, `
		SELECT id, order_id, attempt, status, message, amount, created_at
		FROM payment_attempts
		WHERE order_id = $1
		ORDER BY attempt DESC
		LIMIT 1
	`, orderID).Scan(&a.ID, &a.OrderID, &a.Attempt, &a.Status, &a.Message, &a.Amount, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Attempt{}, false, nil
	}
	if err != nil {
		return Attempt{}, false, fmt.Errorf("latest payment attempt: %w", err)
	}
	return a, true, nil
}

func (r *AttemptRepository) Record(ctx context.Context, a *Attempt) error {
	a.ID = uuid.New().String()
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO payment_attempts (id, order_id, attempt, status, message, amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, a.ID, a.OrderID, a.Attempt, a.Status, a.Message, a.Amount, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("record payment attempt: %w", err)
	}
	return nil
}

func (r *AttemptRepository) ListByOrder(ctx context.Context, orderID string) ([]Attempt, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, order_id, attempt, status, message, amount, created_at
		FROM payment_attempts
		WHERE order_id = $1
		ORDER BY attempt
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list payment attempts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var attempts []Attempt
	for rows.Next() {
		var a Attempt
		if err := rows.Scan(&a.ID, &a.OrderID, &a.Attempt, &a.Status, &a.Message, &a.Amount, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan payment attempt: %w", err)
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
