package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
)

// Shopper is a seeded customer with one address and two cards.
type Shopper struct {
	ID        string
	Email     string
	AddressID string
	CardIDs   []string
}

// SeedBook inserts a book whose pricing group marks cost up by profit
// percent. Its dimensions keep the computed freight at zero, so the
// configured minimum decides the freight charged.
func SeedBook(ctx context.Context, t *testing.T, db *sql.DB, profit string) string {
	t.Helper()

	groupID := uuid.New().String()
	mustExec(ctx, t, db, `INSERT INTO pricing_groups (id, name, profit_percentage) VALUES ($1, $2, $3)`,
		groupID, "group-"+groupID[:8], profit)

	bookID := uuid.New().String()
	mustExec(ctx, t, db, `
		INSERT INTO books (id, title, pricing_group_id, height, width, depth, weight)
		VALUES ($1, $2, $3, 1, 1, 1, 0.1)
	`, bookID, "Book "+bookID[:8], groupID)

	return bookID
}

// SeedUnits inserts n AVAILABLE units of a book, each entered one minute
// after the previous.
func SeedUnits(ctx context.Context, t *testing.T, db *sql.DB, bookID, cost string, n int) []string {
	t.Helper()

	base := time.Now().UTC().Add(-time.Hour)
	ids := make([]string, 0, n)
	for i := range n {
		id := uuid.New().String()
		mustExec(ctx, t, db, `
			INSERT INTO stock_units (id, code, book_id, supplier, cost, status, entry_date)
			VALUES ($1, $2, $3, 'Test Supplier', $4, 'AVAILABLE', $5)
		`, id, "BOK-"+id[:8], bookID, cost, base.Add(time.Duration(i)*time.Minute))
		ids = append(ids, id)
	}
	return ids
}

func SeedShopper(ctx context.Context, t *testing.T, db *sql.DB) Shopper {
	t.Helper()

	s := Shopper{ID: uuid.New().String(), AddressID: uuid.New().String()}
	s.Email = fmt.Sprintf("shopper-%s@example.com", s.ID[:8])

	mustExec(ctx, t, db, `INSERT INTO customers (id, name, email) VALUES ($1, 'Test Shopper', $2)`, s.ID, s.Email)
	mustExec(ctx, t, db, `
		INSERT INTO addresses (id, customer_id, street, number, district, zipcode, city, state, country)
		VALUES ($1, $2, 'Rua das Flores', '100', 'Centro', '01000-000', 'Sao Paulo', 'SP', 'BR')
	`, s.AddressID, s.ID)

	for _, number := range []string{"4111111111111111", "5555555555554444"} {
		cardID := uuid.New().String()
		mustExec(ctx, t, db, `
			INSERT INTO cards (id, customer_id, number, holder_name, cvv, expiry_date, brand)
			VALUES ($1, $2, $3, 'TEST SHOPPER', '123', '12/30', 'VISA')
		`, cardID, s.ID, number)
		s.CardIDs = append(s.CardIDs, cardID)
	}

	return s
}

// SeedCartItem puts unitID in the customer's cart, creating the cart when
// needed, and returns the cart id. The unit's status is left as it is.
func SeedCartItem(ctx context.Context, t *testing.T, db *sql.DB, customerID, unitID string) string {
	t.Helper()

	mustExec(ctx, t, db, `
		INSERT INTO carts (id, customer_id) VALUES ($1, $2)
		ON CONFLICT (customer_id) DO NOTHING
	`, uuid.New().String(), customerID)

	var cartID string
	if err := db.QueryRowContext(ctx, `SELECT id FROM carts WHERE customer_id = $1`, customerID).Scan(&cartID); err != nil {
		t.Fatalf("failed to read cart of %s: %v", customerID, err)
	}
	mustExec(ctx, t, db, `INSERT INTO cart_items (id, cart_id, stock_unit_id) VALUES ($1, $2, $3)`, uuid.New().String(), cartID, unitID)
	return cartID
}

// UnitStatus reads a unit's status and whether its sale date is set.
func UnitStatus(ctx context.Context, t *testing.T, db *sql.DB, id string) (string, bool) {
	t.Helper()

	var status string
	var saleDate sql.NullTime
	if err := db.QueryRowContext(ctx, `SELECT status, sale_date FROM stock_units WHERE id = $1`, id).Scan(&status, &saleDate); err != nil {
		t.Fatalf("failed to read stock unit %s: %v", id, err)
	}
	return status, saleDate.Valid
}

func mustExec(ctx context.Context, t *testing.T, db *sql.DB, query string, args ...any) {
	t.Helper()
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		t.Fatalf("fixture query failed: %v", err)
	}
}

func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
