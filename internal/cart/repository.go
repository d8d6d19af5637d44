package cart

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/joao-fontenele/bookstore-orderflow/internal/db"
	"github.com/joao-fontenele/bookstore-orderflow/internal/domain"
	"github.com/joao-fontenele/bookstore-orderflow/internal/inventory"
)

type Repository struct {
	q db.Querier
}

func NewRepository(q db.Querier) *Repository {
	return &Repository{q: q}
}

// Ensure returns the id of the customer's cart, creating it on first use.
// The cart row stays locked until the transaction ends.
func (r *Repository) Ensure(ctx context.Context, customerID string) (string, error) {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO carts (id, customer_id)
		VALUES ($1, $2)
		ON CONFLICT (customer_id) DO NOTHING
	`, uuid.New().String(), customerID)
	if err != nil {
		return "", fmt.Errorf("create cart: %w", err)
	}

	id, err := r.Lock(ctx, customerID)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", fmt.Errorf("get cart: customer %s has no cart after insert", customerID)
	}
	return id, nil
}

// Lock takes the row lock of the customer's cart so that concurrent changes
// to the same cart run one after another. It returns an empty id when the
// customer has no cart.
func (r *Repository) Lock(ctx context.Context, customerID string) (string, error) {
	if !domain.ValidID(customerID) {
		return "", nil
	}
	var id string
	err := r.q.QueryRowContext(ctx, `SELECT id FROM carts WHERE customer_id = $1 FOR UPDATE`, customerID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("lock cart: %w", err)
	}
	return id, nil
}

// Load returns the customer's cart with items priced. A customer without a
// cart gets an empty one with no id.
func (r *Repository) Load(ctx context.Context, customerID string) (domain.Cart, error) {
	c := domain.Cart{CustomerID: customerID, Items: []domain.CartItem{}}
	if !domain.ValidID(customerID) {
		return c, nil
	}

	err := r.q.QueryRowContext(ctx, `SELECT id FROM carts WHERE customer_id = $1`, customerID).Scan(&c.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return c, nil
	}
	if err != nil {
		return domain.Cart{}, fmt.Errorf("get cart: %w", err)
	}

	rows, err := r.q.QueryContext(ctx, `
		SELECT ci.id, ci.entry_date,
		       su.id, su.code, su.book_id, su.supplier, su.cost, su.higher_cost, su.status, su.entry_date, su.sale_date,
		       b.id, b.title, b.height, b.width, b.depth, b.weight, g.profit_percentage
		FROM cart_items ci
		JOIN stock_units su ON su.id = ci.stock_unit_id
		JOIN books b ON b.id = su.book_id
		JOIN pricing_groups g ON g.id = b.pricing_group_id
		WHERE ci.cart_id = $1
		ORDER BY ci.entry_date, ci.id
	`, c.ID)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("list cart items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var bookIDs []string
	for rows.Next() {
		var (
			item     domain.CartItem
			u        = &item.StockUnit
			b        = &item.Book
			saleDate sql.NullTime
		)
		if err := rows.Scan(&item.ID, &item.EntryDate,
			&u.ID, &u.Code, &u.BookID, &u.Supplier, &u.Cost, &u.HigherCost, &u.Status, &u.EntryDate, &saleDate,
			&b.ID, &b.Title, &b.Height, &b.Width, &b.Depth, &b.Weight, &b.ProfitPercentage); err != nil {
			return domain.Cart{}, fmt.Errorf("scan cart item: %w", err)
		}
		if saleDate.Valid {
			t := saleDate.Time
			u.SaleDate = &t
		}
		c.Items = append(c.Items, item)
		bookIDs = append(bookIDs, b.ID)
	}
	if err := rows.Err(); err != nil {
		return domain.Cart{}, err
	}

	if len(bookIDs) == 0 {
		return c, nil
	}

	costs, err := inventory.NewLedger(r.q).HighestCosts(ctx, bookIDs)
	if err != nil {
		return domain.Cart{}, err
	}
	for i := range c.Items {
		c.Items[i].HighestCost = costs[c.Items[i].Book.ID]
	}
	return c, nil
}

func (r *Repository) AddItems(ctx context.Context, cartID string, stockUnitIDs []string, entryDate time.Time) error {
	for _, unitID := range stockUnitIDs {
		_, err := r.q.ExecContext(ctx, `
			INSERT INTO cart_items (id, cart_id, stock_unit_id, entry_date)
			VALUES ($1, $2, $3, $4)
		`, uuid.New().String(), cartID, unitID, entryDate)
		if err != nil {
			return fmt.Errorf("insert cart item: %w", err)
		}
	}
	return nil
}

// RemoveItems deletes the given items from the cart and returns the stock
// units they referenced. Every item must belong to the cart.
func (r *Repository) RemoveItems(ctx context.Context, cartID string, itemIDs []string) ([]string, error) {
	if bad := domain.InvalidID(itemIDs); bad != "" {
		return nil, domain.Errorf(domain.KindNotFound, "cart item %s not found", bad)
	}
	rows, err := r.q.QueryContext(ctx, `
		DELETE FROM cart_items
		WHERE cart_id = $1 AND id = ANY($2::uuid[])
		RETURNING stock_unit_id
	`, cartID, pq.Array(itemIDs))
	if err != nil {
		return nil, fmt.Errorf("delete cart items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	unitIDs, err := scanIDs(rows)
	if err != nil {
		return nil, err
	}
	if len(unitIDs) != len(itemIDs) {
		return nil, domain.Errorf(domain.KindNotFound, "%d of %d cart items not found", len(itemIDs)-len(unitIDs), len(itemIDs))
	}
	return unitIDs, nil
}

// Empty deletes every item of the cart and returns the stock units they
// referenced. The cart itself is kept.
func (r *Repository) Empty(ctx context.Context, cartID string) ([]string, error) {
	rows, err := r.q.QueryContext(ctx, `
		DELETE FROM cart_items
		WHERE cart_id = $1
		RETURNING stock_unit_id
	`, cartID)
	if err != nil {
		return nil, fmt.Errorf("empty cart: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanIDs(rows)
}

func scanIDs(rows *sql.Rows) ([]string, error) {
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
