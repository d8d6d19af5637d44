package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/bookstore-orderflow/internal/db"
	"github.com/joao-fontenele/bookstore-orderflow/internal/domain"
)

// Ledger owns stock unit status. Every transition is a single conditional
// UPDATE whose affected-row count is checked, so two transactions can never
// both move the same unit.
type Ledger struct {
	q db.Querier
}

func NewLedger(q db.Querier) *Ledger {
	return &Ledger{q: q}
}

const unitColumns = `id, code, book_id, supplier, cost, higher_cost, status, entry_date, sale_date`

func scanUnit(row interface{ Scan(...any) error }) (domain.StockUnit, error) {
	var (
		u        domain.StockUnit
		saleDate sql.NullTime
	)
	if err := row.Scan(&u.ID, &u.Code, &u.BookID, &u.Supplier, &u.Cost, &u.HigherCost, &u.Status, &u.EntryDate, &saleDate); err != nil {
		return domain.StockUnit{}, err
	}
	if saleDate.Valid {
		t := saleDate.Time
		u.SaleDate = &t
	}
	return u, nil
}

func (l *Ledger) Insert(ctx context.Context, units []domain.StockUnit) error {
	for _, u := range units {
		_, err := l.q.ExecContext(ctx, `
			INSERT INTO stock_units (id, code, book_id, supplier, cost, higher_cost, status, entry_date)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, u.ID, u.Code, u.BookID, u.Supplier, u.Cost, u.HigherCost, u.Status, u.EntryDate)
		if err != nil {
			return fmt.Errorf("insert stock unit: %w", err)
		}
	}
	return nil
}

func (l *Ledger) Get(ctx context.Context, id string) (domain.StockUnit, error) {
	if !domain.ValidID(id) {
		return domain.StockUnit{}, domain.Errorf(domain.KindNotFound, "stock unit %s not found", id)
	}
	u, err := scanUnit(l.q.QueryRowContext(ctx, `
		SELECT `+unitColumns+`
		FROM stock_units
		WHERE id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.StockUnit{}, domain.Errorf(domain.KindNotFound, "stock unit %s not found", id)
	}
	if err != nil {
		return domain.StockUnit{}, fmt.Errorf("get stock unit: %w", err)
	}
	return u, nil
}

// GetMany returns the units with the given ids, in no particular order.
func (l *Ledger) GetMany(ctx context.Context, ids []string) ([]domain.StockUnit, error) {
	rows, err := l.q.QueryContext(ctx, `
		SELECT `+unitColumns+`
		FROM stock_units
		WHERE id = ANY($1::uuid[])
	`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("get stock units: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectUnits(rows)
}

func (l *Ledger) ListByBook(ctx context.Context, bookID string) ([]domain.StockUnit, error) {
	rows, err := l.q.QueryContext(ctx, `
		SELECT `+unitColumns+`
		FROM stock_units
		WHERE book_id = $1
		ORDER BY entry_date, code
	`, bookID)
	if err != nil {
		return nil, fmt.Errorf("list stock units: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectUnits(rows)
}

func collectUnits(rows *sql.Rows) ([]domain.StockUnit, error) {
	units := []domain.StockUnit{}
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stock unit: %w", err)
		}
		units = append(units, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return units, nil
}

// GetBook loads a catalog item with the profit percentage of its pricing group.
func (l *Ledger) GetBook(ctx context.Context, id string) (domain.Book, error) {
	if !domain.ValidID(id) {
		return domain.Book{}, domain.Errorf(domain.KindNotFound, "book %s not found", id)
	}
	var b domain.Book
	err := l.q.QueryRowContext(ctx, `
		SELECT b.id, b.title, b.height, b.width, b.depth, b.weight, g.profit_percentage
		FROM books b
		JOIN pricing_groups g ON g.id = b.pricing_group_id
		WHERE b.id = $1
	`, id).Scan(&b.ID, &b.Title, &b.Height, &b.Width, &b.Depth, &b.Weight, &b.ProfitPercentage)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Book{}, domain.Errorf(domain.KindNotFound, "book %s not found", id)
	}
	if err != nil {
		return domain.Book{}, fmt.Errorf("get book: %w", err)
	}
	return b, nil
}

// HighestCosts returns, per book, the highest cost basis among all of its
// units regardless of status.
func (l *Ledger) HighestCosts(ctx context.Context, bookIDs []string) (map[string]decimal.Decimal, error) {
	rows, err := l.q.QueryContext(ctx, `
		SELECT book_id, MAX(COALESCE(higher_cost, cost))
		FROM stock_units
		WHERE book_id = ANY($1::uuid[])
		GROUP BY book_id
	`, pq.Array(bookIDs))
	if err != nil {
		return nil, fmt.Errorf("highest costs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	costs := make(map[string]decimal.Decimal, len(bookIDs))
	for rows.Next() {
		var (
			bookID string
			cost   decimal.Decimal
		)
		if err := rows.Scan(&bookID, &cost); err != nil {
			return nil, fmt.Errorf("scan highest cost: %w", err)
		}
		costs[bookID] = cost
	}
	return costs, rows.Err()
}

// PickAvailable chooses quantity AVAILABLE units of a book, oldest entry
// first, locking them for the rest of the transaction. Units locked by a
// concurrent transaction are skipped rather than waited on.
func (l *Ledger) PickAvailable(ctx context.Context, bookID string, quantity int) ([]string, error) {
	rows, err := l.q.QueryContext(ctx, `
		SELECT id
		FROM stock_units
		WHERE book_id = $1 AND status = $2
		ORDER BY entry_date, code
		LIMIT $3
		FOR UPDATE SKIP LOCKED
	`, bookID, domain.StockAvailable, quantity)
	if err != nil {
		return nil, fmt.Errorf("pick available units: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan unit id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(ids) < quantity {
		return nil, domain.Errorf(domain.KindOutOfStock, "book %s has %d available units, %d requested", bookID, len(ids), quantity)
	}
	return ids, nil
}

// Reserve moves every unit from AVAILABLE to BLOCKED. If any unit is not
// AVAILABLE it fails with OutOfStock; the caller's transaction must then roll
// back the units that did move.
func (l *Ledger) Reserve(ctx context.Context, ids []string) error {
	moved, err := l.transition(ctx, ids, domain.StockBlocked, nil)
	if err != nil {
		return err
	}
	if moved != len(ids) {
		return domain.Errorf(domain.KindOutOfStock, "only %d of %d stock units could be reserved", moved, len(ids))
	}
	return nil
}

// Sell moves every unit from BLOCKED to SOLD, stamping saleDate.
func (l *Ledger) Sell(ctx context.Context, ids []string, saleDate time.Time) error {
	moved, err := l.transition(ctx, ids, domain.StockSold, &saleDate)
	if err != nil {
		return err
	}
	if moved != len(ids) {
		return l.invalidTransition(ctx, ids, domain.StockSold)
	}
	return nil
}

// SellReserved sells units like Sell, but only those held by an item of
// cartID. A unit BLOCKED for any other cart does not move.
func (l *Ledger) SellReserved(ctx context.Context, cartID string, ids []string, saleDate time.Time) error {
	moved, err := l.transitionIn(ctx, cartID, ids, domain.StockSold, &saleDate)
	if err != nil {
		return err
	}
	if moved != len(ids) {
		return l.invalidTransition(ctx, ids, domain.StockSold)
	}
	return nil
}

// Release returns BLOCKED or SOLD units to AVAILABLE and clears their sale date.
func (l *Ledger) Release(ctx context.Context, ids []string) error {
	moved, err := l.transition(ctx, ids, domain.StockAvailable, nil)
	if err != nil {
		return err
	}
	if moved != len(ids) {
		return l.invalidTransition(ctx, ids, domain.StockAvailable)
	}
	return nil
}

// Unblock releases only the units that are still BLOCKED and reports how
// many moved. Units already SOLD keep their status.
func (l *Ledger) Unblock(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := l.q.ExecContext(ctx, `
		UPDATE stock_units
		SET status = $1, sale_date = NULL
		WHERE id = ANY($2::uuid[]) AND status = $3
	`, domain.StockAvailable, pq.Array(ids), domain.StockBlocked)
	if err != nil {
		return 0, fmt.Errorf("unblock stock units: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (l *Ledger) transition(ctx context.Context, ids []string, to domain.StockStatus, saleDate *time.Time) (int, error) {
	return l.transitionIn(ctx, "", ids, to, saleDate)
}

// transitionIn moves units with a single conditional UPDATE. A non-empty
// cartID limits the update to units referenced by that cart's items.
func (l *Ledger) transitionIn(ctx context.Context, cartID string, ids []string, to domain.StockStatus, saleDate *time.Time) (int, error) {
	if len(ids) == 0 {
		return 0, domain.Errorf(domain.KindValidation, "no stock units given")
	}
	if dup := firstDuplicate(ids); dup != "" {
		return 0, domain.Errorf(domain.KindValidation, "stock unit %s given more than once", dup)
	}
	if bad := domain.InvalidID(ids); bad != "" {
		return 0, domain.Errorf(domain.KindNotFound, "stock unit %s not found", bad)
	}

	from := make([]string, 0, 2)
	for _, s := range domain.StockSources(to) {
		from = append(from, string(s))
	}

	query := `
		UPDATE stock_units
		SET status = $1, sale_date = $2
		WHERE id = ANY($3::uuid[]) AND status = ANY($4)`
	args := []any{to, saleDate, pq.Array(ids), pq.Array(from)}
	if cartID != "" {
		query += `
		  AND id IN (SELECT stock_unit_id FROM cart_items WHERE cart_id = $5)`
		args = append(args, cartID)
	}

	res, err := l.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("move stock units to %s: %w", to, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// invalidTransition builds an error naming the units that could not move.
// It runs after a partial UPDATE, so the units that did move already carry
// the target status.
func (l *Ledger) invalidTransition(ctx context.Context, ids []string, to domain.StockStatus) error {
	units, err := l.GetMany(ctx, ids)
	if err != nil {
		return err
	}
	found := make(map[string]domain.StockUnit, len(units))
	for _, u := range units {
		found[u.ID] = u
	}
	for _, id := range ids {
		u, ok := found[id]
		if !ok {
			return domain.Errorf(domain.KindNotFound, "stock unit %s not found", id)
		}
		if u.Status != to {
			return domain.Errorf(domain.KindInvalidStockTransition, "stock unit %s cannot move from %s to %s", id, u.Status, to)
		}
	}
	return domain.Errorf(domain.KindInvalidStockTransition, "stock units cannot move to %s", to)
}

func firstDuplicate(ids []string) string {
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return id
		}
		seen[id] = true
	}
	return ""
}
