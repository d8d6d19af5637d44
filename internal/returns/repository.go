package returns

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
)

type Repository struct {
	q db.Querier
}

func NewRepository(q db.Querier) *Repository {
	return &Repository{q: q}
}

func (r *Repository) Create(ctx context.Context, req *domain.ReturnRequest) error {
	req.ID = uuid.New().String()

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO return_requests (id, type, status, description, customer_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, req.ID, req.Type, req.Status, req.Description, req.CustomerID, req.CreatedAt, req.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert return request: %w", err)
	}

	for _, item := range req.Items {
		_, err = r.q.ExecContext(ctx, `
			INSERT INTO return_request_items (return_request_id, stock_unit_id, order_id, sale_price)
			VALUES ($1, $2, $3, $4)
		`, req.ID, item.StockUnitID, item.OrderID, item.SalePrice)
		if err != nil {
			return fmt.Errorf("insert return request item: %w", err)
		}
	}
	return nil
}

const requestColumns = `rr.id, rr.type, rr.status, rr.description, rr.customer_id, COALESCE(c.code, ''), rr.created_at, rr.updated_at`

func scanRequest(row interface{ Scan(...any) error }) (domain.ReturnRequest, error) {
	var req domain.ReturnRequest
	err := row.Scan(&req.ID, &req.Type, &req.Status, &req.Description, &req.CustomerID, &req.CouponCode, &req.CreatedAt, &req.UpdatedAt)
	req.Items = []domain.ReturnItem{}
	return req, err
}

func (r *Repository) Get(ctx context.Context, id string, lock bool) (domain.ReturnRequest, error) {
	if !domain.ValidID(id) {
		return domain.ReturnRequest{}, domain.Errorf(domain.KindNotFound, "return request %s not found", id)
	}
	query := `
		SELECT ` + requestColumns + `
		FROM return_requests rr
		LEFT JOIN coupons c ON c.id = rr.coupon_id
		WHERE rr.id = $1`
	if lock {
		query += ` FOR UPDATE OF rr`
	}

	req, err := scanRequest(r.q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ReturnRequest{}, domain.Errorf(domain.KindNotFound, "return request %s not found", id)
	}
	if err != nil {
		return domain.ReturnRequest{}, fmt.Errorf("get return request: %w", err)
	}

	requests := []domain.ReturnRequest{req}
	if err := r.attachItems(ctx, requests); err != nil {
		return domain.ReturnRequest{}, err
	}
	return requests[0], nil
}

func (r *Repository) ListByCustomer(ctx context.Context, customerID string) ([]domain.ReturnRequest, error) {
	if !domain.ValidID(customerID) {
		return []domain.ReturnRequest{}, nil
	}
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+requestColumns+`
		FROM return_requests rr
		LEFT JOIN coupons c ON c.id = rr.coupon_id
		WHERE rr.customer_id = $1
		ORDER BY rr.created_at DESC
	`, customerID)
	if err != nil {
		return nil, fmt.Errorf("list return requests: %w", err)
	}
	defer func() { _ = rows.Close() }()

	requests := []domain.ReturnRequest{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan return request: %w", err)
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.attachItems(ctx, requests); err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *Repository) attachItems(ctx context.Context, requests []domain.ReturnRequest) error {
	if len(requests) == 0 {
		return nil
	}
	byID := make(map[string]*domain.ReturnRequest, len(requests))
	ids := make([]string, 0, len(requests))
	for i := range requests {
		byID[requests[i].ID] = &requests[i]
		ids = append(ids, requests[i].ID)
	}

	rows, err := r.q.QueryContext(ctx, `
		SELECT return_request_id, stock_unit_id, order_id, sale_price
		FROM return_request_items
		WHERE return_request_id = ANY($1::uuid[])
		ORDER BY stock_unit_id
	`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("list return request items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			requestID string
			item      domain.ReturnItem
		)
		if err := rows.Scan(&requestID, &item.StockUnitID, &item.OrderID, &item.SalePrice); err != nil {
			return fmt.Errorf("scan return request item: %w", err)
		}
		byID[requestID].Items = append(byID[requestID].Items, item)
	}
	return rows.Err()
}

func (r *Repository) UpdateStatus(ctx context.Context, id string, from, to domain.ReturnStatus, at time.Time) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE return_requests SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`, to, at, id, from)
	if err != nil {
		return fmt.Errorf("update return request status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.Errorf(domain.KindInvalidStatusTransition, "return request %s is no longer %s", id, from)
	}
	return nil
}

func (r *Repository) AttachCoupon(ctx context.Context, id, couponID string) error {
	_, err := r.q.ExecContext(ctx, `UPDATE return_requests SET coupon_id = $1 WHERE id = $2`, couponID, id)
	if err != nil {
		return fmt.Errorf("attach coupon: %w", err)
	}
	return nil
}

// soldUnit is the most recent sale of a stock unit, whoever bought it.
type soldUnit struct {
	item        domain.ReturnItem
	customerID  string
	orderStatus domain.OrderStatus
	unitStatus  domain.StockStatus
	openRequest bool
	completed   bool
}

// soldUnits finds, for each unit, the latest order that holds it. Units that
// were never sold are absent from the result.
func (r *Repository) soldUnits(ctx context.Context, unitIDs []string) (map[string]soldUnit, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT DISTINCT ON (su.id)
		       su.id, o.id, o.customer_id, oi.unit_price, o.status, su.status,
		       EXISTS (
		           SELECT 1
		           FROM return_request_items rri
		           JOIN return_requests rr ON rr.id = rri.return_request_id
		           WHERE rri.stock_unit_id = su.id AND rr.status = ANY($2)
		       ),
		       EXISTS (
		           SELECT 1
		           FROM return_request_items rri
		           JOIN return_requests rr ON rr.id = rri.return_request_id
		           WHERE rri.stock_unit_id = su.id AND rri.order_id = o.id AND rr.status = ANY($3)
		       )
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		JOIN stock_units su ON su.id = oi.stock_unit_id
		WHERE oi.stock_unit_id = ANY($1::uuid[])
		ORDER BY su.id, o.created_at DESC, o.id DESC
	`, pq.Array(unitIDs), pq.Array(openStatuses()), pq.Array(completedStatuses()))
	if err != nil {
		return nil, fmt.Errorf("find sold units: %w", err)
	}
	defer func() { _ = rows.Close() }()

	found := make(map[string]soldUnit, len(unitIDs))
	for rows.Next() {
		var s soldUnit
		if err := rows.Scan(&s.item.StockUnitID, &s.item.OrderID, &s.customerID, &s.item.SalePrice, &s.orderStatus, &s.unitStatus, &s.openRequest, &s.completed); err != nil {
			return nil, fmt.Errorf("scan sold unit: %w", err)
		}
		found[s.item.StockUnitID] = s
	}
	return found, rows.Err()
}

func completedStatuses() []string {
	return []string{string(domain.ExchangeCompleted), string(domain.ReturnCompleted)}
}

// openStatuses are the statuses in which a request still holds its units.
func openStatuses() []string {
	return []string{
		string(domain.ExchangeRequested),
		string(domain.ExchangeAccepted),
		string(domain.ReturnRequested),
	}
}
