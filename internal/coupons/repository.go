// Package coupons looks up, consumes and issues discount coupons.
package coupons

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/joao-fontenele/bookstore-orderflow/internal/db"
	"github.com/joao-fontenele/bookstore-orderflow/internal/domain"
)

type Repository struct {
	q db.Querier
}

func NewRepository(q db.Querier) *Repository {
	return &Repository{q: q}
}

const couponColumns = `id, code, COALESCE(customer_id::text, ''), type, discount, status, expires_at`

func scanCoupon(row *sql.Row) (domain.Coupon, error) {
	var c domain.Coupon
	err := row.Scan(&c.ID, &c.Code, &c.CustomerID, &c.Type, &c.Discount, &c.Status, &c.ExpiresAt)
	return c, err
}

func (r *Repository) GetByCode(ctx context.Context, code string) (domain.Coupon, error) {
	c, err := scanCoupon(r.q.QueryRowContext(ctx, `
		SELECT `+couponColumns+`
		FROM coupons
		WHERE code = $1
	`, code))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Coupon{}, domain.Errorf(domain.KindInvalidCoupon, "coupon %s does not exist", code)
	}
	if err != nil {
		return domain.Coupon{}, fmt.Errorf("get coupon: %w", err)
	}
	return c, nil
}

// Validate returns the coupon for code if it can be applied at now.
func (r *Repository) Validate(ctx context.Context, code string, now time.Time) (domain.Coupon, error) {
	c, err := r.GetByCode(ctx, code)
	if err != nil {
		return domain.Coupon{}, err
	}
	if err := c.CheckUsable(now); err != nil {
		return domain.Coupon{}, err
	}
	return c, nil
}

// Consume marks an AVAILABLE coupon USED. A coupon consumed concurrently by
// another checkout fails with InvalidCoupon.
func (r *Repository) Consume(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE coupons
		SET status = $1
		WHERE id = $2 AND status = $3
	`, domain.CouponUsed, id, domain.CouponAvailable)
	if err != nil {
		return fmt.Errorf("consume coupon: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.Errorf(domain.KindInvalidCoupon, "coupon %s is no longer available", id)
	}
	return nil
}

// Issue persists a new coupon, assigning its id.
func (r *Repository) Issue(ctx context.Context, c *domain.Coupon) error {
	c.ID = uuid.New().String()

	var customerID any
	if c.CustomerID != "" {
		customerID = c.CustomerID
	}
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO coupons (id, code, customer_id, type, discount, status, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, c.ID, c.Code, customerID, c.Type, c.Discount, c.Status, c.ExpiresAt)
	if err != nil {
		return fmt.Errorf("issue coupon: %w", err)
	}
	return nil
}

// ExpireOverdue flags AVAILABLE coupons past their expiry date.
func (r *Repository) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, `
		UPDATE coupons
		SET status = $1
		WHERE status = $2 AND expires_at <= $3
	`, domain.CouponExpired, domain.CouponAvailable, now)
	if err != nil {
		return 0, fmt.Errorf("expire coupons: %w", err)
	}
	return res.RowsAffected()
}
