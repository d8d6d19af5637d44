package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type CouponType string

const (
	CouponPercentage CouponType = "PERCENTAGE"
	CouponValue      CouponType = "VALUE"
)

type CouponStatus string

const (
	CouponAvailable CouponStatus = "AVAILABLE"
	CouponUsed      CouponStatus = "USED"
	CouponExpired   CouponStatus = "EXPIRED"
)

type Coupon struct {
	ID         string          `json:"id"`
	Code       string          `json:"code"`
	CustomerID string          `json:"customer_id,omitempty"`
	Type       CouponType      `json:"type"`
	Discount   decimal.Decimal `json:"discount"`
	Status     CouponStatus    `json:"status"`
	ExpiresAt  time.Time       `json:"expires_at"`
}

// CheckUsable fails with InvalidCoupon unless the coupon can be applied at now.
func (c Coupon) CheckUsable(now time.Time) error {
	if c.Status != CouponAvailable {
		return Errorf(KindInvalidCoupon, "coupon %s is %s", c.Code, c.Status)
	}
	if !now.Before(c.ExpiresAt) {
		return Errorf(KindInvalidCoupon, "coupon %s expired at %s", c.Code, c.ExpiresAt.Format(time.DateOnly))
	}
	return nil
}

// DiscountOn returns the amount taken off itemsTotal, never more than it.
func (c Coupon) DiscountOn(itemsTotal decimal.Decimal) decimal.Decimal {
	var discount decimal.Decimal
	switch c.Type {
	case CouponPercentage:
		discount = itemsTotal.Mul(c.Discount).Div(hundred).Round(2)
	default:
		discount = c.Discount
	}
	return decimal.Min(discount, itemsTotal)
}

// NewRefundCoupon issues the fixed-value coupon that compensates a completed
// return or exchange. It expires one calendar month after now.
func NewRefundCoupon(customerID string, amount decimal.Decimal, now time.Time) Coupon {
	return Coupon{
		Code:       NewCode("RET"),
		CustomerID: customerID,
		Type:       CouponValue,
		Discount:   amount,
		Status:     CouponAvailable,
		ExpiresAt:  now.AddDate(0, 1, 0),
	}
}
