package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCouponCheckUsable(t *testing.T) {
	now := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	base := Coupon{Code: "WELCOME", Status: CouponAvailable, ExpiresAt: now.AddDate(0, 0, 1)}

	assert.NoError(t, base.CheckUsable(now))

	used := base
	used.Status = CouponUsed
	assert.ErrorIs(t, used.CheckUsable(now), ErrInvalidCoupon)

	expired := base
	expired.ExpiresAt = now
	assert.ErrorIs(t, expired.CheckUsable(now), ErrInvalidCoupon)
}

func TestCouponDiscountOn(t *testing.T) {
	total := decimal.NewFromInt(80)

	tests := []struct {
		name   string
		coupon Coupon
		want   string
	}{
		{"percentage", Coupon{Type: CouponPercentage, Discount: decimal.NewFromInt(10)}, "8.00"},
		{"value", Coupon{Type: CouponValue, Discount: decimal.NewFromInt(15)}, "15.00"},
		{"value above total is capped", Coupon{Type: CouponValue, Discount: decimal.NewFromInt(100)}, "80.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.coupon.DiscountOn(total).StringFixed(2))
		})
	}
}

func TestNewRefundCoupon(t *testing.T) {
	now := time.Date(2024, 1, 31, 10, 0, 0, 0, time.UTC)

	c := NewRefundCoupon("c-1", decimal.NewFromInt(80), now)

	assert.Equal(t, CouponValue, c.Type)
	assert.Equal(t, CouponAvailable, c.Status)
	assert.Equal(t, "c-1", c.CustomerID)
	assert.True(t, c.Discount.Equal(decimal.NewFromInt(80)))
	assert.Equal(t, now.AddDate(0, 1, 0), c.ExpiresAt)
	assert.True(t, strings.HasPrefix(c.Code, "RET-"))
}
