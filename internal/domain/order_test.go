package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderSetStatusExhaustive(t *testing.T) {
	legal := map[OrderStatus][]OrderStatus{
		OrderProcessing: {OrderApproved, OrderRejected, OrderCanceled},
		OrderApproved:   {OrderShipping, OrderCanceled},
		OrderShipping:   {OrderShipped},
		OrderShipped:    {OrderDelivered},
	}

	for _, from := range OrderStatuses {
		for _, to := range OrderStatuses {
			allowed := false
			for _, s := range legal[from] {
				if s == to {
					allowed = true
				}
			}

			order := &Order{ID: "o-1", Status: from}
			err := order.SetStatus(to)
			if allowed {
				assert.NoError(t, err, "%s -> %s", from, to)
				assert.Equal(t, to, order.Status)
				continue
			}
			assert.ErrorIs(t, err, ErrInvalidStatusTransition, "%s -> %s", from, to)
			assert.Equal(t, from, order.Status, "status must not change on a rejected move")
		}
	}
}

func TestOrderSetStatusNamesBothStatuses(t *testing.T) {
	order := &Order{ID: "o-1", Status: OrderProcessing}

	err := order.SetStatus(OrderShipped)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PROCESSING")
	assert.Contains(t, err.Error(), "SHIPPED")
	assert.Equal(t, OrderProcessing, order.Status)
}

func TestOrderTerminalStatuses(t *testing.T) {
	for _, s := range []OrderStatus{OrderRejected, OrderCanceled, OrderDelivered} {
		assert.True(t, s.IsTerminal(), s)
	}
	for _, s := range []OrderStatus{OrderProcessing, OrderApproved, OrderShipping, OrderShipped} {
		assert.False(t, s.IsTerminal(), s)
	}
}

func TestOrderStatusReleasesStock(t *testing.T) {
	for _, s := range OrderStatuses {
		want := s == OrderRejected || s == OrderCanceled
		assert.Equal(t, want, s.ReleasesStock(), s)
	}
}

func TestParseOrderStatus(t *testing.T) {
	s, err := ParseOrderStatus("SHIPPING")
	require.NoError(t, err)
	assert.Equal(t, OrderShipping, s)

	_, err = ParseOrderStatus("LOST")
	assert.ErrorIs(t, err, ErrValidation)
}
