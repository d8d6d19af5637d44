package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderProcessing OrderStatus = "PROCESSING"
	OrderApproved   OrderStatus = "APPROVED"
	OrderRejected   OrderStatus = "REJECTED"
	OrderCanceled   OrderStatus = "CANCELED"
	OrderShipping   OrderStatus = "SHIPPING"
	OrderShipped    OrderStatus = "SHIPPED"
	OrderDelivered  OrderStatus = "DELIVERED"
)

var OrderStatuses = []OrderStatus{
	OrderProcessing,
	OrderApproved,
	OrderRejected,
	OrderCanceled,
	OrderShipping,
	OrderShipped,
	OrderDelivered,
}

// orderTransitions is the full table of legal moves. Statuses without an
// entry are terminal.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderProcessing: {OrderApproved, OrderRejected, OrderCanceled},
	OrderApproved:   {OrderShipping, OrderCanceled},
	OrderShipping:   {OrderShipped},
	OrderShipped:    {OrderDelivered},
}

func ParseOrderStatus(s string) (OrderStatus, error) {
	for _, status := range OrderStatuses {
		if string(status) == s {
			return status, nil
		}
	}
	return "", Errorf(KindValidation, "unknown order status %q", s)
}

func CanTransitionOrder(from, to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s OrderStatus) IsTerminal() bool {
	return len(orderTransitions[s]) == 0
}

// ReleasesStock reports whether moving an order into s gives its units back
// to the ledger.
func (s OrderStatus) ReleasesStock() bool {
	return s == OrderRejected || s == OrderCanceled
}

type OrderItem struct {
	StockUnitID string          `json:"stock_unit_id"`
	BookID      string          `json:"book_id"`
	Code        string          `json:"code"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type Order struct {
	ID          string          `json:"id"`
	CustomerID  string          `json:"customer_id"`
	Status      OrderStatus     `json:"status"`
	Items       []OrderItem     `json:"items"`
	Address     AddressSnapshot `json:"address"`
	Freight     decimal.Decimal `json:"freight"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Transaction *Transaction    `json:"transaction,omitempty"`
}

// SetStatus moves the order along the transition table. Side effects of the
// move, such as releasing stock, belong to the caller.
func (o *Order) SetStatus(next OrderStatus) error {
	if !CanTransitionOrder(o.Status, next) {
		return Errorf(KindInvalidStatusTransition, "order %s cannot move from %s to %s", o.ID, o.Status, next)
	}
	o.Status = next
	return nil
}

func (o Order) StockUnitIDs() []string {
	ids := make([]string, 0, len(o.Items))
	for _, item := range o.Items {
		ids = append(ids, item.StockUnitID)
	}
	return ids
}
