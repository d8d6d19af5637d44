package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type ReturnType string

const (
	ReturnTypeReturn   ReturnType = "RETURN"
	ReturnTypeExchange ReturnType = "EXCHANGE"
)

type ReturnStatus string

const (
	ExchangeRequested ReturnStatus = "EXCHANGE_REQUESTED"
	ExchangeAccepted  ReturnStatus = "EXCHANGE_ACCEPTED"
	ExchangeRejected  ReturnStatus = "EXCHANGE_REJECTED"
	ExchangeCompleted ReturnStatus = "EXCHANGE_COMPLETED"
	ReturnRequested   ReturnStatus = "RETURN_REQUESTED"
	ReturnRejected    ReturnStatus = "RETURN_REJECTED"
	ReturnCompleted   ReturnStatus = "RETURN_COMPLETED"
)

var ReturnStatuses = []ReturnStatus{
	ExchangeRequested,
	ExchangeAccepted,
	ExchangeRejected,
	ExchangeCompleted,
	ReturnRequested,
	ReturnRejected,
	ReturnCompleted,
}

// Each request type has its own table; statuses of the other type are never
// reachable.
var returnTransitions = map[ReturnType]map[ReturnStatus][]ReturnStatus{
	ReturnTypeExchange: {
		ExchangeRequested: {ExchangeAccepted, ExchangeRejected},
		ExchangeAccepted:  {ExchangeCompleted},
	},
	ReturnTypeReturn: {
		ReturnRequested: {ReturnRejected, ReturnCompleted},
	},
}

var initialReturnStatus = map[ReturnType]ReturnStatus{
	ReturnTypeExchange: ExchangeRequested,
	ReturnTypeReturn:   ReturnRequested,
}

func ParseReturnType(s string) (ReturnType, error) {
	t := ReturnType(strings.ToUpper(s))
	if _, ok := initialReturnStatus[t]; !ok {
		return "", Errorf(KindValidation, "unknown request type %q", s)
	}
	return t, nil
}

func ParseReturnStatus(s string) (ReturnStatus, error) {
	for _, status := range ReturnStatuses {
		if string(status) == s {
			return status, nil
		}
	}
	return "", Errorf(KindValidation, "unknown request status %q", s)
}

func CanTransitionReturn(t ReturnType, from, to ReturnStatus) bool {
	for _, next := range returnTransitions[t][from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s ReturnStatus) IsCompleted() bool {
	return s == ExchangeCompleted || s == ReturnCompleted
}

type ReturnItem struct {
	StockUnitID string          `json:"stock_unit_id"`
	OrderID     string          `json:"order_id"`
	SalePrice   decimal.Decimal `json:"sale_price"`
}

type ReturnRequest struct {
	ID          string       `json:"id"`
	Type        ReturnType   `json:"type"`
	Status      ReturnStatus `json:"status"`
	Description string       `json:"description"`
	CustomerID  string       `json:"customer_id"`
	Items       []ReturnItem `json:"items"`
	CouponCode  string       `json:"coupon_code,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// NewReturnRequest builds a request in the initial status of its type.
func NewReturnRequest(t ReturnType, customerID, description string, items []ReturnItem, now time.Time) (ReturnRequest, error) {
	initial, ok := initialReturnStatus[t]
	if !ok {
		return ReturnRequest{}, Errorf(KindValidation, "unknown request type %q", t)
	}
	if len(items) == 0 {
		return ReturnRequest{}, Errorf(KindValidation, "request must reference at least one stock unit")
	}
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		if seen[item.StockUnitID] {
			return ReturnRequest{}, Errorf(KindValidation, "stock unit %s referenced more than once", item.StockUnitID)
		}
		seen[item.StockUnitID] = true
	}
	return ReturnRequest{
		Type:        t,
		Status:      initial,
		Description: strings.TrimSpace(description),
		CustomerID:  customerID,
		Items:       items,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (r *ReturnRequest) SetStatus(next ReturnStatus) error {
	if !CanTransitionReturn(r.Type, r.Status, next) {
		return Errorf(KindInvalidStatusTransition, "%s request %s cannot move from %s to %s", strings.ToLower(string(r.Type)), r.ID, r.Status, next)
	}
	r.Status = next
	return nil
}

// RefundAmount is what the customer paid for the referenced units.
func (r ReturnRequest) RefundAmount() decimal.Decimal {
	total := decimal.Zero
	for _, item := range r.Items {
		total = total.Add(item.SalePrice)
	}
	return total
}

func (r ReturnRequest) StockUnitIDs() []string {
	ids := make([]string, 0, len(r.Items))
	for _, item := range r.Items {
		ids = append(ids, item.StockUnitID)
	}
	return ids
}
