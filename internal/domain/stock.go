package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type StockStatus string

const (
	StockAvailable StockStatus = "AVAILABLE"
	StockBlocked   StockStatus = "BLOCKED"
	StockSold      StockStatus = "SOLD"
)

// stockTransitions lists, per target status, the statuses a unit may come from.
// Nothing reaches SOLD without passing through BLOCKED.
var stockTransitions = map[StockStatus][]StockStatus{
	StockBlocked:   {StockAvailable},
	StockSold:      {StockBlocked},
	StockAvailable: {StockBlocked, StockSold},
}

// StockSources returns the statuses from which a unit may move to target.
func StockSources(target StockStatus) []StockStatus {
	return stockTransitions[target]
}

func CanTransitionStock(from, to StockStatus) bool {
	for _, s := range stockTransitions[to] {
		if s == from {
			return true
		}
	}
	return false
}

// StockUnit is one physical copy of a catalog item.
type StockUnit struct {
	ID         string              `json:"id"`
	Code       string              `json:"code"`
	BookID     string              `json:"book_id"`
	Supplier   string              `json:"supplier"`
	Cost       decimal.Decimal     `json:"cost"`
	HigherCost decimal.NullDecimal `json:"higher_cost"`
	Status     StockStatus         `json:"status"`
	EntryDate  time.Time           `json:"entry_date"`
	SaleDate   *time.Time          `json:"sale_date,omitempty"`
}

// NewStockUnit builds an AVAILABLE unit for a stock entry.
func NewStockUnit(bookID, supplier string, cost decimal.Decimal, entryDate, now time.Time) (StockUnit, error) {
	u := StockUnit{
		ID:        uuid.New().String(),
		Code:      NewCode("BOK"),
		BookID:    bookID,
		Supplier:  supplier,
		Cost:      cost,
		Status:    StockAvailable,
		EntryDate: entryDate,
	}
	if bookID == "" {
		return StockUnit{}, Errorf(KindValidation, "stock entry requires a book")
	}
	if supplier == "" {
		return StockUnit{}, Errorf(KindValidation, "supplier must not be empty")
	}
	if cost.IsNegative() {
		return StockUnit{}, Errorf(KindValidation, "cost must not be negative")
	}
	if entryDate.After(now) {
		return StockUnit{}, Errorf(KindValidation, "entry date must not be in the future")
	}
	return u, u.Validate()
}

// Validate checks that the sale date is set exactly when the unit is SOLD.
func (u StockUnit) Validate() error {
	if u.Status == StockSold && u.SaleDate == nil {
		return Errorf(KindValidation, "stock unit %s is sold without a sale date", u.ID)
	}
	if u.Status != StockSold && u.SaleDate != nil {
		return Errorf(KindValidation, "stock unit %s has a sale date but is %s", u.ID, u.Status)
	}
	return nil
}

// CostBasis is the higher-cost override when present, otherwise the acquisition cost.
func (u StockUnit) CostBasis() decimal.Decimal {
	if u.HigherCost.Valid {
		return u.HigherCost.Decimal
	}
	return u.Cost
}

func NewCode(prefix string) string {
	return prefix + "-" + strings.ToUpper(uuid.New().String())
}
