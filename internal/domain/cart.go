package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type CartItem struct {
	ID        string    `json:"id"`
	StockUnit StockUnit `json:"stock_unit"`
	Book      Book      `json:"book"`
	EntryDate time.Time `json:"entry_date"`
	// HighestCost is the highest cost basis among all known units of Book.
	HighestCost decimal.Decimal `json:"-"`
}

// UnitPrice follows the conservative policy: the highest cost basis of the
// catalog item, not the reserved unit's own cost, marked up by profit.
func (i CartItem) UnitPrice() decimal.Decimal {
	return i.Book.Price(i.HighestCost)
}

type Cart struct {
	ID         string     `json:"id"`
	CustomerID string     `json:"customer_id"`
	Items      []CartItem `json:"items"`
}

func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

func (c Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.UnitPrice())
	}
	return total
}

func (c Cart) Freight(minimum decimal.Decimal) decimal.Decimal {
	freight := decimal.Zero
	for _, item := range c.Items {
		freight = freight.Add(item.Book.Freight(minimum))
	}
	return freight
}

func (c Cart) StockUnitIDs() []string {
	ids := make([]string, 0, len(c.Items))
	for _, item := range c.Items {
		ids = append(ids, item.StockUnit.ID)
	}
	return ids
}

func (c Cart) ItemIDs() []string {
	ids := make([]string, 0, len(c.Items))
	for _, item := range c.Items {
		ids = append(ids, item.ID)
	}
	return ids
}

// CheckSellable rejects a cart that references a unit twice or a unit that
// cannot move to SOLD.
func (c Cart) CheckSellable() error {
	seen := make(map[string]bool, len(c.Items))
	var duplicated, unsellable []string
	for _, item := range c.Items {
		id := item.StockUnit.ID
		if seen[id] {
			duplicated = append(duplicated, id)
			continue
		}
		seen[id] = true
		if !CanTransitionStock(item.StockUnit.Status, StockSold) {
			unsellable = append(unsellable, id)
		}
	}
	if len(duplicated) > 0 {
		return Errorf(KindValidation, "cart references stock units more than once: %s", strings.Join(duplicated, ", "))
	}
	if len(unsellable) > 0 {
		return Errorf(KindValidation, "stock units are not reserved for sale: %s", strings.Join(unsellable, ", "))
	}
	return nil
}
