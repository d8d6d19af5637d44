package domain

import "github.com/shopspring/decimal"

var (
	hundred       = decimal.NewFromInt(100)
	freightFactor = decimal.RequireFromString("0.1")
)

// Book is the catalog item a stock unit is a copy of. Only the attributes
// pricing and freight depend on are carried here.
type Book struct {
	ID               string          `json:"id"`
	Title            string          `json:"title"`
	Height           decimal.Decimal `json:"height"`
	Width            decimal.Decimal `json:"width"`
	Depth            decimal.Decimal `json:"depth"`
	Weight           decimal.Decimal `json:"weight"`
	ProfitPercentage decimal.Decimal `json:"profit_percentage"`
}

// Price marks the cost basis up by the book's profit percentage.
func (b Book) Price(costBasis decimal.Decimal) decimal.Decimal {
	markup := costBasis.Mul(b.ProfitPercentage).Div(hundred)
	return costBasis.Add(markup).Round(2)
}

// Freight derives the shipping charge of one copy from its volume and weight,
// never below minimum.
func (b Book) Freight(minimum decimal.Decimal) decimal.Decimal {
	volume := b.Height.Mul(b.Width).Mul(b.Depth).Div(hundred)
	freight := volume.Mul(b.Weight).Mul(freightFactor).Round(2)
	return decimal.Max(freight, minimum)
}
