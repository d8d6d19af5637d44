package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestBookPrice(t *testing.T) {
	tests := []struct {
		name   string
		profit string
		cost   string
		want   string
	}{
		{"markup", "25", "40", "50.00"},
		{"no markup", "0", "12.34", "12.34"},
		{"rounds to cents", "33", "10.01", "13.31"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			book := Book{ProfitPercentage: decimal.RequireFromString(tt.profit)}
			got := book.Price(decimal.RequireFromString(tt.cost))
			assert.Equal(t, tt.want, got.StringFixed(2))
		})
	}
}

func TestBookFreight(t *testing.T) {
	minimum := decimal.NewFromInt(10)

	t.Run("small book gets the minimum", func(t *testing.T) {
		book := Book{
			Height: decimal.NewFromInt(20),
			Width:  decimal.NewFromInt(14),
			Depth:  decimal.NewFromInt(2),
			Weight: decimal.RequireFromString("0.5"),
		}
		assert.Equal(t, "10.00", book.Freight(minimum).StringFixed(2))
	})

	t.Run("large book pays by volume and weight", func(t *testing.T) {
		book := Book{
			Height: decimal.NewFromInt(30),
			Width:  decimal.NewFromInt(20),
			Depth:  decimal.NewFromInt(10),
			Weight: decimal.NewFromInt(2),
		}
		assert.Equal(t, "12.00", book.Freight(minimum).StringFixed(2))
	})
}
