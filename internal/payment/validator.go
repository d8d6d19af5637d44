// Package payment reconciles split card payments against the amount an order
// must collect.
package payment

import (
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/bookstore-orderflow/internal/domain"
)

// Tolerance absorbs rounding between the instructed amounts and the net total.
var Tolerance = decimal.RequireFromString("0.01")

// Validator checks payment instructions before any state changes. It holds
// no mutable state and is safe for concurrent use.
type Validator struct {
	minAmount decimal.Decimal
}

func NewValidator(minAmount decimal.Decimal) *Validator {
	return &Validator{minAmount: minAmount}
}

// Validate fails with InvalidPaymentSplit when the instructions do not add up
// to netTotal or an instrument other than the last is below the minimum.
func (v *Validator) Validate(instructions []domain.PaymentInstruction, netTotal decimal.Decimal) error {
	if len(instructions) == 0 {
		return domain.Errorf(domain.KindInvalidPaymentSplit, "at least one payment instrument is required")
	}

	sum := decimal.Zero
	for i, in := range instructions {
		if (in.CardID == "") == (in.Card == nil) {
			return domain.Errorf(domain.KindInvalidPaymentSplit, "payment %d must reference either a stored card or inline card data", i+1)
		}
		if !in.Amount.IsPositive() {
			return domain.Errorf(domain.KindInvalidPaymentSplit, "payment %d amount must be positive, got %s", i+1, in.Amount.StringFixed(2))
		}
		sum = sum.Add(in.Amount)
	}

	if sum.Sub(netTotal).Abs().GreaterThan(Tolerance) {
		return domain.Errorf(domain.KindInvalidPaymentSplit, "payments add up to %s but the order total is %s", sum.StringFixed(2), netTotal.StringFixed(2))
	}

	if len(instructions) == 1 {
		return nil
	}

	last := len(instructions) - 1
	paid := decimal.Zero
	for i, in := range instructions {
		if in.Amount.GreaterThanOrEqual(v.minAmount) {
			paid = paid.Add(in.Amount)
			continue
		}
		if i != last {
			return domain.Errorf(domain.KindInvalidPaymentSplit, "payment %d charges %s, below the minimum of %s per card", i+1, in.Amount.StringFixed(2), v.minAmount.StringFixed(2))
		}
		remaining := netTotal.Sub(paid)
		if remaining.GreaterThanOrEqual(v.minAmount) {
			return domain.Errorf(domain.KindInvalidPaymentSplit, "last payment charges %s, below the minimum of %s, while %s remained", in.Amount.StringFixed(2), v.minAmount.StringFixed(2), remaining.StringFixed(2))
		}
	}
	return nil
}
