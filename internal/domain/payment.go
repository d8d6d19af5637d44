package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentInstruction charges Amount to either a stored card (CardID) or an
// inline card (Card).
type PaymentInstruction struct {
	CardID string          `json:"card_id,omitempty"`
	Card   *CardInput      `json:"card,omitempty"`
	Amount decimal.Decimal `json:"amount"`
}

type CardInput struct {
	Number     string `json:"number"`
	HolderName string `json:"holder_name"`
	CVV        string `json:"cvv"`
	ExpiryDate string `json:"expiry_date"`
	Brand      string `json:"brand"`
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentApproved PaymentStatus = "APPROVED"
	PaymentDenied   PaymentStatus = "DENIED"
)

type Transaction struct {
	ID             string          `json:"id"`
	OrderID        string          `json:"order_id"`
	Amount         decimal.Decimal `json:"amount"`
	Date           time.Time       `json:"date"`
	CouponID       string          `json:"coupon_id,omitempty"`
	PaymentStatus  PaymentStatus   `json:"payment_status"`
	PaymentMessage string          `json:"payment_message,omitempty"`
	Payments       []CardPayment   `json:"payments"`
}

type CardPayment struct {
	ID     string          `json:"id"`
	Amount decimal.Decimal `json:"amount"`
	Card   CardSnapshot    `json:"card"`
}

// NewTransaction sums the payments into the transaction amount.
func NewTransaction(payments []CardPayment, couponID string, date time.Time) Transaction {
	amount := decimal.Zero
	for _, p := range payments {
		amount = amount.Add(p.Amount)
	}
	return Transaction{
		Amount:        amount,
		Date:          date,
		CouponID:      couponID,
		PaymentStatus: PaymentPending,
		Payments:      payments,
	}
}
