package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentRequestedEvent asks the payment processor to charge the primary card.
type PaymentRequestedEvent struct {
	OrderID   string           `json:"order_id"`
	Amount    decimal.Decimal  `json:"amount"`
	Card      PaymentCardEvent `json:"card"`
	Attempt   int              `json:"attempt"`
	Timestamp time.Time        `json:"timestamp"`
}

type PaymentCardEvent struct {
	Number     string `json:"number"`
	HolderName string `json:"holder_name"`
	ExpiryDate string `json:"expiry_date"`
	CVV        string `json:"cvv"`
}

// PaymentOutcomeEvent is the processor's answer for one order.
type PaymentOutcomeEvent struct {
	OrderID   string        `json:"order_id"`
	Status    PaymentStatus `json:"status"`
	Message   string        `json:"message"`
	Timestamp time.Time     `json:"timestamp"`
}

func NewPaymentRequestedEvent(orderID string, amount decimal.Decimal, card CardSnapshot, attempt int, now time.Time) PaymentRequestedEvent {
	return PaymentRequestedEvent{
		OrderID: orderID,
		Amount:  amount,
		Card: PaymentCardEvent{
			Number:     card.Number,
			HolderName: card.HolderName,
			ExpiryDate: card.ExpiryDate,
			CVV:        card.CVV,
		},
		Attempt:   attempt,
		Timestamp: now,
	}
}
