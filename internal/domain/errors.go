package domain

import (
	"errors"
	"fmt"
)

// Kind classifies domain failures so the boundary can map them to status codes.
type Kind string

const (
	KindNotFound                Kind = "not_found"
	KindUnauthorized            Kind = "unauthorized"
	KindOutOfStock              Kind = "out_of_stock"
	KindInvalidStockTransition  Kind = "invalid_stock_transition"
	KindInvalidStatusTransition Kind = "invalid_status_transition"
	KindInvalidPaymentSplit     Kind = "invalid_payment_split"
	KindEmptyCart               Kind = "empty_cart"
	KindInvalidCoupon           Kind = "invalid_coupon"
	KindValidation              Kind = "validation"
	KindConflict                Kind = "conflict"
)

// Sentinels for errors.Is comparisons. Any *Error with the same Kind matches.
var (
	ErrNotFound                = &Error{Kind: KindNotFound}
	ErrUnauthorized            = &Error{Kind: KindUnauthorized}
	ErrOutOfStock              = &Error{Kind: KindOutOfStock}
	ErrInvalidStockTransition  = &Error{Kind: KindInvalidStockTransition}
	ErrInvalidStatusTransition = &Error{Kind: KindInvalidStatusTransition}
	ErrInvalidPaymentSplit     = &Error{Kind: KindInvalidPaymentSplit}
	ErrEmptyCart               = &Error{Kind: KindEmptyCart}
	ErrInvalidCoupon           = &Error{Kind: KindInvalidCoupon}
	ErrValidation              = &Error{Kind: KindValidation}
	ErrConflict                = &Error{Kind: KindConflict}
)

type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

func Errorf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain, or "" for
// infrastructure errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
