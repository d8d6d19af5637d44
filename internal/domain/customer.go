package domain

import (
	"strings"
	"unicode"
)

// Identity is the actor data shared by every kind of user. It is embedded
// rather than inherited so customers and admins keep separate lifecycles.
type Identity struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type Customer struct {
	ID string `json:"id"`
	Identity
}

type Address struct {
	ID           string `json:"id"`
	CustomerID   string `json:"customer_id"`
	Alias        string `json:"alias,omitempty"`
	Street       string `json:"street"`
	Number       string `json:"number"`
	District     string `json:"district"`
	Zipcode      string `json:"zipcode"`
	City         string `json:"city"`
	State        string `json:"state"`
	Country      string `json:"country"`
	Observations string `json:"observations,omitempty"`
}

// AddressSnapshot is the shipping address copied onto an order at creation.
type AddressSnapshot struct {
	Alias        string `json:"alias,omitempty"`
	Street       string `json:"street"`
	Number       string `json:"number"`
	District     string `json:"district"`
	Zipcode      string `json:"zipcode"`
	City         string `json:"city"`
	State        string `json:"state"`
	Country      string `json:"country"`
	Observations string `json:"observations,omitempty"`
}

func (a Address) Snapshot() AddressSnapshot {
	return AddressSnapshot{
		Alias:        a.Alias,
		Street:       a.Street,
		Number:       a.Number,
		District:     a.District,
		Zipcode:      a.Zipcode,
		City:         a.City,
		State:        a.State,
		Country:      a.Country,
		Observations: a.Observations,
	}
}

// Card is a payment instrument, either stored for a customer or built inline
// for a single checkout (ID empty).
type Card struct {
	ID         string
	CustomerID string
	Number     string
	HolderName string
	CVV        string
	ExpiryDate string
	Brand      string
}

// NewCard validates inline card data.
func NewCard(number, holderName, cvv, expiryDate, brand string) (Card, error) {
	c := Card{
		Number:     strings.TrimSpace(number),
		HolderName: strings.TrimSpace(holderName),
		CVV:        strings.TrimSpace(cvv),
		ExpiryDate: strings.TrimSpace(expiryDate),
		Brand:      brand,
	}
	if err := c.Validate(); err != nil {
		return Card{}, err
	}
	return c, nil
}

func (c Card) Validate() error {
	if c.HolderName == "" {
		return Errorf(KindValidation, "card holder name must not be empty")
	}
	if len(c.Number) != 16 || !digitsOnly(c.Number) {
		return Errorf(KindValidation, "card number must have 16 digits")
	}
	if c.CVV == "" || len(c.CVV) > 4 || !digitsOnly(c.CVV) {
		return Errorf(KindValidation, "card cvv must have up to 4 digits")
	}
	if c.ExpiryDate == "" {
		return Errorf(KindValidation, "card expiry date must not be empty")
	}
	return nil
}

func (c Card) Snapshot() CardSnapshot {
	last4 := c.Number
	if len(last4) > 4 {
		last4 = last4[len(last4)-4:]
	}
	return CardSnapshot{
		Brand:      c.Brand,
		HolderName: c.HolderName,
		Number:     c.Number,
		Last4:      last4,
		CVV:        c.CVV,
		ExpiryDate: c.ExpiryDate,
	}
}

// CardSnapshot is the card data as charged. Number and CVV never leave the
// service in JSON responses.
type CardSnapshot struct {
	Brand      string `json:"brand"`
	HolderName string `json:"holder_name"`
	Number     string `json:"-"`
	Last4      string `json:"last4"`
	CVV        string `json:"-"`
	ExpiryDate string `json:"expiry_date"`
}

func digitsOnly(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
