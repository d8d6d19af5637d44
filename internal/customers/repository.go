// Package customers resolves customers and the addresses and cards they own.
package customers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/joao-fontenele/bookstore-orderflow/internal/db"
	"github.com/joao-fontenele/bookstore-orderflow/internal/domain"
)

type Repository struct {
	q db.Querier
}

func NewRepository(q db.Querier) *Repository {
	return &Repository{q: q}
}

func (r *Repository) Get(ctx context.Context, id string) (domain.Customer, error) {
	if !domain.ValidID(id) {
		return domain.Customer{}, domain.Errorf(domain.KindNotFound, "customer %s not found", id)
	}
	var c domain.Customer
	err := r.q.QueryRowContext(ctx, `
		SELECT id, name, email
		FROM customers
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Customer{}, domain.Errorf(domain.KindNotFound, "customer %s not found", id)
	}
	if err != nil {
		return domain.Customer{}, fmt.Errorf("get customer: %w", err)
	}
	return c, nil
}

// OwnedAddress loads an address and checks it belongs to customerID.
func (r *Repository) OwnedAddress(ctx context.Context, customerID, addressID string) (domain.Address, error) {
	if !domain.ValidID(addressID) {
		return domain.Address{}, domain.Errorf(domain.KindNotFound, "address %s not found", addressID)
	}
	var a domain.Address
	err := r.q.QueryRowContext(ctx, `
		SELECT id, customer_id, alias, street, number, district, zipcode, city, state, country, observations
		FROM addresses
		WHERE id = $1
	`, addressID).Scan(&a.ID, &a.CustomerID, &a.Alias, &a.Street, &a.Number, &a.District,
		&a.Zipcode, &a.City, &a.State, &a.Country, &a.Observations)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Address{}, domain.Errorf(domain.KindNotFound, "address %s not found", addressID)
	}
	if err != nil {
		return domain.Address{}, fmt.Errorf("get address: %w", err)
	}
	if a.CustomerID != customerID {
		return domain.Address{}, domain.Errorf(domain.KindUnauthorized, "address %s does not belong to customer %s", addressID, customerID)
	}
	return a, nil
}

// OwnedCard loads a stored card and checks it belongs to customerID.
func (r *Repository) OwnedCard(ctx context.Context, customerID, cardID string) (domain.Card, error) {
	if !domain.ValidID(cardID) {
		return domain.Card{}, domain.Errorf(domain.KindNotFound, "card %s not found", cardID)
	}
	var c domain.Card
	err := r.q.QueryRowContext(ctx, `
		SELECT id, customer_id, number, holder_name, cvv, expiry_date, brand
		FROM cards
		WHERE id = $1
	`, cardID).Scan(&c.ID, &c.CustomerID, &c.Number, &c.HolderName, &c.CVV, &c.ExpiryDate, &c.Brand)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Card{}, domain.Errorf(domain.KindNotFound, "card %s not found", cardID)
	}
	if err != nil {
		return domain.Card{}, fmt.Errorf("get card: %w", err)
	}
	if c.CustomerID != customerID {
		return domain.Card{}, domain.Errorf(domain.KindUnauthorized, "card %s does not belong to customer %s", cardID, customerID)
	}
	if err := c.Validate(); err != nil {
		return domain.Card{}, fmt.Errorf("stored card %s: %w", cardID, err)
	}
	return c, nil
}
