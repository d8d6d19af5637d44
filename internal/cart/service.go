// Package cart holds a customer's reserved selections until checkout.
package cart

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/bookstore-orderflow/internal/customers"
	"github.com/joao-fontenele/bookstore-orderflow/internal/db"
	"github.com/joao-fontenele/bookstore-orderflow/internal/domain"
	"github.com/joao-fontenele/bookstore-orderflow/internal/inventory"
	"github.com/joao-fontenele/bookstore-orderflow/internal/telemetry"
)

// View is a cart with its derived amounts.
type View struct {
	domain.Cart
	Total   decimal.Decimal `json:"total"`
	Freight decimal.Decimal `json:"freight"`
}

type Service struct {
	db             *sql.DB
	metrics        *telemetry.Metrics
	logger         *slog.Logger
	minItemFreight decimal.Decimal
	now            func() time.Time
}

func NewService(conn *sql.DB, metrics *telemetry.Metrics, logger *slog.Logger, minItemFreight decimal.Decimal) *Service {
	return &Service{
		db:             conn,
		metrics:        metrics,
		logger:         logger,
		minItemFreight: minItemFreight,
		now:            time.Now,
	}
}

func (s *Service) view(c domain.Cart) View {
	return View{Cart: c, Total: c.Total(), Freight: c.Freight(s.minItemFreight)}
}

func (s *Service) Get(ctx context.Context, customerID string) (View, error) {
	if _, err := customers.NewRepository(s.db).Get(ctx, customerID); err != nil {
		return View{}, err
	}
	c, err := NewRepository(s.db).Load(ctx, customerID)
	if err != nil {
		return View{}, err
	}
	return s.view(c), nil
}

// AddItem reserves quantity units of a book for the customer. Either every
// unit is reserved or none is.
func (s *Service) AddItem(ctx context.Context, customerID, bookID string, quantity int) (View, error) {
	if quantity <= 0 {
		return View{}, domain.Errorf(domain.KindValidation, "quantity must be positive, got %d", quantity)
	}

	var c domain.Cart
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := customers.NewRepository(tx).Get(ctx, customerID); err != nil {
			return err
		}
		ledger := inventory.NewLedger(tx)
		if _, err := ledger.GetBook(ctx, bookID); err != nil {
			return err
		}

		repo := NewRepository(tx)
		cartID, err := repo.Ensure(ctx, customerID)
		if err != nil {
			return err
		}

		unitIDs, err := ledger.PickAvailable(ctx, bookID, quantity)
		if err != nil {
			return err
		}
		if err := ledger.Reserve(ctx, unitIDs); err != nil {
			return err
		}
		if err := repo.AddItems(ctx, cartID, unitIDs, s.now().UTC()); err != nil {
			return err
		}

		c, err = repo.Load(ctx, customerID)
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrOutOfStock) {
			s.metrics.ReservationConflict(ctx)
		}
		return View{}, err
	}

	s.logger.Info("items added to cart", "customer_id", customerID, "book_id", bookID, "quantity", quantity)
	return s.view(c), nil
}

// RemoveItems drops cart items and releases their units.
func (s *Service) RemoveItems(ctx context.Context, customerID string, itemIDs []string) (View, error) {
	itemIDs = slices.Compact(slices.Sorted(slices.Values(itemIDs)))
	if len(itemIDs) == 0 {
		return View{}, domain.Errorf(domain.KindValidation, "no cart items given")
	}

	var c domain.Cart
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		repo := NewRepository(tx)
		cartID, err := repo.Lock(ctx, customerID)
		if err != nil {
			return err
		}
		if cartID == "" {
			return domain.Errorf(domain.KindNotFound, "customer %s has no cart", customerID)
		}

		unitIDs, err := repo.RemoveItems(ctx, cartID, itemIDs)
		if err != nil {
			return err
		}
		if err := inventory.NewLedger(tx).Release(ctx, unitIDs); err != nil {
			return err
		}

		c, err = repo.Load(ctx, customerID)
		return err
	})
	if err != nil {
		return View{}, err
	}

	s.logger.Info("items removed from cart", "customer_id", customerID, "count", len(itemIDs))
	return s.view(c), nil
}

// Clear empties the customer's cart and releases its reserved units.
func (s *Service) Clear(ctx context.Context, customerID string) error {
	var released int
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := customers.NewRepository(tx).Get(ctx, customerID); err != nil {
			return err
		}
		repo := NewRepository(tx)
		cartID, err := repo.Ensure(ctx, customerID)
		if err != nil {
			return err
		}
		unitIDs, err := repo.Empty(ctx, cartID)
		if err != nil {
			return err
		}
		released, err = inventory.NewLedger(tx).Unblock(ctx, unitIDs)
		return err
	})
	if err != nil {
		return err
	}
	s.logger.Info("cart cleared", "customer_id", customerID, "released", released)
	return nil
}
