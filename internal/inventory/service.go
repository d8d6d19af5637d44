package inventory

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/bookstore-orderflow/internal/db"
	"github.com/joao-fontenele/bookstore-orderflow/internal/domain"
)

type EntryInput struct {
	BookID    string          `json:"book_id"`
	Supplier  string          `json:"supplier"`
	Cost      decimal.Decimal `json:"cost"`
	Quantity  int             `json:"quantity"`
	EntryDate time.Time       `json:"entry_date"`
}

type Service struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

func NewService(conn *sql.DB, logger *slog.Logger) *Service {
	return &Service{db: conn, logger: logger, now: time.Now}
}

// Enter records a stock entry: quantity new AVAILABLE units of one book.
func (s *Service) Enter(ctx context.Context, in EntryInput) ([]domain.StockUnit, error) {
	if in.Quantity <= 0 {
		return nil, domain.Errorf(domain.KindValidation, "quantity must be positive, got %d", in.Quantity)
	}
	now := s.now().UTC()
	if in.EntryDate.IsZero() {
		in.EntryDate = now
	}

	units := make([]domain.StockUnit, 0, in.Quantity)
	for range in.Quantity {
		u, err := domain.NewStockUnit(in.BookID, in.Supplier, in.Cost, in.EntryDate, now)
		if err != nil {
			return nil, err
		}
		units = append(units, u)
	}

	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		ledger := NewLedger(tx)
		if _, err := ledger.GetBook(ctx, in.BookID); err != nil {
			return err
		}
		return ledger.Insert(ctx, units)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("stock entered", "book_id", in.BookID, "quantity", in.Quantity, "supplier", in.Supplier)
	return units, nil
}

func (s *Service) ListByBook(ctx context.Context, bookID string) ([]domain.StockUnit, error) {
	ledger := NewLedger(s.db)
	if _, err := ledger.GetBook(ctx, bookID); err != nil {
		return nil, err
	}
	return ledger.ListByBook(ctx, bookID)
}

func (s *Service) Get(ctx context.Context, id string) (domain.StockUnit, error) {
	return NewLedger(s.db).Get(ctx, id)
}
