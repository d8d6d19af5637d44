//go:build integration

package cart

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/bookstore-orderflow/internal/domain"
	"github.com/joao-fontenele/bookstore-orderflow/internal/telemetry"
	"github.com/joao-fontenele/bookstore-orderflow/internal/testutil"
)

func TestCartService(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	conn := testutil.SetupPostgres(ctx, t)
	svc := NewService(conn, telemetry.NopMetrics(), testutil.DiscardLogger(), decimal.NewFromInt(10))

	t.Run("adding items reserves the oldest units", func(t *testing.T) {
		shopper := testutil.SeedShopper(ctx, t, conn)
		bookID := testutil.SeedBook(ctx, t, conn, "25")
		units := testutil.SeedUnits(ctx, t, conn, bookID, "40", 3)

		view, err := svc.AddItem(ctx, shopper.ID, bookID, 2)
		require.NoError(t, err)

		require.Len(t, view.Items, 2)
		assert.ElementsMatch(t, units[:2], view.StockUnitIDs())
		assert.Equal(t, "100.00", view.Total.StringFixed(2))
		assert.Equal(t, "20.00", view.Freight.StringFixed(2))
		for _, id := range units[:2] {
			status, _ := testutil.UnitStatus(ctx, t, conn, id)
			assert.Equal(t, "BLOCKED", status)
		}
		status, _ := testutil.UnitStatus(ctx, t, conn, units[2])
		assert.Equal(t, "AVAILABLE", status)
	})

	t.Run("items are priced at the highest cost of the book", func(t *testing.T) {
		shopper := testutil.SeedShopper(ctx, t, conn)
		bookID := testutil.SeedBook(ctx, t, conn, "25")
		testutil.SeedUnits(ctx, t, conn, bookID, "40", 1)
		testutil.SeedUnits(ctx, t, conn, bookID, "64", 1)

		view, err := svc.AddItem(ctx, shopper.ID, bookID, 1)
		require.NoError(t, err)
		assert.Equal(t, "80.00", view.Total.StringFixed(2))
	})

	t.Run("asking for more than available reserves nothing", func(t *testing.T) {
		shopper := testutil.SeedShopper(ctx, t, conn)
		bookID := testutil.SeedBook(ctx, t, conn, "25")
		units := testutil.SeedUnits(ctx, t, conn, bookID, "40", 1)

		_, err := svc.AddItem(ctx, shopper.ID, bookID, 2)
		assert.ErrorIs(t, err, domain.ErrOutOfStock)

		status, _ := testutil.UnitStatus(ctx, t, conn, units[0])
		assert.Equal(t, "AVAILABLE", status)
	})

	t.Run("removing and clearing release the units", func(t *testing.T) {
		shopper := testutil.SeedShopper(ctx, t, conn)
		bookID := testutil.SeedBook(ctx, t, conn, "25")
		units := testutil.SeedUnits(ctx, t, conn, bookID, "40", 2)

		view, err := svc.AddItem(ctx, shopper.ID, bookID, 2)
		require.NoError(t, err)

		view, err = svc.RemoveItems(ctx, shopper.ID, []string{view.Items[0].ID})
		require.NoError(t, err)
		require.Len(t, view.Items, 1)

		require.NoError(t, svc.Clear(ctx, shopper.ID))

		view, err = svc.Get(ctx, shopper.ID)
		require.NoError(t, err)
		assert.True(t, view.IsEmpty())
		for _, id := range units {
			status, _ := testutil.UnitStatus(ctx, t, conn, id)
			assert.Equal(t, "AVAILABLE", status)
		}
	})

	t.Run("removing an unknown item fails", func(t *testing.T) {
		shopper := testutil.SeedShopper(ctx, t, conn)
		bookID := testutil.SeedBook(ctx, t, conn, "25")
		testutil.SeedUnits(ctx, t, conn, bookID, "40", 1)

		_, err := svc.AddItem(ctx, shopper.ID, bookID, 1)
		require.NoError(t, err)

		_, err = svc.RemoveItems(ctx, shopper.ID, []string{"00000000-0000-0000-0000-000000000000"})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("two shoppers racing for the last unit", func(t *testing.T) {
		bookID := testutil.SeedBook(ctx, t, conn, "25")
		units := testutil.SeedUnits(ctx, t, conn, bookID, "40", 1)
		shoppers := []testutil.Shopper{testutil.SeedShopper(ctx, t, conn), testutil.SeedShopper(ctx, t, conn)}

		errs := make([]error, len(shoppers))
		var wg sync.WaitGroup
		for i, s := range shoppers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = svc.AddItem(ctx, s.ID, bookID, 1)
			}()
		}
		wg.Wait()

		var succeeded, outOfStock int
		for _, err := range errs {
			switch {
			case err == nil:
				succeeded++
			case assert.ErrorIs(t, err, domain.ErrOutOfStock):
				outOfStock++
			}
		}
		assert.Equal(t, 1, succeeded)
		assert.Equal(t, 1, outOfStock)

		status, _ := testutil.UnitStatus(ctx, t, conn, units[0])
		assert.Equal(t, "BLOCKED", status)
	})

	t.Run("changes to a locked cart wait for the lock holder", func(t *testing.T) {
		shopper := testutil.SeedShopper(ctx, t, conn)
		bookID := testutil.SeedBook(ctx, t, conn, "25")
		testutil.SeedUnits(ctx, t, conn, bookID, "40", 2)

		_, err := svc.AddItem(ctx, shopper.ID, bookID, 1)
		require.NoError(t, err)

		tx, err := conn.BeginTx(ctx, nil)
		require.NoError(t, err)
		defer func() { _ = tx.Rollback() }()
		cartID, err := NewRepository(tx).Lock(ctx, shopper.ID)
		require.NoError(t, err)
		require.NotEmpty(t, cartID)

		done := make(chan error, 1)
		go func() {
			_, err := svc.AddItem(ctx, shopper.ID, bookID, 1)
			done <- err
		}()

		select {
		case err := <-done:
			t.Fatalf("add item finished while the cart was locked: %v", err)
		case <-time.After(300 * time.Millisecond):
		}

		require.NoError(t, tx.Commit())
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(10 * time.Second):
			t.Fatal("add item did not finish after the lock was released")
		}

		view, err := svc.Get(ctx, shopper.ID)
		require.NoError(t, err)
		assert.Len(t, view.Items, 2)
	})

	t.Run("customers without a cart have nothing to lock", func(t *testing.T) {
		shopper := testutil.SeedShopper(ctx, t, conn)

		id, err := NewRepository(conn).Lock(ctx, shopper.ID)
		require.NoError(t, err)
		assert.Empty(t, id)
	})

	t.Run("unknown customer", func(t *testing.T) {
		_, err := svc.Get(ctx, "00000000-0000-0000-0000-000000000000")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}
