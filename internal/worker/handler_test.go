package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/bookstore-orderflow/internal/domain"
)

type fakeSettler struct {
	got []domain.PaymentOutcomeEvent
	err error
}

func (f *fakeSettler) ApplyPaymentOutcome(_ context.Context, outcome domain.PaymentOutcomeEvent) (domain.Order, error) {
	f.got = append(f.got, outcome)
	if f.err != nil {
		return domain.Order{}, f.err
	}
	return domain.Order{ID: outcome.OrderID, Status: domain.OrderApproved}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPaymentOutcomeHandler(t *testing.T) {
	payload := []byte(`{"order_id":"o-1","status":"APPROVED","message":"ok"}`)

	t.Run("applies the outcome", func(t *testing.T) {
		settler := &fakeSettler{}
		h := NewPaymentOutcomeHandler(settler, discardLogger())

		require.NoError(t, h.Handle(context.Background(), payload))
		require.Len(t, settler.got, 1)
		assert.Equal(t, "o-1", settler.got[0].OrderID)
		assert.Equal(t, domain.PaymentApproved, settler.got[0].Status)
		assert.Equal(t, "ok", settler.got[0].Message)
	})

	t.Run("acknowledges outcomes for settled or unknown orders", func(t *testing.T) {
		settler := &fakeSettler{err: domain.Errorf(domain.KindInvalidStatusTransition, "payment outcome for unknown order o-1")}
		h := NewPaymentOutcomeHandler(settler, discardLogger())

		assert.NoError(t, h.Handle(context.Background(), payload))
	})

	t.Run("acknowledges malformed payloads", func(t *testing.T) {
		settler := &fakeSettler{}
		h := NewPaymentOutcomeHandler(settler, discardLogger())

		assert.NoError(t, h.Handle(context.Background(), []byte(`not json`)))
		assert.Empty(t, settler.got)
	})

	t.Run("returns infrastructure errors for redelivery", func(t *testing.T) {
		settler := &fakeSettler{err: errors.New("connection reset")}
		h := NewPaymentOutcomeHandler(settler, discardLogger())

		err := h.Handle(context.Background(), payload)
		assert.ErrorContains(t, err, "connection reset")
	})
}
