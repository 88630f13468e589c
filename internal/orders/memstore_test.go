package orders

import (
	"context"
	"errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func seeded(t *testing.T) *MemStore {
	t.Helper()
	m := NewMemStore()
	m.PutProduct(Product{ID: "tomato", ProducerID: "farm-1", UnitPrice: decimal.NewFromInt(3), AvailableQuantity: decimal.NewFromInt(10)})
	return m
}

func TestMemStoreRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	m := seeded(t)
	boom := errors.New("boom")

	err := m.WithTx(ctx, func(tx Tx) error {
		if _, err := tx.ReserveStock(ctx, "tomato", decimal.NewFromInt(4)); err != nil {
			return err
		}
		o := Order{ID: "o1", Status: StatusPending, ProductID: "tomato"}
		if err := tx.InsertOrder(ctx, &o); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	avail, err := m.Available(ctx, "tomato")
	require.NoError(t, err)
	assert.True(t, avail.Equal(decimal.NewFromInt(10)), avail.String())

	_, err = m.GetOrder(ctx, "o1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemStoreRollsBackOnExpiredContext(t *testing.T) {
	m := seeded(t)
	ctx, cancel := context.WithCancel(context.Background())

	err := m.WithTx(ctx, func(tx Tx) error {
		_, err := tx.ReserveStock(ctx, "tomato", decimal.NewFromInt(4))
		cancel()
		return err
	})
	require.ErrorIs(t, err, context.Canceled)

	avail, err := m.Available(context.Background(), "tomato")
	require.NoError(t, err)
	assert.True(t, avail.Equal(decimal.NewFromInt(10)))
}

func TestMemStoreReserveNeverGoesNegative(t *testing.T) {
	ctx := context.Background()
	m := seeded(t)

	err := m.WithTx(ctx, func(tx Tx) error {
		_, err := tx.ReserveStock(ctx, "tomato", decimal.NewFromInt(11))
		return err
	})
	var ise *InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.True(t, ise.Available.Equal(decimal.NewFromInt(10)))

	err = m.WithTx(ctx, func(tx Tx) error {
		_, err := tx.ReserveStock(ctx, "nope", decimal.NewFromInt(1))
		return err
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemStoreGuardedUpdate(t *testing.T) {
	ctx := context.Background()
	m := seeded(t)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	deadline := now.Add(time.Hour)

	require.NoError(t, m.WithTx(ctx, func(tx Tx) error {
		return tx.InsertOrder(ctx, &Order{ID: "o1", Status: StatusShipped, AutoConfirmAt: &deadline, Version: 1})
	}))

	// not yet due
	err := m.WithTx(ctx, func(tx Tx) error {
		return tx.UpdateOrder(ctx, &Order{ID: "o1", Status: StatusDelivered}, Guard{Status: StatusShipped, DueBy: &now})
	})
	require.ErrorIs(t, err, ErrOrderChanged)

	// wrong expected status
	err = m.WithTx(ctx, func(tx Tx) error {
		return tx.UpdateOrder(ctx, &Order{ID: "o1", Status: StatusDelivered}, Guard{Status: StatusDisputed})
	})
	require.ErrorIs(t, err, ErrOrderChanged)

	later := deadline.Add(time.Second)
	require.NoError(t, m.WithTx(ctx, func(tx Tx) error {
		return tx.UpdateOrder(ctx, &Order{ID: "o1", Status: StatusDelivered}, Guard{Status: StatusShipped, DueBy: &later})
	}))
	o, err := m.GetOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, o.Status)
	assert.EqualValues(t, 2, o.Version)
}

func TestMemStoreDueForAutoConfirm(t *testing.T) {
	ctx := context.Background()
	m := seeded(t)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	early, late, future := now.Add(-2*time.Hour), now.Add(-time.Hour), now.Add(time.Hour)

	require.NoError(t, m.WithTx(ctx, func(tx Tx) error {
		for _, o := range []Order{
			{ID: "late", Status: StatusShipped, AutoConfirmAt: &late},
			{ID: "early", Status: StatusShipped, AutoConfirmAt: &early},
			{ID: "future", Status: StatusShipped, AutoConfirmAt: &future},
			{ID: "pending", Status: StatusPending},
		} {
			o := o
			if err := tx.InsertOrder(ctx, &o); err != nil {
				return err
			}
		}
		return nil
	}))

	due, err := m.DueForAutoConfirm(ctx, now, nil, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"early", "late"}, dueIDs(due))

	due, err = m.DueForAutoConfirm(ctx, now, nil, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"early"}, dueIDs(due))

	due, err = m.DueForAutoConfirm(ctx, now, &due[0], 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"late"}, dueIDs(due))

	due, err = m.DueForAutoConfirm(ctx, now, &due[0], 1)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestMemStoreDueTieBreaksOnID(t *testing.T) {
	ctx := context.Background()
	m := seeded(t)
	at := time.Date(2025, 3, 1, 11, 0, 0, 0, time.UTC)

	require.NoError(t, m.WithTx(ctx, func(tx Tx) error {
		for _, id := range []string{"c", "a", "b"} {
			if err := tx.InsertOrder(ctx, &Order{ID: id, Status: StatusShipped, AutoConfirmAt: &at}); err != nil {
				return err
			}
		}
		return nil
	}))

	due, err := m.DueForAutoConfirm(ctx, at, &DueOrder{ID: "a", AutoConfirmAt: at}, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, dueIDs(due))
}

func dueIDs(due []DueOrder) []string {
	ids := make([]string, 0, len(due))
	for _, d := range due {
		ids = append(ids, d.ID)
	}
	return ids
}
