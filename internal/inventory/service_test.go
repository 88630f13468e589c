package inventory

import (
	"context"
	"github.com/ariefcatur/go-farm-orders/internal/orders"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"sync"
	"sync/atomic"
	"testing"
)

func newLedger(initial int64, ids ...string) (*Ledger, *orders.MemStore) {
	store := orders.NewMemStore()
	for _, id := range ids {
		store.PutProduct(orders.Product{ID: id, ProducerID: "farm", UnitPrice: decimal.NewFromInt(1), AvailableQuantity: decimal.NewFromInt(initial)})
	}
	return &Ledger{Store: store, Log: zap.NewNop()}, store
}

func TestConcurrentReservesNeverOversell(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(100, "rice")

	// 40 callers x 3 units = 120 requested against 100
	var (
		wg       sync.WaitGroup
		ok, fail atomic.Int64
	)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.Reserve(ctx, "rice", decimal.NewFromInt(3))
			switch {
			case err == nil:
				ok.Add(1)
			case assert.ErrorIs(t, err, orders.ErrInsufficientStock):
				fail.Add(1)
			}
		}()
	}
	wg.Wait()

	left, err := l.Available(ctx, "rice")
	require.NoError(t, err)
	assert.EqualValues(t, 33, ok.Load())
	assert.EqualValues(t, 7, fail.Load())
	assert.True(t, left.Equal(decimal.NewFromInt(1)), left.String())
	assert.False(t, left.IsNegative())
}

func TestReleaseRestoresExactly(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(10, "eggs", "milk")
	qty := decimal.RequireFromString("2.75")

	require.NoError(t, l.Reserve(ctx, "eggs", qty))
	// unrelated traffic on another product in between
	require.NoError(t, l.Reserve(ctx, "milk", decimal.NewFromInt(4)))
	require.NoError(t, l.Release(ctx, "eggs", qty))

	eggs, err := l.Available(ctx, "eggs")
	require.NoError(t, err)
	assert.True(t, eggs.Equal(decimal.NewFromInt(10)), eggs.String())

	milk, err := l.Available(ctx, "milk")
	require.NoError(t, err)
	assert.True(t, milk.Equal(decimal.NewFromInt(6)))
}

func TestConcurrentReleasesSum(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(0, "honey")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, l.Release(ctx, "honey", decimal.RequireFromString("0.5")))
		}()
	}
	wg.Wait()

	left, err := l.Available(ctx, "honey")
	require.NoError(t, err)
	assert.True(t, left.Equal(decimal.NewFromInt(25)), left.String())
}

func TestReserveValidation(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(5, "corn")

	assert.ErrorIs(t, l.Reserve(ctx, "corn", decimal.Zero), orders.ErrInvalidQuantity)
	assert.ErrorIs(t, l.Reserve(ctx, "corn", decimal.NewFromInt(-1)), orders.ErrInvalidQuantity)
	assert.ErrorIs(t, l.Reserve(ctx, "wheat", decimal.NewFromInt(1)), orders.ErrNotFound)
	assert.ErrorIs(t, l.Release(ctx, "corn", decimal.Zero), orders.ErrInvalidQuantity)

	var ise *orders.InsufficientStockError
	require.ErrorAs(t, l.Reserve(ctx, "corn", decimal.NewFromInt(6)), &ise)
	assert.Equal(t, "corn", ise.ProductID)
	assert.True(t, ise.Available.Equal(decimal.NewFromInt(5)))
}

func TestReserveRejectsSubScaleQuantity(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(10, "corn")
	tiny := decimal.RequireFromString("0.0005")

	assert.ErrorIs(t, l.Reserve(ctx, "corn", tiny), orders.ErrInvalidQuantity)
	assert.ErrorIs(t, l.Release(ctx, "corn", tiny), orders.ErrInvalidQuantity)
	left, err := l.Available(ctx, "corn")
	require.NoError(t, err)
	assert.True(t, left.Equal(decimal.NewFromInt(10)), left.String())

	require.NoError(t, l.Reserve(ctx, "corn", decimal.RequireFromString("0.001")))
	require.NoError(t, l.Reserve(ctx, "corn", decimal.RequireFromString("1.5000")))
	left, err = l.Available(ctx, "corn")
	require.NoError(t, err)
	assert.Equal(t, "8.499", left.StringFixed(orders.QuantityScale))
}
