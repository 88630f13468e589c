package cart

import (
	"context"
	"github.com/alicebob/miniredis/v2"
	"github.com/ariefcatur/go-farm-orders/internal/orders"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sync"
	"testing"
	"time"
)

func newCart(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := orders.NewMemStore()
	for _, id := range []string{"apple", "beet", "carrot"} {
		store.PutProduct(orders.Product{ID: id, ProducerID: "farm-1", UnitPrice: decimal.NewFromInt(1), AvailableQuantity: decimal.NewFromInt(10)})
	}
	return &Redis{Redis: rdb, Catalog: store, TTL: time.Hour}, mr
}

func TestCartAddAccumulates(t *testing.T) {
	ctx := context.Background()
	c, mr := newCart(t)

	require.NoError(t, c.Add(ctx, "b1", "carrot", decimal.NewFromInt(2)))
	require.NoError(t, c.Add(ctx, "b1", "apple", decimal.RequireFromString("1.5")))
	require.NoError(t, c.Add(ctx, "b1", "carrot", decimal.NewFromInt(3)))

	lines, err := c.Lines(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "apple", lines[0].ProductID)
	assert.True(t, lines[0].Quantity.Equal(decimal.RequireFromString("1.5")))
	assert.Equal(t, "carrot", lines[1].ProductID)
	assert.True(t, lines[1].Quantity.Equal(decimal.NewFromInt(5)))

	assert.Equal(t, time.Hour, mr.TTL("cart:b1"))
}

func TestCartConcurrentAdds(t *testing.T) {
	ctx := context.Background()
	c, _ := newCart(t)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.Add(ctx, "b1", "beet", decimal.NewFromInt(1)))
		}()
	}
	wg.Wait()

	lines, err := c.Lines(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.True(t, lines[0].Quantity.Equal(decimal.NewFromInt(4)), lines[0].Quantity.String())
}

func TestCartValidation(t *testing.T) {
	ctx := context.Background()
	c, _ := newCart(t)

	assert.ErrorIs(t, c.Add(ctx, "b1", "apple", decimal.Zero), orders.ErrInvalidQuantity)
	assert.ErrorIs(t, c.Add(ctx, "b1", "durian", decimal.NewFromInt(1)), orders.ErrNotFound)
	assert.ErrorIs(t, c.Set(ctx, "b1", "apple", decimal.NewFromInt(-1)), orders.ErrInvalidQuantity)
	assert.ErrorIs(t, c.Add(ctx, "b1", "apple", decimal.RequireFromString("0.0005")), orders.ErrInvalidQuantity)
	assert.ErrorIs(t, c.Set(ctx, "b1", "apple", decimal.RequireFromString("0.0005")), orders.ErrInvalidQuantity)
}

func TestCartSetRemoveClear(t *testing.T) {
	ctx := context.Background()
	c, _ := newCart(t)

	require.NoError(t, c.Set(ctx, "b1", "apple", decimal.NewFromInt(7)))
	require.NoError(t, c.Set(ctx, "b1", "beet", decimal.NewFromInt(1)))
	require.NoError(t, c.Set(ctx, "b1", "beet", decimal.Zero))

	lines, err := c.Lines(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.True(t, lines[0].Quantity.Equal(decimal.NewFromInt(7)))

	require.NoError(t, c.Remove(ctx, "b1", "apple"))
	lines, err = c.Lines(ctx, "b1")
	require.NoError(t, err)
	assert.Empty(t, lines)

	require.NoError(t, c.Add(ctx, "b1", "apple", decimal.NewFromInt(1)))
	require.NoError(t, c.Clear(ctx, "b1"))
	lines, err = c.Lines(ctx, "b1")
	require.NoError(t, err)
	assert.Empty(t, lines)
}
