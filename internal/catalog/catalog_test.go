package catalog

import (
	"context"
	"github.com/alicebob/miniredis/v2"
	"github.com/ariefcatur/go-farm-orders/internal/orders"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"regexp"
	"testing"
	"time"
)

type countingCatalog struct {
	calls int
	inner orders.Catalog
}

func (c *countingCatalog) GetProduct(ctx context.Context, id string) (orders.ProductInfo, error) {
	c.calls++
	return c.inner.GetProduct(ctx, id)
}

func TestPostgresGetProduct(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	q := regexp.QuoteMeta(`SELECT id, producer_id, name, unit_price::text FROM products WHERE id=$1`)
	mock.ExpectQuery(q).WithArgs("kale").
		WillReturnRows(pgxmock.NewRows([]string{"id", "producer_id", "name", "unit_price"}).
			AddRow("kale", "farm-1", "Kale", "4.50"))
	mock.ExpectQuery(q).WithArgs("gone").
		WillReturnRows(pgxmock.NewRows([]string{"id", "producer_id", "name", "unit_price"}))

	c := &Postgres{DB: mock}
	p, err := c.GetProduct(context.Background(), "kale")
	require.NoError(t, err)
	assert.Equal(t, "farm-1", p.ProducerID)
	assert.True(t, p.UnitPrice.Equal(decimal.RequireFromString("4.5")))

	_, err = c.GetProduct(context.Background(), "gone")
	assert.ErrorIs(t, err, orders.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedReadsThrough(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	store := orders.NewMemStore()
	store.PutProduct(orders.Product{ID: "kale", ProducerID: "farm-1", Name: "Kale", UnitPrice: decimal.RequireFromString("4.5")})
	primary := &countingCatalog{inner: store}
	c := &Cached{Primary: primary, Redis: rdb, TTL: time.Minute, Log: zap.NewNop()}

	for i := 0; i < 3; i++ {
		p, err := c.GetProduct(ctx, "kale")
		require.NoError(t, err)
		assert.Equal(t, "farm-1", p.ProducerID)
		assert.True(t, p.UnitPrice.Equal(decimal.RequireFromString("4.5")))
	}
	assert.Equal(t, 1, primary.calls)

	require.NoError(t, c.Invalidate(ctx, "kale"))
	_, err := c.GetProduct(ctx, "kale")
	require.NoError(t, err)
	assert.Equal(t, 2, primary.calls)

	mr.FastForward(2 * time.Minute)
	_, err = c.GetProduct(ctx, "kale")
	require.NoError(t, err)
	assert.Equal(t, 3, primary.calls)

	_, err = c.GetProduct(ctx, "nope")
	assert.ErrorIs(t, err, orders.ErrNotFound)
}
