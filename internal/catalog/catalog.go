package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/ariefcatur/go-farm-orders/internal/orders"
	"github.com/ariefcatur/go-farm-orders/internal/redisx"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"time"
)

// Postgres reads product identity and price. Stock is deliberately not part
// of what it returns.
type Postgres struct{ DB orders.DB }

func (c *Postgres) GetProduct(ctx context.Context, id string) (orders.ProductInfo, error) {
	var (
		p     orders.ProductInfo
		price string
	)
	err := c.DB.QueryRow(ctx, `SELECT id, producer_id, name, unit_price::text FROM products WHERE id=$1`, id).
		Scan(&p.ID, &p.ProducerID, &p.Name, &price)
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.ProductInfo{}, fmt.Errorf("product %s: %w", id, orders.ErrNotFound)
	}
	if err != nil {
		return orders.ProductInfo{}, err
	}
	if p.UnitPrice, err = decimal.NewFromString(price); err != nil {
		return orders.ProductInfo{}, err
	}
	return p, nil
}

// Cached puts a Redis read-through cache in front of another catalog. Cache
// errors fall through to the primary.
type Cached struct {
	Primary orders.Catalog
	Redis   *redis.Client
	TTL     time.Duration
	Log     *zap.Logger
}

func (c *Cached) GetProduct(ctx context.Context, id string) (orders.ProductInfo, error) {
	key := fmt.Sprintf(redisx.KeyProduct, id)
	if b, err := c.Redis.Get(ctx, key).Bytes(); err == nil {
		var p orders.ProductInfo
		if err := json.Unmarshal(b, &p); err == nil {
			return p, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.Log.Warn("catalog cache read", zap.String("product_id", id), zap.Error(err))
	}

	p, err := c.Primary.GetProduct(ctx, id)
	if err != nil {
		return p, err
	}
	if b, err := json.Marshal(p); err == nil {
		if err := c.Redis.Set(ctx, key, b, c.TTL).Err(); err != nil {
			c.Log.Warn("catalog cache write", zap.String("product_id", id), zap.Error(err))
		}
	}
	return p, nil
}

// Invalidate drops the cached entry after the catalog owner changes a product.
func (c *Cached) Invalidate(ctx context.Context, id string) error {
	return c.Redis.Del(ctx, fmt.Sprintf(redisx.KeyProduct, id)).Err()
}
