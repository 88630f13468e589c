package cart

import (
	"context"
	"errors"
	"fmt"
	"github.com/ariefcatur/go-farm-orders/internal/orders"
	"github.com/ariefcatur/go-farm-orders/internal/redisx"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"sort"
	"time"
)

const maxWatchRetries = 5

// Redis keeps each buyer's cart as a hash of product id -> quantity.
type Redis struct {
	Redis   *redis.Client
	Catalog orders.Catalog
	TTL     time.Duration
}

func (c *Redis) key(buyerID string) string { return fmt.Sprintf(redisx.KeyCart, buyerID) }

func (c *Redis) ttl() time.Duration {
	if c.TTL <= 0 {
		return redisx.TTLCart
	}
	return c.TTL
}

// Add increases the quantity of productID in the cart, creating the line if
// needed. The product must exist in the catalog.
func (c *Redis) Add(ctx context.Context, buyerID, productID string, qty decimal.Decimal) error {
	if err := orders.CheckQuantity(qty); err != nil {
		return err
	}
	if _, err := c.Catalog.GetProduct(ctx, productID); err != nil {
		return err
	}
	key := c.key(buyerID)
	for i := 0; i < maxWatchRetries; i++ {
		err := c.Redis.Watch(ctx, func(tx *redis.Tx) error {
			cur := decimal.Zero
			s, err := tx.HGet(ctx, key, productID).Result()
			switch {
			case errors.Is(err, redis.Nil):
			case err != nil:
				return err
			default:
				if cur, err = decimal.NewFromString(s); err != nil {
					return err
				}
			}
			_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
				p.HSet(ctx, key, productID, cur.Add(qty).String())
				p.Expire(ctx, key, c.ttl())
				return nil
			})
			return err
		}, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("cart %s: too much contention", buyerID)
}

// Set replaces the quantity of a line; zero removes it.
func (c *Redis) Set(ctx context.Context, buyerID, productID string, qty decimal.Decimal) error {
	if qty.IsNegative() {
		return orders.ErrInvalidQuantity
	}
	if qty.IsZero() {
		return c.Remove(ctx, buyerID, productID)
	}
	if err := orders.CheckQuantity(qty); err != nil {
		return err
	}
	if _, err := c.Catalog.GetProduct(ctx, productID); err != nil {
		return err
	}
	key := c.key(buyerID)
	_, err := c.Redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, productID, qty.String())
		p.Expire(ctx, key, c.ttl())
		return nil
	})
	return err
}

func (c *Redis) Remove(ctx context.Context, buyerID, productID string) error {
	return c.Redis.HDel(ctx, c.key(buyerID), productID).Err()
}

// Lines returns the cart ordered by product id.
func (c *Redis) Lines(ctx context.Context, buyerID string) ([]orders.CartLine, error) {
	m, err := c.Redis.HGetAll(ctx, c.key(buyerID)).Result()
	if err != nil {
		return nil, err
	}
	lines := make([]orders.CartLine, 0, len(m))
	for pid, s := range m {
		q, err := decimal.NewFromString(s)
		if err != nil {
			return nil, fmt.Errorf("cart %s line %s: %w", buyerID, pid, err)
		}
		lines = append(lines, orders.CartLine{ProductID: pid, Quantity: q})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
	return lines, nil
}

func (c *Redis) Clear(ctx context.Context, buyerID string) error {
	return c.Redis.Del(ctx, c.key(buyerID)).Err()
}
