package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"github.com/ariefcatur/go-farm-orders/internal/orders"
	"github.com/jackc/pgx/v5/pgxpool"
	"time"
)

//go:embed schema.sql
var schema string

func Connect(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = maxConns
	cfg.MinConns = 1
	cfg.HealthCheckPeriod = 30 * time.Second
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// Migrate applies the embedded schema. Every statement is idempotent.
func Migrate(ctx context.Context, db orders.DB) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Seed upserts products. Only used for local setups where no catalog
// writer is running.
func Seed(ctx context.Context, db orders.DB, products []orders.Product) error {
	for _, p := range products {
		_, err := db.Exec(ctx, `
			INSERT INTO products(id, producer_id, name, unit_price, available_quantity)
			VALUES ($1, $2, $3, $4::numeric, $5::numeric)
			ON CONFLICT (id) DO UPDATE SET
				producer_id = EXCLUDED.producer_id,
				name = EXCLUDED.name,
				unit_price = EXCLUDED.unit_price,
				available_quantity = EXCLUDED.available_quantity,
				updated_at = now()`,
			p.ID, p.ProducerID, p.Name, p.UnitPrice.String(), p.AvailableQuantity.String())
		if err != nil {
			return fmt.Errorf("seed product %s: %w", p.ID, err)
		}
	}
	return nil
}
