package inventory

import (
	"context"
	"errors"
	"github.com/ariefcatur/go-farm-orders/internal/metrics"
	"github.com/ariefcatur/go-farm-orders/internal/orders"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Ledger owns the available quantity of every product. Reservation is the
// decrement itself; there is no separate reserved counter.
//
// The *Tx variants run inside a caller's transaction so that a reservation
// or release commits together with the order row it belongs to. Each call
// touches exactly one product.
type Ledger struct {
	Store orders.Store
	Log   *zap.Logger
}

func (l *Ledger) Reserve(ctx context.Context, productID string, qty decimal.Decimal) error {
	return l.Store.WithTx(ctx, func(tx orders.Tx) error {
		return l.ReserveTx(ctx, tx, productID, qty)
	})
}

func (l *Ledger) Release(ctx context.Context, productID string, qty decimal.Decimal) error {
	return l.Store.WithTx(ctx, func(tx orders.Tx) error {
		return l.ReleaseTx(ctx, tx, productID, qty)
	})
}

func (l *Ledger) ReserveTx(ctx context.Context, tx orders.Tx, productID string, qty decimal.Decimal) error {
	if err := orders.CheckQuantity(qty); err != nil {
		return err
	}
	left, err := tx.ReserveStock(ctx, productID, qty)
	switch {
	case errors.Is(err, orders.ErrInsufficientStock):
		metrics.Reservations.WithLabelValues("insufficient").Inc()
		l.Log.Debug("reserve rejected",
			zap.String("product_id", productID), zap.String("qty", qty.String()), zap.String("available", left.String()))
		return err
	case err != nil:
		metrics.Reservations.WithLabelValues("error").Inc()
		return err
	}
	metrics.Reservations.WithLabelValues("ok").Inc()
	l.Log.Debug("stock reserved",
		zap.String("product_id", productID), zap.String("qty", qty.String()), zap.String("remaining", left.String()))
	return nil
}

func (l *Ledger) ReleaseTx(ctx context.Context, tx orders.Tx, productID string, qty decimal.Decimal) error {
	if err := orders.CheckQuantity(qty); err != nil {
		return err
	}
	left, err := tx.ReleaseStock(ctx, productID, qty)
	if err != nil {
		return err
	}
	metrics.Releases.Inc()
	l.Log.Debug("stock released",
		zap.String("product_id", productID), zap.String("qty", qty.String()), zap.String("remaining", left.String()))
	return nil
}

func (l *Ledger) Available(ctx context.Context, productID string) (decimal.Decimal, error) {
	return l.Store.Available(ctx, productID)
}
