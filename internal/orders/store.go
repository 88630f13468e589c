package orders

import (
	"context"
	"github.com/shopspring/decimal"
	"time"
)

// Store is the persistence contract of the engine. Everything that must be
// atomic goes through WithTx; the remaining methods are plain reads.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	GetOrder(ctx context.Context, id string) (*Order, error)
	ListOrders(ctx context.Context, f OrderFilter) ([]Order, error)
	// DueForAutoConfirm lists shipped orders whose deadline is <= now in
	// (deadline, id) order, starting strictly after the after cursor when
	// it is set.
	DueForAutoConfirm(ctx context.Context, now time.Time, after *DueOrder, limit int) ([]DueOrder, error)
	Available(ctx context.Context, productID string) (decimal.Decimal, error)
}

type Tx interface {
	// LockProducts takes the row locks for ids in ascending order.
	LockProducts(ctx context.Context, ids []string) error
	// ReserveStock checks and decrements under the product row lock and
	// returns the remaining quantity.
	ReserveStock(ctx context.Context, productID string, qty decimal.Decimal) (decimal.Decimal, error)
	ReleaseStock(ctx context.Context, productID string, qty decimal.Decimal) (decimal.Decimal, error)

	InsertOrder(ctx context.Context, o *Order) error
	GetOrder(ctx context.Context, id string, forUpdate bool) (*Order, error)
	// UpdateOrder writes the mutable order fields only if the row still
	// matches g. A miss returns ErrOrderChanged.
	UpdateOrder(ctx context.Context, o *Order, g Guard) error
}

// DueOrder is one row of the auto-confirm scan. The last row of a page is
// the cursor for the next one.
type DueOrder struct {
	ID            string
	AutoConfirmAt time.Time
}

func (d DueOrder) less(o DueOrder) bool {
	if !d.AutoConfirmAt.Equal(o.AutoConfirmAt) {
		return d.AutoConfirmAt.Before(o.AutoConfirmAt)
	}
	return d.ID < o.ID
}

// Guard is the WHERE clause of a conditional order update.
type Guard struct {
	Status Status
	DueBy  *time.Time // auto_confirm_at <= DueBy
}

type Catalog interface {
	GetProduct(ctx context.Context, id string) (ProductInfo, error)
}
