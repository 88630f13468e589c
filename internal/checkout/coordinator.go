package checkout

import (
	"context"
	"errors"
	"fmt"
	"github.com/ariefcatur/go-farm-orders/internal/clock"
	"github.com/ariefcatur/go-farm-orders/internal/inventory"
	"github.com/ariefcatur/go-farm-orders/internal/metrics"
	"github.com/ariefcatur/go-farm-orders/internal/notify"
	"github.com/ariefcatur/go-farm-orders/internal/orders"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"sort"
	"time"
)

// Cart is the part of the buyer cart checkout needs.
type Cart interface {
	Lines(ctx context.Context, buyerID string) ([]orders.CartLine, error)
	Clear(ctx context.Context, buyerID string) error
}

type Request struct {
	BuyerID       string            `json:"buyer_id"`
	Lines         []orders.CartLine `json:"lines"`
	Delivery      orders.Delivery   `json:"delivery"`
	PaymentMethod string            `json:"payment_method"`
}

// Coordinator turns cart lines into pending orders. Every line of one call
// is reserved inside a single transaction, so a failure anywhere leaves all
// stock untouched.
type Coordinator struct {
	Store     orders.Store
	Ledger    *inventory.Ledger
	Catalog   orders.Catalog
	Cart      Cart // optional; without it checkout needs explicit lines
	Notifier  notify.Notifier
	Clock     clock.Clock
	TxTimeout time.Duration
	Log       *zap.Logger
}

// PlaceOrder is the single-product path. Failures come back as the ledger
// or catalog error itself rather than a CheckoutError.
func (c *Coordinator) PlaceOrder(ctx context.Context, buyerID, productID string, qty decimal.Decimal, d orders.Delivery, paymentMethod string) (*orders.Order, error) {
	if buyerID == "" || productID == "" {
		return nil, fmt.Errorf("%w: buyer_id and product_id are required", orders.ErrInvalidInput)
	}
	created, err := c.place(ctx, buyerID, []orders.CartLine{{ProductID: productID, Quantity: qty}}, d, paymentMethod, "")
	if err != nil {
		var ce *orders.CheckoutError
		if errors.As(err, &ce) {
			return nil, ce.Err
		}
		return nil, err
	}
	c.announce(ctx, created)
	return &created[0], nil
}

// Checkout reserves every line or none. With no lines in req the buyer's
// stored cart is used, and on success the stored cart is cleared.
func (c *Coordinator) Checkout(ctx context.Context, req Request) ([]orders.Order, error) {
	if req.BuyerID == "" {
		return nil, fmt.Errorf("%w: buyer_id is required", orders.ErrInvalidInput)
	}
	lines := req.Lines
	if len(lines) == 0 && c.Cart != nil {
		stored, err := c.Cart.Lines(ctx, req.BuyerID)
		if err != nil {
			return nil, fmt.Errorf("load cart: %w", err)
		}
		lines = stored
	}
	if len(lines) == 0 {
		return nil, orders.ErrEmptyCart
	}

	created, err := c.place(ctx, req.BuyerID, lines, req.Delivery, req.PaymentMethod, uuid.NewString())
	switch {
	case errors.Is(err, orders.ErrCheckoutFailed):
		metrics.Checkouts.WithLabelValues("rejected").Inc()
		c.Log.Info("checkout rejected", zap.String("buyer_id", req.BuyerID), zap.Error(err))
		return nil, err
	case err != nil:
		metrics.Checkouts.WithLabelValues("error").Inc()
		c.Log.Error("checkout", zap.String("buyer_id", req.BuyerID), zap.Error(err))
		return nil, err
	}
	metrics.Checkouts.WithLabelValues("ok").Inc()

	if c.Cart != nil {
		if err := c.Cart.Clear(ctx, req.BuyerID); err != nil {
			c.Log.Warn("clear cart after checkout", zap.String("buyer_id", req.BuyerID), zap.Error(err))
		}
	}
	c.announce(ctx, created)
	return created, nil
}

func (c *Coordinator) place(ctx context.Context, buyerID string, lines []orders.CartLine, d orders.Delivery, paymentMethod, checkoutID string) ([]orders.Order, error) {
	// Catalog lookups happen before any lock is taken.
	infos := make([]orders.ProductInfo, len(lines))
	for i, l := range lines {
		if err := orders.CheckQuantity(l.Quantity); err != nil {
			return nil, &orders.CheckoutError{Line: i, ProductID: l.ProductID, Err: err}
		}
		p, err := c.Catalog.GetProduct(ctx, l.ProductID)
		if err != nil {
			return nil, &orders.CheckoutError{Line: i, ProductID: l.ProductID, Err: err}
		}
		infos[i] = p
	}

	if c.TxTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.TxTimeout)
		defer cancel()
	}

	now := c.Clock.Now()
	var created []orders.Order
	err := c.Store.WithTx(ctx, func(tx orders.Tx) error {
		created = created[:0]
		if err := tx.LockProducts(ctx, productIDs(lines)); err != nil {
			return err
		}
		for i, l := range lines {
			if err := c.Ledger.ReserveTx(ctx, tx, l.ProductID, l.Quantity); err != nil {
				return &orders.CheckoutError{Line: i, ProductID: l.ProductID, Err: err}
			}
			o := orders.NewPending(uuid.NewString(), buyerID, infos[i], l.Quantity, d, paymentMethod, now)
			o.CheckoutID = checkoutID
			if err := tx.InsertOrder(ctx, &o); err != nil {
				return err
			}
			created = append(created, o)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (c *Coordinator) announce(ctx context.Context, created []orders.Order) {
	for i := range created {
		o := &created[i]
		c.Log.Info("order placed",
			zap.String("order_id", o.ID), zap.String("buyer_id", o.BuyerID),
			zap.String("product_id", o.ProductID), zap.String("qty", o.Quantity.String()))
		c.Notifier.Notify(ctx, o.ProducerID, orders.EventOrderPlaced, orders.PayloadFor(o, ""))
	}
}

// productIDs returns the distinct ids in ascending order, the order in which
// rows are locked.
func productIDs(lines []orders.CartLine) []string {
	seen := make(map[string]struct{}, len(lines))
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		if _, ok := seen[l.ProductID]; ok {
			continue
		}
		seen[l.ProductID] = struct{}{}
		ids = append(ids, l.ProductID)
	}
	sort.Strings(ids)
	return ids
}
