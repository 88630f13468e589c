package orders

import (
	"context"
	"fmt"
	"github.com/shopspring/decimal"
	"sort"
	"sync"
	"time"
)

// MemStore is an in-process Store. One mutex owns every row, so a WithTx
// callback runs fully serialized; an error or an expired context undoes
// every write the callback made.
type MemStore struct {
	mu       sync.Mutex
	products map[string]Product
	orders   map[string]Order
}

func NewMemStore() *MemStore {
	return &MemStore{
		products: map[string]Product{},
		orders:   map[string]Order{},
	}
}

// PutProduct creates or replaces a product. It stands in for the catalog
// writer, which lives outside this service.
func (m *MemStore) PutProduct(p Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
}

func (m *MemStore) GetProduct(ctx context.Context, id string) (ProductInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return ProductInfo{}, fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	return ProductInfo{ID: p.ID, ProducerID: p.ProducerID, Name: p.Name, UnitPrice: p.UnitPrice}, nil
}

func (m *MemStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memTx{m: m}
	err := fn(tx)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		return err
	}
	return nil
}

func (m *MemStore) GetOrder(ctx context.Context, id string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &o, nil
}

func (m *MemStore) ListOrders(ctx context.Context, f OrderFilter) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Order
	for _, o := range m.orders {
		if f.BuyerID != "" && o.BuyerID != f.BuyerID {
			continue
		}
		if f.ProducerID != "" && o.ProducerID != f.ProducerID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemStore) DueForAutoConfirm(ctx context.Context, now time.Time, after *DueOrder, limit int) ([]DueOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var due []DueOrder
	for _, o := range m.orders {
		if o.Status != StatusShipped || o.AutoConfirmAt == nil || o.AutoConfirmAt.After(now) {
			continue
		}
		d := DueOrder{ID: o.ID, AutoConfirmAt: *o.AutoConfirmAt}
		if after != nil && !after.less(d) {
			continue
		}
		due = append(due, d)
	}
	sort.Slice(due, func(i, j int) bool { return due[i].less(due[j]) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (m *MemStore) Available(ctx context.Context, productID string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return decimal.Zero, fmt.Errorf("product %s: %w", productID, ErrNotFound)
	}
	return p.AvailableQuantity, nil
}

type memTx struct {
	m    *MemStore
	undo []func()
}

// LockProducts is a no-op: the store mutex is already held.
func (t *memTx) LockProducts(ctx context.Context, ids []string) error { return nil }

func (t *memTx) ReserveStock(ctx context.Context, productID string, qty decimal.Decimal) (decimal.Decimal, error) {
	p, ok := t.m.products[productID]
	if !ok {
		return decimal.Zero, fmt.Errorf("product %s: %w", productID, ErrNotFound)
	}
	if p.AvailableQuantity.LessThan(qty) {
		return p.AvailableQuantity, &InsufficientStockError{ProductID: productID, Requested: qty, Available: p.AvailableQuantity}
	}
	return t.setAvailable(p, p.AvailableQuantity.Sub(qty)), nil
}

func (t *memTx) ReleaseStock(ctx context.Context, productID string, qty decimal.Decimal) (decimal.Decimal, error) {
	p, ok := t.m.products[productID]
	if !ok {
		return decimal.Zero, fmt.Errorf("product %s: %w", productID, ErrNotFound)
	}
	return t.setAvailable(p, p.AvailableQuantity.Add(qty)), nil
}

func (t *memTx) setAvailable(p Product, q decimal.Decimal) decimal.Decimal {
	prev := p
	p.AvailableQuantity = q
	t.m.products[p.ID] = p
	t.undo = append(t.undo, func() { t.m.products[prev.ID] = prev })
	return q
}

func (t *memTx) InsertOrder(ctx context.Context, o *Order) error {
	if _, exists := t.m.orders[o.ID]; exists {
		return fmt.Errorf("order %s already exists", o.ID)
	}
	t.m.orders[o.ID] = *o
	id := o.ID
	t.undo = append(t.undo, func() { delete(t.m.orders, id) })
	return nil
}

func (t *memTx) GetOrder(ctx context.Context, id string, forUpdate bool) (*Order, error) {
	o, ok := t.m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &o, nil
}

func (t *memTx) UpdateOrder(ctx context.Context, o *Order, g Guard) error {
	cur, ok := t.m.orders[o.ID]
	if !ok || cur.Status != g.Status {
		return ErrOrderChanged
	}
	if g.DueBy != nil && (cur.AutoConfirmAt == nil || cur.AutoConfirmAt.After(*g.DueBy)) {
		return ErrOrderChanged
	}
	next := *o
	next.Version = cur.Version + 1
	t.m.orders[o.ID] = next
	t.undo = append(t.undo, func() { t.m.orders[cur.ID] = cur })
	return nil
}
