package lifecycle

import (
	"context"
	"fmt"
	"github.com/ariefcatur/go-farm-orders/internal/orders"
)

type Resolution string

const (
	ResolveDelivered Resolution = "delivered"
	ResolveRefunded  Resolution = "refunded"
)

func ParseResolution(s string) (Resolution, error) {
	switch r := Resolution(s); r {
	case ResolveDelivered, ResolveRefunded:
		return r, nil
	}
	return "", fmt.Errorf("%w: resolution must be delivered or refunded, got %q", orders.ErrInvalidInput, s)
}

// Resolver settles disputed orders. A refund releases the reserved stock in
// the same transaction as the status change; retrying on an already settled
// order fails with an invalid transition and releases nothing.
type Resolver struct {
	Lifecycle *Service
}

func (r *Resolver) ResolveDispute(ctx context.Context, id string, res Resolution, note string) (*orders.Order, error) {
	switch res {
	case ResolveDelivered:
		return r.Lifecycle.Transition(ctx, id, orders.ActionResolveDelivered, note)
	case ResolveRefunded:
		return r.Lifecycle.Transition(ctx, id, orders.ActionResolveRefunded, note)
	}
	return nil, fmt.Errorf("%w: unknown resolution %q", orders.ErrInvalidInput, res)
}
