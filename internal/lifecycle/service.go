package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"github.com/ariefcatur/go-farm-orders/internal/clock"
	"github.com/ariefcatur/go-farm-orders/internal/inventory"
	"github.com/ariefcatur/go-farm-orders/internal/metrics"
	"github.com/ariefcatur/go-farm-orders/internal/notify"
	"github.com/ariefcatur/go-farm-orders/internal/orders"
	"go.uber.org/zap"
	"strings"
	"time"
)

// Service applies order transitions. Each call reads the order, lets the
// state machine decide, and writes the result with an update guarded on the
// status it read. Stock release for cancel and refund commits in the same
// transaction. Notifications go out only after commit.
type Service struct {
	Store    orders.Store
	Ledger   *inventory.Ledger
	Machine  orders.Machine
	Notifier notify.Notifier
	Clock    clock.Clock
	Log      *zap.Logger
}

func (s *Service) Confirm(ctx context.Context, id string) (*orders.Order, error) {
	return s.Transition(ctx, id, orders.ActionConfirm, "")
}

func (s *Service) Reject(ctx context.Context, id, reason string) (*orders.Order, error) {
	return s.Transition(ctx, id, orders.ActionReject, reason)
}

func (s *Service) Cancel(ctx context.Context, id, reason string) (*orders.Order, error) {
	return s.Transition(ctx, id, orders.ActionCancel, reason)
}

func (s *Service) Ship(ctx context.Context, id, trackingNo string) (*orders.Order, error) {
	return s.Transition(ctx, id, orders.ActionShip, trackingNo)
}

func (s *Service) ConfirmDelivery(ctx context.Context, id string) (*orders.Order, error) {
	return s.Transition(ctx, id, orders.ActionBuyerConfirm, "")
}

func (s *Service) RaiseDispute(ctx context.Context, id, reason string) (*orders.Order, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("%w: dispute reason is required", orders.ErrInvalidInput)
	}
	return s.Transition(ctx, id, orders.ActionDispute, reason)
}

// AutoConfirm promotes a shipped order whose deadline is at or before now.
// The order row is not locked on read; the guarded update alone decides
// whether a concurrent dispute got there first.
func (s *Service) AutoConfirm(ctx context.Context, id string, now time.Time) (*orders.Order, error) {
	return s.transition(ctx, id, orders.ActionAutoConfirm, "", now)
}

// Transition runs any action against the order at the current clock time.
func (s *Service) Transition(ctx context.Context, id string, a orders.Action, note string) (*orders.Order, error) {
	return s.transition(ctx, id, a, note, s.Clock.Now())
}

func (s *Service) transition(ctx context.Context, id string, a orders.Action, note string, now time.Time) (*orders.Order, error) {
	var out orders.Order
	err := s.Store.WithTx(ctx, func(tx orders.Tx) error {
		cur, err := tx.GetOrder(ctx, id, a != orders.ActionAutoConfirm)
		if err != nil {
			return fmt.Errorf("order %s: %w", id, err)
		}
		e, err := s.Machine.Next(cur, a, now)
		if err != nil {
			return err
		}
		next := s.Machine.Apply(*cur, e, now, note)

		g := orders.Guard{Status: e.From}
		if a == orders.ActionAutoConfirm {
			g.DueBy = &now
		}
		if err := tx.UpdateOrder(ctx, &next, g); err != nil {
			if errors.Is(err, orders.ErrOrderChanged) {
				return &orders.TransitionError{OrderID: id, From: cur.Status, Action: a, Reason: "order changed concurrently"}
			}
			return err
		}
		if e.Release {
			if err := s.Ledger.ReleaseTx(ctx, tx, next.ProductID, next.Quantity); err != nil {
				return fmt.Errorf("release stock for order %s: %w", id, err)
			}
		}
		out = next
		return nil
	})
	switch {
	case errors.Is(err, orders.ErrInvalidTransition):
		metrics.Transitions.WithLabelValues(string(a), "invalid").Inc()
		return nil, err
	case errors.Is(err, orders.ErrNotFound):
		metrics.Transitions.WithLabelValues(string(a), "not_found").Inc()
		return nil, err
	case err != nil:
		metrics.Transitions.WithLabelValues(string(a), "error").Inc()
		s.Log.Error("order transition", zap.String("order_id", id), zap.String("action", string(a)), zap.Error(err))
		return nil, err
	}
	metrics.Transitions.WithLabelValues(string(a), "ok").Inc()
	s.Log.Info("order transition",
		zap.String("order_id", id), zap.String("action", string(a)), zap.String("status", string(out.Status)))

	notify.OrderEvent(ctx, s.Notifier, a, &out, note)
	return &out, nil
}

func (s *Service) GetOrder(ctx context.Context, id string) (*orders.Order, error) {
	o, err := s.Store.GetOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("order %s: %w", id, err)
	}
	return o, nil
}

func (s *Service) ListOrders(ctx context.Context, f orders.OrderFilter) ([]orders.Order, error) {
	return s.Store.ListOrders(ctx, f)
}
