package lifecycle

import (
	"context"
	"errors"
	"github.com/ariefcatur/go-farm-orders/internal/metrics"
	"github.com/ariefcatur/go-farm-orders/internal/orders"
	"github.com/ariefcatur/go-farm-orders/internal/redisx"
	"go.uber.org/zap"
	"time"
)

const DefaultSweepBatch = 100

// Sweeper promotes shipped orders past their auto-confirm deadline. Each
// order is tried on its own; losing a race to a dispute is expected and
// only logged at debug level.
type Sweeper struct {
	Lifecycle *Service
	Batch     int
	Lease     *redisx.Lease // optional, keeps replicas from scanning together
	Log       *zap.Logger
}

// RunPass scans once and returns how many orders it promoted.
func (s *Sweeper) RunPass(ctx context.Context) (int, error) {
	batch := s.Batch
	if batch <= 0 {
		batch = DefaultSweepBatch
	}
	now := s.Lifecycle.Clock.Now()
	promoted := 0

	var after *orders.DueOrder
	for {
		due, err := s.Lifecycle.Store.DueForAutoConfirm(ctx, now, after, batch)
		if err != nil {
			return promoted, err
		}
		for _, d := range due {
			_, err := s.Lifecycle.AutoConfirm(ctx, d.ID, now)
			switch {
			case err == nil:
				promoted++
				metrics.AutoConfirmed.Inc()
			case errors.Is(err, orders.ErrInvalidTransition):
				s.Log.Debug("auto-confirm skipped", zap.String("order_id", d.ID), zap.Error(err))
			default:
				s.Log.Warn("auto-confirm failed", zap.String("order_id", d.ID), zap.Error(err))
			}
			if err := ctx.Err(); err != nil {
				return promoted, err
			}
		}
		if len(due) < batch {
			return promoted, nil
		}
		after = &due[len(due)-1]
	}
}

// Run calls RunPass every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()

	s.Log.Info("auto-confirm sweeper started", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			s.Log.Info("auto-confirm sweeper stopped")
			return nil
		case <-t.C:
			s.tick(ctx)
		}
	}
}

func (s *Sweeper) tick(ctx context.Context) {
	if s.Lease != nil {
		ok, err := s.Lease.Acquire(ctx)
		if err != nil {
			s.Log.Warn("sweeper lease", zap.Error(err))
			return
		}
		if !ok {
			s.Log.Debug("sweeper lease held elsewhere")
			return
		}
		stop := s.holdLease(ctx)
		defer func() {
			stop()
			if err := s.Lease.Release(context.WithoutCancel(ctx)); err != nil {
				s.Log.Warn("sweeper lease release", zap.Error(err))
			}
		}()
	}

	start := time.Now()
	n, err := s.RunPass(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.Log.Error("auto-confirm pass", zap.Int("promoted", n), zap.Error(err))
		return
	}
	if n > 0 {
		s.Log.Info("auto-confirm pass", zap.Int("promoted", n), zap.Duration("took", time.Since(start)))
	}
}

// holdLease extends the lease every third of its TTL until stop is called.
func (s *Sweeper) holdLease(ctx context.Context) (stop func()) {
	if s.Lease.TTL <= 0 {
		return func() {}
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		t := time.NewTicker(s.Lease.TTL / 3)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				ok, err := s.Lease.Extend(ctx)
				switch {
				case ctx.Err() != nil:
					return
				case err != nil:
					s.Log.Warn("sweeper lease extend", zap.Error(err))
				case !ok:
					s.Log.Warn("sweeper lease lost")
					return
				}
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}
