// Package sweep deactivates subscriptions whose lifetime has passed.
package sweep

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hookline/hookline/observability"
	"github.com/hookline/hookline/subscription"
)

// Sweeper periodically scans the subscription store for expired, still
// active subscriptions, flips them inactive, and invalidates their cache
// entries. It only touches the store and cache, never the queue or ledger;
// jobs already in flight for a swept subscription complete or exhaust on
// their own.
type Sweeper struct {
	store    subscription.Store
	cache    *subscription.Cache
	interval time.Duration
	metrics  *observability.Metrics
	logger   *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a sweeper. An interval <= 0 disables the internal ticker;
// Sweep can still be driven by an external scheduler.
func New(store subscription.Store, cache *subscription.Cache, interval time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:    store,
		cache:    cache,
		interval: interval,
		metrics:  metrics,
		logger:   logger,
	}
}

// Start begins the periodic sweep loop. No-op when the interval is disabled.
func (s *Sweeper) Start(ctx context.Context) {
	if s.interval <= 0 {
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.Sweep(ctx); err != nil {
					s.logger.ErrorContext(ctx, "expiry sweep failed", "error", err)
				}
			}
		}
	}()
}

// Stop cancels the sweep loop and waits for an in-progress sweep.
func (s *Sweeper) Stop(_ context.Context) {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// Sweep runs one pass: deactivate every expired active subscription and
// invalidate its cache entry. Idempotent — already-deactivated
// subscriptions are not touched. Returns the number swept.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	swept, err := s.store.DeactivateExpired(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}

	for _, subID := range swept {
		if err := s.cache.Invalidate(ctx, subID); err != nil {
			s.logger.ErrorContext(ctx, "cache invalidation failed",
				"subscription_id", subID, "error", err)
		}
	}

	if len(swept) > 0 {
		if s.metrics != nil {
			s.metrics.SweptSubscriptions.Add(float64(len(swept)))
		}
		s.logger.DebugContext(ctx, "expired subscriptions deactivated", "count", len(swept))
	}

	return len(swept), nil
}
