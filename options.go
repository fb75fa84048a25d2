package hookline

import (
	"log/slog"
	"time"

	"github.com/hookline/hookline/cache"
	"github.com/hookline/hookline/observability"
	"github.com/hookline/hookline/store"
)

// Option configures a Hookline instance.
type Option func(*Hookline) error

// WithStore sets the persistence backend.
func WithStore(s store.Store) Option {
	return func(h *Hookline) error {
		h.store = s
		return nil
	}
}

// WithCacheKV sets the key-value backend for the subscription cache.
// Defaults to an in-process map.
func WithCacheKV(kv cache.KV) Option {
	return func(h *Hookline) error {
		h.kv = kv
		return nil
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hookline) error {
		h.logger = logger
		return nil
	}
}

// WithWorkers sets the number of dispatch worker goroutines.
func WithWorkers(n int) Option {
	return func(h *Hookline) error {
		h.config.Workers = n
		return nil
	}
}

// WithPollInterval sets how long an idle worker waits before re-checking
// the queue.
func WithPollInterval(d time.Duration) Option {
	return func(h *Hookline) error {
		h.config.PollInterval = d
		return nil
	}
}

// WithRequestTimeout sets the HTTP timeout per delivery attempt.
func WithRequestTimeout(d time.Duration) Option {
	return func(h *Hookline) error {
		h.config.RequestTimeout = d
		return nil
	}
}

// WithMaxAttempts sets the delivery attempt budget per (event,
// subscription) pair.
func WithMaxAttempts(n int) Option {
	return func(h *Hookline) error {
		h.config.MaxAttempts = n
		return nil
	}
}

// WithBackoff sets the retry backoff base delay and cap.
func WithBackoff(base, max time.Duration) Option {
	return func(h *Hookline) error {
		h.config.BackoffBase = base
		h.config.BackoffMax = max
		return nil
	}
}

// WithSweepInterval sets how often the expiry sweeper runs. 0 disables the
// internal ticker.
func WithSweepInterval(d time.Duration) Option {
	return func(h *Hookline) error {
		h.config.SweepInterval = d
		return nil
	}
}

// WithShutdownTimeout sets the maximum time to wait for in-flight
// deliveries on shutdown.
func WithShutdownTimeout(d time.Duration) Option {
	return func(h *Hookline) error {
		h.config.ShutdownTimeout = d
		return nil
	}
}

// WithMetrics sets the metric instruments.
func WithMetrics(m *observability.Metrics) Option {
	return func(h *Hookline) error {
		h.metrics = m
		return nil
	}
}

// WithTracer sets the OpenTelemetry tracer.
func WithTracer(t *observability.Tracer) Option {
	return func(h *Hookline) error {
		h.tracer = t
		return nil
	}
}
