package hookline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hookline/hookline/cache"
	"github.com/hookline/hookline/dispatch"
	"github.com/hookline/hookline/event"
	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/internal/entity"
	"github.com/hookline/hookline/ledger"
	"github.com/hookline/hookline/observability"
	"github.com/hookline/hookline/queue"
	"github.com/hookline/hookline/signature"
	"github.com/hookline/hookline/store"
	"github.com/hookline/hookline/subscription"
	"github.com/hookline/hookline/sweep"
)

// Hookline is the root webhook delivery engine.
type Hookline struct {
	config  Config
	store   store.Store
	kv      cache.KV
	metrics *observability.Metrics
	tracer  *observability.Tracer
	logger  *slog.Logger

	subCache  *subscription.Cache
	subSvc    *subscription.Service
	ledgerSvc *ledger.Service
	queue     *queue.Queue
	engine    *dispatch.Engine
	sweeper   *sweep.Sweeper
}

// New creates a new Hookline with the given options.
func New(opts ...Option) (*Hookline, error) {
	h := &Hookline{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(h); err != nil {
			return nil, err
		}
	}
	if h.store == nil {
		return nil, ErrNoStore
	}
	if h.kv == nil {
		h.kv = cache.NewMemory()
	}
	h.wireServices()
	return h, nil
}

// wireServices initializes the internal services after options have been
// applied.
func (h *Hookline) wireServices() {
	h.subCache = subscription.NewCache(h.kv, h.store, h.logger)
	h.subSvc = subscription.NewService(h.store, h.subCache, h.logger)
	h.ledgerSvc = ledger.NewService(h.store, h.logger)
	h.queue = queue.New(h.store, h.config.PollInterval)

	h.engine = dispatch.NewEngine(h.queue, h.store, h.subCache, dispatch.EngineConfig{
		Workers:        h.config.Workers,
		RequestTimeout: h.config.RequestTimeout,
		MaxAttempts:    h.config.MaxAttempts,
		BackoffBase:    h.config.BackoffBase,
		BackoffMax:     h.config.BackoffMax,
		Metrics:        h.metrics,
		Tracer:         h.tracer,
	}, h.logger)

	h.sweeper = sweep.New(h.store, h.subCache, h.config.SweepInterval, h.metrics, h.logger)
}

// Start begins the dispatch worker pool and the expiry sweeper.
func (h *Hookline) Start(ctx context.Context) {
	h.engine.Start(ctx)
	h.sweeper.Start(ctx)
}

// Stop gracefully shuts down the sweeper and the worker pool, waiting for
// in-flight deliveries.
func (h *Hookline) Stop(ctx context.Context) {
	h.sweeper.Stop(ctx)
	h.engine.Stop(ctx)
}

// IngestInput is the ingestion-boundary request: an event submitted on
// behalf of a registered subscriber, authenticated with that subscriber's
// signing secret.
type IngestInput struct {
	// SubscriptionID identifies the credential used to authenticate the
	// caller.
	SubscriptionID id.ID

	// EventType is the event type name.
	EventType string

	// Payload is the structured event data.
	Payload map[string]any

	// Signature is the caller-supplied digest over the canonical payload.
	Signature string
}

// Ingest authenticates and accepts an event, then fans out one delivery
// job per matching active subscription.
//
// The critical path:
//  1. Resolve the authenticating subscription (via the cache).
//  2. Canonicalize the payload; reject malformed data.
//  3. Verify the caller's signature against the subscription secret —
//     BEFORE anything is persisted. A failed check rejects the event
//     outright; nothing reaches the log or the queue.
//  4. Append the event to the log.
//  5. Enqueue one first-attempt job per matching active subscription.
func (h *Hookline) Ingest(ctx context.Context, in IngestInput) (*event.Event, error) {
	sub, err := h.subCache.Get(ctx, in.SubscriptionID)
	if err != nil {
		return nil, err
	}

	if in.EventType == "" {
		return nil, fmt.Errorf("%w: event type is required", ErrInvalidPayload)
	}

	canonical, err := signature.Canonicalize(in.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPayload, err.Error())
	}

	if !signature.Verify(canonical, in.Signature, sub.Secret) {
		return nil, ErrUnauthenticated
	}

	evt := &event.Event{
		Entity:  entity.New(),
		ID:      id.NewEventID(),
		Type:    in.EventType,
		Payload: in.Payload,
	}

	if err := h.store.CreateEvent(ctx, evt); err != nil {
		return nil, fmt.Errorf("hookline: persist event: %w", err)
	}

	if h.metrics != nil {
		h.metrics.EventsIngested.Inc()
	}

	targets, err := h.subSvc.FindActive(ctx, evt.Type)
	if err != nil {
		return nil, fmt.Errorf("hookline: resolve subscriptions: %w", err)
	}

	if len(targets) == 0 {
		return evt, nil // no matching subscriptions — nothing to deliver
	}

	jobs := make([]*queue.Job, 0, len(targets))
	for _, target := range targets {
		jobs = append(jobs, queue.NewJob(evt.ID, target.ID))
	}

	if err := h.queue.EnqueueBatch(ctx, jobs); err != nil {
		return nil, fmt.Errorf("hookline: enqueue deliveries: %w", err)
	}

	h.logger.DebugContext(ctx, "event ingested",
		"event_id", evt.ID,
		"type", evt.Type,
		"subscriptions", len(targets),
	)

	return evt, nil
}

// Subscriptions returns the subscription management service.
func (h *Hookline) Subscriptions() *subscription.Service {
	return h.subSvc
}

// Deliveries returns the delivery-history query service.
func (h *Hookline) Deliveries() *ledger.Service {
	return h.ledgerSvc
}

// Events returns events from the log for audit queries.
func (h *Hookline) Events(ctx context.Context, opts event.ListOpts) ([]*event.Event, error) {
	return h.store.ListEvents(ctx, opts)
}

// Sweeper returns the expiry sweeper, so an external scheduler can invoke
// Sweep directly instead of the internal ticker.
func (h *Hookline) Sweeper() *sweep.Sweeper {
	return h.sweeper
}

// Store returns the underlying store.
func (h *Hookline) Store() store.Store {
	return h.store
}
