// Package dispatch runs the worker pool that consumes the delivery queue,
// performs outbound calls, and drives the retry state machine.
package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/hookline/hookline/event"
	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/internal/entity"
	"github.com/hookline/hookline/ledger"
	"github.com/hookline/hookline/observability"
	"github.com/hookline/hookline/queue"
	"github.com/hookline/hookline/ratelimit"
	"github.com/hookline/hookline/subscription"
)

// EngineStore is the persistence surface the engine needs per job.
type EngineStore interface {
	GetEvent(ctx context.Context, evtID id.ID) (*event.Event, error)
	AppendAttempt(ctx context.Context, att *ledger.Attempt) error
}

// EngineConfig holds engine configuration.
type EngineConfig struct {
	Workers        int
	RequestTimeout time.Duration
	MaxAttempts    int
	BackoffBase    time.Duration
	BackoffMax     time.Duration
	Metrics        *observability.Metrics
	Tracer         *observability.Tracer
}

// Engine is a fixed-size pool of workers consuming the shared queue.
// Workers never communicate with each other; the queue is the only
// coordination point. Nothing in the dispatch path is fatal to the process:
// every failure is absorbed into ledger state.
type Engine struct {
	queue   *queue.Queue
	store   EngineStore
	subs    *subscription.Cache
	sender  *Sender
	backoff *Backoff
	limiter *ratelimit.Limiter
	config  EngineConfig
	logger  *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine creates a dispatch engine.
func NewEngine(q *queue.Queue, store EngineStore, subs *subscription.Cache, cfg EngineConfig, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	return &Engine{
		queue:   q,
		store:   store,
		subs:    subs,
		sender:  NewSender(cfg.RequestTimeout),
		backoff: NewBackoff(cfg.BackoffBase, cfg.BackoffMax),
		limiter: ratelimit.New(),
		config:  cfg,
		logger:  logger,
	}
}

// Start spawns the worker pool.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)

	for i := 0; i < e.config.Workers; i++ {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.worker(ctx)
		}()
	}
}

// Stop cancels the workers and waits for in-flight deliveries to complete.
func (e *Engine) Stop(_ context.Context) {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
}

// worker loops: block on the queue, process one job, repeat.
func (e *Engine) worker(ctx context.Context) {
	for {
		job, err := e.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			e.logger.ErrorContext(ctx, "dequeue failed", "error", err)

			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		e.process(ctx, job)
	}
}

// process drives one claimed job through the attempt state machine:
// resolve → send → record → ack, re-enqueueing with backoff on retryable
// failure. The ledger row is written before the ack, so a crash in between
// re-delivers the job (at-least-once).
func (e *Engine) process(ctx context.Context, job *queue.Job) {
	var span trace.Span
	if e.config.Tracer != nil {
		ctx, span = e.config.Tracer.StartAttemptSpan(ctx,
			job.ID.String(), job.EventID.String(), job.SubscriptionID.String(), job.Attempt)
	}

	sub, err := e.subs.Get(ctx, job.SubscriptionID)
	now := time.Now().UTC()

	switch {
	case err != nil:
		e.terminate(ctx, span, job, "subscription missing")
		return
	case !sub.Active:
		e.terminate(ctx, span, job, "subscription inactive")
		return
	case sub.Expired(now):
		e.terminate(ctx, span, job, "subscription expired")
		return
	}

	if err := e.limiter.Wait(ctx, sub.ID.String(), sub.RateLimit); err != nil {
		// Shutdown while throttled: leave the job claimed, the lease will
		// lapse and another worker picks it up.
		if span != nil {
			e.config.Tracer.EndAttemptSpan(span, "requeued", 0, 0, err.Error())
		}
		return
	}

	evt, err := e.store.GetEvent(ctx, job.EventID)
	if err != nil {
		e.terminate(ctx, span, job, "event missing")
		return
	}

	res := e.sender.Send(ctx, sub, evt, job.Attempt)
	latencySeconds := float64(res.LatencyMs) / 1000.0

	att := &ledger.Attempt{
		Entity:         entity.New(),
		ID:             id.NewAttemptID(),
		EventID:        job.EventID,
		SubscriptionID: job.SubscriptionID,
		Attempt:        job.Attempt,
		StatusCode:     res.StatusCode,
		Error:          res.Error,
	}

	switch {
	case res.OK():
		att.Status = ledger.StatusSuccess
		att.Error = ""
	case job.Attempt >= e.config.MaxAttempts:
		att.Status = ledger.StatusExhausted
	default:
		att.Status = ledger.StatusFailed
	}

	if appendErr := e.store.AppendAttempt(ctx, att); appendErr != nil {
		// Without a ledger row the attempt never happened as far as the
		// state machine is concerned: keep the job claimed and let the
		// lease re-deliver it.
		e.logger.ErrorContext(ctx, "append attempt failed",
			"job_id", job.ID, "error", appendErr)
		if span != nil {
			e.config.Tracer.EndAttemptSpan(span, "requeued", res.StatusCode, res.LatencyMs, appendErr.Error())
		}
		return
	}

	if att.Status == ledger.StatusFailed {
		retry := job.Retry(time.Now().UTC().Add(e.backoff.Delay(job.Attempt)))
		if enqErr := e.queue.Enqueue(ctx, retry); enqErr != nil {
			// Acking now would strand the pair: one failed row, nothing
			// scheduled, never terminal. Leave the job claimed so the lease
			// re-delivers it; the repeated attempt row is within the
			// at-least-once contract.
			e.logger.ErrorContext(ctx, "enqueue retry failed",
				"job_id", job.ID, "attempt", job.Attempt, "error", enqErr)
			if span != nil {
				e.config.Tracer.EndAttemptSpan(span, "requeued", res.StatusCode, res.LatencyMs, enqErr.Error())
			}
			return
		}
		e.logger.DebugContext(ctx, "retry scheduled",
			"job_id", retry.ID, "attempt", retry.Attempt, "not_before", retry.NotBefore)
	}

	if ackErr := e.queue.Ack(ctx, job); ackErr != nil {
		e.logger.ErrorContext(ctx, "ack failed", "job_id", job.ID, "error", ackErr)
	}

	if e.config.Metrics != nil {
		e.config.Metrics.RecordAttempt(string(att.Status), latencySeconds)
		e.sampleDepth(ctx)
	}

	switch att.Status {
	case ledger.StatusSuccess:
		e.logger.DebugContext(ctx, "delivered",
			"job_id", job.ID, "status", res.StatusCode, "latency_ms", res.LatencyMs)
	case ledger.StatusExhausted:
		e.logger.WarnContext(ctx, "delivery exhausted",
			"job_id", job.ID, "attempts", job.Attempt, "status", res.StatusCode, "error", res.Error)
	}

	if span != nil {
		e.config.Tracer.EndAttemptSpan(span, string(att.Status), res.StatusCode, res.LatencyMs, res.Error)
	}
}

// sampleDepth refreshes the queue depth gauge.
func (e *Engine) sampleDepth(ctx context.Context) {
	depth, err := e.queue.Depth(ctx)
	if err != nil {
		return
	}
	e.config.Metrics.QueueDepth.Set(float64(depth))
}

// terminate records a terminal failed row for a job whose subscription can
// no longer receive it and removes the job. No retry is scheduled.
func (e *Engine) terminate(ctx context.Context, span trace.Span, job *queue.Job, reason string) {
	att := &ledger.Attempt{
		Entity:         entity.New(),
		ID:             id.NewAttemptID(),
		EventID:        job.EventID,
		SubscriptionID: job.SubscriptionID,
		Attempt:        job.Attempt,
		Status:         ledger.StatusFailed,
		Error:          reason,
	}

	if err := e.store.AppendAttempt(ctx, att); err != nil {
		e.logger.ErrorContext(ctx, "append terminal attempt failed",
			"job_id", job.ID, "error", err)
		if span != nil {
			e.config.Tracer.EndAttemptSpan(span, "requeued", 0, 0, err.Error())
		}
		return
	}

	if err := e.queue.Ack(ctx, job); err != nil {
		e.logger.ErrorContext(ctx, "ack failed", "job_id", job.ID, "error", err)
	}

	if e.config.Metrics != nil {
		e.config.Metrics.RecordAttempt(string(ledger.StatusFailed), 0)
		e.sampleDepth(ctx)
	}

	e.logger.DebugContext(ctx, "delivery short-circuited",
		"job_id", job.ID, "reason", reason)

	if span != nil {
		e.config.Tracer.EndAttemptSpan(span, string(ledger.StatusFailed), 0, 0, reason)
	}
}
