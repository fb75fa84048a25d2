package queue

import (
	"context"
	"errors"
	"time"
)

// DefaultPollInterval bounds how long a blocked Dequeue waits before
// re-checking the store when no in-process enqueue signal arrives.
const DefaultPollInterval = 250 * time.Millisecond

// Queue layers blocking consumption on top of a durable Store. It is the
// only coordination point between producers and the worker pool.
type Queue struct {
	store        Store
	pollInterval time.Duration
	notify       chan struct{}
}

// New creates a queue over the given store. pollInterval <= 0 selects
// DefaultPollInterval.
func New(store Store, pollInterval time.Duration) *Queue {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Queue{
		store:        store,
		pollInterval: pollInterval,
		notify:       make(chan struct{}, 1),
	}
}

// Enqueue admits a job and wakes one idle worker. Fire-and-forget: once the
// store accepts the job, delivery is guaranteed at-least-once.
func (q *Queue) Enqueue(ctx context.Context, job *Job) error {
	if err := q.store.EnqueueJob(ctx, job); err != nil {
		return err
	}
	q.signal()
	return nil
}

// EnqueueBatch admits the fan-out of one event and wakes an idle worker.
func (q *Queue) EnqueueBatch(ctx context.Context, jobs []*Job) error {
	if len(jobs) == 0 {
		return nil
	}
	if err := q.store.EnqueueJobs(ctx, jobs); err != nil {
		return err
	}
	q.signal()
	return nil
}

// Dequeue blocks the calling worker until a job whose NotBefore has passed
// is claimed, or ctx is done. Jobs are returned in NotBefore-then-FIFO
// order with single-claim semantics.
//
// The wait is a claim loop: an in-process enqueue signal wakes it early;
// otherwise it re-checks at the poll interval, which also picks up jobs
// enqueued by other processes and retry jobs whose delay has elapsed.
func (q *Queue) Dequeue(ctx context.Context) (*Job, error) {
	for {
		job, err := q.store.ClaimJob(ctx)
		if err == nil {
			return job, nil
		}
		if !errors.Is(err, ErrNoJob) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.notify:
		case <-time.After(q.pollInterval):
		}
	}
}

// Ack removes a claimed job after its outcome is recorded in the ledger.
func (q *Queue) Ack(ctx context.Context, job *Job) error {
	return q.store.AckJob(ctx, job.ID)
}

// Depth returns the number of currently due jobs.
func (q *Queue) Depth(ctx context.Context) (int64, error) {
	return q.store.CountDueJobs(ctx)
}

// signal wakes at most one blocked Dequeue without ever blocking the
// producer.
func (q *Queue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
