package queue

import (
	"context"
	"errors"

	"github.com/hookline/hookline/id"
)

// ErrNoJob is returned by ClaimJob when no job is eligible right now.
var ErrNoJob = errors.New("queue: no eligible job")

// Store defines the durable queue contract.
//
// Claim semantics are at-least-once: a claimed job becomes invisible to
// other claimers for the store's claim lease. A worker that crashes between
// claim and ack leaves the job to reappear once the lease lapses, so a
// delivery may be repeated; consumers must tolerate duplicates.
type Store interface {
	// EnqueueJob admits a job. Non-blocking, durable before returning.
	EnqueueJob(ctx context.Context, job *Job) error

	// EnqueueJobs admits a batch of jobs (event fan-out).
	EnqueueJobs(ctx context.Context, jobs []*Job) error

	// ClaimJob atomically claims the eligible job with the smallest
	// NotBefore (FIFO among equals). A job is eligible when
	// NotBefore <= now and it is unclaimed or its claim lease has lapsed.
	// Returns ErrNoJob when nothing is eligible; never returns the same
	// job to two concurrent claimers.
	ClaimJob(ctx context.Context) (*Job, error)

	// AckJob removes a claimed job after its outcome is recorded.
	AckJob(ctx context.Context, jobID id.ID) error

	// CountDueJobs returns the number of jobs with NotBefore <= now,
	// claimed or not.
	CountDueJobs(ctx context.Context) (int64, error)
}
