package ledger

import (
	"context"

	"github.com/hookline/hookline/id"
)

// Store defines the persistence contract for the delivery ledger. Each
// write is a fresh row, so concurrent appends from multiple workers cannot
// lose updates.
type Store interface {
	// AppendAttempt records a delivery attempt. Must never overwrite a
	// prior row.
	AppendAttempt(ctx context.Context, att *Attempt) error

	// AttemptsBySubscription returns attempts for a subscription,
	// most recent first.
	AttemptsBySubscription(ctx context.Context, subID id.ID, opts ListOpts) ([]*Attempt, error)

	// AttemptsByEvent returns all attempts for an event in attempt order
	// (grouped by subscription, attempt number ascending).
	AttemptsByEvent(ctx context.Context, evtID id.ID) ([]*Attempt, error)

	// CountAttempts returns the total number of ledger rows.
	CountAttempts(ctx context.Context) (int64, error)
}
