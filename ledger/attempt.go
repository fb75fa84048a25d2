// Package ledger defines the append-only record of delivery attempts and
// the query service over it.
package ledger

import (
	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/internal/entity"
)

// Status is the recorded outcome of a delivery attempt.
type Status string

const (
	// StatusPending is the implied state of an (event, subscription) pair
	// before it reaches a terminal row. It is reported by pair-status
	// queries but never written as a ledger row.
	StatusPending Status = "pending"

	// StatusSuccess indicates the target acknowledged the delivery (2xx).
	// Terminal for the pair.
	StatusSuccess Status = "success"

	// StatusFailed indicates a failed attempt that has a retry scheduled,
	// or a terminal short-circuit for a subscription that became
	// undeliverable while the job was in flight.
	StatusFailed Status = "failed"

	// StatusExhausted indicates the attempt budget was consumed on a
	// still-failing delivery. Terminal for the pair.
	StatusExhausted Status = "exhausted"
)

// Attempt is one outbound try to deliver one event to one subscription.
// The ledger is append-only: each attempt writes a fresh row and no row is
// ever overwritten.
type Attempt struct {
	entity.Entity

	// ID is the unique TypeID for this attempt.
	ID id.ID `json:"id"`

	// EventID references the event being delivered.
	EventID id.ID `json:"event_id"`

	// SubscriptionID references the target subscription.
	SubscriptionID id.ID `json:"subscription_id"`

	// Attempt is the 1-based attempt number. For a given (event,
	// subscription) pair the numbers form a contiguous increasing sequence.
	Attempt int `json:"attempt"`

	// Status is the recorded outcome.
	Status Status `json:"status"`

	// StatusCode is the HTTP status of the attempt. 0 means the call never
	// produced a response (transport failure).
	StatusCode int `json:"status_code,omitempty"`

	// Error is the failure detail, empty on success.
	Error string `json:"error,omitempty"`
}

// ListOpts configures pagination for attempt queries.
type ListOpts struct {
	Offset int
	Limit  int
}
