// Package event defines the immutable event record and its append-only log
// contract.
package event

import (
	"time"

	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/internal/entity"
)

// Event is an immutable record of something that happened, to be fanned out
// to matching subscriptions. Once appended it is never mutated or deleted;
// events are retained for audit and delivery-status queries.
type Event struct {
	entity.Entity

	// ID is the unique TypeID for this event.
	ID id.ID `json:"id"`

	// Type is the event type name matched against subscription filters.
	Type string `json:"type"`

	// Payload is the structured event data.
	Payload map[string]any `json:"payload"`
}

// ListOpts configures filtering and pagination for event listing.
type ListOpts struct {
	Offset int
	Limit  int
	Type   string
	From   *time.Time
	To     *time.Time
}
