package event

import (
	"context"

	"github.com/hookline/hookline/id"
)

// Store defines the persistence contract for the event log. The log is
// append-only: there is no update or delete operation.
type Store interface {
	// CreateEvent appends an event. Must be durable before returning.
	CreateEvent(ctx context.Context, evt *Event) error

	// GetEvent returns an event by ID.
	GetEvent(ctx context.Context, evtID id.ID) (*Event, error)

	// ListEvents returns events, optionally filtered by type or time range,
	// newest first.
	ListEvents(ctx context.Context, opts ListOpts) ([]*Event, error)
}
