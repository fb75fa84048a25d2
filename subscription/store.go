package subscription

import (
	"context"
	"time"

	"github.com/hookline/hookline/id"
)

// Store defines the persistence contract for subscriptions.
type Store interface {
	// CreateSubscription persists a new subscription.
	CreateSubscription(ctx context.Context, sub *Subscription) error

	// GetSubscription returns a subscription by ID.
	GetSubscription(ctx context.Context, subID id.ID) (*Subscription, error)

	// UpdateSubscription modifies an existing subscription.
	UpdateSubscription(ctx context.Context, sub *Subscription) error

	// DeleteSubscription removes a subscription.
	DeleteSubscription(ctx context.Context, subID id.ID) error

	// ListSubscriptions returns subscriptions, optionally filtered.
	ListSubscriptions(ctx context.Context, opts ListOpts) ([]*Subscription, error)

	// FindActive returns all subscriptions with an exact event type match
	// that are active and not expired at now. This is the fan-out hot path,
	// called on every ingested event.
	FindActive(ctx context.Context, eventType string, now time.Time) ([]*Subscription, error)

	// DeactivateExpired flips active=false on every subscription whose
	// expiry has passed at now and returns the affected IDs. Idempotent:
	// already-inactive subscriptions are not touched.
	DeactivateExpired(ctx context.Context, now time.Time) ([]id.ID, error)
}
