package subscription

import (
	"time"

	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/internal/entity"
)

// Subscription is a registered target wanting delivery of events of a
// given type.
type Subscription struct {
	entity.Entity

	// ID is the unique TypeID for this subscription.
	ID id.ID `json:"id"`

	// TargetURL is the callback URL deliveries are POSTed to.
	TargetURL string `json:"target_url"`

	// EventType is the exact-match event type filter.
	EventType string `json:"event_type"`

	// Secret is the HMAC signing secret. Never serialized.
	Secret string `json:"-"`

	// Active indicates whether the subscription receives new deliveries.
	Active bool `json:"active"`

	// RateLimit is the maximum deliveries per second. 0 means unlimited.
	RateLimit int `json:"rate_limit"`

	// ExpiresAt is when the subscription lapses. Nil means never.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the subscription's lifetime has passed at now.
func (s *Subscription) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && s.ExpiresAt.Before(now)
}

// Deliverable reports whether the subscription may receive new deliveries
// at now: active and not expired.
func (s *Subscription) Deliverable(now time.Time) bool {
	return s.Active && !s.Expired(now)
}

// ListOpts configures filtering and pagination for subscription listing.
type ListOpts struct {
	Offset    int
	Limit     int
	EventType string
	Active    *bool
}
