package subscription

import "time"

// Input is the creation payload for subscriptions.
type Input struct {
	// TargetURL is the callback URL. Required.
	TargetURL string `json:"target_url"`

	// EventType is the exact-match event type filter. Required.
	EventType string `json:"event_type"`

	// Secret is the HMAC signing secret. Auto-generated if empty.
	Secret string `json:"secret_key"`

	// RateLimit is the maximum deliveries per second. 0 means unlimited.
	RateLimit int `json:"rate_limit"`

	// ExpiresAt is when the subscription lapses. Nil means never.
	ExpiresAt *time.Time `json:"expiry,omitempty"`
}

// Patch is a partial update: only non-nil fields change.
type Patch struct {
	TargetURL *string    `json:"target_url,omitempty"`
	EventType *string    `json:"event_type,omitempty"`
	Secret    *string    `json:"secret_key,omitempty"`
	Active    *bool      `json:"is_active,omitempty"`
	RateLimit *int       `json:"rate_limit,omitempty"`
	ExpiresAt *time.Time `json:"expiry,omitempty"`
}
