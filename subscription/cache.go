package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hookline/hookline/cache"
	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/internal/entity"
)

// snapshot is the serialization contract for cached subscriptions. It is a
// point-in-time copy decoupled from the in-process object graph, so the
// cache can sit on any key-value backend.
type snapshot struct {
	ID        string     `json:"id"`
	TargetURL string     `json:"target_url"`
	EventType string     `json:"event_type"`
	Secret    string     `json:"secret"`
	Active    bool       `json:"active"`
	RateLimit int        `json:"rate_limit"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Cache is a read-through cache over the subscription store.
//
// Entries carry no TTL: a cached subscription is a point-in-time snapshot
// whose staleness is bounded solely by the explicit Invalidate call every
// mutating operation performs before acknowledging success.
type Cache struct {
	kv     cache.KV
	store  Store
	logger *slog.Logger
}

// NewCache creates a read-through cache backed by the given KV and store.
func NewCache(kv cache.KV, store Store, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{kv: kv, store: store, logger: logger}
}

// Get returns the cached subscription snapshot if present, else loads from
// the store, populates the cache, and returns the fresh copy. A store miss
// propagates unchanged (not-found is never cached).
func (c *Cache) Get(ctx context.Context, subID id.ID) (*Subscription, error) {
	key := subID.String()

	if raw, err := c.kv.Get(ctx, key); err == nil {
		if sub, decodeErr := decodeSnapshot(raw); decodeErr == nil {
			return sub, nil
		}
		// Undecodable entry: drop it and fall through to the store.
		_ = c.kv.Delete(ctx, key)
	} else if !errors.Is(err, cache.ErrMiss) {
		// A degraded cache backend must not take reads down with it.
		c.logger.WarnContext(ctx, "subscription cache read failed", "subscription_id", key, "error", err)
	}

	sub, err := c.store.GetSubscription(ctx, subID)
	if err != nil {
		return nil, err
	}

	if raw, encodeErr := encodeSnapshot(sub); encodeErr == nil {
		if setErr := c.kv.Set(ctx, key, raw); setErr != nil {
			c.logger.WarnContext(ctx, "subscription cache populate failed", "subscription_id", key, "error", setErr)
		}
	}

	return sub, nil
}

// Invalidate removes any cached entry for the subscription unconditionally.
func (c *Cache) Invalidate(ctx context.Context, subID id.ID) error {
	return c.kv.Delete(ctx, subID.String())
}

func encodeSnapshot(sub *Subscription) ([]byte, error) {
	return json.Marshal(snapshot{
		ID:        sub.ID.String(),
		TargetURL: sub.TargetURL,
		EventType: sub.EventType,
		Secret:    sub.Secret,
		Active:    sub.Active,
		RateLimit: sub.RateLimit,
		ExpiresAt: sub.ExpiresAt,
		CreatedAt: sub.CreatedAt,
		UpdatedAt: sub.UpdatedAt,
	})
}

func decodeSnapshot(raw []byte) (*Subscription, error) {
	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, err
	}

	subID, err := id.Parse(snap.ID)
	if err != nil {
		return nil, err
	}

	return &Subscription{
		Entity:    entity.Entity{CreatedAt: snap.CreatedAt, UpdatedAt: snap.UpdatedAt},
		ID:        subID,
		TargetURL: snap.TargetURL,
		EventType: snap.EventType,
		Secret:    snap.Secret,
		Active:    snap.Active,
		RateLimit: snap.RateLimit,
		ExpiresAt: snap.ExpiresAt,
	}, nil
}
