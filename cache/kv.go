// Package cache defines the key-value contract backing the subscription
// cache, with in-process and Redis implementations.
//
// Values are opaque serialized snapshots; the cache layer above decides the
// serialization format. Entries carry no TTL — correctness depends on
// explicit invalidation on write, not expiry.
package cache

import (
	"context"
	"errors"
)

// ErrMiss is returned by Get when no entry exists for a key.
var ErrMiss = errors.New("cache: miss")

// KV is a minimal key-value store for cached snapshots.
// Implementations must provide atomic per-key get/set/delete; cross-key
// transactions are not required.
type KV interface {
	// Get returns the value for key, or ErrMiss.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores the value for key unconditionally.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes any entry for key. Deleting an absent key is a no-op.
	Delete(ctx context.Context, key string) error
}
