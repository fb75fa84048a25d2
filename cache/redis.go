package cache

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
)

// compile-time interface check.
var _ KV = (*Redis)(nil)

// Redis is a KV backed by a Redis server, for sharing the subscription
// cache across processes.
type Redis struct {
	rdb    goredis.UniversalClient
	prefix string
}

// NewRedis creates a Redis-backed KV. All keys are stored under the given
// prefix (e.g. "hookline:cache:").
func NewRedis(rdb goredis.UniversalClient, prefix string) *Redis {
	return &Redis{rdb: rdb, prefix: prefix}
}

// Get returns the value for key, or ErrMiss.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := r.rdb.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("cache/redis: get %q: %w", key, err)
	}
	return v, nil
}

// Set stores the value for key with no expiry.
func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	if err := r.rdb.Set(ctx, r.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("cache/redis: set %q: %w", key, err)
	}
	return nil
}

// Delete removes any entry for key.
func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.rdb.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("cache/redis: delete %q: %w", key, err)
	}
	return nil
}
