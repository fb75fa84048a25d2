package subscription_test

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hookline/hookline"
	"github.com/hookline/hookline/cache"
	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/store/memory"
	"github.com/hookline/hookline/subscription"
)

// countingStore wraps the memory store and counts GetSubscription calls so
// tests can tell cache hits from store loads.
type countingStore struct {
	subscription.Store
	gets atomic.Int64
}

func (c *countingStore) GetSubscription(ctx context.Context, subID id.ID) (*subscription.Subscription, error) {
	c.gets.Add(1)
	return c.Store.GetSubscription(ctx, subID)
}

func seedSub(t *testing.T, s subscription.Store) *subscription.Subscription {
	t.Helper()
	sub := &subscription.Subscription{
		ID:        id.NewSubscriptionID(),
		TargetURL: "https://example.com/hook",
		EventType: "order.created",
		Secret:    "whsec_cache_test",
		Active:    true,
		RateLimit: 3,
	}
	sub.CreatedAt = time.Now().UTC()
	sub.UpdatedAt = sub.CreatedAt
	if err := s.CreateSubscription(context.Background(), sub); err != nil {
		t.Fatal(err)
	}
	return sub
}

func TestCacheReadThrough(t *testing.T) {
	ctx := context.Background()
	cs := &countingStore{Store: memory.New()}
	c := subscription.NewCache(cache.NewMemory(), cs, slog.Default())

	sub := seedSub(t, cs.Store)

	got, err := c.Get(ctx, sub.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Secret != sub.Secret {
		t.Error("cached snapshot must carry the secret for the hot path")
	}
	if got.RateLimit != sub.RateLimit {
		t.Errorf("RateLimit = %d, want %d", got.RateLimit, sub.RateLimit)
	}
	if cs.gets.Load() != 1 {
		t.Fatalf("store loads = %d after first Get, want 1", cs.gets.Load())
	}

	// Second read is served from cache.
	if _, err := c.Get(ctx, sub.ID); err != nil {
		t.Fatal(err)
	}
	if cs.gets.Load() != 1 {
		t.Errorf("store loads = %d after cached Get, want 1", cs.gets.Load())
	}
}

func TestCacheInvalidateForcesReload(t *testing.T) {
	ctx := context.Background()
	cs := &countingStore{Store: memory.New()}
	c := subscription.NewCache(cache.NewMemory(), cs, slog.Default())

	sub := seedSub(t, cs.Store)
	if _, err := c.Get(ctx, sub.ID); err != nil {
		t.Fatal(err)
	}

	// Write around the cache, then invalidate: next read sees the store.
	sub.TargetURL = "https://example.com/v2"
	if err := cs.Store.UpdateSubscription(ctx, sub); err != nil {
		t.Fatal(err)
	}
	if err := c.Invalidate(ctx, sub.ID); err != nil {
		t.Fatal(err)
	}

	got, err := c.Get(ctx, sub.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.TargetURL != "https://example.com/v2" {
		t.Errorf("TargetURL = %q after invalidation, want fresh value", got.TargetURL)
	}
	if cs.gets.Load() != 2 {
		t.Errorf("store loads = %d, want 2", cs.gets.Load())
	}
}

func TestCacheMissNeverCached(t *testing.T) {
	ctx := context.Background()
	cs := &countingStore{Store: memory.New()}
	c := subscription.NewCache(cache.NewMemory(), cs, slog.Default())

	missing := id.NewSubscriptionID()
	if _, err := c.Get(ctx, missing); !errors.Is(err, hookline.ErrSubscriptionNotFound) {
		t.Fatalf("err = %v, want ErrSubscriptionNotFound", err)
	}
	if _, err := c.Get(ctx, missing); !errors.Is(err, hookline.ErrSubscriptionNotFound) {
		t.Fatalf("err = %v, want ErrSubscriptionNotFound", err)
	}
	// Every miss hits the store: not-found is not a cacheable state.
	if cs.gets.Load() != 2 {
		t.Errorf("store loads = %d, want 2", cs.gets.Load())
	}
}

func TestCacheServiceMutationsInvalidate(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	c := subscription.NewCache(cache.NewMemory(), s, slog.Default())
	svc := subscription.NewService(s, c, slog.Default())

	sub, err := svc.Create(ctx, subscription.Input{
		TargetURL: "https://example.com/hook",
		EventType: "order.created",
	})
	if err != nil {
		t.Fatal(err)
	}

	// Warm the cache.
	if _, err := c.Get(ctx, sub.ID); err != nil {
		t.Fatal(err)
	}

	newURL := "https://example.com/v2"
	if _, err := svc.Update(ctx, sub.ID, subscription.Patch{TargetURL: &newURL}); err != nil {
		t.Fatal(err)
	}

	got, err := c.Get(ctx, sub.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.TargetURL != newURL {
		t.Errorf("read after update = %q, want %q", got.TargetURL, newURL)
	}

	if err := svc.Delete(ctx, sub.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Get(ctx, sub.ID); !errors.Is(err, hookline.ErrSubscriptionNotFound) {
		t.Errorf("read after delete = %v, want ErrSubscriptionNotFound", err)
	}
}
