package subscription

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/internal/entity"
	"github.com/hookline/hookline/signature"
)

// Service provides subscription management operations.
//
// Every mutating operation invalidates the cached snapshot before returning
// success, so readers after a successful mutation observe either the old
// cached value (if they raced the invalidation) or a fresh load — never a
// value computed from a half-committed mutation.
type Service struct {
	store  Store
	cache  *Cache
	logger *slog.Logger
}

// NewService creates a new subscription service.
func NewService(store Store, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		cache:  cache,
		logger: logger,
	}
}

// Create registers a new subscription.
func (svc *Service) Create(ctx context.Context, in Input) (*Subscription, error) {
	if in.TargetURL == "" {
		return nil, &ValidationError{Field: "target_url", Message: "required"}
	}
	if _, err := url.ParseRequestURI(in.TargetURL); err != nil {
		return nil, &ValidationError{Field: "target_url", Message: "invalid URL"}
	}
	if in.EventType == "" {
		return nil, &ValidationError{Field: "event_type", Message: "required"}
	}

	secret := in.Secret
	if secret == "" {
		secret = signature.GenerateSecret()
	}

	sub := &Subscription{
		Entity:    entity.New(),
		ID:        id.NewSubscriptionID(),
		TargetURL: in.TargetURL,
		EventType: in.EventType,
		Secret:    secret,
		Active:    true,
		RateLimit: in.RateLimit,
		ExpiresAt: in.ExpiresAt,
	}

	if err := svc.store.CreateSubscription(ctx, sub); err != nil {
		return nil, err
	}

	svc.logger.DebugContext(ctx, "subscription created",
		"subscription_id", sub.ID, "event_type", sub.EventType)

	return sub, nil
}

// Get returns a subscription by ID, via the cache.
func (svc *Service) Get(ctx context.Context, subID id.ID) (*Subscription, error) {
	return svc.cache.Get(ctx, subID)
}

// Update applies a partial patch: only non-nil fields change. The cache
// entry is invalidated before success is acknowledged.
func (svc *Service) Update(ctx context.Context, subID id.ID, patch Patch) (*Subscription, error) {
	sub, err := svc.store.GetSubscription(ctx, subID)
	if err != nil {
		return nil, err
	}

	if patch.TargetURL != nil {
		if _, err := url.ParseRequestURI(*patch.TargetURL); err != nil {
			return nil, &ValidationError{Field: "target_url", Message: "invalid URL"}
		}
		sub.TargetURL = *patch.TargetURL
	}
	if patch.EventType != nil {
		if *patch.EventType == "" {
			return nil, &ValidationError{Field: "event_type", Message: "required"}
		}
		sub.EventType = *patch.EventType
	}
	if patch.Secret != nil {
		sub.Secret = *patch.Secret
	}
	if patch.Active != nil {
		sub.Active = *patch.Active
	}
	if patch.RateLimit != nil {
		sub.RateLimit = *patch.RateLimit
	}
	if patch.ExpiresAt != nil {
		sub.ExpiresAt = patch.ExpiresAt
	}

	if err := svc.store.UpdateSubscription(ctx, sub); err != nil {
		return nil, err
	}

	if err := svc.cache.Invalidate(ctx, subID); err != nil {
		return nil, err
	}

	return sub, nil
}

// Delete removes a subscription and invalidates its cache entry before
// success is acknowledged.
func (svc *Service) Delete(ctx context.Context, subID id.ID) error {
	if err := svc.store.DeleteSubscription(ctx, subID); err != nil {
		return err
	}

	return svc.cache.Invalidate(ctx, subID)
}

// List returns subscriptions matching the given options.
func (svc *Service) List(ctx context.Context, opts ListOpts) ([]*Subscription, error) {
	return svc.store.ListSubscriptions(ctx, opts)
}

// FindActive returns the subscriptions eligible for fan-out of an event of
// the given type: exact type match, active, not expired.
func (svc *Service) FindActive(ctx context.Context, eventType string) ([]*Subscription, error) {
	return svc.store.FindActive(ctx, eventType, time.Now().UTC())
}

// RotateSecret generates a new signing secret for a subscription.
func (svc *Service) RotateSecret(ctx context.Context, subID id.ID) (string, error) {
	newSecret := signature.GenerateSecret()

	if _, err := svc.Update(ctx, subID, Patch{Secret: &newSecret}); err != nil {
		return "", err
	}

	return newSecret, nil
}

// ValidationError indicates invalid input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "subscription validation: " + e.Field + ": " + e.Message
}
