package redis

import (
	"context"
	"sort"
	"time"

	"github.com/hookline/hookline"
	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/subscription"
)

// subscriptionRecord is the persisted form of a subscription. The domain
// type hides the secret from JSON; the record carries it explicitly.
type subscriptionRecord struct {
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

func recordFromSubscription(sub *subscription.Subscription) *subscriptionRecord {
	return &subscriptionRecord{
		ID:        sub.ID.String(),
		TargetURL: sub.TargetURL,
		EventType: sub.EventType,
		Secret:    sub.Secret,
		Active:    sub.Active,
		RateLimit: sub.RateLimit,
		ExpiresAt: sub.ExpiresAt,
		CreatedAt: sub.CreatedAt,
		UpdatedAt: sub.UpdatedAt,
	}
}

func (r *subscriptionRecord) toSubscription() (*subscription.Subscription, error) {
	sid, err := id.ParseWithPrefix(r.ID, id.PrefixSubscription)
	if err != nil {
		return nil, err
	}
	sub := &subscription.Subscription{
		ID:        sid,
		TargetURL: r.TargetURL,
		EventType: r.EventType,
		Secret:    r.Secret,
		Active:    r.Active,
		RateLimit: r.RateLimit,
		ExpiresAt: r.ExpiresAt,
	}
	sub.CreatedAt = r.CreatedAt
	sub.UpdatedAt = r.UpdatedAt
	return sub, nil
}

// CreateSubscription persists a new subscription and indexes it by event
// type.
func (s *Store) CreateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	if err := s.setJSON(ctx, prefixSubscription+sub.ID.String(), recordFromSubscription(sub)); err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.SAdd(ctx, setSubscriptions, sub.ID.String())
	pipe.SAdd(ctx, setSubsByType+sub.EventType, sub.ID.String())
	_, err := pipe.Exec(ctx)
	return err
}

// GetSubscription loads a subscription by id.
func (s *Store) GetSubscription(ctx context.Context, subID id.ID) (*subscription.Subscription, error) {
	var rec subscriptionRecord
	if err := s.getJSON(ctx, prefixSubscription+subID.String(), &rec); err != nil {
		if isRedisNil(err) {
			return nil, hookline.ErrSubscriptionNotFound
		}
		return nil, err
	}
	return rec.toSubscription()
}

// UpdateSubscription persists changes to an existing subscription,
// re-indexing by event type when it changed.
func (s *Store) UpdateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	prev, err := s.GetSubscription(ctx, sub.ID)
	if err != nil {
		return err
	}
	sub.UpdatedAt = now()
	if err := s.setJSON(ctx, prefixSubscription+sub.ID.String(), recordFromSubscription(sub)); err != nil {
		return err
	}
	if prev.EventType != sub.EventType {
		pipe := s.rdb.TxPipeline()
		pipe.SRem(ctx, setSubsByType+prev.EventType, sub.ID.String())
		pipe.SAdd(ctx, setSubsByType+sub.EventType, sub.ID.String())
		if _, err := pipe.Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

// DeleteSubscription removes a subscription and its index entries.
func (s *Store) DeleteSubscription(ctx context.Context, subID id.ID) error {
	sub, err := s.GetSubscription(ctx, subID)
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, prefixSubscription+subID.String())
	pipe.SRem(ctx, setSubscriptions, subID.String())
	pipe.SRem(ctx, setSubsByType+sub.EventType, subID.String())
	_, err = pipe.Exec(ctx)
	return err
}

// ListSubscriptions returns subscriptions ordered by creation time,
// oldest first, with optional event type and active filters.
func (s *Store) ListSubscriptions(ctx context.Context, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	subs, err := s.loadSubscriptionSet(ctx, setSubscriptions)
	if err != nil {
		return nil, err
	}
	filtered := subs[:0]
	for _, sub := range subs {
		if opts.EventType != "" && sub.EventType != opts.EventType {
			continue
		}
		if opts.Active != nil && sub.Active != *opts.Active {
			continue
		}
		filtered = append(filtered, sub)
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.Before(filtered[j].CreatedAt)
	})
	return paginateSubs(filtered, opts.Offset, opts.Limit), nil
}

// FindActive returns deliverable subscriptions for an event type.
func (s *Store) FindActive(ctx context.Context, eventType string, at time.Time) ([]*subscription.Subscription, error) {
	subs, err := s.loadSubscriptionSet(ctx, setSubsByType+eventType)
	if err != nil {
		return nil, err
	}
	out := subs[:0]
	for _, sub := range subs {
		if sub.Deliverable(at) {
			out = append(out, sub)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// DeactivateExpired flips active subscriptions past their expiry to
// inactive and returns their ids.
func (s *Store) DeactivateExpired(ctx context.Context, at time.Time) ([]id.ID, error) {
	subs, err := s.loadSubscriptionSet(ctx, setSubscriptions)
	if err != nil {
		return nil, err
	}
	var swept []id.ID
	for _, sub := range subs {
		if !sub.Active || !sub.Expired(at) {
			continue
		}
		sub.Active = false
		sub.UpdatedAt = now()
		if err := s.setJSON(ctx, prefixSubscription+sub.ID.String(), recordFromSubscription(sub)); err != nil {
			return swept, err
		}
		swept = append(swept, sub.ID)
	}
	return swept, nil
}

func (s *Store) loadSubscriptionSet(ctx context.Context, key string) ([]*subscription.Subscription, error) {
	ids, err := s.rdb.SMembers(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	subs := make([]*subscription.Subscription, 0, len(ids))
	for _, rawID := range ids {
		var rec subscriptionRecord
		if err := s.getJSON(ctx, prefixSubscription+rawID, &rec); err != nil {
			if isRedisNil(err) {
				// index entry outlived the value; skip
				continue
			}
			return nil, err
		}
		sub, err := rec.toSubscription()
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

func paginateSubs(subs []*subscription.Subscription, offset, limit int) []*subscription.Subscription {
	if offset >= len(subs) {
		return nil
	}
	subs = subs[offset:]
	if limit > 0 && limit < len(subs) {
		subs = subs[:limit]
	}
	return subs
}
