// Package memory provides an in-memory Store implementation for unit
// testing.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hookline/hookline"
	"github.com/hookline/hookline/event"
	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/ledger"
	"github.com/hookline/hookline/queue"
	"github.com/hookline/hookline/store"
	"github.com/hookline/hookline/subscription"
)

// compile-time interface check.
var _ store.Store = (*Store)(nil)

// DefaultClaimLease is how long a claimed job stays invisible to other
// claimers before it is considered abandoned and redelivered.
const DefaultClaimLease = 30 * time.Second

type claimedJob struct {
	leaseUntil time.Time
}

// Store is an in-memory implementation of store.Store for testing.
type Store struct {
	mu sync.RWMutex

	subscriptions map[string]*subscription.Subscription // keyed by ID string
	events        map[string]*event.Event               // keyed by ID string
	attempts      []*ledger.Attempt                     // append-only
	jobs          map[string]*queue.Job                 // keyed by ID string
	jobSeq        map[string]uint64                     // enqueue order, FIFO tiebreak
	claims        map[string]claimedJob                 // claimed job IDs
	nextSeq       uint64

	claimLease time.Duration
	closed     bool
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		subscriptions: make(map[string]*subscription.Subscription),
		events:        make(map[string]*event.Event),
		jobs:          make(map[string]*queue.Job),
		jobSeq:        make(map[string]uint64),
		claims:        make(map[string]claimedJob),
		claimLease:    DefaultClaimLease,
	}
}

// SetClaimLease overrides the claim lease, for tests exercising redelivery.
func (s *Store) SetClaimLease(d time.Duration) {
	s.mu.Lock()
	s.claimLease = d
	s.mu.Unlock()
}

// Migrate is a no-op for the in-memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping is a no-op for the in-memory store.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return hookline.ErrStoreClosed
	}
	return nil
}

// Close marks the store closed.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// ──────────────────────────────────────────────────
// subscription.Store
// ──────────────────────────────────────────────────

func (s *Store) CreateSubscription(_ context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return hookline.ErrStoreClosed
	}

	s.subscriptions[sub.ID.String()] = copySubscription(sub)
	return nil
}

func (s *Store) GetSubscription(_ context.Context, subID id.ID) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, hookline.ErrStoreClosed
	}

	sub, ok := s.subscriptions[subID.String()]
	if !ok {
		return nil, hookline.ErrSubscriptionNotFound
	}
	return copySubscription(sub), nil
}

func (s *Store) UpdateSubscription(_ context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return hookline.ErrStoreClosed
	}

	key := sub.ID.String()
	if _, ok := s.subscriptions[key]; !ok {
		return hookline.ErrSubscriptionNotFound
	}

	updated := copySubscription(sub)
	updated.UpdatedAt = time.Now().UTC()
	s.subscriptions[key] = updated
	return nil
}

func (s *Store) DeleteSubscription(_ context.Context, subID id.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return hookline.ErrStoreClosed
	}

	key := subID.String()
	if _, ok := s.subscriptions[key]; !ok {
		return hookline.ErrSubscriptionNotFound
	}
	delete(s.subscriptions, key)
	return nil
}

func (s *Store) ListSubscriptions(_ context.Context, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, hookline.ErrStoreClosed
	}

	result := make([]*subscription.Subscription, 0, len(s.subscriptions))
	for _, sub := range s.subscriptions {
		if opts.EventType != "" && sub.EventType != opts.EventType {
			continue
		}
		if opts.Active != nil && sub.Active != *opts.Active {
			continue
		}
		result = append(result, copySubscription(sub))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return paginate(result, opts.Offset, opts.Limit), nil
}

func (s *Store) FindActive(_ context.Context, eventType string, now time.Time) ([]*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, hookline.ErrStoreClosed
	}

	var result []*subscription.Subscription
	for _, sub := range s.subscriptions {
		if sub.EventType != eventType || !sub.Deliverable(now) {
			continue
		}
		result = append(result, copySubscription(sub))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return result, nil
}

func (s *Store) DeactivateExpired(_ context.Context, now time.Time) ([]id.ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, hookline.ErrStoreClosed
	}

	var swept []id.ID
	for _, sub := range s.subscriptions {
		if sub.Active && sub.Expired(now) {
			sub.Active = false
			sub.UpdatedAt = now
			swept = append(swept, sub.ID)
		}
	}
	return swept, nil
}

// ──────────────────────────────────────────────────
// event.Store
// ──────────────────────────────────────────────────

func (s *Store) CreateEvent(_ context.Context, evt *event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return hookline.ErrStoreClosed
	}

	s.events[evt.ID.String()] = copyEvent(evt)
	return nil
}

func (s *Store) GetEvent(_ context.Context, evtID id.ID) (*event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, hookline.ErrStoreClosed
	}

	evt, ok := s.events[evtID.String()]
	if !ok {
		return nil, hookline.ErrEventNotFound
	}
	return copyEvent(evt), nil
}

func (s *Store) ListEvents(_ context.Context, opts event.ListOpts) ([]*event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, hookline.ErrStoreClosed
	}

	result := make([]*event.Event, 0, len(s.events))
	for _, evt := range s.events {
		if opts.Type != "" && evt.Type != opts.Type {
			continue
		}
		if opts.From != nil && evt.CreatedAt.Before(*opts.From) {
			continue
		}
		if opts.To != nil && evt.CreatedAt.After(*opts.To) {
			continue
		}
		result = append(result, copyEvent(evt))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return paginate(result, opts.Offset, opts.Limit), nil
}

// ──────────────────────────────────────────────────
// ledger.Store
// ──────────────────────────────────────────────────

func (s *Store) AppendAttempt(_ context.Context, att *ledger.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return hookline.ErrStoreClosed
	}

	s.attempts = append(s.attempts, copyAttempt(att))
	return nil
}

func (s *Store) AttemptsBySubscription(_ context.Context, subID id.ID, opts ledger.ListOpts) ([]*ledger.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, hookline.ErrStoreClosed
	}

	key := subID.String()
	var result []*ledger.Attempt
	for _, att := range s.attempts {
		if att.SubscriptionID.String() == key {
			result = append(result, copyAttempt(att))
		}
	}

	// Most recent first.
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return paginate(result, opts.Offset, opts.Limit), nil
}

func (s *Store) AttemptsByEvent(_ context.Context, evtID id.ID) ([]*ledger.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, hookline.ErrStoreClosed
	}

	key := evtID.String()
	var result []*ledger.Attempt
	for _, att := range s.attempts {
		if att.EventID.String() == key {
			result = append(result, copyAttempt(att))
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].SubscriptionID.String() != result[j].SubscriptionID.String() {
			return result[i].SubscriptionID.String() < result[j].SubscriptionID.String()
		}
		return result[i].Attempt < result[j].Attempt
	})

	return result, nil
}

func (s *Store) CountAttempts(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, hookline.ErrStoreClosed
	}
	return int64(len(s.attempts)), nil
}

// ──────────────────────────────────────────────────
// queue.Store
// ──────────────────────────────────────────────────

func (s *Store) EnqueueJob(_ context.Context, job *queue.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enqueueLocked(job)
}

func (s *Store) EnqueueJobs(_ context.Context, jobs []*queue.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, job := range jobs {
		if err := s.enqueueLocked(job); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) enqueueLocked(job *queue.Job) error {
	if s.closed {
		return hookline.ErrStoreClosed
	}

	key := job.ID.String()
	s.jobs[key] = copyJob(job)
	s.nextSeq++
	s.jobSeq[key] = s.nextSeq
	return nil
}

func (s *Store) ClaimJob(_ context.Context) (*queue.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, hookline.ErrStoreClosed
	}

	now := time.Now().UTC()

	var best *queue.Job
	var bestSeq uint64
	for key, job := range s.jobs {
		if job.NotBefore.After(now) {
			continue
		}
		if claim, ok := s.claims[key]; ok && claim.leaseUntil.After(now) {
			continue
		}

		seq := s.jobSeq[key]
		if best == nil ||
			job.NotBefore.Before(best.NotBefore) ||
			(job.NotBefore.Equal(best.NotBefore) && seq < bestSeq) {
			best = job
			bestSeq = seq
		}
	}

	if best == nil {
		return nil, queue.ErrNoJob
	}

	s.claims[best.ID.String()] = claimedJob{leaseUntil: now.Add(s.claimLease)}
	return copyJob(best), nil
}

func (s *Store) AckJob(_ context.Context, jobID id.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return hookline.ErrStoreClosed
	}

	key := jobID.String()
	if _, ok := s.jobs[key]; !ok {
		return hookline.ErrJobNotFound
	}
	delete(s.jobs, key)
	delete(s.jobSeq, key)
	delete(s.claims, key)
	return nil
}

func (s *Store) CountDueJobs(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, hookline.ErrStoreClosed
	}

	now := time.Now().UTC()
	var n int64
	for _, job := range s.jobs {
		if !job.NotBefore.After(now) {
			n++
		}
	}
	return n, nil
}

// ──────────────────────────────────────────────────
// helpers
// ──────────────────────────────────────────────────

func paginate[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func copySubscription(sub *subscription.Subscription) *subscription.Subscription {
	c := *sub
	if sub.ExpiresAt != nil {
		t := *sub.ExpiresAt
		c.ExpiresAt = &t
	}
	return &c
}

func copyEvent(evt *event.Event) *event.Event {
	c := *evt
	if evt.Payload != nil {
		c.Payload = make(map[string]any, len(evt.Payload))
		for k, v := range evt.Payload {
			c.Payload[k] = v
		}
	}
	return &c
}

func copyAttempt(att *ledger.Attempt) *ledger.Attempt {
	c := *att
	return &c
}

func copyJob(job *queue.Job) *queue.Job {
	c := *job
	return &c
}
