package ledger

import (
	"context"
	"log/slog"

	"github.com/hookline/hookline/event"
	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/subscription"
)

// QueryStore is the persistence surface the query service needs: the ledger
// itself plus existence checks on the referenced entities, so an unknown ID
// surfaces as not-found rather than an empty list silently mistaken for
// "zero attempts so far".
type QueryStore interface {
	Store

	GetEvent(ctx context.Context, evtID id.ID) (*event.Event, error)
	GetSubscription(ctx context.Context, subID id.ID) (*subscription.Subscription, error)
}

// Service answers delivery-history queries over the ledger.
type Service struct {
	store  QueryStore
	logger *slog.Logger
}

// NewService creates a new ledger query service.
func NewService(store QueryStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// BySubscription returns the delivery attempts for a subscription, most
// recent first. Unknown subscription IDs yield the store's not-found error.
func (svc *Service) BySubscription(ctx context.Context, subID id.ID, opts ListOpts) ([]*Attempt, error) {
	if _, err := svc.store.GetSubscription(ctx, subID); err != nil {
		return nil, err
	}

	return svc.store.AttemptsBySubscription(ctx, subID, opts)
}

// ByEvent returns all delivery attempts for an event in attempt order.
// Unknown event IDs yield the store's not-found error.
func (svc *Service) ByEvent(ctx context.Context, evtID id.ID) ([]*Attempt, error) {
	if _, err := svc.store.GetEvent(ctx, evtID); err != nil {
		return nil, err
	}

	return svc.store.AttemptsByEvent(ctx, evtID)
}

// PairStatus summarizes the state of one (event, subscription) pair:
// StatusPending until a terminal row exists, then the terminal status.
// StatusFailed is reported while a retry is scheduled.
func (svc *Service) PairStatus(ctx context.Context, evtID, subID id.ID) (Status, error) {
	attempts, err := svc.ByEvent(ctx, evtID)
	if err != nil {
		return "", err
	}

	status := StatusPending
	latest := 0
	for _, att := range attempts {
		if att.SubscriptionID.String() != subID.String() {
			continue
		}
		if att.Attempt >= latest {
			latest = att.Attempt
			status = att.Status
		}
	}

	return status, nil
}
