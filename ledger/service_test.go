package ledger_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/hookline/hookline"
	"github.com/hookline/hookline/event"
	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/internal/entity"
	"github.com/hookline/hookline/ledger"
	"github.com/hookline/hookline/store/memory"
	"github.com/hookline/hookline/subscription"
)

type fixture struct {
	svc   *ledger.Service
	store *memory.Store
	evtID id.ID
	subID id.ID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	s := memory.New()

	sub := &subscription.Subscription{
		Entity:    entity.New(),
		ID:        id.NewSubscriptionID(),
		TargetURL: "https://example.com/hook",
		EventType: "order.created",
		Secret:    "whsec_ledger_test",
		Active:    true,
	}
	if err := s.CreateSubscription(ctx, sub); err != nil {
		t.Fatal(err)
	}

	evt := &event.Event{
		Entity:  entity.New(),
		ID:      id.NewEventID(),
		Type:    "order.created",
		Payload: map[string]any{"k": "v"},
	}
	if err := s.CreateEvent(ctx, evt); err != nil {
		t.Fatal(err)
	}

	return &fixture{
		svc:   ledger.NewService(s, slog.Default()),
		store: s,
		evtID: evt.ID,
		subID: sub.ID,
	}
}

func (f *fixture) append(t *testing.T, attempt int, status ledger.Status) {
	t.Helper()
	att := &ledger.Attempt{
		ID:             id.NewAttemptID(),
		EventID:        f.evtID,
		SubscriptionID: f.subID,
		Attempt:        attempt,
		Status:         status,
	}
	att.CreatedAt = time.Now().UTC().Add(time.Duration(attempt) * time.Millisecond)
	if err := f.store.AppendAttempt(context.Background(), att); err != nil {
		t.Fatal(err)
	}
}

func TestBySubscriptionUnknownID(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.BySubscription(context.Background(), id.NewSubscriptionID(), ledger.ListOpts{})
	if !errors.Is(err, hookline.ErrSubscriptionNotFound) {
		t.Errorf("err = %v, want ErrSubscriptionNotFound", err)
	}
}

func TestByEventUnknownID(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ByEvent(context.Background(), id.NewEventID())
	if !errors.Is(err, hookline.ErrEventNotFound) {
		t.Errorf("err = %v, want ErrEventNotFound", err)
	}
}

func TestEmptyHistoryIsNotAnError(t *testing.T) {
	f := newFixture(t)

	atts, err := f.svc.BySubscription(context.Background(), f.subID, ledger.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(atts) != 0 {
		t.Errorf("got %d rows for fresh subscription, want 0", len(atts))
	}
}

func TestPairStatusProgression(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	status, err := f.svc.PairStatus(ctx, f.evtID, f.subID)
	if err != nil {
		t.Fatal(err)
	}
	if status != ledger.StatusPending {
		t.Errorf("no rows: status = %s, want pending", status)
	}

	f.append(t, 1, ledger.StatusFailed)
	status, err = f.svc.PairStatus(ctx, f.evtID, f.subID)
	if err != nil {
		t.Fatal(err)
	}
	if status != ledger.StatusFailed {
		t.Errorf("after failed row: status = %s, want failed", status)
	}

	f.append(t, 2, ledger.StatusSuccess)
	status, err = f.svc.PairStatus(ctx, f.evtID, f.subID)
	if err != nil {
		t.Fatal(err)
	}
	if status != ledger.StatusSuccess {
		t.Errorf("after success row: status = %s, want success", status)
	}

	// A different subscription's rows do not bleed into the pair.
	other := id.NewSubscriptionID()
	status, err = f.svc.PairStatus(ctx, f.evtID, other)
	if err != nil {
		t.Fatal(err)
	}
	if status != ledger.StatusPending {
		t.Errorf("other pair: status = %s, want pending", status)
	}
}

func TestBySubscriptionPagination(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for i := 1; i <= 5; i++ {
		f.append(t, i, ledger.StatusFailed)
	}

	page, err := f.svc.BySubscription(ctx, f.subID, ledger.ListOpts{Offset: 1, Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 {
		t.Fatalf("page size = %d, want 2", len(page))
	}
	// Most recent first: attempts 5,4,3,2,1 → offset 1 limit 2 → 4,3.
	if page[0].Attempt != 4 || page[1].Attempt != 3 {
		t.Errorf("page = [%d, %d], want [4, 3]", page[0].Attempt, page[1].Attempt)
	}
}
