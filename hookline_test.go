package hookline_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hookline/hookline"
	"github.com/hookline/hookline/event"
	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/ledger"
	"github.com/hookline/hookline/signature"
	"github.com/hookline/hookline/store/memory"
	"github.com/hookline/hookline/subscription"
)

func newEngine(t *testing.T) *hookline.Hookline {
	t.Helper()
	h, err := hookline.New(
		hookline.WithStore(memory.New()),
		hookline.WithWorkers(2),
		hookline.WithPollInterval(5*time.Millisecond),
		hookline.WithMaxAttempts(3),
		hookline.WithBackoff(time.Millisecond, 2*time.Millisecond),
		hookline.WithSweepInterval(0),
	)
	if err != nil {
		t.Fatal(err)
	}
	return h
}

// sign produces the digest a well-behaved publisher would send.
func sign(t *testing.T, payload map[string]any, secret string) string {
	t.Helper()
	canonical, err := signature.Canonicalize(payload)
	if err != nil {
		t.Fatal(err)
	}
	return signature.Sign(canonical, secret)
}

func waitForPair(t *testing.T, h *hookline.Hookline, evtID, subID id.ID, want ledger.Status) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		status, err := h.Deliveries().PairStatus(context.Background(), evtID, subID)
		if err != nil {
			t.Fatal(err)
		}
		if status == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("pair never reached status %s", want)
}

func TestNewRequiresStore(t *testing.T) {
	_, err := hookline.New()
	if !errors.Is(err, hookline.ErrNoStore) {
		t.Errorf("New() = %v, want ErrNoStore", err)
	}
}

func TestIngestToDelivery(t *testing.T) {
	ctx := context.Background()

	var received atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	h := newEngine(t)
	h.Start(ctx)
	defer h.Stop(ctx)

	sub, err := h.Subscriptions().Create(ctx, subscription.Input{
		TargetURL: srv.URL,
		EventType: "order.created",
	})
	if err != nil {
		t.Fatal(err)
	}

	payload := map[string]any{"order_id": "123", "total": 42.5}
	evt, err := h.Ingest(ctx, hookline.IngestInput{
		SubscriptionID: sub.ID,
		EventType:      "order.created",
		Payload:        payload,
		Signature:      sign(t, payload, sub.Secret),
	})
	if err != nil {
		t.Fatal(err)
	}

	waitForPair(t, h, evt.ID, sub.ID, ledger.StatusSuccess)
	if received.Load() != 1 {
		t.Errorf("target received %d calls, want 1", received.Load())
	}

	evts, err := h.Events(ctx, event.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(evts) != 1 {
		t.Errorf("event log has %d entries, want 1", len(evts))
	}
}

func TestIngestRejectsBadSignatureBeforePersistence(t *testing.T) {
	ctx := context.Background()
	h := newEngine(t)

	sub, err := h.Subscriptions().Create(ctx, subscription.Input{
		TargetURL: "https://example.com/hook",
		EventType: "order.created",
	})
	if err != nil {
		t.Fatal(err)
	}

	payload := map[string]any{"order_id": "123"}
	_, err = h.Ingest(ctx, hookline.IngestInput{
		SubscriptionID: sub.ID,
		EventType:      "order.created",
		Payload:        payload,
		Signature:      sign(t, payload, "whsec_wrong_secret"),
	})
	if !errors.Is(err, hookline.ErrUnauthenticated) {
		t.Fatalf("Ingest = %v, want ErrUnauthenticated", err)
	}

	// The rejection left no trace: no event row, no queued job.
	evts, err := h.Events(ctx, event.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(evts) != 0 {
		t.Errorf("event log has %d entries after rejection, want 0", len(evts))
	}
	due, err := h.Store().CountDueJobs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if due != 0 {
		t.Errorf("queue has %d jobs after rejection, want 0", due)
	}
}

func TestIngestUnknownSubscription(t *testing.T) {
	ctx := context.Background()
	h := newEngine(t)

	_, err := h.Ingest(ctx, hookline.IngestInput{
		SubscriptionID: id.NewSubscriptionID(),
		EventType:      "order.created",
		Payload:        map[string]any{},
	})
	if !errors.Is(err, hookline.ErrSubscriptionNotFound) {
		t.Errorf("Ingest = %v, want ErrSubscriptionNotFound", err)
	}
}

func TestIngestRejectsNonCanonicalizablePayload(t *testing.T) {
	ctx := context.Background()
	h := newEngine(t)

	sub, err := h.Subscriptions().Create(ctx, subscription.Input{
		TargetURL: "https://example.com/hook",
		EventType: "order.created",
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = h.Ingest(ctx, hookline.IngestInput{
		SubscriptionID: sub.ID,
		EventType:      "order.created",
		Payload:        map[string]any{"bad": make(chan int)},
	})
	if !errors.Is(err, hookline.ErrInvalidPayload) {
		t.Errorf("Ingest = %v, want ErrInvalidPayload", err)
	}
}

func TestIngestRequiresEventType(t *testing.T) {
	ctx := context.Background()
	h := newEngine(t)

	sub, err := h.Subscriptions().Create(ctx, subscription.Input{
		TargetURL: "https://example.com/hook",
		EventType: "order.created",
	})
	if err != nil {
		t.Fatal(err)
	}

	payload := map[string]any{"k": "v"}
	_, err = h.Ingest(ctx, hookline.IngestInput{
		SubscriptionID: sub.ID,
		Payload:        payload,
		Signature:      sign(t, payload, sub.Secret),
	})
	if !errors.Is(err, hookline.ErrInvalidPayload) {
		t.Errorf("Ingest = %v, want ErrInvalidPayload", err)
	}
}

func TestIngestFansOutToAllMatches(t *testing.T) {
	ctx := context.Background()

	var received atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	h := newEngine(t)
	h.Start(ctx)
	defer h.Stop(ctx)

	var subs []*subscription.Subscription
	for i := 0; i < 3; i++ {
		sub, err := h.Subscriptions().Create(ctx, subscription.Input{
			TargetURL: srv.URL,
			EventType: "order.created",
		})
		if err != nil {
			t.Fatal(err)
		}
		subs = append(subs, sub)
	}
	other, err := h.Subscriptions().Create(ctx, subscription.Input{
		TargetURL: srv.URL,
		EventType: "order.deleted",
	})
	if err != nil {
		t.Fatal(err)
	}

	payload := map[string]any{"order_id": "123"}
	evt, err := h.Ingest(ctx, hookline.IngestInput{
		SubscriptionID: subs[0].ID,
		EventType:      "order.created",
		Payload:        payload,
		Signature:      sign(t, payload, subs[0].Secret),
	})
	if err != nil {
		t.Fatal(err)
	}

	for _, sub := range subs {
		waitForPair(t, h, evt.ID, sub.ID, ledger.StatusSuccess)
	}
	if received.Load() != 3 {
		t.Errorf("target received %d calls, want 3", received.Load())
	}

	// The non-matching subscription saw nothing.
	status, err := h.Deliveries().PairStatus(ctx, evt.ID, other.ID)
	if err != nil {
		t.Fatal(err)
	}
	if status != ledger.StatusPending {
		t.Errorf("non-matching pair status = %s, want pending", status)
	}
}

func TestEndToEndRetryLedger(t *testing.T) {
	ctx := context.Background()

	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	h := newEngine(t)
	h.Start(ctx)
	defer h.Stop(ctx)

	sub, err := h.Subscriptions().Create(ctx, subscription.Input{
		TargetURL: srv.URL,
		EventType: "order.created",
	})
	if err != nil {
		t.Fatal(err)
	}

	payload := map[string]any{"order_id": "retry"}
	evt, err := h.Ingest(ctx, hookline.IngestInput{
		SubscriptionID: sub.ID,
		EventType:      "order.created",
		Payload:        payload,
		Signature:      sign(t, payload, sub.Secret),
	})
	if err != nil {
		t.Fatal(err)
	}

	waitForPair(t, h, evt.ID, sub.ID, ledger.StatusSuccess)

	atts, err := h.Deliveries().ByEvent(ctx, evt.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(atts) != 3 {
		t.Fatalf("ledger has %d rows, want 3", len(atts))
	}
	wantStatus := []ledger.Status{ledger.StatusFailed, ledger.StatusFailed, ledger.StatusSuccess}
	for i, att := range atts {
		if att.Attempt != i+1 {
			t.Errorf("row %d Attempt = %d", i, att.Attempt)
		}
		if att.Status != wantStatus[i] {
			t.Errorf("row %d Status = %s, want %s", i, att.Status, wantStatus[i])
		}
	}
}
