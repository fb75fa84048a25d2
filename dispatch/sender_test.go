package dispatch_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hookline/hookline/dispatch"
	"github.com/hookline/hookline/event"
	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/internal/entity"
	"github.com/hookline/hookline/signature"
	"github.com/hookline/hookline/subscription"
)

func testEvent(t *testing.T) *event.Event {
	t.Helper()
	return &event.Event{
		Entity:  entity.New(),
		ID:      id.NewEventID(),
		Type:    "order.created",
		Payload: map[string]any{"order_id": "123", "total": 42.5},
	}
}

func testSubFor(url string) *subscription.Subscription {
	return &subscription.Subscription{
		ID:        id.NewSubscriptionID(),
		TargetURL: url,
		EventType: "order.created",
		Secret:    signature.GenerateSecret(),
		Active:    true,
	}
}

func TestSendSignsAndPosts(t *testing.T) {
	evt := testEvent(t)
	var sub *subscription.Subscription

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if got := r.Header.Get("X-Hookline-Event-ID"); got != evt.ID.String() {
			t.Errorf("X-Hookline-Event-ID = %q", got)
		}
		if got := r.Header.Get("X-Hookline-Event-Type"); got != "order.created" {
			t.Errorf("X-Hookline-Event-Type = %q", got)
		}
		if got := r.Header.Get("X-Hookline-Attempt"); got != "1" {
			t.Errorf("X-Hookline-Attempt = %q", got)
		}

		// The receiver verifies the signature the way a real consumer
		// would: over the exact body bytes, with the shared secret.
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatal(err)
		}
		digest := r.Header.Get("X-Hookline-Signature")
		if !signature.Verify(body, digest, sub.Secret) {
			t.Errorf("signature %q does not verify over received body", digest)
		}

		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sub = testSubFor(srv.URL)
	res := dispatch.NewSender(5*time.Second).Send(context.Background(), sub, evt, 1)
	if !res.OK() {
		t.Fatalf("Send result not OK: %+v", res)
	}
	if res.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d", res.StatusCode)
	}
	if res.Error != "" {
		t.Errorf("Error = %q, want empty", res.Error)
	}
}

func TestSendNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	res := dispatch.NewSender(5*time.Second).Send(context.Background(), testSubFor(srv.URL), testEvent(t), 1)
	if res.OK() {
		t.Fatal("503 classified as OK")
	}
	if res.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("StatusCode = %d", res.StatusCode)
	}
	if res.Error == "" {
		t.Error("expected error detail for non-2xx")
	}
}

func TestSendTransportFailure(t *testing.T) {
	// Closed server: connection refused, no HTTP response.
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	res := dispatch.NewSender(time.Second).Send(context.Background(), testSubFor(url), testEvent(t), 1)
	if res.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0 for transport failure", res.StatusCode)
	}
	if res.Error == "" {
		t.Error("expected transport error detail")
	}
}

func TestSendCapsResponseBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, strings.Repeat("x", 4096))
	}))
	defer srv.Close()

	res := dispatch.NewSender(5*time.Second).Send(context.Background(), testSubFor(srv.URL), testEvent(t), 1)
	if len(res.Body) != 1024 {
		t.Errorf("stored body length = %d, want 1024", len(res.Body))
	}
}
