package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/hookline/hookline/event"
	"github.com/hookline/hookline/signature"
	"github.com/hookline/hookline/subscription"
)

const maxResponseBody = 1024 // 1KB cap on stored response body

// DefaultRequestTimeout bounds a delivery attempt when no timeout is
// configured.
const DefaultRequestTimeout = 30 * time.Second

// Result holds the outcome of a single outbound call. A zero StatusCode
// means the call never produced an HTTP response (transport failure).
type Result struct {
	StatusCode int
	Body       string
	Error      string
	LatencyMs  int
}

// OK reports whether the target acknowledged the delivery.
func (r Result) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Sender performs the authenticated outbound webhook call.
type Sender struct {
	client *http.Client
}

// NewSender creates a sender with the given per-call HTTP timeout. The
// timeout bounds every attempt; a non-responsive target is a transport
// failure, never a hang. A non-positive timeout falls back to
// DefaultRequestTimeout.
func NewSender(timeout time.Duration) *Sender {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &Sender{
		client: &http.Client{Timeout: timeout},
	}
}

// Send canonicalizes and signs the event payload with the subscription's
// secret, POSTs it to the target URL, and returns the classified result.
func (s *Sender) Send(ctx context.Context, sub *subscription.Subscription, evt *event.Event, attempt int) Result {
	canonical, err := signature.Canonicalize(evt.Payload)
	if err != nil {
		return Result{Error: fmt.Sprintf("canonicalize payload: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.TargetURL, bytes.NewReader(canonical))
	if err != nil {
		return Result{Error: fmt.Sprintf("create request: %v", err)}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Hookline/1.0")
	req.Header.Set("X-Hookline-Event-ID", evt.ID.String())
	req.Header.Set("X-Hookline-Event-Type", evt.Type)
	req.Header.Set("X-Hookline-Attempt", strconv.Itoa(attempt))
	req.Header.Set("X-Hookline-Signature", signature.Sign(canonical, sub.Secret))

	start := time.Now()
	resp, err := s.client.Do(req) //nolint:gosec // G704: URL is the subscriber-configured webhook destination.
	latency := time.Since(start).Milliseconds()

	if err != nil {
		return Result{
			Error:     err.Error(),
			LatencyMs: int(latency),
		}
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if readErr != nil {
		return Result{
			StatusCode: resp.StatusCode,
			Error:      fmt.Sprintf("read response: %v", readErr),
			LatencyMs:  int(latency),
		}
	}

	res := Result{
		StatusCode: resp.StatusCode,
		Body:       string(respBody),
		LatencyMs:  int(latency),
	}
	if !res.OK() {
		res.Error = fmt.Sprintf("target returned %d", resp.StatusCode)
	}
	return res
}
