package dispatch

import (
	"math/rand/v2"
	"time"
)

// Backoff computes the delay before the next retry of a failed delivery:
// exponential growth from a base, doubled per attempt, capped at a maximum,
// with equal jitter so retries across subscriptions do not synchronize into
// storms.
type Backoff struct {
	base time.Duration
	max  time.Duration
}

// NewBackoff creates a backoff policy. Non-positive arguments fall back to
// 5s base and 2h cap.
func NewBackoff(base, max time.Duration) *Backoff {
	if base <= 0 {
		base = 5 * time.Second
	}
	if max <= 0 {
		max = 2 * time.Hour
	}
	if max < base {
		max = base
	}
	return &Backoff{base: base, max: max}
}

// Delay returns the jittered delay after the given failed attempt number
// (1-based). The result is uniform in [d/2, d] where d = min(base *
// 2^(attempt-1), max).
func (b *Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	d := b.base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d <= 0 || d >= b.max { // overflow or cap reached
			d = b.max
			break
		}
	}

	half := d / 2
	return half + rand.N(d-half+1)
}
