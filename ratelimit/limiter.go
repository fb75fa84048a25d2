// Package ratelimit paces outbound webhook deliveries per subscription.
//
// Each subscription gets a token bucket keyed by its id. The bucket drains
// one token per delivery attempt and refills continuously at the
// subscription's configured rate. Capacity is the rate plus an optional
// burst headroom, so a briefly idle subscription can absorb a spike of
// fan-out without tripping the throttle.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// retryInterval bounds how often Wait re-checks a drained bucket. Pacing
// off the rate alone would poll far too often for high limits and far too
// rarely for low ones.
const (
	minRetryInterval = 5 * time.Millisecond
	maxRetryInterval = 250 * time.Millisecond
)

// Limiter throttles deliveries per subscription. The zero burst limiter
// caps each bucket at exactly one second's worth of tokens.
type Limiter struct {
	mu    sync.Mutex
	burst float64
	subs  map[string]*tokenBucket
}

type tokenBucket struct {
	level   float64   // tokens currently available
	rate    float64   // refill rate, tokens per second
	updated time.Time // last refill
}

// New creates a limiter with no burst headroom.
func New() *Limiter {
	return NewWithBurst(0)
}

// NewWithBurst creates a limiter whose buckets hold burst extra tokens on
// top of the per-second rate. A negative burst is treated as zero.
func NewWithBurst(burst int) *Limiter {
	if burst < 0 {
		burst = 0
	}
	return &Limiter{
		burst: float64(burst),
		subs:  make(map[string]*tokenBucket),
	}
}

// Allow consumes a token for the subscription if one is available. A
// perSecond of 0 means the subscription is unthrottled.
func (l *Limiter) Allow(subscriptionID string, perSecond int) bool {
	if perSecond <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.bucket(subscriptionID, float64(perSecond))
	b.advance(time.Now(), l.capacity(b.rate))
	if b.level < 1 {
		return false
	}
	b.level--
	return true
}

// Wait blocks until the subscription may deliver or ctx is done. A
// perSecond of 0 returns immediately.
func (l *Limiter) Wait(ctx context.Context, subscriptionID string, perSecond int) error {
	if perSecond <= 0 {
		return nil
	}

	interval := time.Duration(float64(time.Second) / float64(perSecond))
	if interval < minRetryInterval {
		interval = minRetryInterval
	}
	if interval > maxRetryInterval {
		interval = maxRetryInterval
	}

	for {
		if l.Allow(subscriptionID, perSecond) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// Reset drops the subscription's bucket. The next delivery sees a full
// bucket again.
func (l *Limiter) Reset(subscriptionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.subs, subscriptionID)
}

// bucket returns the subscription's bucket, creating it full on first use.
// If the configured rate changed since the bucket was created, for example
// after a subscription update, the bucket adopts the new rate and clamps
// its level to the new capacity.
func (l *Limiter) bucket(subscriptionID string, rate float64) *tokenBucket {
	b, ok := l.subs[subscriptionID]
	if !ok {
		b = &tokenBucket{
			level:   l.capacity(rate),
			rate:    rate,
			updated: time.Now(),
		}
		l.subs[subscriptionID] = b
		return b
	}
	if b.rate != rate {
		b.rate = rate
		if max := l.capacity(rate); b.level > max {
			b.level = max
		}
	}
	return b
}

func (l *Limiter) capacity(rate float64) float64 {
	return rate + l.burst
}

func (b *tokenBucket) advance(now time.Time, max float64) {
	b.level += now.Sub(b.updated).Seconds() * b.rate
	if b.level > max {
		b.level = max
	}
	b.updated = now
}
