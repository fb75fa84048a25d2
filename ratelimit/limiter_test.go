package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/hookline/hookline/ratelimit"
)

func TestAllowUnlimited(t *testing.T) {
	l := ratelimit.New()

	for i := 0; i < 100; i++ {
		if !l.Allow("sub-1", 0) {
			t.Fatal("rateLimit 0 should always allow")
		}
	}
}

func TestAllowExhaustsBucket(t *testing.T) {
	l := ratelimit.New()

	// Bucket starts full with rateLimit tokens.
	allowed := 0
	for i := 0; i < 10; i++ {
		if l.Allow("sub-1", 3) {
			allowed++
		}
	}

	if allowed != 3 {
		t.Errorf("allowed %d deliveries, want 3", allowed)
	}
}

func TestBurstAddsHeadroom(t *testing.T) {
	l := ratelimit.NewWithBurst(5)

	// Capacity is rate + burst, so a full bucket absorbs 2+5 deliveries.
	allowed := 0
	for i := 0; i < 20; i++ {
		if l.Allow("sub-1", 2) {
			allowed++
		}
	}

	if allowed != 7 {
		t.Errorf("allowed %d deliveries, want 7", allowed)
	}
}

func TestRateChangeClampsBucket(t *testing.T) {
	l := ratelimit.New()

	if !l.Allow("sub-1", 10) {
		t.Fatal("full bucket should allow")
	}

	// Lowering the limit to 1 clamps the remaining 9 tokens down to 1.
	if !l.Allow("sub-1", 1) {
		t.Error("clamped bucket should still hold one token")
	}
	if l.Allow("sub-1", 1) {
		t.Error("bucket should be empty after the clamp")
	}
}

func TestBucketsAreIndependent(t *testing.T) {
	l := ratelimit.New()

	for i := 0; i < 2; i++ {
		l.Allow("sub-a", 2)
	}
	if l.Allow("sub-a", 2) {
		t.Error("sub-a bucket should be empty")
	}
	if !l.Allow("sub-b", 2) {
		t.Error("sub-b bucket should be untouched")
	}
}

func TestResetRefills(t *testing.T) {
	l := ratelimit.New()

	l.Allow("sub-1", 1)
	if l.Allow("sub-1", 1) {
		t.Fatal("bucket should be empty")
	}

	l.Reset("sub-1")
	if !l.Allow("sub-1", 1) {
		t.Error("bucket should be full after reset")
	}
}

func TestWaitCancelled(t *testing.T) {
	l := ratelimit.New()
	l.Allow("sub-1", 1) // drain

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := l.Wait(ctx, "sub-1", 1); err == nil {
		t.Error("Wait should return the context error when cancelled")
	}
}

func TestWaitRefills(t *testing.T) {
	l := ratelimit.New()
	l.Allow("sub-1", 50) // rate 50/s refills fast
	for l.Allow("sub-1", 50) {
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := l.Wait(ctx, "sub-1", 50); err != nil {
		t.Errorf("Wait should succeed once the bucket refills: %v", err)
	}
}
