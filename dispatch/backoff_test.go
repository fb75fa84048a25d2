package dispatch

import (
	"testing"
	"time"
)

func TestBackoffDelayBounds(t *testing.T) {
	b := NewBackoff(5*time.Second, 2*time.Hour)

	cases := []struct {
		attempt int
		full    time.Duration
	}{
		{1, 5 * time.Second},
		{2, 10 * time.Second},
		{3, 20 * time.Second},
		{4, 40 * time.Second},
		{10, 2560 * time.Second},
	}
	for _, tc := range cases {
		for i := 0; i < 50; i++ {
			d := b.Delay(tc.attempt)
			if d < tc.full/2 || d > tc.full {
				t.Fatalf("Delay(%d) = %v, want in [%v, %v]", tc.attempt, d, tc.full/2, tc.full)
			}
		}
	}
}

func TestBackoffCap(t *testing.T) {
	b := NewBackoff(time.Second, 8*time.Second)

	// Attempt 5 would be 16s uncapped; the cap holds it at 8s.
	for i := 0; i < 50; i++ {
		if d := b.Delay(5); d > 8*time.Second {
			t.Fatalf("Delay(5) = %v exceeds cap", d)
		}
	}
	// Far past the cap, including where doubling would overflow.
	for _, attempt := range []int{20, 63, 200} {
		if d := b.Delay(attempt); d < 4*time.Second || d > 8*time.Second {
			t.Fatalf("Delay(%d) = %v, want in [4s, 8s]", attempt, d)
		}
	}
}

func TestBackoffDefaultsAndClamp(t *testing.T) {
	b := NewBackoff(0, 0)
	if d := b.Delay(1); d < 2500*time.Millisecond || d > 5*time.Second {
		t.Errorf("default base: Delay(1) = %v", d)
	}
	if d := b.Delay(0); d < 2500*time.Millisecond || d > 5*time.Second {
		t.Errorf("attempt clamped to 1: Delay(0) = %v", d)
	}

	// max below base is raised to base.
	b = NewBackoff(10*time.Second, time.Second)
	if d := b.Delay(3); d > 10*time.Second {
		t.Errorf("Delay(3) = %v, want <= base", d)
	}
}
