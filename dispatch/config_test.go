package dispatch

import (
	"testing"
	"time"
)

func TestNewEngineDefaults(t *testing.T) {
	e := NewEngine(nil, nil, nil, EngineConfig{}, nil)

	if e.config.Workers != 1 {
		t.Errorf("Workers = %d, want 1", e.config.Workers)
	}
	if e.config.MaxAttempts != 1 {
		t.Errorf("MaxAttempts = %d, want 1", e.config.MaxAttempts)
	}
	if e.config.RequestTimeout != DefaultRequestTimeout {
		t.Errorf("RequestTimeout = %v, want %v", e.config.RequestTimeout, DefaultRequestTimeout)
	}
	if got := e.sender.client.Timeout; got != DefaultRequestTimeout {
		t.Errorf("sender timeout = %v, want %v", got, DefaultRequestTimeout)
	}
}

func TestNewSenderTimeout(t *testing.T) {
	if got := NewSender(0).client.Timeout; got != DefaultRequestTimeout {
		t.Errorf("zero timeout = %v, want %v", got, DefaultRequestTimeout)
	}
	if got := NewSender(5 * time.Second).client.Timeout; got != 5*time.Second {
		t.Errorf("timeout = %v, want 5s", got)
	}
}
