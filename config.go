package hookline

import "time"

// Config holds the configuration for a Hookline instance.
type Config struct {
	// Workers is the number of dispatch worker goroutines.
	Workers int

	// PollInterval bounds how long an idle worker waits before re-checking
	// the queue for due jobs.
	PollInterval time.Duration

	// RequestTimeout is the HTTP timeout per delivery attempt.
	RequestTimeout time.Duration

	// MaxAttempts is the delivery attempt budget per (event, subscription)
	// pair, shared by all subscriptions.
	MaxAttempts int

	// BackoffBase is the delay after the first failed attempt. It doubles
	// per attempt up to BackoffMax, with jitter.
	BackoffBase time.Duration

	// BackoffMax caps the retry delay.
	BackoffMax time.Duration

	// SweepInterval is how often the expiry sweeper runs. Set to 0 to
	// disable the internal ticker and drive Sweep from an external
	// scheduler.
	SweepInterval time.Duration

	// ShutdownTimeout is the maximum time to wait for in-flight deliveries
	// on shutdown.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Workers:         10,
		PollInterval:    250 * time.Millisecond,
		RequestTimeout:  30 * time.Second,
		MaxAttempts:     5,
		BackoffBase:     5 * time.Second,
		BackoffMax:      2 * time.Hour,
		SweepInterval:   time.Minute,
		ShutdownTimeout: 30 * time.Second,
	}
}
