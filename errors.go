package hookline

import "errors"

// Sentinel errors returned by hookline operations.
var (
	// ErrNoStore is returned when a Hookline is created without a store.
	ErrNoStore = errors.New("hookline: store is required")

	// ErrSubscriptionNotFound is returned when a subscription cannot be found.
	ErrSubscriptionNotFound = errors.New("hookline: subscription not found")

	// ErrEventNotFound is returned when an event cannot be found.
	ErrEventNotFound = errors.New("hookline: event not found")

	// ErrJobNotFound is returned when a queue job cannot be found.
	ErrJobNotFound = errors.New("hookline: job not found")

	// ErrUnauthenticated is returned when ingestion signature verification
	// fails. The event is rejected before anything is persisted or enqueued.
	ErrUnauthenticated = errors.New("hookline: signature verification failed")

	// ErrInvalidPayload is returned when an ingested payload cannot be
	// canonicalized.
	ErrInvalidPayload = errors.New("hookline: invalid payload")

	// ErrStoreClosed is returned when a store operation is attempted after
	// the store is closed.
	ErrStoreClosed = errors.New("hookline: store is closed")
)
