// Package store defines the composite Store interface for all hookline
// persistence.
//
// Each subsystem defines its own store interface; the aggregate Store
// composes them all. Backends provide the full composite: in-memory for
// tests, Bun (Postgres/SQLite) and Redis for production.
package store

import (
	"context"

	"github.com/hookline/hookline/event"
	"github.com/hookline/hookline/ledger"
	"github.com/hookline/hookline/queue"
	"github.com/hookline/hookline/subscription"
)

// Store is the aggregate persistence interface.
type Store interface {
	subscription.Store
	event.Store
	ledger.Store
	queue.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
