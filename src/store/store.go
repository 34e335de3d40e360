// Package store defines the interface for the durable event log.
package store

import (
	"context"
	"errors"

	"errlens-agent/src/contracts"
)

// DefaultLimit is the number of events kept in the log.
const DefaultLimit = 100

// ErrNotFound is returned when an event id is not in the log.
var ErrNotFound = errors.New("event not found")

// Store is the bounded, most-recent-first event log.
type Store interface {
	// Prepend inserts ev at the head of the log and evicts the oldest
	// entries beyond limit. It returns the ids that were evicted.
	Prepend(ctx context.Context, ev contracts.Event, limit int) (evicted []string, err error)

	// Update replaces the stored record with the same id.
	Update(ctx context.Context, ev contracts.Event) error

	// Get returns one event by id.
	Get(ctx context.Context, id string) (contracts.Event, error)

	// List returns every stored event, most recent first.
	List(ctx context.Context) ([]contracts.Event, error)

	// Clear removes every event.
	Clear(ctx context.Context) error

	// Close closes the store connection
	Close() error
}
