package store

import (
	"context"
	"fmt"
	"sync"

	"errlens-agent/src/contracts"
)

// MemoryStore is an in-memory implementation of Store.
// Useful for testing and for runs that need no persistence.
type MemoryStore struct {
	mu     sync.RWMutex
	events []contracts.Event // index 0 is the most recent
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Prepend inserts ev at the head and trims the tail beyond limit.
func (s *MemoryStore) Prepend(ctx context.Context, ev contracts.Event, limit int) ([]string, error) {
	if ev.ID == "" {
		return nil, fmt.Errorf("event has no id")
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append([]contracts.Event{ev.Clone()}, s.events...)

	var evicted []string
	if len(s.events) > limit {
		for _, old := range s.events[limit:] {
			evicted = append(evicted, old.ID)
		}
		s.events = s.events[:limit]
	}
	return evicted, nil
}

// Update replaces the record with ev.ID.
func (s *MemoryStore) Update(ctx context.Context, ev contracts.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.events {
		if s.events[i].ID == ev.ID {
			s.events[i] = ev.Clone()
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNotFound, ev.ID)
}

// Get returns a copy of one event.
func (s *MemoryStore) Get(ctx context.Context, id string) (contracts.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ev := range s.events {
		if ev.ID == id {
			return ev.Clone(), nil
		}
	}
	return contracts.Event{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// List returns copies of all events, most recent first.
func (s *MemoryStore) List(ctx context.Context) ([]contracts.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]contracts.Event, len(s.events))
	for i, ev := range s.events {
		result[i] = ev.Clone()
	}
	return result, nil
}

// Clear removes every event.
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
	return nil
}

// Close closes the store (no-op for memory store).
func (s *MemoryStore) Close() error {
	return nil
}
