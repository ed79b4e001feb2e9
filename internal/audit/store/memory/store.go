// Package memory provides the in-memory audit store used in tests and in
// deployments without a database.
package memory

import (
	"context"
	"sync"

	"talentstream/internal/audit"
)

// Store keeps audit events in memory, newest first on reads.
type Store struct {
	mu     sync.RWMutex
	events []audit.Event
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{}
}

// Append records the event.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// List returns up to limit events, newest first, skipping offset.
func (s *Store) List(ctx context.Context, limit, offset int) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.events)
	out := make([]audit.Event, 0, limit)
	for i := n - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.events[i])
	}
	return out, nil
}
