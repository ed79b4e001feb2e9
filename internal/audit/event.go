// Package audit defines the audit event model and the single ingestion point
// that fans events out to storage, external sinks, and live stream clients.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event is an immutable audit record. It is created once at the ingestion
// point and never mutated; the broadcaster hands the same value to every
// subscriber.
type Event struct {
	ID        uuid.UUID      `json:"id"`
	EventType string         `json:"event_type"`
	Actor     string         `json:"actor"`
	Target    string         `json:"target"`
	Metadata  map[string]any `json:"metadata"`
	Timestamp time.Time      `json:"timestamp"`
}

// Store persists audit events durably and serves paginated reads.
type Store interface {
	Append(ctx context.Context, event Event) error
	List(ctx context.Context, limit, offset int) ([]Event, error)
}
