// Package postgres persists audit events in the audit_logs table.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"talentstream/internal/audit"
)

// Store implements audit.Store on a Postgres database.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the audit_logs table if it does not exist. Production
// runs migrations out of band; this keeps development and tests self-serve.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS audit_logs (
			id         SERIAL PRIMARY KEY,
			timestamp  TIMESTAMPTZ NOT NULL,
			event_type VARCHAR(128) NOT NULL,
			payload    TEXT,
			user_id    VARCHAR(128)
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure audit_logs schema: %w", err)
	}
	return nil
}

// row mirrors the payload column: the full event minus the columns that get
// their own fields.
type row struct {
	ID       string         `json:"id"`
	Target   string         `json:"target"`
	Metadata map[string]any `json:"metadata"`
}

// Append writes one audit event.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	payload, err := json.Marshal(row{
		ID:       event.ID.String(),
		Target:   event.Target,
		Metadata: event.Metadata,
	})
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (timestamp, event_type, payload, user_id)
		VALUES ($1, $2, $3, $4)
	`, event.Timestamp, event.EventType, string(payload), event.Actor)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// List returns up to limit events, newest first, skipping offset.
func (s *Store) List(ctx context.Context, limit, offset int) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, event_type, payload, user_id
		FROM audit_logs
		ORDER BY id DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var out []audit.Event
	for rows.Next() {
		var (
			ts        time.Time
			eventType string
			payload   sql.NullString
			actor     sql.NullString
		)
		if err := rows.Scan(&ts, &eventType, &payload, &actor); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}

		event := audit.Event{
			EventType: eventType,
			Actor:     actor.String,
			Timestamp: ts,
		}
		if payload.Valid && payload.String != "" {
			var r row
			if err := json.Unmarshal([]byte(payload.String), &r); err == nil {
				event.Target = r.Target
				event.Metadata = r.Metadata
				if id, err := uuid.Parse(r.ID); err == nil {
					event.ID = id
				}
			}
		}
		out = append(out, event)
	}
	return out, rows.Err()
}
