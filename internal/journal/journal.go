package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event kinds recorded by the session facade.
const (
	KindStarted            = "started"
	KindResized            = "resized"
	KindExited             = "exited"
	KindShutdown           = "shutdown"
	KindSubscriberAttached = "subscriber_attached"
	KindSubscriberDetached = "subscriber_detached"
)

// Event is one recorded lifecycle event.
type Event struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Journal records terminal lifecycle events. A nil *Journal is valid and
// records nothing, so callers never need to guard their Record calls.
type Journal struct {
	db *sql.DB
}

// Open opens (or creates) the journal database at path.
func Open(path string) (*Journal, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	return &Journal{db: db}, nil
}

// OpenInMemory opens a fresh in-memory journal, used in tests.
func OpenInMemory() (*Journal, error) {
	return Open(":memory:")
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Record inserts one event. Failures are returned so the caller can log
// them; journal failures never affect session behavior.
func (j *Journal) Record(ctx context.Context, kind, detail string) error {
	if j == nil || j.db == nil {
		return nil
	}

	query := `
		INSERT INTO terminal_events (id, kind, detail, created_at)
		VALUES (?, ?, ?, ?)
	`

	_, err := j.db.ExecContext(ctx, query, uuid.New().String(), kind, detail, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}
	return nil
}

// Recent returns up to limit events, most recent first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]*Event, error) {
	if j == nil || j.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, kind, detail, created_at
		FROM terminal_events
		ORDER BY created_at DESC, id
		LIMIT ?
	`

	rows, err := j.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		event := &Event{}
		var detail sql.NullString

		if err := rows.Scan(&event.ID, &event.Kind, &detail, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if detail.Valid {
			event.Detail = detail.String
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}

	return events, nil
}
