package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/account-gate/internal/model"
	"github.com/sakif/account-gate/internal/repository"
)

var _ repository.AuditRepository = (*DB)(nil)

// RecordEvent appends an audit event, filling in ID and CreatedAt when unset.
// xid IDs sort by creation time, which keeps ListEvents ordering cheap.
func (db *DB) RecordEvent(ctx context.Context, event *model.AuditEvent) error {
	if event.ID == "" {
		event.ID = xid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO audit_events (id, username, type, detail, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		event.ID,
		event.Username,
		event.Type,
		event.Detail,
		event.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: recording %s event for %s: %w", event.Type, event.Username, err)
	}
	return nil
}

// ListEvents returns the most recent events for username, newest first.
func (db *DB) ListEvents(ctx context.Context, username string, limit int) ([]model.AuditEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, username, type, detail, created_at
		 FROM audit_events
		 WHERE username = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		username, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing events for %s: %w", username, err)
	}
	defer rows.Close()

	events := []model.AuditEvent{}
	for rows.Next() {
		var e model.AuditEvent
		if err := rows.Scan(&e.ID, &e.Username, &e.Type, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning event row: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating event rows: %w", err)
	}
	return events, nil
}
