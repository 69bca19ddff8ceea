package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nerrad567/satpush/internal/infrastructure/database"
	"github.com/nerrad567/satpush/internal/push"
)

// timeLayout sorts lexically in time order, which Prune relies on.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteRepository implements Repository on the journal database.
// The schema comes from the embedded migrations package.
type SQLiteRepository struct {
	db  *database.DB
	now func() time.Time
}

// NewSQLiteRepository creates a repository on a migrated database.
func NewSQLiteRepository(db *database.DB) *SQLiteRepository {
	return &SQLiteRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Record inserts n with the current time as received_at.
//
// Returns:
//   - error: ErrInvalidNotification, or the underlying database error
func (r *SQLiteRepository) Record(ctx context.Context, n push.Notification) error {
	if n.Topic == "" || n.Kind == "" {
		return ErrInvalidNotification
	}

	var payload sql.NullString
	if len(n.Payload) > 0 {
		payload = sql.NullString{String: string(n.Payload), Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO notifications
		    (kind, collection, resource_key, originator, event_ns, payload, received_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(n.Kind),
		n.Topic,
		n.ResourceKey,
		n.Originator,
		int64(n.TimestampNanos), //nolint:gosec // Unix nanos fit int64 until 2262
		payload,
		r.now().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting notification: %w", err)
	}
	return nil
}

// Recent returns journaled notifications, newest first.
func (r *SQLiteRepository) Recent(ctx context.Context, collection string, limit int) ([]Entry, error) {
	limit = clampLimit(limit)

	query := `SELECT id, kind, collection, resource_key, originator, event_ns, payload, received_at
		FROM notifications`
	args := []any{}
	if collection != "" {
		query += " WHERE collection = ?"
		args = append(args, collection)
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying notifications: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var (
			e          Entry
			kind       string
			eventNanos int64
			payload    sql.NullString
			receivedAt string
		)
		if err := rows.Scan(&e.ID, &kind, &e.Collection, &e.Key, &e.Originator, &eventNanos, &payload, &receivedAt); err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}

		e.Kind = push.NotificationKind(kind)
		if eventNanos > 0 {
			e.EventTime = time.Unix(0, eventNanos).UTC()
		}
		if payload.Valid {
			e.Payload = []byte(payload.String)
		}
		if e.ReceivedAt, err = parseTimestamp(receivedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating notifications: %w", err)
	}
	return entries, nil
}

// RecordConnection stores a lifecycle event. Notification events are
// ignored; they belong in Record.
func (r *SQLiteRepository) RecordConnection(ctx context.Context, ev push.Event) error {
	if ev.Type == push.EventNotification {
		return nil
	}

	var detail string
	if ev.Err != nil {
		detail = ev.Err.Error()
	}
	at := ev.At
	if at.IsZero() {
		at = r.now()
	}

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO connection_events (event, client_key, detail, occurred_at) VALUES (?, ?, ?, ?)",
		ev.Type.String(),
		ev.ClientKey,
		detail,
		at.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting connection event: %w", err)
	}
	return nil
}

// Connections returns lifecycle events, newest first.
func (r *SQLiteRepository) Connections(ctx context.Context, limit int) ([]ConnectionEntry, error) {
	limit = clampLimit(limit)

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, event, client_key, detail, occurred_at
		 FROM connection_events
		 ORDER BY id DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying connection events: %w", err)
	}
	defer rows.Close()

	entries := make([]ConnectionEntry, 0, limit)
	for rows.Next() {
		var e ConnectionEntry
		var occurredAt string
		if err := rows.Scan(&e.ID, &e.Event, &e.ClientKey, &e.Detail, &occurredAt); err != nil {
			return nil, fmt.Errorf("scanning connection event: %w", err)
		}
		if e.OccurredAt, err = parseTimestamp(occurredAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating connection events: %w", err)
	}
	return entries, nil
}

// Prune deletes notifications and connection events older than olderThan
// in one transaction.
func (r *SQLiteRepository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}
	cutoff := r.now().Add(-olderThan).Format(timeLayout)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	var total int64
	for _, stmt := range []string{
		"DELETE FROM notifications WHERE received_at < ?",
		"DELETE FROM connection_events WHERE occurred_at < ?",
	} {
		result, err := tx.ExecContext(ctx, stmt, cutoff)
		if err != nil {
			return 0, fmt.Errorf("pruning journal: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("checking rows affected: %w", err)
		}
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing prune: %w", err)
	}
	return total, nil
}

// parseTimestamp parses a journal timestamp, accepting plain RFC 3339 for
// rows written by hand.
func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("journal timestamp is empty")
	}
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing journal timestamp: %w", err)
	}
	return ts.UTC(), nil
}
