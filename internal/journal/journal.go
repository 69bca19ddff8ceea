// Package journal keeps a local history of push notifications and gateway
// connection events in SQLite.
//
// The journal is what the status API serves from and what survives a
// restart; the push client itself holds no history.
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nerrad567/satpush/internal/push"
)

// Query limits for Recent and Connections.
const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// ErrInvalidNotification is returned when a notification lacks a
// collection or kind.
var ErrInvalidNotification = errors.New("journal: notification requires collection and kind")

// Entry is one journaled notification.
type Entry struct {
	ID         int64                 `json:"id"`
	Kind       push.NotificationKind `json:"kind"`
	Collection string                `json:"collection"`
	Key        string                `json:"key"`
	Originator string                `json:"originator,omitempty"`

	// EventTime is the gateway timestamp; zero when the frame had none.
	EventTime time.Time `json:"event_time,omitzero"`

	Payload    json.RawMessage `json:"payload,omitempty"`
	ReceivedAt time.Time       `json:"received_at"`
}

// ConnectionEntry is one journaled lifecycle event.
type ConnectionEntry struct {
	ID         int64     `json:"id"`
	Event      string    `json:"event"`
	ClientKey  string    `json:"client_key"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Repository stores and queries the journal.
//
// Implementations must be safe for concurrent use and store UTC timestamps.
type Repository interface {
	// Record appends a notification.
	Record(ctx context.Context, n push.Notification) error

	// Recent returns the newest notifications first. An empty collection
	// matches every collection; limit is clamped to [1, MaxLimit] with
	// DefaultLimit for values <= 0.
	Recent(ctx context.Context, collection string, limit int) ([]Entry, error)

	// RecordConnection appends a lifecycle event.
	RecordConnection(ctx context.Context, ev push.Event) error

	// Connections returns the newest lifecycle events first.
	Connections(ctx context.Context, limit int) ([]ConnectionEntry, error)

	// Prune deletes entries received before now-olderThan and reports how
	// many rows were removed.
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}
