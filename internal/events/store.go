package events

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doorlink/intercom-core/internal/helios"
)

const (
	defaultRecentLimit = 50
	maxRecentLimit     = 500
)

// ArchivedEvent is one persisted access event.
type ArchivedEvent struct {
	// ID is the archive's own row id.
	ID int64 `json:"id"`

	// DeviceEventID is the id the device assigned to the event.
	DeviceEventID int64 `json:"device_event_id"`

	// Type is the device event type (e.g. "UserAuthenticated").
	Type string `json:"type"`

	// UserName is the authenticated user's display name, empty when the
	// event carries none.
	UserName string `json:"user_name"`

	// Time is when the entry happened according to the device.
	Time time.Time `json:"time"`

	// RecordedAt is when the archive first saw the event.
	RecordedAt time.Time `json:"recorded_at"`
}

// Store persists access events in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore creates an event store on an open database connection.
// The events table must already exist (created by migrations).
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Insert archives one device event.
//
// Events are deduplicated on (device_event_id, event_type): the device
// re-delivers buffered events when a subscription is recreated, and
// replays must not produce duplicate archive rows.
//
// Returns:
//   - bool: true if the event was new, false if it was already archived
//   - error: nil on success, otherwise the underlying database error
func (s *Store) Insert(ctx context.Context, ev helios.Event) (bool, error) {
	if ev.Type == "" {
		return false, fmt.Errorf("event type is required")
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO events (device_event_id, event_type, user_name, utc_time)
		 VALUES (?, ?, ?, ?)`,
		ev.ID,
		ev.Type,
		ev.Params.Name,
		ev.UTCTime,
	)
	if err != nil {
		return false, fmt.Errorf("inserting event: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking rows affected: %w", err)
	}
	return rows > 0, nil
}

// Recent returns archived events ordered newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - limit: Maximum entries to return (default 50, max 500)
//
// Returns:
//   - []ArchivedEvent: Events ordered by device time descending
//   - error: nil on success, otherwise the underlying query error
func (s *Store) Recent(ctx context.Context, limit int) ([]ArchivedEvent, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, device_event_id, event_type, user_name, utc_time, recorded_at
		 FROM events
		 ORDER BY utc_time DESC, id DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	entries := make([]ArchivedEvent, 0, limit)
	for rows.Next() {
		var (
			entry      ArchivedEvent
			utcTime    int64
			recordedAt string
		)
		if err := rows.Scan(&entry.ID, &entry.DeviceEventID, &entry.Type, &entry.UserName, &utcTime, &recordedAt); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}

		entry.Time = time.Unix(utcTime, 0).UTC()

		timestamp, err := parseStoredTimestamp(recordedAt)
		if err != nil {
			return nil, err
		}
		entry.RecordedAt = timestamp

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}

	return entries, nil
}

// Prune deletes archived events older than the given retention period,
// based on the device's event time.
//
// Returns:
//   - int64: Number of rows deleted
//   - error: nil on success, otherwise the underlying database error
func (s *Store) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, fmt.Errorf("retention must be positive")
	}

	cutoff := time.Now().Add(-retention).Unix()
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM events WHERE utc_time < ?",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting events: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}

	return rowsAffected, nil
}

// LatestDeviceTime returns the newest archived device timestamp, or zero
// when the archive is empty. Used to size the subscription window after a
// restart so the pull overlaps the archive instead of leaving a gap.
func (s *Store) LatestDeviceTime(ctx context.Context) (time.Time, error) {
	var utcTime sql.NullInt64
	err := s.db.QueryRowContext(ctx, "SELECT MAX(utc_time) FROM events").Scan(&utcTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("querying latest event time: %w", err)
	}
	if !utcTime.Valid {
		return time.Time{}, nil
	}
	return time.Unix(utcTime.Int64, 0).UTC(), nil
}

// parseStoredTimestamp parses a timestamp stored in SQLite.
func parseStoredTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("recorded_at is empty")
	}

	timestamp, err := time.Parse(time.RFC3339, value)
	if err == nil {
		return timestamp, nil
	}

	fallback, fallbackErr := time.Parse("2006-01-02T15:04:05Z", value)
	if fallbackErr == nil {
		return fallback, nil
	}

	return time.Time{}, fmt.Errorf("parsing recorded_at: %w", err)
}
