package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ActivityEntry is one fire-and-forget audit record.
type ActivityEntry struct {
	ID        int64
	EntryID   string
	EventType string
	Summary   string
	Detail    string
	CreatedAt int64
}

// LogActivity appends an audit entry. Callers treat failures as advisory;
// audit writes never gate a state transition.
func (db *DB) LogActivity(eventType, summary, detail string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO activity_log (entry_id, event_type, summary, detail, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, uuid.NewString(), eventType, summary, detail, now)
	if err != nil {
		return fmt.Errorf("log activity: %w", err)
	}
	return nil
}

// RecentActivity returns the newest audit entries.
func (db *DB) RecentActivity(limit int) ([]ActivityEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, entry_id, event_type, summary, COALESCE(detail, ''), created_at
		FROM activity_log ORDER BY created_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent activity: %w", err)
	}
	defer rows.Close()

	var out []ActivityEntry
	for rows.Next() {
		var e ActivityEntry
		if err := rows.Scan(&e.ID, &e.EntryID, &e.EventType, &e.Summary, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
