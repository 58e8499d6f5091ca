package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Knowledge record states. A word is in exactly one scheduling regime:
// an acquisition box while 'acquiring', a reviewer card in
// 'learning'/'known'/'lapsed', and neither in the remaining states.
const (
	StateNew         = "new"
	StateEncountered = "encountered"
	StateAcquiring   = "acquiring"
	StateLearning    = "learning"
	StateKnown       = "known"
	StateLapsed      = "lapsed"
	StateSuspended   = "suspended"
)

// KnowledgeRecord is the per-word learner state. One row per word,
// created on introduction or first incidental encounter, never deleted.
type KnowledgeRecord struct {
	WordID             int64
	State              string
	Card               []byte // opaque reviewer card JSON; nil outside carded states
	AcquisitionBox     *int   // 1..3; nil outside 'acquiring'
	AcquisitionNextDue *int64 // unix millis
	TimesSeen          int
	TimesCorrect       int
	IntroducedAt       *int64
	LeechSuspendedAt   *int64
	GraduatedAt        *int64
	UpdatedAt          int64
}

// Accuracy returns times_correct / times_seen, or 0 with no reviews.
func (r *KnowledgeRecord) Accuracy() float64 {
	if r.TimesSeen == 0 {
		return 0
	}
	return float64(r.TimesCorrect) / float64(r.TimesSeen)
}

const recordColumns = `word_id, state, card, acquisition_box, acquisition_next_due,
	times_seen, times_correct, introduced_at, leech_suspended_at, graduated_at, updated_at`

func scanRecord(row interface{ Scan(...any) error }) (*KnowledgeRecord, error) {
	var r KnowledgeRecord
	var card sql.NullString
	err := row.Scan(&r.WordID, &r.State, &card, &r.AcquisitionBox, &r.AcquisitionNextDue,
		&r.TimesSeen, &r.TimesCorrect, &r.IntroducedAt, &r.LeechSuspendedAt, &r.GraduatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if card.Valid && card.String != "" {
		r.Card = []byte(card.String)
	}
	return &r, nil
}

func cardArg(card []byte) any {
	if len(card) == 0 {
		return nil
	}
	return string(card)
}

// CreateRecord inserts a new knowledge record.
func (db *DB) CreateRecord(r *KnowledgeRecord) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO knowledge_records (word_id, state, card, acquisition_box, acquisition_next_due,
			times_seen, times_correct, introduced_at, leech_suspended_at, graduated_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.WordID, r.State, cardArg(r.Card), r.AcquisitionBox, r.AcquisitionNextDue,
		r.TimesSeen, r.TimesCorrect, r.IntroducedAt, r.LeechSuspendedAt, r.GraduatedAt, now)
	if err != nil {
		return fmt.Errorf("create record for word %d: %w", r.WordID, err)
	}
	r.UpdatedAt = now
	return nil
}

// GetRecord returns the knowledge record for a word, or nil if none exists.
func (db *DB) GetRecord(wordID int64) (*KnowledgeRecord, error) {
	row := db.QueryRow(`SELECT `+recordColumns+` FROM knowledge_records WHERE word_id = ?`, wordID)
	r, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get record %d: %w", wordID, err)
	}
	return r, nil
}

// UpdateRecord persists the full record row in a single UPDATE. This is the
// atomic read-modify-write every logical operation goes through.
func (db *DB) UpdateRecord(r *KnowledgeRecord) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		UPDATE knowledge_records
		SET state = ?, card = ?, acquisition_box = ?, acquisition_next_due = ?,
			times_seen = ?, times_correct = ?, introduced_at = ?,
			leech_suspended_at = ?, graduated_at = ?, updated_at = ?
		WHERE word_id = ?
	`, r.State, cardArg(r.Card), r.AcquisitionBox, r.AcquisitionNextDue,
		r.TimesSeen, r.TimesCorrect, r.IntroducedAt, r.LeechSuspendedAt, r.GraduatedAt, now, r.WordID)
	if err != nil {
		return fmt.Errorf("update record %d: %w", r.WordID, err)
	}
	r.UpdatedAt = now
	return nil
}

// RecordsByState returns all records in any of the given states.
func (db *DB) RecordsByState(states ...string) ([]KnowledgeRecord, error) {
	if len(states) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(states)), ", ")
	args := make([]any, len(states))
	for i, s := range states {
		args[i] = s
	}

	rows, err := db.Query(`SELECT `+recordColumns+` FROM knowledge_records WHERE state IN (`+placeholders+`) ORDER BY word_id`, args...)
	if err != nil {
		return nil, fmt.Errorf("records by state: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

// CardedRecords returns all records carrying a reviewer card.
func (db *DB) CardedRecords() ([]KnowledgeRecord, error) {
	rows, err := db.Query(`SELECT ` + recordColumns + ` FROM knowledge_records WHERE card IS NOT NULL ORDER BY word_id`)
	if err != nil {
		return nil, fmt.Errorf("carded records: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

// DueAcquisition returns acquiring records whose box delay has elapsed.
func (db *DB) DueAcquisition(now time.Time) ([]KnowledgeRecord, error) {
	rows, err := db.Query(`
		SELECT `+recordColumns+`
		FROM knowledge_records
		WHERE state = 'acquiring' AND acquisition_next_due <= ?
		ORDER BY acquisition_next_due
	`, now.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("due acquisition: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

// CountByState returns the number of records per state.
func (db *DB) CountByState() (map[string]int, error) {
	rows, err := db.Query(`SELECT state, COUNT(*) FROM knowledge_records GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("count by state: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, fmt.Errorf("scan state count: %w", err)
		}
		out[state] = n
	}
	return out, rows.Err()
}

// KnownWordCount counts words the learner has under long-horizon scheduling
// ('learning' or 'known'). Used by the grammar ladder's unlock gates.
func (db *DB) KnownWordCount() (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM knowledge_records WHERE state IN ('learning', 'known')`).Scan(&n)
	return n, err
}

func collectRecords(rows *sql.Rows) ([]KnowledgeRecord, error) {
	var out []KnowledgeRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}
