package store

import (
	"database/sql"
	"fmt"
	"time"
)

// GrammarExposure tracks how often a grammar feature has been practiced.
type GrammarExposure struct {
	Feature      string
	TimesSeen    int
	TimesCorrect int
	FirstSeenAt  *int64
	LastSeenAt   *int64
}

// GetExposure returns the exposure row for a feature, or nil if unseen.
func (db *DB) GetExposure(feature string) (*GrammarExposure, error) {
	var e GrammarExposure
	row := db.QueryRow(`
		SELECT feature, times_seen, times_correct, first_seen_at, last_seen_at
		FROM grammar_exposures WHERE feature = ?
	`, feature)
	err := row.Scan(&e.Feature, &e.TimesSeen, &e.TimesCorrect, &e.FirstSeenAt, &e.LastSeenAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get exposure %q: %w", feature, err)
	}
	return &e, nil
}

// AllExposures returns every recorded grammar exposure keyed by feature.
func (db *DB) AllExposures() (map[string]GrammarExposure, error) {
	rows, err := db.Query(`
		SELECT feature, times_seen, times_correct, first_seen_at, last_seen_at
		FROM grammar_exposures
	`)
	if err != nil {
		return nil, fmt.Errorf("all exposures: %w", err)
	}
	defer rows.Close()

	out := make(map[string]GrammarExposure)
	for rows.Next() {
		var e GrammarExposure
		if err := rows.Scan(&e.Feature, &e.TimesSeen, &e.TimesCorrect, &e.FirstSeenAt, &e.LastSeenAt); err != nil {
			return nil, fmt.Errorf("scan exposure: %w", err)
		}
		out[e.Feature] = e
	}
	return out, rows.Err()
}

// IncrementExposure bumps the counters for a feature, creating the row on
// first exposure.
func (db *DB) IncrementExposure(feature string, correct bool, now time.Time) error {
	ms := now.UnixMilli()
	correctInc := 0
	if correct {
		correctInc = 1
	}
	_, err := db.Exec(`
		INSERT INTO grammar_exposures (feature, times_seen, times_correct, first_seen_at, last_seen_at)
		VALUES (?, 1, ?, ?, ?)
		ON CONFLICT(feature) DO UPDATE SET
			times_seen = times_seen + 1,
			times_correct = times_correct + ?,
			last_seen_at = ?
	`, feature, correctInc, ms, ms, correctInc, ms)
	if err != nil {
		return fmt.Errorf("increment exposure %q: %w", feature, err)
	}
	return nil
}
