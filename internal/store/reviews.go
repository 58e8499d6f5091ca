package store

import (
	"database/sql"
	"fmt"
	"time"
)

// ReviewEvent is one immutable entry in the review log.
type ReviewEvent struct {
	ID             int64
	WordID         int64
	Rating         int // 1-4
	Mode           string
	SentenceID     *int64
	CreditType     string // "primary" or "collateral" for sentence reviews
	IdempotencyKey string
	Result         []byte // JSON result returned to the caller, replayed on duplicates
	CreatedAt      int64
}

const reviewColumns = `id, word_id, rating, mode, sentence_id, credit_type, idempotency_key, result, created_at`

func scanReview(row interface{ Scan(...any) error }) (*ReviewEvent, error) {
	var ev ReviewEvent
	var credit, key, result sql.NullString
	err := row.Scan(&ev.ID, &ev.WordID, &ev.Rating, &ev.Mode, &ev.SentenceID, &credit, &key, &result, &ev.CreatedAt)
	if err != nil {
		return nil, err
	}
	ev.CreditType = credit.String
	ev.IdempotencyKey = key.String
	if result.Valid {
		ev.Result = []byte(result.String)
	}
	return &ev, nil
}

// GetReviewByKey returns the review event with the given idempotency key,
// or nil if the key has never been seen.
func (db *DB) GetReviewByKey(key string) (*ReviewEvent, error) {
	if key == "" {
		return nil, nil
	}
	row := db.QueryRow(`SELECT `+reviewColumns+` FROM review_events WHERE idempotency_key = ?`, key)
	ev, err := scanReview(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("review by key: %w", err)
	}
	return ev, nil
}

// SaveReview writes the updated knowledge record and the review event in one
// transaction. A failure leaves the prior record state intact.
func (db *DB) SaveReview(r *KnowledgeRecord, ev *ReviewEvent) error {
	now := time.Now().UnixMilli()

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin review tx: %w", err)
	}

	_, err = tx.Exec(`
		UPDATE knowledge_records
		SET state = ?, card = ?, acquisition_box = ?, acquisition_next_due = ?,
			times_seen = ?, times_correct = ?, introduced_at = ?,
			leech_suspended_at = ?, graduated_at = ?, updated_at = ?
		WHERE word_id = ?
	`, r.State, cardArg(r.Card), r.AcquisitionBox, r.AcquisitionNextDue,
		r.TimesSeen, r.TimesCorrect, r.IntroducedAt, r.LeechSuspendedAt, r.GraduatedAt, now, r.WordID)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("update record %d: %w", r.WordID, err)
	}

	var key any
	if ev.IdempotencyKey != "" {
		key = ev.IdempotencyKey
	}
	var credit any
	if ev.CreditType != "" {
		credit = ev.CreditType
	}

	result, err := tx.Exec(`
		INSERT INTO review_events (word_id, rating, mode, sentence_id, credit_type, idempotency_key, result, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, ev.WordID, ev.Rating, ev.Mode, ev.SentenceID, credit, key, cardArg(ev.Result), now)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("insert review event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit review tx: %w", err)
	}

	id, _ := result.LastInsertId()
	ev.ID = id
	ev.CreatedAt = now
	r.UpdatedAt = now
	return nil
}

// ReviewsForWord returns the review history for a word, newest first.
func (db *DB) ReviewsForWord(wordID int64, limit int) ([]ReviewEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT `+reviewColumns+` FROM review_events
		WHERE word_id = ? ORDER BY created_at DESC, id DESC LIMIT ?
	`, wordID, limit)
	if err != nil {
		return nil, fmt.Errorf("reviews for word %d: %w", wordID, err)
	}
	defer rows.Close()

	var out []ReviewEvent
	for rows.Next() {
		ev, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		out = append(out, *ev)
	}
	return out, rows.Err()
}

// CountReviews returns the total size of the review log.
func (db *DB) CountReviews() (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM review_events`).Scan(&n)
	return n, err
}
