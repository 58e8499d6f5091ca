package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Sentence is a practice sentence built around one target word.
type Sentence struct {
	ID           int64
	Text         string
	TargetWordID int64
	WordIDs      []int64 // every dictionary word appearing in the sentence
	TimesShown   int
	LastShownAt  *int64
	Source       string // "generated", "imported"
	CreatedAt    int64
}

const sentenceColumns = `id, text, target_word_id, word_ids, times_shown, last_shown_at, source, created_at`

func scanSentence(row interface{ Scan(...any) error }) (*Sentence, error) {
	var s Sentence
	var ids string
	err := row.Scan(&s.ID, &s.Text, &s.TargetWordID, &ids, &s.TimesShown, &s.LastShownAt, &s.Source, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(ids), &s.WordIDs); err != nil {
		s.WordIDs = nil
	}
	return &s, nil
}

// CreateSentence stores a new practice sentence.
func (db *DB) CreateSentence(s *Sentence) error {
	now := time.Now().UnixMilli()
	ids, err := json.Marshal(s.WordIDs)
	if err != nil {
		return fmt.Errorf("marshal word ids: %w", err)
	}
	if s.WordIDs == nil {
		ids = []byte("[]")
	}
	if s.Source == "" {
		s.Source = "generated"
	}

	result, err := db.Exec(`
		INSERT INTO sentences (text, target_word_id, word_ids, times_shown, last_shown_at, source, created_at)
		VALUES (?, ?, ?, 0, NULL, ?, ?)
	`, s.Text, s.TargetWordID, string(ids), s.Source, now)
	if err != nil {
		return fmt.Errorf("create sentence: %w", err)
	}

	id, _ := result.LastInsertId()
	s.ID = id
	s.CreatedAt = now
	return nil
}

// GetSentence returns the sentence with the given id, or nil if not found.
func (db *DB) GetSentence(id int64) (*Sentence, error) {
	row := db.QueryRow(`SELECT `+sentenceColumns+` FROM sentences WHERE id = ?`, id)
	s, err := scanSentence(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get sentence %d: %w", id, err)
	}
	return s, nil
}

// TouchSentence bumps times_shown and stamps last_shown_at.
func (db *DB) TouchSentence(id int64, now time.Time) error {
	_, err := db.Exec(`
		UPDATE sentences SET times_shown = times_shown + 1, last_shown_at = ? WHERE id = ?
	`, now.UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("touch sentence %d: %w", id, err)
	}
	return nil
}

// SentencesForTarget returns stored sentences for a target word, newest first.
func (db *DB) SentencesForTarget(wordID int64, limit int) ([]Sentence, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Query(`
		SELECT `+sentenceColumns+` FROM sentences
		WHERE target_word_id = ? ORDER BY created_at DESC LIMIT ?
	`, wordID, limit)
	if err != nil {
		return nil, fmt.Errorf("sentences for word %d: %w", wordID, err)
	}
	defer rows.Close()

	var out []Sentence
	for rows.Next() {
		s, err := scanSentence(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sentence: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}
