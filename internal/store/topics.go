package store

import (
	"database/sql"
	"fmt"
	"time"
)

// TopicState is the singleton rotation state. Created on first access,
// mutated by read-modify-write per call.
type TopicState struct {
	ActiveTopic     string // "" when inactive
	TopicStartedAt  *int64
	WordsIntroduced int
}

// TopicEra is one archived run of an active topic.
type TopicEra struct {
	ID              int64
	Topic           string
	StartedAt       int64
	EndedAt         int64
	WordsIntroduced int
}

// GetTopicState loads the singleton topic row, creating it on first access.
func (db *DB) GetTopicState() (*TopicState, error) {
	var s TopicState
	row := db.QueryRow(`SELECT active_topic, topic_started_at, words_introduced FROM topic_state WHERE id = 1`)
	err := row.Scan(&s.ActiveTopic, &s.TopicStartedAt, &s.WordsIntroduced)
	if err == sql.ErrNoRows {
		if _, err := db.Exec(`INSERT INTO topic_state (id, active_topic, words_introduced) VALUES (1, '', 0)`); err != nil {
			return nil, fmt.Errorf("init topic state: %w", err)
		}
		return &TopicState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get topic state: %w", err)
	}
	return &s, nil
}

// SaveTopicState writes the singleton topic row.
func (db *DB) SaveTopicState(s *TopicState) error {
	_, err := db.Exec(`
		INSERT INTO topic_state (id, active_topic, topic_started_at, words_introduced)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			active_topic = excluded.active_topic,
			topic_started_at = excluded.topic_started_at,
			words_introduced = excluded.words_introduced
	`, s.ActiveTopic, s.TopicStartedAt, s.WordsIntroduced)
	if err != nil {
		return fmt.Errorf("save topic state: %w", err)
	}
	return nil
}

// BumpTopicCounter increments words_introduced on the singleton row.
func (db *DB) BumpTopicCounter() error {
	_, err := db.Exec(`UPDATE topic_state SET words_introduced = words_introduced + 1 WHERE id = 1`)
	if err != nil {
		return fmt.Errorf("bump topic counter: %w", err)
	}
	return nil
}

// ArchiveTopic records a finished topic run into the history.
func (db *DB) ArchiveTopic(topic string, startedAt int64, endedAt time.Time, wordsIntroduced int) error {
	_, err := db.Exec(`
		INSERT INTO topic_history (topic, started_at, ended_at, words_introduced)
		VALUES (?, ?, ?, ?)
	`, topic, startedAt, endedAt.UnixMilli(), wordsIntroduced)
	if err != nil {
		return fmt.Errorf("archive topic %q: %w", topic, err)
	}
	return nil
}

// TopicHistory returns archived topic runs, newest first.
func (db *DB) TopicHistory(limit int) ([]TopicEra, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Query(`
		SELECT id, topic, started_at, ended_at, words_introduced
		FROM topic_history ORDER BY ended_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("topic history: %w", err)
	}
	defer rows.Close()

	var out []TopicEra
	for rows.Next() {
		var e TopicEra
		if err := rows.Scan(&e.ID, &e.Topic, &e.StartedAt, &e.EndedAt, &e.WordsIntroduced); err != nil {
			return nil, fmt.Errorf("scan topic era: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
