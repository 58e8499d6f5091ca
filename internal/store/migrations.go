package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "words: dictionary entries",
		SQL: `
CREATE TABLE words (
    id           INTEGER PRIMARY KEY,
    bare         TEXT NOT NULL,
    reading      TEXT,
    pos          TEXT,
    gloss        TEXT,
    root_id      INTEGER,
    freq_rank    INTEGER,
    domain       TEXT NOT NULL DEFAULT '',
    grammar_tags TEXT NOT NULL DEFAULT '[]',
    canonical_id INTEGER,
    created_at   INTEGER NOT NULL,
    updated_at   INTEGER NOT NULL,

    FOREIGN KEY (root_id)      REFERENCES words(id),
    FOREIGN KEY (canonical_id) REFERENCES words(id)
);

CREATE UNIQUE INDEX idx_words_bare_pos ON words(bare, pos);
CREATE INDEX idx_words_root      ON words(root_id);
CREATE INDEX idx_words_domain    ON words(domain);
CREATE INDEX idx_words_canonical ON words(canonical_id);
`,
	},
	{
		Version:     2,
		Description: "knowledge_records: per-word learner state",
		SQL: `
CREATE TABLE knowledge_records (
    word_id              INTEGER PRIMARY KEY,
    state                TEXT NOT NULL CHECK (state IN ('new', 'encountered', 'acquiring', 'learning', 'known', 'lapsed', 'suspended')),
    card                 TEXT,
    acquisition_box      INTEGER CHECK (acquisition_box BETWEEN 1 AND 3),
    acquisition_next_due INTEGER,
    times_seen           INTEGER NOT NULL DEFAULT 0,
    times_correct        INTEGER NOT NULL DEFAULT 0,
    introduced_at        INTEGER,
    leech_suspended_at   INTEGER,
    graduated_at         INTEGER,
    updated_at           INTEGER NOT NULL,

    FOREIGN KEY (word_id) REFERENCES words(id)
);

CREATE INDEX idx_records_state ON knowledge_records(state);
CREATE INDEX idx_records_acq_due ON knowledge_records(acquisition_next_due);
`,
	},
	{
		Version:     3,
		Description: "review_events: immutable review log",
		SQL: `
CREATE TABLE review_events (
    id              INTEGER PRIMARY KEY,
    word_id         INTEGER NOT NULL,
    rating          INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 4),
    mode            TEXT NOT NULL DEFAULT 'flashcard',
    sentence_id     INTEGER,
    credit_type     TEXT,
    idempotency_key TEXT UNIQUE,
    result          TEXT,
    created_at      INTEGER NOT NULL,

    FOREIGN KEY (word_id) REFERENCES words(id)
);

CREATE INDEX idx_reviews_word    ON review_events(word_id, created_at DESC);
CREATE INDEX idx_reviews_created ON review_events(created_at DESC);
`,
	},
	{
		Version:     4,
		Description: "sentences: generated practice sentences",
		SQL: `
CREATE TABLE sentences (
    id             INTEGER PRIMARY KEY,
    text           TEXT NOT NULL,
    target_word_id INTEGER NOT NULL,
    word_ids       TEXT NOT NULL DEFAULT '[]',
    times_shown    INTEGER NOT NULL DEFAULT 0,
    last_shown_at  INTEGER,
    source         TEXT NOT NULL DEFAULT 'generated',
    created_at     INTEGER NOT NULL,

    FOREIGN KEY (target_word_id) REFERENCES words(id)
);

CREATE INDEX idx_sentences_target ON sentences(target_word_id);
`,
	},
	{
		Version:     5,
		Description: "grammar_exposures: per-feature practice counters",
		SQL: `
CREATE TABLE grammar_exposures (
    feature       TEXT PRIMARY KEY,
    times_seen    INTEGER NOT NULL DEFAULT 0,
    times_correct INTEGER NOT NULL DEFAULT 0,
    first_seen_at INTEGER,
    last_seen_at  INTEGER
);
`,
	},
	{
		Version:     6,
		Description: "topic_state + topic_history: rotation automaton",
		SQL: `
CREATE TABLE topic_state (
    id               INTEGER PRIMARY KEY CHECK (id = 1),
    active_topic     TEXT NOT NULL DEFAULT '',
    topic_started_at INTEGER,
    words_introduced INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE topic_history (
    id               INTEGER PRIMARY KEY,
    topic            TEXT NOT NULL,
    started_at       INTEGER NOT NULL,
    ended_at         INTEGER NOT NULL,
    words_introduced INTEGER NOT NULL
);

CREATE INDEX idx_topic_history_ended ON topic_history(ended_at DESC);
`,
	},
	{
		Version:     7,
		Description: "activity_log: fire-and-forget audit trail",
		SQL: `
CREATE TABLE activity_log (
    id         INTEGER PRIMARY KEY,
    entry_id   TEXT NOT NULL,
    event_type TEXT NOT NULL,
    summary    TEXT NOT NULL,
    detail     TEXT,
    created_at INTEGER NOT NULL
);

CREATE INDEX idx_activity_created ON activity_log(created_at DESC);
CREATE INDEX idx_activity_type    ON activity_log(event_type);
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
