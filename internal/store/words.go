package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Word is a dictionary entry (lemma). Immutable after import except for
// async enrichment and variant linking.
type Word struct {
	ID          int64
	Bare        string // dictionary form
	Reading     string
	POS         string
	Gloss       string
	RootID      *int64
	FreqRank    *int // nil when unknown
	Domain      string
	GrammarTags []string
	CanonicalID *int64 // set when this entry is a variant of another
	CreatedAt   int64
	UpdatedAt   int64
}

// IsVariant reports whether the word is a variant spelling of another entry.
// Variants are excluded from all scoring and selection.
func (w *Word) IsVariant() bool {
	return w.CanonicalID != nil
}

const wordColumns = `id, bare, reading, pos, gloss, root_id, freq_rank, domain, grammar_tags, canonical_id, created_at, updated_at`

func scanWord(row interface{ Scan(...any) error }) (*Word, error) {
	var w Word
	var tags string
	err := row.Scan(&w.ID, &w.Bare, &w.Reading, &w.POS, &w.Gloss,
		&w.RootID, &w.FreqRank, &w.Domain, &tags, &w.CanonicalID,
		&w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tags), &w.GrammarTags); err != nil {
		w.GrammarTags = nil
	}
	return &w, nil
}

// CreateWord inserts a new dictionary entry.
func (db *DB) CreateWord(w *Word) error {
	now := time.Now().UnixMilli()
	tags, err := json.Marshal(w.GrammarTags)
	if err != nil {
		return fmt.Errorf("marshal grammar tags: %w", err)
	}
	if w.GrammarTags == nil {
		tags = []byte("[]")
	}

	result, err := db.Exec(`
		INSERT INTO words (bare, reading, pos, gloss, root_id, freq_rank, domain, grammar_tags, canonical_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, w.Bare, w.Reading, w.POS, w.Gloss, w.RootID, w.FreqRank, w.Domain, string(tags), w.CanonicalID, now, now)
	if err != nil {
		return fmt.Errorf("create word: %w", err)
	}

	id, _ := result.LastInsertId()
	w.ID = id
	w.CreatedAt = now
	w.UpdatedAt = now
	return nil
}

// GetWord returns the word with the given id, or nil if not found.
func (db *DB) GetWord(id int64) (*Word, error) {
	row := db.QueryRow(`SELECT `+wordColumns+` FROM words WHERE id = ?`, id)
	w, err := scanWord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get word %d: %w", id, err)
	}
	return w, nil
}

// GetWordByBare looks up a word by its bare form and part of speech.
func (db *DB) GetWordByBare(bare, pos string) (*Word, error) {
	row := db.QueryRow(`SELECT `+wordColumns+` FROM words WHERE bare = ? AND pos = ?`, bare, pos)
	w, err := scanWord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get word %q: %w", bare, err)
	}
	return w, nil
}

// WordsByIDs loads words for the given ids. Missing ids are silently skipped.
func (db *DB) WordsByIDs(ids []int64) (map[int64]*Word, error) {
	out := make(map[int64]*Word, len(ids))
	for _, id := range ids {
		w, err := db.GetWord(id)
		if err != nil {
			return nil, err
		}
		if w != nil {
			out[id] = w
		}
	}
	return out, nil
}

// LinkVariant marks variantID as a variant spelling of canonicalID.
func (db *DB) LinkVariant(variantID, canonicalID int64) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE words SET canonical_id = ?, updated_at = ? WHERE id = ?`,
		canonicalID, now, variantID)
	if err != nil {
		return fmt.Errorf("link variant %d -> %d: %w", variantID, canonicalID, err)
	}
	return nil
}

// EnrichWord updates the async-enrichment fields (gloss, reading, tags).
func (db *DB) EnrichWord(id int64, gloss, reading string, tags []string) error {
	now := time.Now().UnixMilli()
	tagJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("marshal grammar tags: %w", err)
	}
	_, err = db.Exec(`UPDATE words SET gloss = ?, reading = ?, grammar_tags = ?, updated_at = ? WHERE id = ?`,
		gloss, reading, string(tagJSON), now, id)
	if err != nil {
		return fmt.Errorf("enrich word %d: %w", id, err)
	}
	return nil
}

// CandidateWords returns non-variant words that have never been introduced:
// no knowledge record, or a record still in 'new'/'encountered'.
func (db *DB) CandidateWords() ([]Word, error) {
	rows, err := db.Query(`
		SELECT ` + prefixedWordColumns("w") + `
		FROM words w
		LEFT JOIN knowledge_records r ON r.word_id = w.id
		WHERE w.canonical_id IS NULL
		  AND (r.word_id IS NULL OR r.state IN ('new', 'encountered'))
	`)
	if err != nil {
		return nil, fmt.Errorf("candidate words: %w", err)
	}
	defer rows.Close()
	return collectWords(rows)
}

// SiblingsByRoot returns all non-variant words sharing the given root,
// including the root entry itself if it is a word.
func (db *DB) SiblingsByRoot(rootID int64) ([]Word, error) {
	rows, err := db.Query(`
		SELECT `+wordColumns+`
		FROM words
		WHERE canonical_id IS NULL AND (root_id = ? OR id = ?)
	`, rootID, rootID)
	if err != nil {
		return nil, fmt.Errorf("siblings of root %d: %w", rootID, err)
	}
	defer rows.Close()
	return collectWords(rows)
}

// AvailableByDomain counts un-introduced, non-variant, domain-tagged words
// per domain. Feeds topic eligibility.
func (db *DB) AvailableByDomain() (map[string]int, error) {
	rows, err := db.Query(`
		SELECT w.domain, COUNT(*)
		FROM words w
		LEFT JOIN knowledge_records r ON r.word_id = w.id
		WHERE w.canonical_id IS NULL
		  AND w.domain != ''
		  AND (r.word_id IS NULL OR r.state IN ('new', 'encountered'))
		GROUP BY w.domain
	`)
	if err != nil {
		return nil, fmt.Errorf("available by domain: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var domain string
		var n int
		if err := rows.Scan(&domain, &n); err != nil {
			return nil, fmt.Errorf("scan domain count: %w", err)
		}
		out[domain] = n
	}
	return out, rows.Err()
}

// WordsMissingGloss returns non-variant words imported without a gloss,
// oldest first. Feeds the async enrichment pass.
func (db *DB) WordsMissingGloss(limit int) ([]Word, error) {
	rows, err := db.Query(`
		SELECT `+wordColumns+`
		FROM words
		WHERE canonical_id IS NULL AND gloss = ''
		ORDER BY created_at ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("words missing gloss: %w", err)
	}
	defer rows.Close()
	return collectWords(rows)
}

// CountWords returns the total number of dictionary entries.
func (db *DB) CountWords() (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM words`).Scan(&n)
	return n, err
}

func prefixedWordColumns(alias string) string {
	return alias + ".id, " + alias + ".bare, " + alias + ".reading, " + alias + ".pos, " +
		alias + ".gloss, " + alias + ".root_id, " + alias + ".freq_rank, " + alias + ".domain, " +
		alias + ".grammar_tags, " + alias + ".canonical_id, " + alias + ".created_at, " + alias + ".updated_at"
}

func collectWords(rows *sql.Rows) ([]Word, error) {
	var out []Word
	for rows.Next() {
		w, err := scanWord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan word: %w", err)
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}
