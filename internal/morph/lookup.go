// Package morph provides morphological capabilities: root-family lookup over
// the dictionary and sentence tokenization for lemma mapping.
package morph

import (
	"fmt"

	"github.com/kotobaworks/kotoba/internal/store"
)

// Sibling is one member of a root family together with its learner state.
type Sibling struct {
	Word         store.Word
	State        string // "" when the word has no knowledge record
	IntroducedAt *int64
}

// Lookup answers root-family queries against the dictionary.
type Lookup struct {
	db *store.DB
}

// NewLookup creates a Lookup over the given store.
func NewLookup(db *store.DB) *Lookup {
	return &Lookup{db: db}
}

// RootFamily returns every non-variant word sharing the given word's root,
// excluding the word itself, each annotated with its learner state. Returns
// an empty slice for rootless words.
func (l *Lookup) RootFamily(wordID int64) ([]Sibling, error) {
	w, err := l.db.GetWord(wordID)
	if err != nil {
		return nil, fmt.Errorf("root family: %w", err)
	}
	if w == nil || w.RootID == nil {
		return nil, nil
	}

	words, err := l.db.SiblingsByRoot(*w.RootID)
	if err != nil {
		return nil, fmt.Errorf("root family: %w", err)
	}

	var out []Sibling
	for _, sib := range words {
		if sib.ID == wordID {
			continue
		}
		rec, err := l.db.GetRecord(sib.ID)
		if err != nil {
			return nil, fmt.Errorf("root family record %d: %w", sib.ID, err)
		}
		s := Sibling{Word: sib}
		if rec != nil {
			s.State = rec.State
			s.IntroducedAt = rec.IntroducedAt
		}
		out = append(out, s)
	}
	return out, nil
}

// Known reports whether the sibling counts as known for familiarity scoring.
func (s *Sibling) Known() bool {
	switch s.State {
	case store.StateAcquiring, store.StateLearning, store.StateKnown, store.StateLapsed:
		return true
	}
	return false
}
