package engine

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/kotobaworks/kotoba/internal/store"
)

// Candidate is one ranked un-introduced word.
type Candidate struct {
	Word            store.Word `json:"word"`
	Score           float64    `json:"score"`
	Frequency       float64    `json:"frequency"`
	RootFamiliarity float64    `json:"root_familiarity"`
	RecencyBonus    float64    `json:"recency_bonus"`
	Pattern         float64    `json:"pattern"`
}

// NextWords ranks introduction candidates: words with no record or still
// 'encountered', minus session exclusions, topic-ineligible words, and
// variants. Highest score first; ties break by lowest frequency rank, then
// id.
func (e *Engine) NextWords(limit int, exclude []int64, now time.Time) ([]Candidate, error) {
	activeTopic, err := e.EnsureActiveTopic(now)
	if err != nil {
		return nil, err
	}

	words, err := e.DB.CandidateWords()
	if err != nil {
		return nil, fmt.Errorf("next words: %w", err)
	}

	excluded := make(map[int64]bool, len(exclude))
	for _, id := range exclude {
		excluded[id] = true
	}

	var out []Candidate
	for i := range words {
		w := &words[i]
		if excluded[w.ID] {
			continue
		}
		// Domain-tagged words wait for their topic's turn. With no active
		// topic the gate stays open.
		if activeTopic != "" && w.Domain != "" && w.Domain != activeTopic {
			continue
		}

		c, err := e.scoreCandidate(w, now)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		ri, rj := rankOrHuge(out[i].Word.FreqRank), rankOrHuge(out[j].Word.FreqRank)
		if ri != rj {
			return ri < rj
		}
		return out[i].Word.ID < out[j].Word.ID
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func rankOrHuge(rank *int) int {
	if rank == nil {
		return math.MaxInt32
	}
	return *rank
}

func (e *Engine) scoreCandidate(w *store.Word, now time.Time) (*Candidate, error) {
	freq := freqScore(w.FreqRank)

	rootFam, lastSiblingIntro, err := e.rootFamiliarity(w)
	if err != nil {
		return nil, err
	}

	recency := 0.0
	if rootFam > 0 && lastSiblingIntro != nil {
		ago := now.Sub(time.UnixMilli(*lastSiblingIntro))
		if ago >= 24*time.Hour && ago <= 72*time.Hour {
			recency = 0.2
		}
	}

	pattern, err := e.PatternScore(w.GrammarTags, now)
	if err != nil {
		return nil, err
	}

	return &Candidate{
		Word:            *w,
		Score:           0.4*freq + 0.3*rootFam + 0.2*recency + 0.1*pattern,
		Frequency:       freq,
		RootFamiliarity: rootFam,
		RecencyBonus:    recency,
		Pattern:         pattern,
	}, nil
}

// freqScore favors common words: 1/log2(rank+2), with a middling default
// when the rank is unknown.
func freqScore(rank *int) float64 {
	if rank == nil {
		return 0.3
	}
	return 1 / math.Log2(float64(*rank)+2)
}

// rootFamiliarity peaks when about half of a word's root family is known:
// a fully known family offers little new, an unknown one no footing. Also
// returns the most recent sibling introduction time for the recency bonus.
func (e *Engine) rootFamiliarity(w *store.Word) (float64, *int64, error) {
	if w.RootID == nil {
		return 0, nil, nil
	}
	siblings, err := e.Morph.RootFamily(w.ID)
	if err != nil {
		return 0, nil, fmt.Errorf("root familiarity: %w", err)
	}
	if len(siblings) == 0 {
		return 0, nil, nil
	}

	known := 0
	var lastIntro *int64
	for i := range siblings {
		if siblings[i].Known() {
			known++
		}
		if t := siblings[i].IntroducedAt; t != nil {
			if lastIntro == nil || *t > *lastIntro {
				lastIntro = t
			}
		}
	}

	if known == 0 {
		return 0, lastIntro, nil
	}
	r := float64(known) / float64(len(siblings))
	if r == 1 {
		return 0.1, lastIntro, nil
	}
	return 4 * r * (1 - r), lastIntro, nil
}

// IntroduceResult reports the outcome of an introduction attempt.
type IntroduceResult struct {
	WordID       int64  `json:"word_id"`
	AlreadyKnown bool   `json:"already_known"`
	State        string `json:"state"`
}

// Introduce starts a word's learning life. Idempotent: a second call with
// no intervening change reports already_known and mutates nothing.
// Suspended words are reactivated straight into reviewer scheduling.
func (e *Engine) Introduce(wordID int64, now time.Time) (*IntroduceResult, error) {
	w, err := e.DB.GetWord(wordID)
	if err != nil {
		return nil, fmt.Errorf("introduce: %w", err)
	}
	if w == nil {
		return nil, fmt.Errorf("introduce word %d: %w", wordID, ErrNotFound)
	}
	if w.IsVariant() {
		return nil, fmt.Errorf("introduce word %d is a variant: %w", wordID, ErrInvalidInput)
	}

	if _, err := e.EnsureActiveTopic(now); err != nil {
		return nil, err
	}

	rec, err := e.DB.GetRecord(wordID)
	if err != nil {
		return nil, fmt.Errorf("introduce: %w", err)
	}

	switch {
	case rec != nil && rec.State == store.StateSuspended:
		// Re-encounter of a parked word, not a leech reintroduction:
		// counters stay.
		if err := e.reactivate(rec, now); err != nil {
			return nil, err
		}
		if err := e.DB.UpdateRecord(rec); err != nil {
			return nil, fmt.Errorf("introduce: %w", err)
		}
		e.audit("word_reactivate", fmt.Sprintf("reactivated word %d from suspension", wordID), nil)
		return &IntroduceResult{WordID: wordID, State: rec.State}, nil

	case rec != nil && rec.State != store.StateNew && rec.State != store.StateEncountered:
		return &IntroduceResult{WordID: wordID, AlreadyKnown: true, State: rec.State}, nil

	case rec != nil:
		// Encountered incidentally before; now formally introduced.
		intro := now.UnixMilli()
		rec.IntroducedAt = &intro
		enterAcquisition(rec, now)
		if err := e.DB.UpdateRecord(rec); err != nil {
			return nil, fmt.Errorf("introduce: %w", err)
		}

	default:
		intro := now.UnixMilli()
		rec = &store.KnowledgeRecord{WordID: wordID, IntroducedAt: &intro}
		enterAcquisition(rec, now)
		if err := e.DB.CreateRecord(rec); err != nil {
			return nil, fmt.Errorf("introduce: %w", err)
		}
	}

	if err := e.DB.BumpTopicCounter(); err != nil {
		return nil, fmt.Errorf("introduce: %w", err)
	}

	e.audit("word_introduce", fmt.Sprintf("introduced word %d (%s)", wordID, w.Bare), map[string]any{
		"word_id": wordID,
		"domain":  w.Domain,
	})

	// Pre-generate practice sentences in the background; a failing content
	// call never blocks the introduction.
	if e.LLM != nil {
		id := wordID
		e.enqueue(func() { e.pregenerate(id) })
	}

	return &IntroduceResult{WordID: wordID, State: store.StateAcquiring}, nil
}

// Suspend parks a word by hand. No leech stamp, so it never auto-returns.
func (e *Engine) Suspend(wordID int64, now time.Time) error {
	rec, err := e.DB.GetRecord(wordID)
	if err != nil {
		return fmt.Errorf("suspend: %w", err)
	}
	if rec == nil {
		return fmt.Errorf("suspend word %d: %w", wordID, ErrNotFound)
	}
	if rec.State == store.StateSuspended {
		return nil
	}
	suspendManually(rec)
	if err := e.DB.UpdateRecord(rec); err != nil {
		return fmt.Errorf("suspend: %w", err)
	}
	e.audit("word_suspend", fmt.Sprintf("manually suspended word %d", wordID), nil)
	return nil
}

// Unsuspend revives a suspended word into reviewer scheduling.
func (e *Engine) Unsuspend(wordID int64, now time.Time) error {
	rec, err := e.DB.GetRecord(wordID)
	if err != nil {
		return fmt.Errorf("unsuspend: %w", err)
	}
	if rec == nil {
		return fmt.Errorf("unsuspend word %d: %w", wordID, ErrNotFound)
	}
	if rec.State != store.StateSuspended {
		return fmt.Errorf("unsuspend word %d in state %s: %w", wordID, rec.State, ErrInvalidInput)
	}
	if err := e.reactivate(rec, now); err != nil {
		return err
	}
	if err := e.DB.UpdateRecord(rec); err != nil {
		return fmt.Errorf("unsuspend: %w", err)
	}
	e.audit("word_unsuspend", fmt.Sprintf("unsuspended word %d", wordID), nil)
	return nil
}
