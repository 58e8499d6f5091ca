package engine

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/kotobaworks/kotoba/internal/store"
)

// ReviewResult is what a caller gets back from a review submission.
// Replayed idempotency keys return the original result with Duplicate set.
type ReviewResult struct {
	WordID    int64      `json:"word_id"`
	Rating    int        `json:"rating"`
	State     string     `json:"state"`
	Box       *int       `json:"box,omitempty"`
	Due       *time.Time `json:"due,omitempty"`
	Leech     bool       `json:"leech,omitempty"`
	Duplicate bool       `json:"duplicate,omitempty"`
}

// SubmitReview applies one rating (1-4) to a word. The record update and the
// review event commit in one transaction; audit entries and grammar exposure
// bookkeeping follow after.
func (e *Engine) SubmitReview(wordID int64, rating int, mode, idemKey string, now time.Time) (*ReviewResult, error) {
	if rating < 1 || rating > 4 {
		return nil, fmt.Errorf("rating %d: %w", rating, ErrInvalidInput)
	}
	if mode == "" {
		mode = "flashcard"
	}

	// At-least-once delivery: a replayed key returns the prior result and
	// never double-credits.
	if prior, err := e.replayedResult(idemKey); err != nil {
		return nil, err
	} else if prior != nil {
		return prior, nil
	}

	rec, err := e.DB.GetRecord(wordID)
	if err != nil {
		return nil, fmt.Errorf("submit review: %w", err)
	}
	if rec == nil {
		return nil, fmt.Errorf("review word %d: %w", wordID, ErrNotFound)
	}

	result, err := e.applyReview(rec, rating, now)
	if err != nil {
		return nil, err
	}

	ev := &store.ReviewEvent{
		WordID:         wordID,
		Rating:         rating,
		Mode:           mode,
		IdempotencyKey: idemKey,
	}
	if ev.Result, err = json.Marshal(result); err != nil {
		return nil, fmt.Errorf("submit review: %w", err)
	}
	if err := e.DB.SaveReview(rec, ev); err != nil {
		return nil, err
	}

	e.afterReview(wordID, rating >= 3, now)
	e.audit("review", fmt.Sprintf("word %d rated %d -> %s", wordID, rating, rec.State), result)
	return result, nil
}

// replayedResult looks up a previously seen idempotency key and rebuilds its
// result.
func (e *Engine) replayedResult(idemKey string) (*ReviewResult, error) {
	if idemKey == "" {
		return nil, nil
	}
	prior, err := e.DB.GetReviewByKey(idemKey)
	if err != nil {
		return nil, fmt.Errorf("idempotency lookup: %w", err)
	}
	if prior == nil {
		return nil, nil
	}
	var result ReviewResult
	if err := json.Unmarshal(prior.Result, &result); err != nil {
		return nil, fmt.Errorf("replay key %s: %w", idemKey, err)
	}
	result.Duplicate = true
	return &result, nil
}

// applyReview mutates the record in memory for one rating: counters, then
// whichever scheduling regime the record lives in, then the leech check.
// Persistence belongs to the caller.
func (e *Engine) applyReview(rec *store.KnowledgeRecord, rating int, now time.Time) (*ReviewResult, error) {
	correct := rating >= 3

	switch rec.State {
	case store.StateAcquiring, store.StateLearning, store.StateKnown, store.StateLapsed:
	default:
		return nil, fmt.Errorf("review word %d in state %s: %w", rec.WordID, rec.State, ErrInvalidInput)
	}

	rec.TimesSeen++
	if correct {
		rec.TimesCorrect++
	}

	result := &ReviewResult{WordID: rec.WordID, Rating: rating}

	if rec.State == store.StateAcquiring {
		if err := e.advanceAcquisition(rec, correct, now); err != nil {
			return nil, err
		}
	} else {
		card, info, err := e.Reviewer.Review(rec.Card, rating, now)
		if err != nil {
			return nil, fmt.Errorf("review word %d: %w", rec.WordID, err)
		}
		rec.Card = card
		rec.State = stateForLabel(info.State)
		due := info.Due
		result.Due = &due
		checkInvariant(rec)
	}

	// Leech check uses the same predicate as the sweep; the two must agree.
	if isLeech(rec.TimesSeen, rec.TimesCorrect) {
		suspendAsLeech(rec, now)
		result.Leech = true
		e.audit("leech_suspend", fmt.Sprintf("suspended word %d as leech", rec.WordID), map[string]any{
			"word_id":       rec.WordID,
			"times_seen":    rec.TimesSeen,
			"times_correct": rec.TimesCorrect,
		})
	}

	result.State = rec.State
	result.Box = rec.AcquisitionBox
	if rec.AcquisitionNextDue != nil {
		due := time.UnixMilli(*rec.AcquisitionNextDue)
		result.Due = &due
	}
	return result, nil
}

// stateForLabel maps the reviewer's state label onto record states:
// fresh cards are 'learning', settled cards 'known', forgotten ones
// 'lapsed'.
func stateForLabel(label string) string {
	switch label {
	case "Review":
		return store.StateKnown
	case "Relearning":
		return store.StateLapsed
	default:
		return store.StateLearning
	}
}

// afterReview records grammar exposure for the word's tags. Failures are
// advisory; the review already committed.
func (e *Engine) afterReview(wordID int64, correct bool, now time.Time) {
	w, err := e.DB.GetWord(wordID)
	if err != nil || w == nil {
		return
	}
	for _, tag := range w.GrammarTags {
		if err := e.RecordExposure(tag, correct, now); err != nil {
			log.Printf("grammar exposure %s: %v", tag, err)
		}
	}
}
