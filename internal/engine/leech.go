package engine

import (
	"fmt"
	"time"

	"github.com/kotobaworks/kotoba/internal/store"
)

// isLeech is the single leech predicate: at least leechMinSeen reviews and
// accuracy strictly below the floor. Exactly 40% is not a leech.
func isLeech(timesSeen, timesCorrect int) bool {
	if timesSeen < leechMinSeen {
		return false
	}
	return float64(timesCorrect)/float64(timesSeen) < leechAccuracyFloor
}

// ScanLeeches sweeps every scheduled record and suspends the leeches.
// Idempotent; safe to run concurrently with reviews or repeatedly.
func (e *Engine) ScanLeeches(now time.Time) (int, error) {
	records, err := e.DB.RecordsByState(store.StateLearning, store.StateKnown, store.StateLapsed, store.StateAcquiring)
	if err != nil {
		return 0, fmt.Errorf("leech scan: %w", err)
	}

	suspended := 0
	for i := range records {
		rec := &records[i]
		if !isLeech(rec.TimesSeen, rec.TimesCorrect) {
			continue
		}
		suspendAsLeech(rec, now)
		if err := e.DB.UpdateRecord(rec); err != nil {
			return suspended, fmt.Errorf("leech scan: %w", err)
		}
		suspended++
		e.audit("leech_suspend", fmt.Sprintf("suspended word %d as leech", rec.WordID), map[string]any{
			"word_id":       rec.WordID,
			"times_seen":    rec.TimesSeen,
			"times_correct": rec.TimesCorrect,
		})
	}
	return suspended, nil
}

// CheckLeech evaluates the leech predicate for a single word and suspends it
// on match. Mirrors ScanLeeches for use inside the review path; the two must
// agree, so both defer to isLeech.
func (e *Engine) CheckLeech(wordID int64, now time.Time) (bool, error) {
	rec, err := e.DB.GetRecord(wordID)
	if err != nil {
		return false, fmt.Errorf("leech check: %w", err)
	}
	if rec == nil {
		return false, fmt.Errorf("leech check word %d: %w", wordID, ErrNotFound)
	}

	switch rec.State {
	case store.StateLearning, store.StateKnown, store.StateLapsed, store.StateAcquiring:
	default:
		return false, nil
	}
	if !isLeech(rec.TimesSeen, rec.TimesCorrect) {
		return false, nil
	}

	suspendAsLeech(rec, now)
	if err := e.DB.UpdateRecord(rec); err != nil {
		return false, fmt.Errorf("leech check: %w", err)
	}
	e.audit("leech_suspend", fmt.Sprintf("suspended word %d as leech", wordID), map[string]any{
		"word_id":       wordID,
		"times_seen":    rec.TimesSeen,
		"times_correct": rec.TimesCorrect,
	})
	return true, nil
}

// CheckReintroductions returns cooled-down leeches to acquisition box 1 with
// reset counters. Records suspended manually carry no stamp and are left
// alone.
func (e *Engine) CheckReintroductions(now time.Time) (int, error) {
	records, err := e.DB.RecordsByState(store.StateSuspended)
	if err != nil {
		return 0, fmt.Errorf("leech reintro: %w", err)
	}

	cutoff := now.Add(-leechCooldown).UnixMilli()
	reintroduced := 0
	for i := range records {
		rec := &records[i]
		if rec.LeechSuspendedAt == nil || *rec.LeechSuspendedAt > cutoff {
			continue
		}
		reintroduce(rec, now)
		if err := e.DB.UpdateRecord(rec); err != nil {
			return reintroduced, fmt.Errorf("leech reintro: %w", err)
		}
		reintroduced++
		e.audit("leech_reintro", fmt.Sprintf("reintroduced word %d after cooldown", rec.WordID), map[string]any{
			"word_id": rec.WordID,
			"source":  "leech_reintro",
		})
	}
	return reintroduced, nil
}
