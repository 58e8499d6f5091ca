// Package reviewer adapts a spaced-repetition memory model behind an opaque
// card blob. The engine stores and passes cards verbatim and inspects only
// the stability, due time, and state label.
package reviewer

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sky-flux/flux"
)

// CardInfo is the slice of a card the engine is allowed to see.
type CardInfo struct {
	Stability float64 // estimated memory stability in days; 0 before first review
	Due       time.Time
	State     string // "Learning", "Review", "Relearning"
}

// Reviewer is the memory-model capability. Implementations own the card
// format; callers must not depend on its contents beyond CardInfo.
type Reviewer interface {
	// NewCard creates a fresh card for a word, due immediately.
	NewCard(wordID int64, now time.Time) ([]byte, CardInfo, error)
	// Review applies a rating (1-4) and returns the successor card.
	Review(card []byte, rating int, now time.Time) ([]byte, CardInfo, error)
	// Inspect reads the visible fields without mutating the card.
	Inspect(card []byte) (CardInfo, error)
}

// FSRS implements Reviewer with the flux FSRS v6 scheduler.
type FSRS struct {
	sched *flux.Scheduler
}

// NewFSRS creates an FSRS reviewer with default parameters. Fuzzing is
// disabled so due times are reproducible.
func NewFSRS() (*FSRS, error) {
	sched, err := flux.NewScheduler(flux.SchedulerConfig{DisableFuzzing: true})
	if err != nil {
		return nil, fmt.Errorf("new scheduler: %w", err)
	}
	return &FSRS{sched: sched}, nil
}

func (f *FSRS) NewCard(wordID int64, now time.Time) ([]byte, CardInfo, error) {
	card := flux.NewCard(wordID)
	card.Due = now

	blob, err := json.Marshal(card)
	if err != nil {
		return nil, CardInfo{}, fmt.Errorf("marshal card: %w", err)
	}
	return blob, infoFor(card), nil
}

func (f *FSRS) Review(blob []byte, rating int, now time.Time) ([]byte, CardInfo, error) {
	if rating < 1 || rating > 4 {
		return nil, CardInfo{}, fmt.Errorf("rating %d out of range 1-4", rating)
	}

	var card flux.Card
	if err := json.Unmarshal(blob, &card); err != nil {
		return nil, CardInfo{}, fmt.Errorf("unmarshal card: %w", err)
	}

	next, _ := f.sched.ReviewCard(card, flux.Rating(rating), now)

	out, err := json.Marshal(next)
	if err != nil {
		return nil, CardInfo{}, fmt.Errorf("marshal card: %w", err)
	}
	return out, infoFor(next), nil
}

func (f *FSRS) Inspect(blob []byte) (CardInfo, error) {
	var card flux.Card
	if err := json.Unmarshal(blob, &card); err != nil {
		return CardInfo{}, fmt.Errorf("unmarshal card: %w", err)
	}
	return infoFor(card), nil
}

func infoFor(card flux.Card) CardInfo {
	info := CardInfo{
		Due:   card.Due,
		State: card.State.String(),
	}
	if card.Stability != nil {
		info.Stability = *card.Stability
	}
	return info
}
