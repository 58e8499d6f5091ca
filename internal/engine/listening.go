package engine

import (
	"fmt"
	"log"
	"time"

	"github.com/kotobaworks/kotoba/internal/store"
)

// ListeningReport scores whether a sentence is safe for aural-only practice.
type ListeningReport struct {
	SentenceID int64             `json:"sentence_id"`
	Confidence float64           `json:"confidence"`
	Eligible   bool              `json:"eligible"`
	WordScores map[int64]float64 `json:"word_scores"`
}

// ListeningReadiness rates every non-target word's aural confidence and
// combines them, weighted toward the weakest link. The target word is
// exempt: it is the thing being practiced.
func (e *Engine) ListeningReadiness(sentenceID int64, now time.Time) (*ListeningReport, error) {
	sentence, err := e.DB.GetSentence(sentenceID)
	if err != nil {
		return nil, fmt.Errorf("listening readiness: %w", err)
	}
	if sentence == nil {
		return nil, fmt.Errorf("sentence %d: %w", sentenceID, ErrNotFound)
	}

	report := &ListeningReport{
		SentenceID: sentenceID,
		WordScores: make(map[int64]float64),
	}

	min := 1.0
	sum := 0.0
	n := 0
	for _, wordID := range sentence.WordIDs {
		if wordID == sentence.TargetWordID {
			continue
		}
		score, err := e.auralConfidence(wordID, now)
		if err != nil {
			return nil, err
		}
		report.WordScores[wordID] = score
		if score < min {
			min = score
		}
		sum += score
		n++
	}

	if n == 0 {
		// Nothing around the target to mishear.
		report.Confidence = 1.0
	} else {
		report.Confidence = 0.6*min + 0.4*(sum/float64(n))
	}
	report.Eligible = report.Confidence >= listeningThreshold && len(sentence.WordIDs) <= listeningMaxWords
	return report, nil
}

// auralConfidence scores one word's listening reliability in [0,1].
func (e *Engine) auralConfidence(wordID int64, now time.Time) (float64, error) {
	rec, err := e.DB.GetRecord(wordID)
	if err != nil {
		return 0, fmt.Errorf("aural confidence: %w", err)
	}

	switch {
	case rec == nil || rec.State == store.StateNew || rec.State == store.StateSuspended:
		return 0, nil
	case rec.State == store.StateLapsed:
		return 0.1, nil
	case rec.TimesSeen < 3:
		return 0.2, nil
	}

	stability := 0.0
	if len(rec.Card) > 0 {
		info, err := e.Reviewer.Inspect(rec.Card)
		if err != nil {
			log.Printf("aural confidence: bad card for word %d: %v", wordID, err)
		} else {
			stability = info.Stability
		}
	}

	switch {
	case stability < 1:
		return 0.3, nil
	case stability < 7:
		return 0.5, nil
	case stability < 30:
		return 0.7, nil
	default:
		return 0.7 + rec.Accuracy()*0.3, nil
	}
}
