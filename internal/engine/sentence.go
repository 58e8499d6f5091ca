package engine

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/kotobaworks/kotoba/internal/store"
)

// Comprehension signals for sentence-level reviews.
const (
	SignalUnderstood = "understood"
	SignalPartial    = "partial"
	SignalNoIdea     = "no_idea"
)

// Credit types on the review events a sentence review fans out.
const (
	CreditPrimary    = "primary"
	CreditCollateral = "collateral"
)

// SentenceReviewResult reports the per-word outcome of one sentence review.
type SentenceReviewResult struct {
	SentenceID int64        `json:"sentence_id"`
	Signal     string       `json:"signal"`
	Words      []WordCredit `json:"words"`
	Duplicate  bool         `json:"duplicate,omitempty"`
}

// WordCredit is one word's share of a sentence judgment.
type WordCredit struct {
	WordID     int64  `json:"word_id"`
	Rating     int    `json:"rating"`
	CreditType string `json:"credit_type"`
	State      string `json:"state"`
	Encounter  bool   `json:"encounter,omitempty"` // counted but not scheduled
	Skipped    bool   `json:"skipped,omitempty"`   // suspended, left alone
}

// SubmitSentenceReview distributes one comprehension judgment across the
// sentence's words: understood rates everything 3, no_idea everything 1,
// partial rates the missed set 1 and the rest 3. The target word earns
// primary credit, the others collateral. Words without a scheduling regime
// get an encounter-count bump only; a reviewer card is never silently
// created here.
func (e *Engine) SubmitSentenceReview(sentenceID int64, signal string, missed []int64, idemKey string, now time.Time) (*SentenceReviewResult, error) {
	switch signal {
	case SignalUnderstood, SignalPartial, SignalNoIdea:
	default:
		return nil, fmt.Errorf("signal %q: %w", signal, ErrInvalidInput)
	}

	if idemKey != "" {
		prior, err := e.DB.GetReviewByKey(idemKey)
		if err != nil {
			return nil, fmt.Errorf("idempotency lookup: %w", err)
		}
		if prior != nil {
			var result SentenceReviewResult
			if err := json.Unmarshal(prior.Result, &result); err != nil {
				return nil, fmt.Errorf("replay key %s: %w", idemKey, err)
			}
			result.Duplicate = true
			return &result, nil
		}
	}

	sentence, err := e.DB.GetSentence(sentenceID)
	if err != nil {
		return nil, fmt.Errorf("sentence review: %w", err)
	}
	if sentence == nil {
		return nil, fmt.Errorf("sentence %d: %w", sentenceID, ErrNotFound)
	}

	missedSet := make(map[int64]bool, len(missed))
	if signal == SignalPartial {
		for _, id := range missed {
			missedSet[id] = true
		}
	}

	result := &SentenceReviewResult{SentenceID: sentenceID, Signal: signal}

	// The carrier word's event commits last so it can hold the aggregate
	// result under the idempotency key. Normally the target; any credited
	// word when the target sat out.
	var carrierRec *store.KnowledgeRecord
	var carrierCredit *WordCredit

	for _, wordID := range sentence.WordIDs {
		rating := 3
		if signal == SignalNoIdea || missedSet[wordID] {
			rating = 1
		}
		credit := CreditCollateral
		if wordID == sentence.TargetWordID {
			credit = CreditPrimary
		}

		wc, rec, err := e.applyCredit(wordID, rating, credit, now)
		if err != nil {
			return nil, err
		}
		result.Words = append(result.Words, *wc)
		if wc.Skipped {
			continue
		}

		if wordID == sentence.TargetWordID || carrierRec == nil {
			if carrierRec != nil {
				if err := e.logCredit(carrierRec, carrierCredit, sentenceID, "", carrierCredit); err != nil {
					return nil, err
				}
			}
			carrierRec = rec
			carrierCredit = wc
			continue
		}
		if err := e.logCredit(rec, wc, sentenceID, "", wc); err != nil {
			return nil, err
		}
	}

	if carrierRec != nil {
		if err := e.logCredit(carrierRec, carrierCredit, sentenceID, idemKey, result); err != nil {
			return nil, err
		}
	}

	if err := e.DB.TouchSentence(sentenceID, now); err != nil {
		log.Printf("sentence review: touch %d: %v", sentenceID, err)
	}

	e.audit("sentence_review", fmt.Sprintf("sentence %d judged %s", sentenceID, signal), result)
	return result, nil
}

// applyCredit mutates one word's record in memory for its share of the
// judgment. Suspended words sit out; the cooldown owns them.
func (e *Engine) applyCredit(wordID int64, rating int, credit string, now time.Time) (*WordCredit, *store.KnowledgeRecord, error) {
	rec, err := e.DB.GetRecord(wordID)
	if err != nil {
		return nil, nil, fmt.Errorf("sentence credit: %w", err)
	}

	wc := &WordCredit{WordID: wordID, Rating: rating, CreditType: credit}
	correct := rating >= 3

	scheduled := rec != nil &&
		(rec.State == store.StateAcquiring || rec.State == store.StateLearning ||
			rec.State == store.StateKnown || rec.State == store.StateLapsed)

	switch {
	case scheduled:
		if _, err := e.applyReview(rec, rating, now); err != nil {
			return nil, nil, err
		}

	case rec == nil:
		// First incidental encounter; this creates the record.
		rec = &store.KnowledgeRecord{WordID: wordID, State: store.StateEncountered, TimesSeen: 1}
		if correct {
			rec.TimesCorrect = 1
		}
		if err := e.DB.CreateRecord(rec); err != nil {
			return nil, nil, fmt.Errorf("sentence credit: %w", err)
		}
		wc.Encounter = true

	case rec.State == store.StateSuspended:
		wc.State = rec.State
		wc.Skipped = true
		return wc, rec, nil

	default:
		// new/encountered: count the exposure, stay unscheduled.
		rec.State = store.StateEncountered
		rec.TimesSeen++
		if correct {
			rec.TimesCorrect++
		}
		wc.Encounter = true
	}

	wc.State = rec.State
	return wc, rec, nil
}

// logCredit persists the record mutation plus the tagged review event in one
// transaction. resultPayload is what a replayed idempotency key gets back.
func (e *Engine) logCredit(rec *store.KnowledgeRecord, wc *WordCredit, sentenceID int64, idemKey string, resultPayload any) error {
	ev := &store.ReviewEvent{
		WordID:         rec.WordID,
		Rating:         wc.Rating,
		Mode:           "sentence",
		SentenceID:     &sentenceID,
		CreditType:     wc.CreditType,
		IdempotencyKey: idemKey,
	}
	var err error
	if ev.Result, err = json.Marshal(resultPayload); err != nil {
		return fmt.Errorf("sentence credit: %w", err)
	}
	if err := e.DB.SaveReview(rec, ev); err != nil {
		return err
	}

	e.afterReview(rec.WordID, wc.Rating >= 3, time.UnixMilli(ev.CreatedAt))
	return nil
}
