package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/kotobaworks/kotoba/internal/llm"
	"github.com/kotobaworks/kotoba/internal/store"
)

// sentenceCandidate is the JSON shape the generation LLM returns.
type sentenceCandidate struct {
	Text  string   `json:"text"`
	Words []string `json:"words"` // dictionary forms of the content words used
}

// GenerateSentences asks the content generator for practice sentences around
// a target word, validates each candidate deterministically, and stores the
// survivors. The retry budget is bounded; when it runs out with nothing
// accepted the caller gets ErrUpstreamUnavailable and no scheduling state
// has been touched.
func (e *Engine) GenerateSentences(ctx context.Context, targetID int64, count int) ([]store.Sentence, error) {
	if e.LLM == nil {
		return nil, fmt.Errorf("no content generator configured: %w", ErrUpstreamUnavailable)
	}
	if count <= 0 {
		count = 3
	}

	target, err := e.DB.GetWord(targetID)
	if err != nil {
		return nil, fmt.Errorf("generate sentences: %w", err)
	}
	if target == nil {
		return nil, fmt.Errorf("word %d: %w", targetID, ErrNotFound)
	}

	known, knownSet, err := e.knownVocab(targetID)
	if err != nil {
		return nil, err
	}

	var avoid []string
	if prior, err := e.DB.SentencesForTarget(targetID, 10); err == nil {
		for _, s := range prior {
			avoid = append(avoid, s.Text)
		}
	}

	var accepted []store.Sentence
	var lastErr error
	for attempt := 0; attempt < generateRetryBudget && len(accepted) < count; attempt++ {
		resp, err := e.LLM.Complete(ctx, llm.SentencePrompt(target.Bare, target.Gloss, known, avoid, count-len(accepted)))
		if err != nil {
			lastErr = err
			continue
		}

		candidates, err := parseSentenceResponse(resp.Content)
		if err != nil {
			lastErr = err
			continue
		}

		for _, c := range candidates {
			if len(accepted) >= count {
				break
			}
			wordIDs, err := e.validateSentence(c, target, knownSet)
			if err != nil {
				log.Printf("generate: rejecting %q: %v", c.Text, err)
				continue
			}

			s := store.Sentence{Text: c.Text, TargetWordID: targetID, WordIDs: wordIDs}
			if err := e.DB.CreateSentence(&s); err != nil {
				return accepted, fmt.Errorf("generate sentences: %w", err)
			}
			accepted = append(accepted, s)
			avoid = append(avoid, c.Text)
		}
	}

	if len(accepted) == 0 {
		if lastErr != nil {
			return nil, fmt.Errorf("sentence generation failed after %d attempts: %v: %w", generateRetryBudget, lastErr, ErrUpstreamUnavailable)
		}
		return nil, fmt.Errorf("no valid sentences after %d attempts: %w", generateRetryBudget, ErrUpstreamUnavailable)
	}
	return accepted, nil
}

// knownVocab collects the bare forms the learner is scheduled on, which is
// the vocabulary pool sentences may draw from.
func (e *Engine) knownVocab(targetID int64) ([]string, map[string]int64, error) {
	records, err := e.DB.RecordsByState(store.StateAcquiring, store.StateLearning, store.StateKnown, store.StateLapsed)
	if err != nil {
		return nil, nil, fmt.Errorf("known vocab: %w", err)
	}

	var bares []string
	set := make(map[string]int64)
	for i := range records {
		w, err := e.DB.GetWord(records[i].WordID)
		if err != nil || w == nil {
			continue
		}
		if w.ID == targetID {
			continue
		}
		bares = append(bares, w.Bare)
		set[w.Bare] = w.ID
	}
	return bares, set, nil
}

// validateSentence applies the deterministic acceptance checks: the target
// must appear, and every content word must come from the known pool. With an
// analyzer configured the sentence text itself is cross-checked; without one
// the declared word list is trusted.
func (e *Engine) validateSentence(c sentenceCandidate, target *store.Word, knownSet map[string]int64) ([]int64, error) {
	c.Text = strings.TrimSpace(c.Text)
	if c.Text == "" {
		return nil, fmt.Errorf("empty text")
	}

	wordIDs := []int64{target.ID}
	seen := map[int64]bool{target.ID: true}

	if e.Analyzer != nil {
		lemmas := e.Analyzer.ContentLemmas(c.Text)
		targetFound := false
		for _, lemma := range lemmas {
			if lemma == target.Bare {
				targetFound = true
				continue
			}
			id, ok := knownSet[lemma]
			if !ok {
				return nil, fmt.Errorf("unknown content word %q", lemma)
			}
			if !seen[id] {
				wordIDs = append(wordIDs, id)
				seen[id] = true
			}
		}
		if !targetFound {
			return nil, fmt.Errorf("target %q missing", target.Bare)
		}
		return wordIDs, nil
	}

	if !strings.Contains(c.Text, target.Bare) {
		return nil, fmt.Errorf("target %q missing", target.Bare)
	}
	for _, bare := range c.Words {
		if bare == target.Bare {
			continue
		}
		id, ok := knownSet[bare]
		if !ok {
			return nil, fmt.Errorf("unknown content word %q", bare)
		}
		if !seen[id] {
			wordIDs = append(wordIDs, id)
			seen[id] = true
		}
	}
	return wordIDs, nil
}

// parseSentenceResponse extracts a JSON array from the LLM response.
// The response might contain markdown code fences or other wrapper text.
func parseSentenceResponse(content string) ([]sentenceCandidate, error) {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```") {
		lines := strings.Split(content, "\n")
		if len(lines) > 2 {
			content = strings.Join(lines[1:len(lines)-1], "\n")
		}
	}

	content = strings.TrimSpace(content)

	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end < 0 || end <= start {
		return nil, fmt.Errorf("no JSON array found in response")
	}

	var candidates []sentenceCandidate
	if err := json.Unmarshal([]byte(content[start:end+1]), &candidates); err != nil {
		return nil, fmt.Errorf("unmarshal candidates: %w", err)
	}
	return candidates, nil
}

// pregenerate runs in the background after an introduction. Errors are
// logged and dropped; sentence stock is a convenience, not a guarantee.
func (e *Engine) pregenerate(wordID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if _, err := e.GenerateSentences(ctx, wordID, 3); err != nil {
		log.Printf("pregenerate word %d: %v", wordID, err)
	}
}
