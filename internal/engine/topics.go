package engine

import (
	"fmt"
	"time"

	"github.com/kotobaworks/kotoba/internal/store"
)

// TopicCatalogue is the fixed set of thematic domains the rotation cycles
// through. Dictionary imports tag words with these slugs.
var TopicCatalogue = []string{
	"food", "travel", "family", "work", "school",
	"health", "weather", "shopping", "transport", "home",
	"nature", "sports", "technology", "clothing", "emotions",
	"time", "numbers", "animals", "colors", "body",
}

var topicSet = func() map[string]bool {
	m := make(map[string]bool, len(TopicCatalogue))
	for _, t := range TopicCatalogue {
		m[t] = true
	}
	return m
}()

// EnsureActiveTopic advances the rotation automaton if needed and returns
// the active topic ("" when no topic is eligible). Idempotent; runs before
// every selection or introduction read.
func (e *Engine) EnsureActiveTopic(now time.Time) (string, error) {
	st, err := e.DB.GetTopicState()
	if err != nil {
		return "", fmt.Errorf("ensure topic: %w", err)
	}
	avail, err := e.DB.AvailableByDomain()
	if err != nil {
		return "", fmt.Errorf("ensure topic: %w", err)
	}

	// Still good: active, batch not exhausted, words left.
	if st.ActiveTopic != "" && st.WordsIntroduced < e.maxTopicBatch && avail[st.ActiveTopic] > 0 {
		return st.ActiveTopic, nil
	}

	next := e.selectBestTopic(avail, st.ActiveTopic)
	if next == "" {
		// Retry without excluding the current topic.
		next = e.selectBestTopic(avail, "")
	}

	if next == st.ActiveTopic && next != "" {
		// Same topic re-selected: reset the batch rather than churning.
		if st.WordsIntroduced >= e.maxTopicBatch {
			if err := e.transitionTopic(st, next, now); err != nil {
				return "", err
			}
		}
		return next, nil
	}

	if err := e.transitionTopic(st, next, now); err != nil {
		return "", err
	}
	return next, nil
}

// selectBestTopic picks the eligible catalogue topic with the most available
// words, excluding the given topic. Catalogue order breaks ties.
func (e *Engine) selectBestTopic(avail map[string]int, exclude string) string {
	best := ""
	bestCount := 0
	for _, topic := range TopicCatalogue {
		if topic == exclude {
			continue
		}
		n := avail[topic]
		if n < e.minTopicWords {
			continue
		}
		if n > bestCount {
			best = topic
			bestCount = n
		}
	}
	return best
}

// transitionTopic archives the outgoing topic and activates the incoming
// one. next may be "" to go inactive.
func (e *Engine) transitionTopic(st *store.TopicState, next string, now time.Time) error {
	if st.ActiveTopic != "" {
		started := now.UnixMilli()
		if st.TopicStartedAt != nil {
			started = *st.TopicStartedAt
		}
		if err := e.DB.ArchiveTopic(st.ActiveTopic, started, now, st.WordsIntroduced); err != nil {
			return fmt.Errorf("topic transition: %w", err)
		}
		e.audit("topic_change", fmt.Sprintf("topic %s -> %s", st.ActiveTopic, orNone(next)), map[string]any{
			"from":             st.ActiveTopic,
			"to":               next,
			"words_introduced": st.WordsIntroduced,
		})
	}

	st.ActiveTopic = next
	st.WordsIntroduced = 0
	st.TopicStartedAt = nil
	if next != "" {
		started := now.UnixMilli()
		st.TopicStartedAt = &started
	}
	if err := e.DB.SaveTopicState(st); err != nil {
		return fmt.Errorf("topic transition: %w", err)
	}
	return nil
}

// SetTopic activates a topic by hand. Behaves like an automatic transition
// (the outgoing topic is archived) but rejects domains outside the
// catalogue.
func (e *Engine) SetTopic(domain string, now time.Time) error {
	if !topicSet[domain] {
		return fmt.Errorf("domain %q: %w", domain, ErrInvalidInput)
	}
	st, err := e.DB.GetTopicState()
	if err != nil {
		return fmt.Errorf("set topic: %w", err)
	}
	if st.ActiveTopic == domain {
		return nil
	}
	return e.transitionTopic(st, domain, now)
}

// ActiveTopic returns the current rotation state after ensuring it is
// fresh.
func (e *Engine) ActiveTopic(now time.Time) (*store.TopicState, error) {
	if _, err := e.EnsureActiveTopic(now); err != nil {
		return nil, err
	}
	st, err := e.DB.GetTopicState()
	if err != nil {
		return nil, fmt.Errorf("active topic: %w", err)
	}
	return st, nil
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
