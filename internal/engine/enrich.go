package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/kotobaworks/kotoba/internal/llm"
)

// enrichment is the JSON shape the enrichment LLM returns.
type enrichment struct {
	Gloss       string   `json:"gloss"`
	Reading     string   `json:"reading"`
	GrammarTags []string `json:"grammar_tags"`
}

// EnrichMissing fills in gloss, reading, and grammar tags for words that
// were imported without a gloss. It returns the number of words enriched.
// Words whose enrichment fails are logged and left for the next pass.
func (e *Engine) EnrichMissing(ctx context.Context) (int, error) {
	if e.LLM == nil {
		return 0, fmt.Errorf("no content generator configured: %w", ErrUpstreamUnavailable)
	}

	words, err := e.DB.WordsMissingGloss(200)
	if err != nil {
		return 0, fmt.Errorf("enrich missing: %w", err)
	}

	enriched := 0
	for i := range words {
		if ctx.Err() != nil {
			return enriched, ctx.Err()
		}
		w := &words[i]

		resp, err := e.LLM.Complete(ctx, llm.EnrichmentPrompt(w.Bare, w.POS))
		if err != nil {
			log.Printf("enrich %q: %v", w.Bare, err)
			continue
		}
		enr, err := parseEnrichmentResponse(resp.Content)
		if err != nil {
			log.Printf("enrich %q: %v", w.Bare, err)
			continue
		}
		if enr.Gloss == "" {
			log.Printf("enrich %q: empty gloss in response", w.Bare)
			continue
		}

		reading := enr.Reading
		if reading == "" {
			reading = w.Reading
		}
		tags := w.GrammarTags
		if len(enr.GrammarTags) > 0 {
			tags = enr.GrammarTags
		}
		if err := e.DB.EnrichWord(w.ID, enr.Gloss, reading, tags); err != nil {
			return enriched, err
		}
		enriched++
	}
	return enriched, nil
}

// parseEnrichmentResponse extracts a JSON object from the LLM response,
// tolerating markdown fences and wrapper prose.
func parseEnrichmentResponse(content string) (*enrichment, error) {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```") {
		lines := strings.Split(content, "\n")
		if len(lines) > 2 {
			content = strings.Join(lines[1:len(lines)-1], "\n")
		}
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object found in response")
	}

	var enr enrichment
	if err := json.Unmarshal([]byte(content[start:end+1]), &enr); err != nil {
		return nil, fmt.Errorf("unmarshal enrichment: %w", err)
	}
	return &enr, nil
}
