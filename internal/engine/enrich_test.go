package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/kotobaworks/kotoba/internal/llm"
)

func TestEnrichMissingFillsGloss(t *testing.T) {
	e := testEngine(t)
	w := mkWord(t, e.DB, "犬")
	if err := e.DB.EnrichWord(w.ID, "", "", nil); err != nil {
		t.Fatalf("clear gloss: %v", err)
	}
	full := mkWord(t, e.DB, "猫") // already has a gloss, must be untouched

	e.LLM = &llm.MockClient{Responses: []*llm.Response{
		{Content: `{"gloss": "dog", "reading": "イヌ", "grammar_tags": []}`},
	}}

	n, err := e.EnrichMissing(context.Background())
	if err != nil {
		t.Fatalf("EnrichMissing: %v", err)
	}
	if n != 1 {
		t.Fatalf("enriched = %d, want 1", n)
	}

	got, err := e.DB.GetWord(w.ID)
	if err != nil {
		t.Fatalf("get word: %v", err)
	}
	if got.Gloss != "dog" || got.Reading != "イヌ" {
		t.Errorf("word = %q/%q, want dog/イヌ", got.Gloss, got.Reading)
	}

	other, err := e.DB.GetWord(full.ID)
	if err != nil {
		t.Fatalf("get word: %v", err)
	}
	if other.Gloss != "gloss of 猫" {
		t.Errorf("untouched word gloss changed: %q", other.Gloss)
	}
}

func TestEnrichMissingSkipsFailures(t *testing.T) {
	e := testEngine(t)
	w := mkWord(t, e.DB, "犬")
	if err := e.DB.EnrichWord(w.ID, "", "", nil); err != nil {
		t.Fatalf("clear gloss: %v", err)
	}

	e.LLM = &llm.MockClient{Responses: []*llm.Response{
		{Content: `not json at all`},
	}}

	n, err := e.EnrichMissing(context.Background())
	if err != nil {
		t.Fatalf("EnrichMissing: %v", err)
	}
	if n != 0 {
		t.Fatalf("enriched = %d, want 0", n)
	}

	got, err := e.DB.GetWord(w.ID)
	if err != nil {
		t.Fatalf("get word: %v", err)
	}
	if got.Gloss != "" {
		t.Errorf("gloss = %q, want empty after failed enrichment", got.Gloss)
	}
}

func TestEnrichMissingNoClient(t *testing.T) {
	e := testEngine(t)
	if _, err := e.EnrichMissing(context.Background()); !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("err = %v, want ErrUpstreamUnavailable", err)
	}
}

func TestParseEnrichmentResponse(t *testing.T) {
	tests := []struct {
		name    string
		content string
		gloss   string
		wantErr bool
	}{
		{"plain", `{"gloss": "dog", "reading": "イヌ"}`, "dog", false},
		{"fenced", "```json\n{\"gloss\": \"dog\"}\n```", "dog", false},
		{"wrapped", `Here you go: {"gloss": "dog"} done`, "dog", false},
		{"no object", `nothing here`, "", true},
		{"broken", `{"gloss": `, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enr, err := parseEnrichmentResponse(tt.content)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if enr.Gloss != tt.gloss {
				t.Errorf("gloss = %q, want %q", enr.Gloss, tt.gloss)
			}
		})
	}
}
