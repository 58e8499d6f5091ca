package llm

import (
	"fmt"
	"strings"
)

// SentencePrompt builds the prompt for generating practice sentences around
// a target word, constrained to the learner's known vocabulary.
func SentencePrompt(target, gloss string, knownVocab, avoid []string, count int) string {
	avoidSection := ""
	if len(avoid) > 0 {
		avoidSection = fmt.Sprintf("\nDo NOT reuse these sentences or close paraphrases of them:\n%s\n", strings.Join(avoid, "\n"))
	}

	return fmt.Sprintf(`You are a Japanese sentence generator for a vocabulary learner.

Write %d short, natural Japanese sentences. Every sentence MUST contain the target word.

TARGET WORD: %s (%s)

The learner only knows these words. Apart from the target, particles, and
auxiliary verbs, use ONLY words from this list:
%s
%s
Rules:
- One clause, everyday register, no translations
- Vary the grammar pattern between sentences
- Return ONLY a JSON array, no other text

Return a JSON array:
[{"text": "...", "words": ["dictionary forms of every content word used"]}]

If you cannot build %d valid sentences from the known vocabulary, return fewer.`,
		count, target, gloss, strings.Join(knownVocab, "、"), avoidSection, count)
}

// EnrichmentPrompt builds the prompt for filling in a word's gloss, reading,
// and grammar tags after import.
func EnrichmentPrompt(bare, pos string) string {
	return fmt.Sprintf(`You are a Japanese dictionary assistant.

WORD: %s (part of speech: %s)

Return ONLY a JSON object:
{"gloss": "concise English meaning", "reading": "katakana reading", "grammar_tags": ["relevant grammar feature slugs, may be empty"]}`,
		bare, pos)
}
