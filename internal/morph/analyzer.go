package morph

import (
	"strings"

	"github.com/ikawaha/kagome-dict/ipa"
	"github.com/ikawaha/kagome/v2/tokenizer"
)

// Token is one analyzed unit of text.
type Token struct {
	Surface  string // the text as written (e.g. "食べた")
	Lemma    string // the dictionary form (e.g. "食べる")
	Reading  string // katakana pronunciation
	POS      string // primary part-of-speech label
	Content  bool   // true for content words (nouns, verbs, adjectives, adverbs)
}

// Analyzer segments Japanese text into lemmatized tokens.
type Analyzer struct {
	t *tokenizer.Tokenizer
}

// NewAnalyzer creates a tokenizer backed by the bundled IPA dictionary.
func NewAnalyzer() (*Analyzer, error) {
	t, err := tokenizer.New(ipa.Dict(), tokenizer.OmitBosEos())
	if err != nil {
		return nil, err
	}
	return &Analyzer{t: t}, nil
}

// contentPOS holds the kagome IPA primary POS labels that count as content
// words for vocabulary purposes. Particles, auxiliaries, and symbols are
// excluded.
var contentPOS = map[string]bool{
	"名詞":  true, // noun
	"動詞":  true, // verb
	"形容詞": true, // i-adjective
	"副詞":  true, // adverb
}

// Analyze tokenizes text into surface/lemma tokens.
//
// Kagome IPA feature layout: 0 POS, 1-3 sub-POS, 4 conjugation type,
// 5 conjugation form, 6 base form, 7 reading, 8 pronunciation.
func (a *Analyzer) Analyze(text string) []Token {
	var out []Token
	for _, tok := range a.t.Tokenize(text) {
		if tok.Class == tokenizer.DUMMY {
			continue
		}
		if strings.TrimSpace(tok.Surface) == "" {
			continue
		}

		features := tok.Features()

		lemma := tok.Surface
		if len(features) > 6 && features[6] != "*" {
			lemma = features[6]
		}
		reading := ""
		if len(features) > 7 && features[7] != "*" {
			reading = features[7]
		}
		pos := ""
		if len(features) > 0 {
			pos = features[0]
		}

		out = append(out, Token{
			Surface: tok.Surface,
			Lemma:   lemma,
			Reading: reading,
			POS:     pos,
			Content: contentPOS[pos],
		})
	}
	return out
}

// Lemmas returns the surface→lemma map for a sentence, content words only.
// Later occurrences of the same surface win; for lemma mapping that is fine
// since kagome is deterministic per surface+context.
func (a *Analyzer) Lemmas(text string) map[string]string {
	out := make(map[string]string)
	for _, tok := range a.Analyze(text) {
		if tok.Content {
			out[tok.Surface] = tok.Lemma
		}
	}
	return out
}

// ContentLemmas returns the distinct content-word lemmas in order of first
// appearance.
func (a *Analyzer) ContentLemmas(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, tok := range a.Analyze(text) {
		if !tok.Content || seen[tok.Lemma] {
			continue
		}
		seen[tok.Lemma] = true
		out = append(out, tok.Lemma)
	}
	return out
}
