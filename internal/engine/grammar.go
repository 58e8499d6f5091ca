package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/kotobaworks/kotoba/internal/store"
)

// GrammarTier is one rung of the grammar-exposure unlock ladder.
type GrammarTier struct {
	Level            int      `json:"level"`
	MinKnownWords    int      `json:"min_known_words"`
	ComfortThreshold float64  `json:"comfort_threshold"` // on the previous tier's average; 0 = count-only gate
	Features         []string `json:"features"`
}

// grammarTiers is the fixed feature catalogue. Tier 0 is always unlocked;
// each later tier opens on a known-word count or on comfort with the tier
// below.
var grammarTiers = []GrammarTier{
	{Level: 0, Features: []string{"particle-wa", "particle-ga", "particle-wo", "copula-desu", "negation-plain"}},
	{Level: 1, MinKnownWords: 10, Features: []string{"past-plain", "te-form", "particle-ni", "particle-de", "masu-form"}},
	{Level: 2, MinKnownWords: 30, ComfortThreshold: 0.3, Features: []string{"progressive-teiru", "desire-tai", "potential", "comparative-yori"}},
	{Level: 3, MinKnownWords: 80, ComfortThreshold: 0.4, Features: []string{"conditional-tara", "conditional-ba", "passive", "causative"}},
	{Level: 4, MinKnownWords: 150, ComfortThreshold: 0.5, Features: []string{"keigo-sonkei", "keigo-kenjou", "causative-passive", "nominalizer-no"}},
}

// featureTier maps each catalogue feature to its tier level.
var featureTier = func() map[string]int {
	m := make(map[string]int)
	for _, t := range grammarTiers {
		for _, f := range t.Features {
			m[f] = t.Level
		}
	}
	return m
}()

// comfort scores how solidly a feature is internalized: a log-scaled
// exposure term plus an accuracy term, decayed by a 30-day half-life since
// last practice. Exactly 0 for unseen features.
func comfort(exp *store.GrammarExposure, now time.Time) float64 {
	if exp == nil || exp.TimesSeen == 0 {
		return 0
	}

	exposure := math.Log2(float64(exp.TimesSeen)+1) / math.Log2(31)
	if exposure > 0.6 {
		exposure = 0.6
	}
	accuracy := float64(exp.TimesCorrect) / float64(exp.TimesSeen) * 0.4

	decay := 1.0
	if exp.LastSeenAt != nil {
		days := float64(now.UnixMilli()-*exp.LastSeenAt) / float64(24*time.Hour/time.Millisecond)
		if days > 0 {
			decay = math.Pow(0.5, days/30)
		}
	}

	score := (exposure + accuracy) * decay
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// UnlockedTier walks the ladder and returns the highest unlocked tier level.
// The walk stops at the first unmet requirement.
func (e *Engine) UnlockedTier(now time.Time) (int, error) {
	known, err := e.DB.KnownWordCount()
	if err != nil {
		return 0, fmt.Errorf("unlocked tier: %w", err)
	}
	exposures, err := e.DB.AllExposures()
	if err != nil {
		return 0, fmt.Errorf("unlocked tier: %w", err)
	}

	highest := 0
	for i := 1; i < len(grammarTiers); i++ {
		tier := grammarTiers[i]
		if known >= tier.MinKnownWords {
			highest = tier.Level
			continue
		}
		if tier.ComfortThreshold > 0 && avgComfort(grammarTiers[i-1].Features, exposures, now) >= tier.ComfortThreshold {
			highest = tier.Level
			continue
		}
		break
	}
	return highest, nil
}

// UnlockedFeatures returns every feature of every unlocked tier.
func (e *Engine) UnlockedFeatures(now time.Time) (map[string]bool, error) {
	highest, err := e.UnlockedTier(now)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool)
	for _, t := range grammarTiers {
		if t.Level > highest {
			break
		}
		for _, f := range t.Features {
			out[f] = true
		}
	}
	return out, nil
}

func avgComfort(features []string, exposures map[string]GrammarExp, now time.Time) float64 {
	if len(features) == 0 {
		return 0
	}
	sum := 0.0
	for _, f := range features {
		if exp, ok := exposures[f]; ok {
			sum += comfort(&exp, now)
		}
	}
	return sum / float64(len(features))
}

// GrammarExp aliases the store row so the math helpers read cleanly.
type GrammarExp = store.GrammarExposure

// PatternScore rates how much new grammar practice a word's tags offer:
// 1.0 for an unlocked-but-unseen feature, fading toward 0.1 as comfort
// grows. Locked and unknown tags contribute nothing; untagged words score a
// flat 0.1.
func (e *Engine) PatternScore(tags []string, now time.Time) (float64, error) {
	if len(tags) == 0 {
		return 0.1, nil
	}

	unlocked, err := e.UnlockedFeatures(now)
	if err != nil {
		return 0, err
	}
	exposures, err := e.DB.AllExposures()
	if err != nil {
		return 0, fmt.Errorf("pattern score: %w", err)
	}

	sum := 0.0
	n := 0
	for _, tag := range tags {
		if _, inCatalogue := featureTier[tag]; !inCatalogue {
			continue
		}
		if !unlocked[tag] {
			continue
		}
		exp, seen := exposures[tag]
		if !seen || exp.TimesSeen == 0 {
			sum += 1.0
		} else {
			v := 1 - comfort(&exp, now)
			if v < 0.1 {
				v = 0.1
			}
			sum += v
		}
		n++
	}
	if n == 0 {
		return 0.1, nil
	}
	return sum / float64(n), nil
}

// RecordExposure bumps the counters for a practiced feature. Features
// outside the catalogue are ignored silently.
func (e *Engine) RecordExposure(feature string, correct bool, now time.Time) error {
	if _, ok := featureTier[feature]; !ok {
		return nil
	}
	if err := e.DB.IncrementExposure(feature, correct, now); err != nil {
		return fmt.Errorf("record exposure: %w", err)
	}
	return nil
}

// TierProgress reports one ladder rung for the progress API.
type TierProgress struct {
	Tier     GrammarTier        `json:"tier"`
	Unlocked bool               `json:"unlocked"`
	Comfort  map[string]float64 `json:"comfort"`
}

// GrammarProgress returns per-tier unlock status and per-feature comfort.
func (e *Engine) GrammarProgress(now time.Time) ([]TierProgress, error) {
	highest, err := e.UnlockedTier(now)
	if err != nil {
		return nil, err
	}
	exposures, err := e.DB.AllExposures()
	if err != nil {
		return nil, fmt.Errorf("grammar progress: %w", err)
	}

	out := make([]TierProgress, 0, len(grammarTiers))
	for _, t := range grammarTiers {
		p := TierProgress{
			Tier:     t,
			Unlocked: t.Level <= highest,
			Comfort:  make(map[string]float64, len(t.Features)),
		}
		for _, f := range t.Features {
			if exp, ok := exposures[f]; ok {
				p.Comfort[f] = comfort(&exp, now)
			} else {
				p.Comfort[f] = 0
			}
		}
		out = append(out, p)
	}
	return out, nil
}
