package cli

import (
	"fmt"
	"time"

	"github.com/kotobaworks/kotoba/internal/engine"
	"github.com/kotobaworks/kotoba/internal/reviewer"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show learning progress",
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	eng, cleanup, err := openEngine()
	if err != nil {
		return err
	}
	defer cleanup()

	db := eng.DB
	now := time.Now()

	total, err := db.CountWords()
	if err != nil {
		return fmt.Errorf("count words: %w", err)
	}
	reviews, err := db.CountReviews()
	if err != nil {
		return fmt.Errorf("count reviews: %w", err)
	}
	byState, err := db.CountByState()
	if err != nil {
		return fmt.Errorf("count by state: %w", err)
	}
	known, err := db.KnownWordCount()
	if err != nil {
		return fmt.Errorf("known count: %w", err)
	}

	fmt.Printf("dictionary: %d words, %d reviews logged\n\n", total, reviews)
	for _, state := range []string{"encountered", "acquiring", "learning", "known", "lapsed", "suspended"} {
		if n := byState[state]; n > 0 {
			fmt.Printf("  %-12s %d\n", state, n)
		}
	}
	fmt.Printf("\nknown vocabulary: %d words\n", known)

	stats, err := eng.CohortStats(now)
	if err != nil {
		return fmt.Errorf("cohort stats: %w", err)
	}
	fmt.Printf("focus cohort: %d/%d (%d acquiring, %d due included, %d due waiting)\n",
		stats.Size, stats.MaxSize, stats.Acquiring, stats.DueIncluded, stats.DueExcluded)

	if st, err := eng.ActiveTopic(now); err == nil && st.ActiveTopic != "" {
		fmt.Printf("active topic: %s\n", st.ActiveTopic)
	}

	progress, err := eng.GrammarProgress(now)
	if err != nil {
		return fmt.Errorf("grammar progress: %w", err)
	}
	unlocked := 0
	for _, tier := range progress {
		if tier.Unlocked {
			unlocked++
		}
	}
	fmt.Printf("grammar tiers unlocked: %d/%d\n", unlocked, len(progress))
	return nil
}

// openEngine wires a store and offline engine for CLI commands. The LLM
// client stays nil; commands that need generation go through the server.
func openEngine() (*engine.Engine, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	db, err := openDB(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	rev, err := reviewer.NewFSRS()
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("init reviewer: %w", err)
	}
	return engine.New(db, rev, nil, cfg.Engine), func() { db.Close() }, nil
}
