package cli

import (
	"fmt"
	"time"

	"github.com/kotobaworks/kotoba/internal/engine"
	"github.com/spf13/cobra"
)

var topicCmd = &cobra.Command{
	Use:   "topic [set <domain>]",
	Short: "Show or set the active study topic",
	Args:  cobra.MaximumNArgs(2),
	RunE:  runTopic,
}

func runTopic(cmd *cobra.Command, args []string) error {
	eng, cleanup, err := openEngine()
	if err != nil {
		return err
	}
	defer cleanup()

	now := time.Now()

	if len(args) > 0 {
		if args[0] != "set" || len(args) != 2 {
			return fmt.Errorf("usage: kotoba topic set <domain>")
		}
		if err := eng.SetTopic(args[1], now); err != nil {
			return fmt.Errorf("set topic: %w", err)
		}
		fmt.Printf("active topic: %s\n", args[1])
		return nil
	}

	st, err := eng.ActiveTopic(now)
	if err != nil {
		return fmt.Errorf("active topic: %w", err)
	}
	if st.ActiveTopic == "" {
		fmt.Println("no active topic (no domain has enough unintroduced words)")
	} else {
		fmt.Printf("active topic: %s (%d words introduced this batch)\n", st.ActiveTopic, st.WordsIntroduced)
	}

	available, err := eng.DB.AvailableByDomain()
	if err != nil {
		return fmt.Errorf("available by domain: %w", err)
	}
	if len(available) > 0 {
		fmt.Println("\navailable words per domain:")
		for _, domain := range engine.TopicCatalogue {
			if n := available[domain]; n > 0 {
				fmt.Printf("  %-14s %d\n", domain, n)
			}
		}
	}

	history, err := eng.DB.TopicHistory(5)
	if err != nil {
		return fmt.Errorf("topic history: %w", err)
	}
	if len(history) > 0 {
		fmt.Println("\nrecent topic eras:")
		for _, era := range history {
			start := time.UnixMilli(era.StartedAt).Format("2006-01-02")
			end := time.UnixMilli(era.EndedAt).Format("2006-01-02")
			fmt.Printf("  %s — %s  %-14s %d words\n", start, end, era.Topic, era.WordsIntroduced)
		}
	}
	return nil
}
