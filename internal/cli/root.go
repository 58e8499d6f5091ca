package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "kotoba",
	Short: "Vocabulary acquisition engine for Japanese learners",
	Long:  "Kotoba schedules vocabulary through acquisition boxes into long-horizon spaced repetition, rotates study topics, and generates practice sentences from the words you already know.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(topicCmd)
	rootCmd.AddCommand(statsCmd)
}
