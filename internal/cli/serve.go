package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kotobaworks/kotoba/internal/config"
	"github.com/kotobaworks/kotoba/internal/engine"
	"github.com/kotobaworks/kotoba/internal/llm"
	"github.com/kotobaworks/kotoba/internal/morph"
	"github.com/kotobaworks/kotoba/internal/reviewer"
	"github.com/kotobaworks/kotoba/internal/server"
	"github.com/kotobaworks/kotoba/internal/store"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	rev, err := reviewer.NewFSRS()
	if err != nil {
		return fmt.Errorf("init reviewer: %w", err)
	}

	// Create LLM client; sentence generation degrades to 502s without one.
	var llmClient llm.Client
	if c, err := llm.NewClient(cfg.LLM); err != nil {
		fmt.Fprintf(os.Stderr, "warning: LLM not configured (%v), sentence generation disabled\n", err)
	} else {
		llmClient = c
		fmt.Fprintf(os.Stderr, "  llm: %s (%s)\n", cfg.LLM.Provider, cfg.LLM.Model)
	}

	eng := engine.New(db, rev, llmClient, cfg.Engine)

	// Morphological analyzer for sentence validation and credit mapping.
	if analyzer, err := morph.NewAnalyzer(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: tokenizer init failed (%v), sentence validation degraded\n", err)
	} else {
		eng.SetAnalyzer(analyzer)
		fmt.Fprintf(os.Stderr, "  morph: kagome (ipa)\n")
	}

	eng.Start()
	eng.StartSweepTimer()
	defer eng.Stop()

	// Enrich any words imported without a gloss
	if llmClient != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			if n, err := eng.EnrichMissing(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "enrich missing: %v\n", err)
			} else if n > 0 {
				fmt.Fprintf(os.Stderr, "  enriched %d imported words\n", n)
			}
		}()
	}

	srv := server.New(db, eng, VersionString())
	addr := cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		fmt.Fprintf(os.Stderr, "kotoba serving on %s\n", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	}()

	<-done
	fmt.Fprintln(os.Stderr, "\nshutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return httpServer.Shutdown(ctx)
}

// loadConfig reads the config file and applies environment overrides.
func loadConfig() (config.Config, error) {
	path, err := config.DefaultPath()
	if err != nil {
		path = ""
	}
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}

	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		cfg.LLM.Provider = "anthropic"
		cfg.LLM.AnthropicKey = key
	}
	return cfg, nil
}

// openDB resolves the database path and opens the store for CLI commands.
func openDB(cfg config.Config) (*store.DB, error) {
	dbPath := os.Getenv("KOTOBA_DB")
	if dbPath == "" {
		dbPath = cfg.Database.Path
	}
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolve db path: %w", err)
		}
	}
	return store.Open(dbPath)
}
