// Command report generates the weekly performance report from Amazon
// Ads and KDP exports, renders it to the terminal and a markdown file,
// and optionally saves the week as a snapshot.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/eshaffer321/kdp-ads-analytics/internal/adapters/titles"
	"github.com/eshaffer321/kdp-ads-analytics/internal/application/report"
	"github.com/eshaffer321/kdp-ads-analytics/internal/cli"
	"github.com/eshaffer321/kdp-ads-analytics/internal/infrastructure/config"
	"github.com/eshaffer321/kdp-ads-analytics/internal/infrastructure/logging"
	"github.com/eshaffer321/kdp-ads-analytics/internal/infrastructure/storage"
	"github.com/eshaffer321/kdp-ads-analytics/internal/render"
)

func main() {
	flags := cli.ParseReportFlags()
	if err := flags.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	opts, err := flags.ToOptions()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg := config.LoadOrEnv_WithPath(flags.Config)
	loggingCfg := cfg.Logging
	if flags.Verbose {
		loggingCfg.Level = "debug"
	}
	logger := logging.NewLoggerWithSystem(loggingCfg, "report")

	// The store is only opened when saving; a plain report run needs
	// no database.
	var store storage.Repository
	if flags.Save {
		dbPath := flags.DB
		if dbPath == "" {
			dbPath = cfg.DatabasePath()
		}
		s, err := storage.NewStorage(dbPath)
		if err != nil {
			logger.Error("Failed to open snapshot database", "error", err)
			os.Exit(1)
		}
		defer func() { _ = s.Close() }()
		store = s
	}

	resolver := titles.NewResolver(titles.DefaultLookupPath, true)

	pipeline := report.NewPipeline(cfg, store, resolver, logger)
	result, err := pipeline.Run(context.Background(), opts)
	if err != nil {
		logger.Error("Report run failed", "error", err)
		os.Exit(1)
	}

	cli.PrintHeader(result)

	if !flags.NoTerminal {
		render.NewTerminal(os.Stdout).Render(result)
	}

	mdPath, err := render.WriteMarkdown(result, flags.OutputDir)
	if err != nil {
		logger.Error("Failed to write markdown report", "error", err)
		os.Exit(1)
	}

	cli.PrintRunSummary(result, mdPath)
}
