package cli

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eshaffer321/kdp-ads-analytics/internal/api"
	"github.com/eshaffer321/kdp-ads-analytics/internal/infrastructure/config"
	"github.com/eshaffer321/kdp-ads-analytics/internal/infrastructure/logging"
	"github.com/eshaffer321/kdp-ads-analytics/internal/infrastructure/storage"
)

// ServeFlags holds the CLI flags for the api command.
type ServeFlags struct {
	Port    int
	Config  string
	DB      string
	Verbose bool
}

// ParseServeFlags parses command line flags for the api command.
func ParseServeFlags() *ServeFlags {
	flags := &ServeFlags{}
	flag.IntVar(&flags.Port, "port", 8080, "Port to listen on")
	flag.StringVar(&flags.Config, "config", "config/campaigns.yaml", "Path to campaign config YAML")
	flag.StringVar(&flags.DB, "db", "", "Snapshot database path (default from config)")
	flag.BoolVar(&flags.Verbose, "verbose", false, "Verbose output")
	flag.Parse()
	return flags
}

// RunServe runs the dashboard API server until interrupted.
func RunServe(cfg *config.Config, flags *ServeFlags) error {
	loggingCfg := cfg.Logging
	if flags.Verbose {
		loggingCfg.Level = "debug"
	}
	logger := logging.NewLoggerWithSystem(loggingCfg, "api")

	dbPath := flags.DB
	if dbPath == "" {
		dbPath = cfg.DatabasePath()
	}
	store, err := storage.NewStorage(dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	apiCfg := api.DefaultConfig()
	apiCfg.Port = flags.Port

	server := api.NewServer(apiCfg, store, logger)

	// Graceful shutdown on SIGINT/SIGTERM.
	done := make(chan bool, 1)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		logger.Info("received shutdown signal")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("server shutdown error", slog.Any("error", err))
		}
		close(done)
	}()

	if err := server.Start(); err != nil {
		return err
	}

	<-done
	logger.Info("server stopped")
	return nil
}
