package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/olegiv/agentwatch-go/internal/config"
	"github.com/olegiv/agentwatch-go/internal/ingest"
	"github.com/olegiv/agentwatch-go/internal/logging"
	"github.com/olegiv/agentwatch-go/internal/notification"
	"github.com/olegiv/agentwatch-go/internal/storage"
	"github.com/olegiv/agentwatch-go/internal/watch"
	"github.com/olegiv/agentwatch-go/pkg/logger"
)

const (
	exitSuccess = 0
	exitFailure = 1
)

// Version information - injected at build time via ldflags
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Parse CLI arguments first
	cli := config.ParseCLI()

	// Handle -help flag
	if cli.ShowHelp {
		config.PrintUsage()
		return exitSuccess
	}

	// Handle -version flag
	if cli.ShowVersion {
		fmt.Printf("agentwatch %s\n", version)
		if gitCommit != "unknown" {
			fmt.Printf("  commit: %s\n", gitCommit)
		}
		if buildTime != "unknown" {
			fmt.Printf("  built:  %s\n", buildTime)
		}
		return exitSuccess
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	// Load configuration with CLI overrides
	cfg, err := config.LoadWithCLI(cli)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return exitFailure
	}

	// Initialize logger with credential sanitization
	baseLog := logger.New(logger.Config{
		Level:      cfg.LogLevel,
		LogDir:     "./logs",
		Filename:   "agentwatch.log",
		MaxSizeMB:  10,
		MaxBackups: 5,
		Console:    cli.Watch,
	})
	log := logging.NewSecure(baseLog)
	defer func() {
		if err := log.Close(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to close logger: %v\n", err)
		}
	}()

	log.Info().Str("log_dir", cfg.LogDir).Str("op", cli.Op).Msg("Starting agentwatch")

	aggregator := ingest.NewAggregator(cfg.LogDir, ingest.Options{
		MaxEntries:        cfg.MaxEntries,
		MaxAgents:         cfg.MaxAgents,
		FilesPerSource:    cfg.FilesPerSource,
		ErrorScanFiles:    cfg.ErrorScanFiles,
		ErrorLinesPerFile: cfg.ErrorLinesPerFile,
		MaxFileSizeMB:     cfg.MaxLogSizeMB,
		StaleAfter:        time.Duration(cfg.StaleAfterHours) * time.Hour,
	}, log)

	if cli.Watch {
		if err := runWatch(ctx, cfg, aggregator, log); err != nil {
			log.Error().Err(err).Msg("Watch mode failed")
			return exitFailure
		}
		return exitSuccess
	}

	if err := runOnce(cli, aggregator); err != nil {
		log.Error().Err(err).Msg("Operation failed")
		return exitFailure
	}
	return exitSuccess
}

// runOnce executes one read operation and prints the result as JSON.
func runOnce(cli *config.CLIOptions, aggregator *ingest.Aggregator) error {
	var result any

	switch cli.Op {
	case "all":
		result = aggregator.AllLogs()
	case "system":
		result = aggregator.SystemLogs()
	case "agents":
		result = aggregator.AgentLogs(cli.Agent)
	case "errors":
		result = aggregator.ErrorLogs()
	case "list":
		result = aggregator.ListAgents()
	default:
		return fmt.Errorf("unknown operation %q (expected all, system, agents, errors or list)", cli.Op)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// runWatch wires the optional snapshot store and Telegram notifier and runs
// the directory watcher until the context is cancelled.
func runWatch(ctx context.Context, cfg *config.Config, aggregator *ingest.Aggregator, log *logging.SecureLogger) error {
	var recorder watch.Recorder
	if cfg.EnableDatabase {
		store, err := storage.New(cfg.DatabasePath)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close database")
			}
		}()
		log.Info().Str("path", cfg.DatabasePath).Msg("Database initialized")
		recorder = store
	}

	var notifier watch.Notifier
	if cfg.TelegramBotToken != "" {
		client, err := notification.NewTelegramClient(cfg.TelegramBotToken, cfg.TelegramAlertsChannel)
		if err != nil {
			return fmt.Errorf("failed to initialize Telegram client: %w", err)
		}
		defer func() {
			if err := client.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close Telegram client")
			}
		}()
		log.Info().Int64("alerts_channel", cfg.TelegramAlertsChannel).Msg("Telegram alerts enabled")
		notifier = client
	}

	watcher := watch.New(
		cfg.LogDir,
		time.Duration(cfg.WatchDebounceSeconds)*time.Second,
		aggregator,
		notifier,
		recorder,
		log,
	)

	log.Info().Str("dir", cfg.LogDir).Msg("Watching log directory")
	return watcher.Run(ctx)
}
