// Package config loads application configuration from .env files,
// environment variables and CLI overrides.
package config

import (
	"flag"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// CLIOptions holds command-line argument overrides
type CLIOptions struct {
	LogDir      string // -log-dir: directory of agent/system log files
	Op          string // -op: read operation to run (all, system, agents, errors, list)
	Agent       string // -agent: restrict agent logs to one named agent
	Watch       bool   // -watch: keep running and rescan on directory changes
	ShowHelp    bool   // -help: show usage
	ShowVersion bool   // -version: show version
}

// ParseCLI parses command-line arguments and returns CLIOptions
func ParseCLI() *CLIOptions {
	opts := &CLIOptions{}

	flag.StringVar(&opts.LogDir, "log-dir", "", "Directory of agent/system log files (overrides config)")
	flag.StringVar(&opts.Op, "op", "all", "Read operation: all, system, agents, errors, list")
	flag.StringVar(&opts.Agent, "agent", "", "Restrict -op agents to one named agent")
	flag.BoolVar(&opts.Watch, "watch", false, "Keep running and rescan when the log directory changes")
	flag.BoolVar(&opts.ShowHelp, "help", false, "Show usage information")
	flag.BoolVar(&opts.ShowVersion, "version", false, "Show version information")

	// Custom usage message
	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "Agentwatch - log ingestion and agent health inference\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nExamples:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  %s -log-dir /var/log/agents -op all\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "  %s -op agents -agent ScraperAgent\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "  %s -op errors\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "  %s -watch\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment variables can be set in .env file or exported directly.\n")
		_, _ = fmt.Fprintf(os.Stderr, "CLI arguments override environment variables.\n")
	}

	flag.Parse()

	return opts
}

// PrintUsage prints the command-line usage information
func PrintUsage() {
	flag.Usage()
}

// Config holds all application configuration
type Config struct {
	// Log Directory
	LogDir string // directory scanned for agent and system log files

	// Aggregation caps
	MaxEntries        int // global cap on the merged all-logs response
	MaxAgents         int // how many discovered agents the all-logs merge reads
	FilesPerSource    int // per-call file budget for one source
	ErrorScanFiles    int // file budget of the line-level error scan
	ErrorLinesPerFile int // matches surfaced from a single file
	MaxLogSizeMB      int // files above this size are skipped

	// Health inference
	StaleAfterHours int // hours of silence before an agent is inferred inactive

	// Watch mode
	WatchDebounceSeconds int // quiet period after a directory event before rescanning

	// Telegram (optional; watch-mode status alerts)
	TelegramBotToken      string
	TelegramAlertsChannel int64

	// Application
	LogLevel       string
	EnableDatabase bool
	DatabasePath   string
}

// Load loads configuration from .env file and environment variables
// Priority: .env file > OS environment variables
// For CLI overrides, use LoadWithCLI instead
func Load() (*Config, error) {
	return LoadWithCLI(nil)
}

// LoadWithCLI loads configuration with CLI argument overrides
// Priority: CLI args > .env file > OS environment variables
func LoadWithCLI(cli *CLIOptions) (*Config, error) {
	// Set up viper first to read OS environment variables
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Load .env file to override OS environment variables
	// godotenv.Load() sets OS env vars from .env, which viper will then read
	_ = godotenv.Load()

	// Set defaults
	setDefaults()

	config := &Config{
		LogDir: viper.GetString("LOG_DIR"),

		MaxEntries:        viper.GetInt("MAX_ENTRIES"),
		MaxAgents:         viper.GetInt("MAX_AGENTS"),
		FilesPerSource:    viper.GetInt("MAX_FILES_PER_SOURCE"),
		ErrorScanFiles:    viper.GetInt("ERROR_SCAN_FILES"),
		ErrorLinesPerFile: viper.GetInt("ERROR_LINES_PER_FILE"),
		MaxLogSizeMB:      viper.GetInt("MAX_LOG_SIZE_MB"),

		StaleAfterHours: viper.GetInt("STALE_AFTER_HOURS"),

		WatchDebounceSeconds: viper.GetInt("WATCH_DEBOUNCE_SECONDS"),

		TelegramBotToken:      viper.GetString("TELEGRAM_BOT_TOKEN"),
		TelegramAlertsChannel: viper.GetInt64("TELEGRAM_CHANNEL_ALERTS_ID"),

		LogLevel:       viper.GetString("LOG_LEVEL"),
		EnableDatabase: viper.GetBool("ENABLE_DATABASE"),
		DatabasePath:   viper.GetString("DATABASE_PATH"),
	}

	// Apply CLI overrides (highest priority)
	if cli != nil {
		if cli.LogDir != "" {
			config.LogDir = cli.LogDir
		}
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("LOG_DIR", "./logs/agents")

	viper.SetDefault("MAX_ENTRIES", 100)
	viper.SetDefault("MAX_AGENTS", 5)
	viper.SetDefault("MAX_FILES_PER_SOURCE", 10)
	viper.SetDefault("ERROR_SCAN_FILES", 50)
	viper.SetDefault("ERROR_LINES_PER_FILE", 20)
	viper.SetDefault("MAX_LOG_SIZE_MB", 10)

	viper.SetDefault("STALE_AFTER_HOURS", 6)

	viper.SetDefault("WATCH_DEBOUNCE_SECONDS", 2)

	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("ENABLE_DATABASE", false)
	viper.SetDefault("DATABASE_PATH", "./data/snapshots.db")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.LogDir == "" {
		return fmt.Errorf("LOG_DIR is required")
	}

	if c.MaxEntries < 1 {
		return fmt.Errorf("MAX_ENTRIES must be at least 1")
	}
	if c.MaxAgents < 1 {
		return fmt.Errorf("MAX_AGENTS must be at least 1")
	}
	if c.FilesPerSource < 1 {
		return fmt.Errorf("MAX_FILES_PER_SOURCE must be at least 1")
	}
	if c.ErrorScanFiles < 1 {
		return fmt.Errorf("ERROR_SCAN_FILES must be at least 1")
	}

	// Validate max log size
	if c.MaxLogSizeMB < 1 || c.MaxLogSizeMB > 100 {
		return fmt.Errorf("MAX_LOG_SIZE_MB must be between 1 and 100")
	}

	if c.StaleAfterHours < 1 {
		return fmt.Errorf("STALE_AFTER_HOURS must be at least 1")
	}

	// Telegram is optional; when a token is set it must look like one.
	if c.TelegramBotToken != "" {
		telegramTokenRegex := regexp.MustCompile(`^\d+:[A-Za-z0-9_-]+$`)
		if !telegramTokenRegex.MatchString(c.TelegramBotToken) {
			return fmt.Errorf("TELEGRAM_BOT_TOKEN has invalid format (expected: 'number:token')")
		}
		if c.TelegramAlertsChannel == 0 {
			return fmt.Errorf("TELEGRAM_CHANNEL_ALERTS_ID is required when TELEGRAM_BOT_TOKEN is set")
		}
		if c.TelegramAlertsChannel > -100 {
			return fmt.Errorf("TELEGRAM_CHANNEL_ALERTS_ID must be a supergroup/channel ID (starts with -100)")
		}
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error")
	}

	if c.EnableDatabase && c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required when ENABLE_DATABASE is true")
	}

	return nil
}
