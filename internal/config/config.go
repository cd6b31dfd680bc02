package config

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultListenAddr       = ":8080"
	defaultDBPath           = "prospect.db"
	defaultMaxWorkers       = 4
	defaultMaxConcurrent    = 4
	defaultDispatchInterval = 25 * time.Millisecond
	defaultTimeoutS         = 30

	envListenAddr         = "PROSPECT_LISTEN_ADDR"
	envDBPath             = "PROSPECT_DB_PATH"
	envLogLevel           = "PROSPECT_LOG_LEVEL"
	envMaxWorkers         = "PROSPECT_MAX_WORKERS"
	envMaxConcurrent      = "PROSPECT_MAX_CONCURRENT"
	envDispatchIntervalMS = "PROSPECT_DISPATCH_INTERVAL_MS"
	envDefaultTimeoutS    = "PROSPECT_DEFAULT_TIMEOUT_S"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	ListenAddr       string
	DBPath           string
	LogLevel         slog.Level
	MaxWorkers       int
	MaxConcurrent    int
	DispatchInterval time.Duration
	DefaultTimeout   time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	cfg := Config{
		ListenAddr:       defaultListenAddr,
		DBPath:           defaultDBPath,
		LogLevel:         slog.LevelInfo,
		MaxWorkers:       defaultMaxWorkers,
		MaxConcurrent:    defaultMaxConcurrent,
		DispatchInterval: defaultDispatchInterval,
		DefaultTimeout:   defaultTimeoutS * time.Second,
	}

	if v := os.Getenv(envListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(envDBPath); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}
	if n := parsePositiveInt(os.Getenv(envMaxWorkers)); n > 0 {
		cfg.MaxWorkers = n
	}
	if n := parsePositiveInt(os.Getenv(envMaxConcurrent)); n > 0 {
		cfg.MaxConcurrent = n
	}
	if n := parsePositiveInt(os.Getenv(envDispatchIntervalMS)); n > 0 {
		cfg.DispatchInterval = time.Duration(n) * time.Millisecond
	}
	if n := parsePositiveInt(os.Getenv(envDefaultTimeoutS)); n > 0 {
		cfg.DefaultTimeout = time.Duration(n) * time.Second
	}

	return cfg
}

// parsePositiveInt returns the parsed value, or 0 for empty, malformed or
// non-positive input.
func parsePositiveInt(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
