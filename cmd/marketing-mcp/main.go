package main

import (
	"errors"
	"log/slog"
	"os"
	"strings"

	"github.com/edgeopslabs/marketing-mcp/pkg/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads path and falls back to defaults when it is missing or
// broken. Logging is configured from the result before anything is logged.
func loadConfig(path string) *config.Config {
	cfg, err := config.LoadConfig(path)
	configureLogging(cfg)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Warn("config file not found, using defaults", "path", path)
		} else {
			slog.Warn("failed to load config, using defaults", "path", path, "error", err)
		}
	}
	return cfg
}

func configureLogging(cfg *config.Config) {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Server.LogLevel)}
	var handler slog.Handler
	if strings.EqualFold(cfg.Server.LogFormat, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
