// Package logging builds the process-wide structured logger. Both binaries
// emit JSON lines on stdout with a service attribute so the api and loader
// streams can be told apart once aggregated.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Setup installs a JSON logger as the slog default and returns it.
func Setup(service, level string) *slog.Logger {
	logger := NewJSONLogger(service, level)
	slog.SetDefault(logger)
	return logger
}

// NewJSONLogger returns a JSON logger writing to stdout. Unknown level
// names fall back to info.
func NewJSONLogger(service, level string) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	return slog.New(handler).With("service", service)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
