// Package logging configures the global structured logger.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Setup configures the global slog logger from GRANARY_LOG_LEVEL and
// GRANARY_LOG_FORMAT and returns it.
func Setup() *slog.Logger {
	logger := slog.New(newHandler())
	slog.SetDefault(logger)
	return logger
}

func newHandler() slog.Handler {
	opts := &slog.HandlerOptions{Level: parseLevel(os.Getenv("GRANARY_LOG_LEVEL"))}
	if strings.EqualFold(os.Getenv("GRANARY_LOG_FORMAT"), "text") {
		return slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.NewJSONHandler(os.Stdout, opts)
}

func parseLevel(value string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
