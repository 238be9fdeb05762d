// Package logging builds the process-wide slog.Logger, matching the
// teacher's structured-logging style in pkg/httpclient and pkg/transport:
// key-value attributes, no string interpolation of structured data.
package logging

import (
	"log/slog"
	"os"
)

// New builds a slog.Logger writing JSON to stderr at the given level
// ("debug", "info", "warn", "error"; defaults to "info").
func New(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return slog.New(handler)
}
