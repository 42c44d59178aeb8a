// Package logging builds the structured loggers used across phpindex.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// LevelEnv names the environment variable read by Default.
const LevelEnv = "PHPINDEX_LOG_LEVEL"

// ParseLevel maps debug, info, warn and error to slog levels. Anything
// else yields info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// New returns a text logger writing to w and tagged with component.
func New(component string, level slog.Level, w io.Writer) *slog.Logger {
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(h).With("component", component)
}

// Default returns a stderr logger for component at the level named by
// PHPINDEX_LOG_LEVEL.
func Default(component string) *slog.Logger {
	return New(component, ParseLevel(os.Getenv(LevelEnv)), os.Stderr)
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
