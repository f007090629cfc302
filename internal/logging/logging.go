// Package logging builds the slog loggers used across codemap.
package logging

import (
	"io"
	"log/slog"
	"strings"
)

// New returns a logger writing to w at the named level. format "json"
// selects JSON output; anything else is logfmt-style text.
func New(w io.Writer, level, format string) *slog.Logger {
	return NewAt(w, ParseLevel(level), format)
}

// NewAt is New with an already resolved level.
func NewAt(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// ParseLevel maps debug, info, warn (or warning), and error to slog levels,
// case-insensitively. Unknown names mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// Verbosity adjusts base by CLI flags: quiet keeps only errors and each
// verbose step lowers the threshold by one level.
func Verbosity(base slog.Level, verbose int, quiet bool) slog.Level {
	if quiet {
		return slog.LevelError
	}
	return base - slog.Level(4*verbose)
}
