// =============================================================================
// pkg/config/logger.go - Structured logging setup
// =============================================================================
package config

import (
	"io"
	"log/slog"
	"strings"
)

// NewLogger builds the process logger. Logs go to w, normally stderr, so
// they never interleave with the status line on stdout.
func NewLogger(levelRaw, formatRaw string, w io.Writer) *slog.Logger {
	options := &slog.HandlerOptions{Level: ParseLogLevel(levelRaw)}
	if strings.ToLower(strings.TrimSpace(formatRaw)) == "json" {
		return slog.New(slog.NewJSONHandler(w, options))
	}
	return slog.New(slog.NewTextHandler(w, options))
}

func ParseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
