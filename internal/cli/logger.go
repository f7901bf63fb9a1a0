package cli

import (
	"io"
	"log/slog"
	"strings"

	"github.com/tinoosan/bankledger/internal/config"
)

// parseLogLevel maps config values to slog.Leveler
func parseLogLevel(s string) slog.Leveler {
	switch s {
	case "DEBUG", "debug":
		return slog.LevelDebug
	case "WARN", "WARNING", "warn", "warning":
		return slog.LevelWarn
	case "ERROR", "ERR", "error", "err":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func buildLogger(c config.LogConfig, verbose bool, w io.Writer) *slog.Logger {
	level := parseLogLevel(c.Level)
	if verbose {
		level = slog.LevelDebug
	}
	if strings.EqualFold(strings.TrimSpace(c.Format), "text") {
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	}
	// default to JSON
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}
