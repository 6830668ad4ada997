package logger

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// New builds the run-scoped logger that is handed to every component at
// construction time. Output is one JSON object per line with the service
// name and run id attached to every record.
func New(w io.Writer, level, service, runID string) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	return slog.New(handler).With("service", service, "run_id", runID), nil
}

// ParseLevel maps a config level string onto a slog level. An empty string
// means info.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level: %s", level)
	}
}
