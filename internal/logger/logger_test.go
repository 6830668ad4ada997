package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for input, want := range cases {
		got, err := ParseLevel(input)
		if err != nil {
			t.Fatalf("parse level %q: %v", input, err)
		}
		if got != want {
			t.Fatalf("parse level %q: got %v, want %v", input, got, want)
		}
	}

	if _, err := ParseLevel("verbose"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestNewAttachesRunContext(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&buf, "info", "bot", "run-123")
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	log.Info("cycle started", "symbol", "TQQQ")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode log record: %v", err)
	}
	if record["service"] != "bot" {
		t.Fatalf("expected service attr, got %v", record["service"])
	}
	if record["run_id"] != "run-123" {
		t.Fatalf("expected run_id attr, got %v", record["run_id"])
	}
	if record["symbol"] != "TQQQ" {
		t.Fatalf("expected symbol attr, got %v", record["symbol"])
	}
}

func TestNewRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&buf, "error", "bot", "run-123")
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	log.Info("should be dropped")
	if buf.Len() != 0 {
		t.Fatalf("expected info record to be filtered at error level, got %q", buf.String())
	}
}
