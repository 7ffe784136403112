package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/garyellow/lullabot-go/internal/ctxutil"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON %q: %v", buf.String(), err)
	}
	return entry
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewWithWriter_Layout(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewWithWriter("debug", &buf)
	log.Warn("karma saved", "subject", "tacos")

	entry := decodeLine(t, &buf)
	if entry["message"] != "karma saved" {
		t.Errorf("message = %v", entry["message"])
	}
	if entry["level"] != "warning" {
		t.Errorf("level = %v, want warning", entry["level"])
	}
	if _, ok := entry["timestamp"]; !ok {
		t.Error("timestamp field missing")
	}
	if entry["subject"] != "tacos" {
		t.Errorf("subject = %v", entry["subject"])
	}
}

func TestLevelFiltering(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewWithWriter("error", &buf)
	log.Info("dropped")
	if buf.Len() != 0 {
		t.Errorf("info record written at error level: %s", buf.String())
	}
	if log.Level() != slog.LevelError {
		t.Errorf("Level() = %v", log.Level())
	}
}

func TestWithHelpers(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewWithWriter("info", &buf).
		WithModule("factoid").
		WithRequestID("req-1").
		WithError(errors.New("boom")).
		WithFields(map[string]any{"b": 2, "a": 1})
	log.Infof("processed %d events", 3)

	entry := decodeLine(t, &buf)
	for key, want := range map[string]any{
		"module":     "factoid",
		"request_id": "req-1",
		"error":      "boom",
		"a":          float64(1),
		"b":          float64(2),
		"message":    "processed 3 events",
	} {
		if entry[key] != want {
			t.Errorf("%s = %v, want %v", key, entry[key], want)
		}
	}
}

func TestContextIdentifiers(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewWithWriter("info", &buf)

	ctx := ctxutil.WithUserID(context.Background(), "U1")
	ctx = ctxutil.WithChannelID(ctx, "C1")
	ctx = ctxutil.WithTeamID(ctx, "T1")
	ctx = ctxutil.WithRequestID(ctx, "req-9")
	log.InfoContext(ctx, "dispatch")

	entry := decodeLine(t, &buf)
	for key, want := range map[string]string{
		"user_id":    "U1",
		"channel_id": "C1",
		"team_id":    "T1",
		"request_id": "req-9",
	} {
		if entry[key] != want {
			t.Errorf("%s = %v, want %v", key, entry[key], want)
		}
	}
}

func TestContextIdentifiers_Absent(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	NewWithWriter("info", &buf).InfoContext(context.Background(), "no ids")

	entry := decodeLine(t, &buf)
	for _, key := range []string{"user_id", "channel_id", "team_id", "request_id"} {
		if _, ok := entry[key]; ok {
			t.Errorf("unexpected %s in %v", key, entry)
		}
	}
}

func TestShutdown_NoShipper(t *testing.T) {
	t.Parallel()

	log := NewWithWriter("info", &bytes.Buffer{})
	if err := log.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() = %v", err)
	}
	var nilLogger *Logger
	if err := nilLogger.Shutdown(context.Background()); err != nil {
		t.Errorf("nil Shutdown() = %v", err)
	}
}

func TestShipHandler_DrainsOnShutdown(t *testing.T) {
	t.Parallel()

	var remote bytes.Buffer
	ship := newShipHandler(slog.NewJSONHandler(&remote, nil), 8)
	log := slog.New(ship)

	log.Info("one")
	log.Info("two")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := ship.shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	if got := bytes.Count(remote.Bytes(), []byte("\n")); got != 2 {
		t.Errorf("remote received %d records, want 2", got)
	}

	log.Info("after shutdown")
	if got := bytes.Count(remote.Bytes(), []byte("\n")); got != 2 {
		t.Errorf("record accepted after shutdown")
	}
	if err := ship.shutdown(ctx); err != nil {
		t.Errorf("second shutdown: %v", err)
	}
}
