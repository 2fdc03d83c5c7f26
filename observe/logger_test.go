package observe

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func decodeEntries(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("bad log line %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestLoggerEmitsStructuredJSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter("info", &buf)

	l.Info(context.Background(), "commit accepted",
		Field{Key: "branch", Value: "dev/payments/schema-v3"},
		Field{Key: "validators_run", Value: 4},
	)

	entries := decodeEntries(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("got %d entries", len(entries))
	}
	e := entries[0]
	if e["msg"] != "commit accepted" || e["level"] != "info" {
		t.Fatalf("entry = %v", e)
	}
	if e["branch"] != "dev/payments/schema-v3" {
		t.Fatalf("branch = %v", e["branch"])
	}
	if e["timestamp"] == nil {
		t.Fatal("missing timestamp")
	}
}

func TestLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter("warn", &buf)

	l.Debug(context.Background(), "noise")
	l.Info(context.Background(), "noise")
	l.Warn(context.Background(), "heartbeat missed")
	l.Error(context.Background(), "lock store unreachable")

	entries := decodeEntries(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0]["level"] != "warn" || entries[1]["level"] != "error" {
		t.Fatalf("entries = %v", entries)
	}
}

func TestLoggerRedaction(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter("info", &buf)

	l.Info(context.Background(), "store configured",
		Field{Key: "dsn", Value: "postgres://ontology:hunter2@db/ontology"},
		Field{Key: "token", Value: "tok-123"},
		Field{Key: "queue", Value: "commit-sinks"},
	)

	e := decodeEntries(t, &buf)[0]
	if e["dsn"] != "[REDACTED]" || e["token"] != "[REDACTED]" {
		t.Fatalf("secrets leaked: %v", e)
	}
	if e["queue"] != "commit-sinks" {
		t.Fatalf("non-secret field mangled: %v", e)
	}
}

func TestLoggerWithBindsFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter("info", &buf).With(Field{Key: "component", Value: "lock"})

	l.Info(context.Background(), "lock released")
	l.Info(context.Background(), "lock acquired", Field{Key: "lock_type", Value: "INDEXING"})

	entries := decodeEntries(t, &buf)
	for _, e := range entries {
		if e["component"] != "lock" {
			t.Fatalf("bound field missing: %v", e)
		}
	}
	if entries[1]["lock_type"] != "INDEXING" {
		t.Fatalf("call field missing: %v", entries[1])
	}
}

func TestParseLogLevel(t *testing.T) {
	for in, want := range map[string]LogLevel{
		"debug": LevelDebug, "info": LevelInfo, "warn": LevelWarn,
		"error": LevelError, "bogus": LevelInfo, "": LevelInfo,
	} {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
