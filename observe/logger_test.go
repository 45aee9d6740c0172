package observe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("failed to parse log line %q: %v", line, err)
		}
		out = append(out, entry)
	}
	return out
}

func TestLogger_IncludesCacheFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf).WithCache(CacheMeta{Namespace: "board", Name: "features"})

	logger.Info(context.Background(), "hello")

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry["cache.id"] != "board.features" {
		t.Errorf("cache.id = %v", entry["cache.id"])
	}
	if entry["cache.namespace"] != "board" {
		t.Errorf("cache.namespace = %v", entry["cache.namespace"])
	}
	if entry["msg"] != "hello" || entry["level"] != "info" {
		t.Errorf("unexpected entry: %v", entry)
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("warn", &buf)
	ctx := context.Background()

	logger.Debug(ctx, "debug")
	logger.Info(ctx, "info")
	logger.Warn(ctx, "warn")
	logger.Error(ctx, "error")

	entries := decodeLines(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d: %s", len(entries), buf.String())
	}
	if entries[0]["level"] != "warn" || entries[1]["level"] != "error" {
		t.Errorf("unexpected levels: %v, %v", entries[0]["level"], entries[1]["level"])
	}
}

func TestLogger_RedactsSensitiveFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("debug", &buf)

	logger.Info(context.Background(), "stored",
		F("value", map[string]string{"api": "k"}),
		F("token", "abc"),
		F("key", "settings:global"),
	)

	entry := decodeLines(t, &buf)[0]
	if entry["value"] != "[REDACTED]" || entry["token"] != "[REDACTED]" {
		t.Errorf("expected redaction, got %v", entry)
	}
	if entry["key"] != "settings:global" {
		t.Errorf("key = %v", entry["key"])
	}
}

func TestLogger_ErrorFieldIsString(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	logger.Error(context.Background(), "failed", F("error", errors.New("disk gone")))

	entry := decodeLines(t, &buf)[0]
	if entry["error"] != "disk gone" {
		t.Errorf("error = %v, want %q", entry["error"], "disk gone")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug": LevelDebug,
		"info":  LevelInfo,
		"warn":  LevelWarn,
		"error": LevelError,
		"bogus": LevelInfo,
		"":      LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNopLogger(t *testing.T) {
	l := NopLogger()
	l.Info(context.Background(), "ignored")
	if l.WithCache(CacheMeta{Name: "x"}) == nil {
		t.Fatal("WithCache should return non-nil logger")
	}
}
