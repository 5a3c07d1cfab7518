package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"Error": slog.LevelError,
		"":      slog.LevelInfo,
		"bogus": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewJSONWithCollection(t *testing.T) {
	var buf bytes.Buffer
	l := WithCollection(New(Config{Level: "DEBUG", Format: "json", Output: &buf}), "db/users.json")

	l.Debug("loaded", "count", 3)

	out := buf.String()
	if !strings.Contains(out, `"collection":"db/users.json"`) {
		t.Errorf("Expected collection attribute, got %s", out)
	}
	if !strings.Contains(out, `"count":3`) {
		t.Errorf("Expected count attribute, got %s", out)
	}
}

func TestDiscard(t *testing.T) {
	l := Discard()
	if l.Enabled(context.Background(), slog.LevelError) {
		t.Error("Expected discard logger to drop errors")
	}
}
