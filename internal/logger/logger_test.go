package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewWithWriter(t *testing.T) {
	t.Run("JSON format", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewWithWriter(&buf, "debug", FormatJSON)
		l.Info().Str("post_id", "P42").Msg("Post updated")

		var entry map[string]any
		if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
			t.Fatalf("Expected JSON line, got %q: %v", buf.String(), err)
		}
		if entry["post_id"] != "P42" {
			t.Errorf("Expected post_id P42, got %v", entry["post_id"])
		}
		if entry["message"] != "Post updated" {
			t.Errorf("Expected message, got %v", entry["message"])
		}
		if _, ok := entry["pid"]; !ok {
			t.Error("Expected pid field")
		}
	})

	t.Run("Console format", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewWithWriter(&buf, "info", FormatConsole)
		l.Info().Msg("hello")

		if strings.HasPrefix(buf.String(), "{") {
			t.Errorf("Expected console output, got %q", buf.String())
		}
		if !strings.Contains(buf.String(), "hello") {
			t.Errorf("Expected message in output, got %q", buf.String())
		}
	})

	t.Run("Level filtering", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewWithWriter(&buf, "warn", FormatJSON)
		l.Info().Msg("dropped")
		if buf.Len() != 0 {
			t.Errorf("Expected info to be filtered at warn, got %q", buf.String())
		}
	})

	t.Run("Invalid level defaults to info", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewWithWriter(&buf, "loud", FormatJSON)
		if l.GetLevel() != zerolog.InfoLevel {
			t.Errorf("Expected info level, got %s", l.GetLevel())
		}
	})
}
