package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"
)

func decodeLines(t *testing.T, data string) []map[string]any {
	t.Helper()
	var res []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(data), "\n") {
		if line == "" {
			continue
		}
		entry := map[string]any{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("invalid JSON line %q: %v", line, err)
		}
		res = append(res, entry)
	}
	return res
}

func TestNewLogger(t *testing.T) {
	t.Run("creates the log file and its directory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "spineview.log")
		logger, err := NewLogger(path, LevelDebug)
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}
		logger.Info("hello")
		if err := logger.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
		content, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read log file: %v", err)
		}
		if !strings.Contains(string(content), `"msg":"hello"`) {
			t.Errorf("log file content = %s", content)
		}
	})

	t.Run("writes to stderr when path is empty", func(t *testing.T) {
		logger, err := NewLogger("", LevelInfo)
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}
		if logger.file != nil {
			t.Error("expected no file for a stderr logger")
		}
		if err := logger.Close(); err != nil {
			t.Errorf("Close on stderr logger = %v", err)
		}
	})
}

func TestLevelFiltering(t *testing.T) {
	tests := []struct {
		level string
		want  int
	}{
		{LevelDebug, 4},
		{LevelInfo, 3},
		{"warn", 2},
		{LevelError, 1},
		{"bogus", 3},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewWriterLogger(&buf, tt.level)
			logger.Debug("d")
			logger.Info("i")
			logger.Warn("w")
			logger.Error("e")
			if got := len(decodeLines(t, buf.String())); got != tt.want {
				t.Errorf("got %d lines, want %d", got, tt.want)
			}
		})
	}
}

func TestPersistentAttributes(t *testing.T) {
	var buf bytes.Buffer
	base := NewWriterLogger(&buf, LevelDebug)
	child := base.WithComponent("session").WithSession("hero").With("kind", "AssetFetchFailure", 42, "skipped")
	child.Error("load failed", "path", "hero.atlas")
	base.Info("plain")

	entries := decodeLines(t, buf.String())
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	first := entries[0]
	for key, want := range map[string]string{
		"component":  "session",
		"session_id": "hero",
		"kind":       "AssetFetchFailure",
		"path":       "hero.atlas",
		"level":      "ERROR",
	} {
		if first[key] != want {
			t.Errorf("%s = %v, want %s", key, first[key], want)
		}
	}
	if _, ok := entries[1]["session_id"]; ok {
		t.Error("child attributes leaked into the parent logger")
	}
}

func TestValidLevel(t *testing.T) {
	for _, level := range []string{"debug", "INFO", "Warn", "error"} {
		if !ValidLevel(level) {
			t.Errorf("ValidLevel(%q) = false", level)
		}
	}
	if ValidLevel("trace") {
		t.Error("ValidLevel(trace) = true")
	}
}

func TestFeed(t *testing.T) {
	feed := NewFeed(0)
	feed.Add("first")
	feed.Add("second")
	if got := feed.String(); got != "second\nfirst\n" {
		t.Errorf("String() = %q", got)
	}
	for i := 0; i < 100; i++ {
		feed.Add("가나다라마바사")
	}
	if got := utf8.RuneCountInString(feed.String()); got != DefaultFeedLimit {
		t.Errorf("feed holds %d characters, want %d", got, DefaultFeedLimit)
	}
	if !utf8.ValidString(feed.String()) {
		t.Error("truncation split a character")
	}
	feed.Clear()
	if feed.String() != "" {
		t.Error("Clear() left text behind")
	}
}
