package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLogger_WritesJSONToFile(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, LevelInfo)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	logger.Info("session started", "mode", "collaborative")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "troupe.log"))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}

	var entry map[string]any
	line := strings.TrimSpace(string(data))
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log line is not valid JSON: %v", err)
	}
	if entry["msg"] != "session started" {
		t.Errorf("msg = %v, want 'session started'", entry["msg"])
	}
	if entry["mode"] != "collaborative" {
		t.Errorf("mode = %v, want 'collaborative'", entry["mode"])
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, LevelWarn)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	logger.Debug("too quiet")
	logger.Info("still too quiet")
	logger.Warn("audible")
	logger.Close()

	data, _ := os.ReadFile(filepath.Join(dir, "troupe.log"))
	content := string(data)

	if strings.Contains(content, "too quiet") {
		t.Error("DEBUG/INFO messages should be filtered at WARN level")
	}
	if !strings.Contains(content, "audible") {
		t.Error("WARN messages should be logged at WARN level")
	}
}

func TestLogger_ChildAttributes(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, LevelDebug)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	child := logger.WithSession("sess-1").WithAgent("w1").WithPhase("planning")
	child.Info("plan generated")
	logger.Close()

	data, _ := os.ReadFile(filepath.Join(dir, "troupe.log"))

	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(data))), &entry); err != nil {
		t.Fatalf("log line is not valid JSON: %v", err)
	}
	if entry["session_id"] != "sess-1" {
		t.Errorf("session_id = %v, want sess-1", entry["session_id"])
	}
	if entry["agent_id"] != "w1" {
		t.Errorf("agent_id = %v, want w1", entry["agent_id"])
	}
	if entry["phase"] != "planning" {
		t.Errorf("phase = %v, want planning", entry["phase"])
	}
}

func TestLogger_ChildDoesNotMutateParent(t *testing.T) {
	logger := NopLogger()

	child := logger.WithSession("sess-1")
	if len(logger.attrs) != 0 {
		t.Error("Creating a child logger must not mutate the parent's attributes")
	}
	if len(child.attrs) != 1 {
		t.Errorf("Child should carry 1 attribute, has %d", len(child.attrs))
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"Warn", LevelWarn},
		{"error", LevelError},
		{"bogus", LevelInfo},
		{"", LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNopLogger(t *testing.T) {
	logger := NopLogger()
	logger.Info("discarded")
	if err := logger.Close(); err != nil {
		t.Errorf("Close() on NopLogger should not error: %v", err)
	}
}
