package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"verbose", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.level); got != tt.expected {
			t.Errorf("ParseLevel(%q) = %v, expected %v", tt.level, got, tt.expected)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, "warn", "json")

	Info("dropped %d", 1)
	Warn("kept %d", 2)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("Expected 1 log line, got %d: %q", len(lines), buf.String())
	}

	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("Expected JSON log line: %v", err)
	}
	if entry["message"] != "kept 2" {
		t.Errorf("Unexpected message: %v", entry["message"])
	}
	if entry["level"] != "warn" {
		t.Errorf("Unexpected level: %v", entry["level"])
	}
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, "debug", "text")

	Debug("windowing %d observations", 42)

	if !strings.Contains(buf.String(), "windowing 42 observations") {
		t.Errorf("Expected console output to contain message, got %q", buf.String())
	}
}
