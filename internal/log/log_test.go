package log

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"
)

func capture(t *testing.T, level Level) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(level)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(LevelInfo)
	})
	return &buf
}

func TestLevelFiltering(t *testing.T) {
	buf := capture(t, LevelWarn)

	Debug("debug line")
	Info("info line")
	Warn("warn line")
	Error("error line", errors.New("boom"))

	out := buf.String()
	if strings.Contains(out, "debug line") || strings.Contains(out, "info line") {
		t.Errorf("lines below WARN were written: %q", out)
	}
	if !strings.Contains(out, "[WARN] warn line") {
		t.Errorf("missing warn line: %q", out)
	}
	if !strings.Contains(out, "[ERROR] error line err=boom") {
		t.Errorf("missing error line: %q", out)
	}
}

func TestKeyValues(t *testing.T) {
	buf := capture(t, LevelDebug)

	Debug("refresh", "mode", "full", "counter", 3, 42, "skipped", "dangling")

	out := buf.String()
	if !strings.Contains(out, "refresh mode=full counter=3") {
		t.Errorf("unexpected kv formatting: %q", out)
	}
	if strings.Contains(out, "skipped") || strings.Contains(out, "dangling") {
		t.Errorf("non-string key or odd trailing value was formatted: %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{" INFO ", LevelInfo},
		{"warning", LevelWarn},
		{"Error", LevelError},
		{"", LevelInfo},
		{"verbose", LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("ParseLevel(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}
