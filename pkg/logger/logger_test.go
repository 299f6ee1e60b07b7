package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestLoggerFunctions_NoNilPointers(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("Logger function panicked: %v", r)
		}
	}()

	SetLogger(nil)
	Debug("test debug", "key", "value")
	Info("test info", "key", "value")
	Warn("test warn", "key", "value")
	Error("test error", "key", "value")
	Component("realtime").Info("discarded")
}

func TestComponentPrefix(t *testing.T) {
	var buf bytes.Buffer
	l := log.New(&buf)
	l.SetLevel(log.DebugLevel)
	SetLogger(l)
	defer SetLogger(nil)

	Component("realtime").Debug("state change", "to", "connected")

	out := buf.String()
	if !strings.Contains(out, "realtime") {
		t.Errorf("Expected prefix in output, got %q", out)
	}
	if !strings.Contains(out, "to=connected") {
		t.Errorf("Expected key/value in output, got %q", out)
	}
}

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "community.log")
	l := New(Options{Level: "warn", Format: "logfmt", File: path, MaxSizeMB: 1})

	l.Info("hidden")
	l.Warn("visible", "code", 4000)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Expected log file: %v", err)
	}
	if strings.Contains(string(data), "hidden") {
		t.Error("Info line should be filtered at warn level")
	}
	if !strings.Contains(string(data), "visible") {
		t.Errorf("Expected warn line, got %q", string(data))
	}
}

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		in   string
		want log.Level
	}{
		{"debug", log.DebugLevel},
		{"INFO", log.InfoLevel},
		{"warn", log.WarnLevel},
		{"error", log.ErrorLevel},
		{"nonsense", log.InfoLevel},
	}
	for _, tc := range testCases {
		if got := parseLevel(tc.in); got != tc.want {
			t.Errorf("parseLevel(%q): expected %v, got %v", tc.in, tc.want, got)
		}
	}
}
