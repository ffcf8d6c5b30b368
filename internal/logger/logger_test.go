package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "warn"}, &buf)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	l.Info("quiet")
	l.Warn("loud", "habit", "h1")

	out := buf.String()
	if strings.Contains(out, "quiet") {
		t.Error("info message should be filtered at warn level")
	}
	if !strings.Contains(out, "loud") || !strings.Contains(out, "habit=h1") {
		t.Errorf("warn output = %q", out)
	}
}

func TestNew_BadLevel(t *testing.T) {
	if _, err := New(Config{Level: "chatty"}, &bytes.Buffer{}); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestNew_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "moonlit.log")
	l, err := New(Config{Level: "info", File: path, MaxSizeMB: 1}, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	l.Info("to file")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "to file") {
		t.Errorf("log file = %q", data)
	}
}

func TestComponent_BeforeInit(t *testing.T) {
	saved := Logger
	Logger = nil
	defer func() { Logger = saved }()

	// Must not panic.
	Component("garden").Info("ignored")
	Info("ignored")
}
