package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, false)
	logger.Debug("hidden")
	logger.Info("shown", "words", 5)
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug message logged at info level: %s", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "words=5") {
		t.Fatalf("expected info message with fields: %s", out)
	}
}

func TestOpenWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "flashread.log")
	logger, closeFn, err := Open(path, true)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	logger.Debug("tick", "position", 3)
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "position=3") {
		t.Fatalf("expected debug entry in log file: %s", data)
	}
}
