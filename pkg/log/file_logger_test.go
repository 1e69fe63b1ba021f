package log

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileLoggerWritesEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")

	fl, err := NewFileLogger(path, LevelInfo)
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}

	fl.Info("started on port %d", 7860)
	fl.Debug("suppressed below the level")
	if err := fl.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "[INFO]") || !strings.Contains(content, "started on port 7860") {
		t.Fatalf("log file missing info entry: %q", content)
	}
	if strings.Contains(content, "suppressed") {
		t.Fatalf("debug entry should be filtered: %q", content)
	}
}

func TestSetLoggerRoutesPackageFuncs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")

	fl, err := NewFileLogger(path, LevelInfo)
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}
	SetLogger(fl.Logger)
	defer InitLogger(LevelInfo)

	Info("routed through the file logger")
	if err := fl.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "routed through the file logger") {
		t.Fatalf("package-level Info did not reach the file: %q", string(data))
	}
}
