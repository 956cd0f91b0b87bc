package utils

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func restoreDefaultLogger(t *testing.T) {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
}

func TestConfigureDefaultLoggerRejectsUnknownLevel(t *testing.T) {
	restoreDefaultLogger(t)
	if _, err := ConfigureDefaultLogger("loud", "", slog.HandlerOptions{}); err == nil {
		t.Fatal("expected an error for an unknown log level")
	}
}

func TestConfigureDefaultLoggerNone(t *testing.T) {
	restoreDefaultLogger(t)
	f, err := ConfigureDefaultLogger("none", "", slog.HandlerOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if f != nil {
		t.Fatal("no file expected when logging is disabled")
	}
}

func TestConfigureDefaultLoggerWritesJSONToFile(t *testing.T) {
	restoreDefaultLogger(t)
	path := filepath.Join(t.TempDir(), "capview.log")

	f, err := ConfigureDefaultLogger("info", path, slog.HandlerOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if f == nil {
		t.Fatal("expected a file pointer")
	}
	slog.Info("hello", "k", "v")
	f.Close()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), `"msg":"hello"`) {
		t.Fatalf("log file does not contain the JSON record: %s", raw)
	}
}
