package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew_InvalidLevel(t *testing.T) {
	if _, err := New(Config{Level: "loud"}); err == nil {
		t.Fatal("expected error for invalid level")
	}
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")

	l, err := New(Config{Level: "debug", Format: "json", Output: path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lg := Component(l, "index")
	lg.Info().Str("symbol", "EURUSD").Msg("loaded")

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	line := string(b)
	for _, want := range []string{`"component":"index"`, `"symbol":"EURUSD"`, `"message":"loaded"`} {
		if !strings.Contains(line, want) {
			t.Errorf("expected %s in %q", want, line)
		}
	}
}

func TestNew_LevelFilters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")

	l, err := New(Config{Level: "warn", Output: path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	l.Info().Msg("hidden")
	l.Warn().Msg("shown")

	b, _ := os.ReadFile(path)
	if strings.Contains(string(b), "hidden") {
		t.Error("info message should be filtered at warn level")
	}
	if !strings.Contains(string(b), "shown") {
		t.Error("warn message missing")
	}
}
