package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew_FileOutputJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	l, err := New(Config{Level: "warn", Format: "json", Output: path})
	if err != nil {
		t.Fatal(err)
	}
	l.Info("dropped")
	l.Warn("kept")
	_ = l.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	if strings.Contains(out, "dropped") {
		t.Error("info entry should be filtered at warn level")
	}
	if !strings.Contains(out, `"msg":"kept"`) {
		t.Errorf("expected json warn entry, got %q", out)
	}
}

func TestNew_BadLevelFallsBackToInfo(t *testing.T) {
	l, err := New(Config{Level: "loud", Output: "stderr"})
	if err != nil {
		t.Fatal(err)
	}
	if !l.Core().Enabled(0) { // zapcore.InfoLevel
		t.Error("expected info to be enabled")
	}
	if l.Core().Enabled(-1) { // zapcore.DebugLevel
		t.Error("expected debug to be disabled")
	}
}

func TestNew_BadPath(t *testing.T) {
	if _, err := New(Config{Output: filepath.Join(t.TempDir(), "missing", "app.log")}); err == nil {
		t.Error("expected error for unwritable path")
	}
}

func TestInitialize(t *testing.T) {
	if err := Initialize(DefaultConfig()); err != nil {
		t.Fatal(err)
	}
	if L() == nil || Named("test") == nil {
		t.Error("expected installed logger")
	}
	Sync()
}
