package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"flipsol-keeper/internal/config"
)

func TestRotatingFileKeepsBackups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keeper.log")
	w, err := newRotatingFile(path, 1, 2)
	if err != nil {
		t.Fatalf("create writer: %v", err)
	}
	defer w.Close()

	// Each chunk fills the 1MB cap, so every write after the first rotates.
	chunk := make([]byte, 1<<20)
	for i := 0; i < 4; i++ {
		chunk[0] = byte('a' + i)
		if _, err := w.Write(chunk); err != nil {
			t.Fatalf("write chunk %d: %v", i, err)
		}
	}

	want := map[string]byte{path: 'd', path + ".1": 'c', path + ".2": 'b'}
	for p, first := range want {
		raw, err := os.ReadFile(p)
		if err != nil {
			t.Fatalf("read %s: %v", p, err)
		}
		if len(raw) != 1<<20 || raw[0] != first {
			t.Fatalf("%s: size %d first byte %q, want %q", p, len(raw), raw[0], first)
		}
	}
	if _, err := os.Stat(path + ".3"); !os.IsNotExist(err) {
		t.Fatalf("backup beyond limit exists: %v", err)
	}
}

func TestInitFallsBackToInfoOnBadLevel(t *testing.T) {
	dir := t.TempDir()
	cfg := config.LogConfig{Level: "loud", File: filepath.Join(dir, "k.log"), MaxMB: 1}
	if err := Init(cfg); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Fatalf("global level = %s, want info", zerolog.GlobalLevel())
	}
	if Writer() == nil {
		t.Fatal("Writer() returned nil")
	}
}
