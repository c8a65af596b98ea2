package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStoreSwap(t *testing.T) {
	a := Default()
	b := Default()
	b.CooldownMs = 1

	s := NewStore(&a)
	if s.Load() != &a {
		t.Fatal("Load should return the initial snapshot")
	}
	s.Swap(&b)
	if s.Load().CooldownMs != 1 {
		t.Error("Swap did not replace the snapshot")
	}
	if s.Reloads() != 1 {
		t.Errorf("Reloads: got %d, want 1", s.Reloads())
	}
}

func TestWatcherReloadsOnChange(t *testing.T) {
	path := writeConfig(t, validYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	store := NewStore(cfg)
	w := NewWatcher(path, store, discardLogger())

	changed, err := w.Check()
	if err != nil || changed {
		t.Fatalf("unchanged file: changed=%v err=%v", changed, err)
	}

	updated := strings.Replace(validYAML, "cooldown_ms: 2000", "cooldown_ms: 45000", 1)
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	changed, err = w.Check()
	if err != nil || !changed {
		t.Fatalf("changed file: changed=%v err=%v", changed, err)
	}
	if store.Load().CooldownMs != 45000 {
		t.Errorf("CooldownMs after reload: got %d", store.Load().CooldownMs)
	}
}

func TestWatcherKeepsPreviousOnBadReload(t *testing.T) {
	path := writeConfig(t, validYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	store := NewStore(cfg)
	w := NewWatcher(path, store, discardLogger())

	if err := os.WriteFile(path, []byte("parameters: [this is: not valid"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	changed, err := w.Check()
	if err == nil {
		t.Fatal("expected reload error")
	}
	if changed {
		t.Error("failed reload must not report a change")
	}
	if store.Load() != cfg {
		t.Error("previous snapshot must be retained")
	}
	if store.Reloads() != 0 {
		t.Errorf("Reloads: got %d, want 0", store.Reloads())
	}
}

func TestWatcherMissingFile(t *testing.T) {
	path := writeConfig(t, validYAML)
	cfg, _ := Load(path)
	store := NewStore(cfg)
	w := NewWatcher(path, store, discardLogger())

	os.Remove(path)
	if _, err := w.Check(); err == nil {
		t.Error("expected error when file disappears")
	}
	if store.Load() != cfg {
		t.Error("previous snapshot must be retained")
	}
}

func TestResolvePath(t *testing.T) {
	existing := writeConfig(t, validYAML)
	missing := filepath.Join(t.TempDir(), "missing.yaml")

	if got := ResolvePath("", "config.yaml", discardLogger()); got != "config.yaml" {
		t.Errorf("empty explicit: got %q", got)
	}
	if got := ResolvePath(existing, "config.yaml", discardLogger()); got != existing {
		t.Errorf("existing explicit: got %q", got)
	}
	if got := ResolvePath(missing, "config.yaml", discardLogger()); got != "config.yaml" {
		t.Errorf("missing explicit should fall back: got %q", got)
	}
}
