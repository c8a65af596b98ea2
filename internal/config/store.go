package config

import (
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"
)

// Store holds the current configuration snapshot. Readers always see one
// complete *Config; a reload swaps the pointer wholesale.
type Store struct {
	current atomic.Pointer[Config]
	reloads atomic.Int64
}

// NewStore creates a Store holding cfg.
func NewStore(cfg *Config) *Store {
	s := &Store{}
	s.current.Store(cfg)
	return s
}

// Load returns the current snapshot. Callers must not modify it.
func (s *Store) Load() *Config {
	return s.current.Load()
}

// Swap replaces the current snapshot.
func (s *Store) Swap(cfg *Config) {
	s.current.Store(cfg)
	s.reloads.Add(1)
}

// Reloads returns how many times the snapshot has been replaced.
func (s *Store) Reloads() int64 {
	return s.reloads.Load()
}

// Watcher reloads a config file into a Store, either on demand after a file
// event or when a poll sees its modification time or size change.
type Watcher struct {
	path   string
	store  *Store
	logger *slog.Logger

	modTime time.Time
	size    int64
}

// NewWatcher creates a Watcher for path. The file's current stat is taken as
// the baseline, so the first Check only reloads after a change.
func NewWatcher(path string, store *Store, logger *slog.Logger) *Watcher {
	w := &Watcher{path: path, store: store, logger: logger}
	if fi, err := os.Stat(path); err == nil {
		w.modTime = fi.ModTime()
		w.size = fi.Size()
	}
	return w
}

// Check stats the file and reloads it if it changed. Used when no file
// watcher is available. Returns true if a new snapshot was stored.
func (w *Watcher) Check() (bool, error) {
	fi, err := os.Stat(w.path)
	if err != nil {
		w.logger.Warn("config stat failed, keeping previous config", "path", w.path, "error", err)
		return false, fmt.Errorf("stat config: %w", err)
	}
	if fi.ModTime().Equal(w.modTime) && fi.Size() == w.size {
		return false, nil
	}
	return w.Reload()
}

// Reload loads the file unconditionally. A failed reload is logged and
// returned; the previous snapshot stays in place.
// Returns true if a new snapshot was stored.
func (w *Watcher) Reload() (bool, error) {
	if fi, err := os.Stat(w.path); err == nil {
		w.modTime = fi.ModTime()
		w.size = fi.Size()
	}

	w.logger.Info("config changed, reloading", "path", w.path)
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Error("config reload failed, keeping previous config", "path", w.path, "error", err)
		return false, err
	}

	w.store.Swap(cfg)
	w.logger.Info("config reloaded", "path", w.path, "parameters", len(cfg.Parameters))
	return true, nil
}

// ResolvePath picks the config file to load. An explicit path that does not
// exist falls back to def, matching how the daemon has always been started
// with an optional positional argument.
func ResolvePath(explicit, def string, logger *slog.Logger) string {
	if explicit == "" {
		return def
	}
	if _, err := os.Stat(explicit); err != nil {
		logger.Warn("config provided on the command line does not exist, using default", "path", explicit, "default", def)
		return def
	}
	return explicit
}
