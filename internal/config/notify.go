package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// settleDelay coalesces the burst of events a single save produces
// (truncate, write, chmod, or write-temp-then-rename).
const settleDelay = 100 * time.Millisecond

// Notifier signals when the config file changes on disk. It watches the
// parent directory so that editors which replace the file by rename are
// still seen.
type Notifier struct {
	fs     *fsnotify.Watcher
	name   string
	logger *slog.Logger
	events chan struct{}
}

// NewNotifier starts watching the directory that holds path.
func NewNotifier(path string, logger *slog.Logger) (*Notifier, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	if err := fs.Add(filepath.Dir(path)); err != nil {
		fs.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}
	return &Notifier{
		fs:     fs,
		name:   filepath.Base(path),
		logger: logger,
		events: make(chan struct{}, 1),
	}, nil
}

// Changes delivers one value per settled change to the config file.
func (n *Notifier) Changes() <-chan struct{} {
	return n.events
}

// Run forwards filtered events until ctx is canceled or the watcher closes.
func (n *Notifier) Run(ctx context.Context) {
	settle := time.NewTimer(settleDelay)
	settle.Stop()
	defer settle.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-n.fs.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != n.name {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			n.logger.Debug("config file event", "name", ev.Name, "op", ev.Op.String())
			settle.Reset(settleDelay)

		case err, ok := <-n.fs.Errors:
			if !ok {
				return
			}
			n.logger.Warn("config watcher error", "error", err)

		case <-settle.C:
			select {
			case n.events <- struct{}{}:
			default:
			}
		}
	}
}

// Close stops watching.
func (n *Notifier) Close() error {
	return n.fs.Close()
}

// Poll is the fallback when no file watcher is available: it ticks every
// interval until ctx is canceled.
func Poll(ctx context.Context, interval time.Duration) <-chan struct{} {
	out := make(chan struct{}, 1)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out
}
