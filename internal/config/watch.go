package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDelay coalesces the bursts of events an editor produces on save.
const reloadDelay = 100 * time.Millisecond

// Watch calls fn with the reloaded configuration each time path changes,
// until ctx is cancelled. A file that fails to parse is logged and skipped.
func Watch(ctx context.Context, path string, logger *slog.Logger, fn func(*Config)) error {
	if logger == nil {
		logger = slog.Default()
	}
	path = filepath.Clean(path)
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: create watcher: %w", err)
	}
	// Watch the directory: editors replace the file on save.
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return fmt.Errorf("config: watch %s: %w", path, err)
	}

	go func() {
		defer w.Close()
		var timer *time.Timer
		var fire <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != path || ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(reloadDelay)
				} else {
					timer.Reset(reloadDelay)
				}
				fire = timer.C
			case <-fire:
				fire = nil
				cfg, err := LoadFile(path)
				if err != nil {
					logger.Warn("config: reload failed", "path", path, "error", err)
					continue
				}
				logger.Info("config: reloaded", "path", path)
				fn(cfg)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warn("config: watcher error", "error", err)
			}
		}
	}()
	return nil
}
