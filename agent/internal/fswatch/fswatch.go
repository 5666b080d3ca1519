// Package fswatch fires a callback when a single file changes on disk.
//
// The parent directory is watched rather than the file itself, so atomic
// saves (write temp file, rename over target) and delete/recreate cycles are
// seen without re-adding the watch. Bursts of events inside the settle
// window are coalesced into one callback.
package fswatch

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultSettle is the quiet period after the last event before onChange runs.
const DefaultSettle = 100 * time.Millisecond

// Watch calls onChange each time path is written, created, or renamed into
// place. It blocks until ctx is cancelled or the watcher fails to start.
func Watch(ctx context.Context, path string, settle time.Duration, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	target := filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return err
	}
	if settle <= 0 {
		settle = DefaultSettle
	}

	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(settle)
			} else {
				timer.Reset(settle)
			}
			pending = timer.C

		case <-pending:
			pending = nil
			onChange()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("fswatch: watcher error", "path", target, "err", err)
		}
	}
}
