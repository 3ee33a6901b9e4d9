package remote

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 200 * time.Millisecond

// ChangeFunc receives the file contents after an external change settles.
type ChangeFunc func(data []byte)

// Watch observes a single file until ctx is cancelled. The parent directory
// is watched so atomic rename-over writes are seen. Bursts of events are
// debounced; cb is called only when the new contents are not known to skip
// (pass File.Known to ignore this process's own writes).
func Watch(ctx context.Context, path string, skip func([]byte) bool, logger *slog.Logger, cb ChangeFunc) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(abs)); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("path", abs))

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-fire:
			fire = nil
			data, readErr := os.ReadFile(abs)
			if readErr != nil {
				logger.Warn("watcher: read failed", slog.String("path", abs), slog.String("error", readErr.Error()))
				continue
			}
			if skip != nil && skip(data) {
				logger.Debug("watcher: own write ignored", slog.String("path", abs))
				continue
			}
			logger.Debug("watcher: external change", slog.String("path", abs))
			cb(data)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
			} else {
				timer.Reset(watchDebounce)
			}
			fire = timer.C

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
