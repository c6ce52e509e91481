// Package confwatch watches the configuration file and notifies the
// application when it changes, enabling runtime log-level adjustment
// without a restart.
package confwatch

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch monitors the config file at path until ctx is cancelled, calling
// onChange after each settled modification. Editors typically produce a
// burst of write/rename events per save, so changes are debounced.
func Watch(ctx context.Context, path string, logger *slog.Logger, onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// Watch the directory: editors that replace the file via rename would
	// otherwise drop the watch on the first save.
	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		return err
	}
	target := filepath.Base(path)

	logger.Info("confwatch: started", slog.String("path", path))

	var debounce *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			logger.Info("confwatch: stopped")
			return nil

		case <-fire:
			onChange()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(200 * time.Millisecond)
				fire = debounce.C
			} else {
				debounce.Reset(200 * time.Millisecond)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("confwatch: watcher error", slog.String("error", err.Error()))
		}
	}
}
