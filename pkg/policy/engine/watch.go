package engine

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the config whenever the file changes on disk, until ctx is
// cancelled. It watches the containing directory rather than the file
// itself so editors that replace the file (rename-over-write) keep being
// observed.
//
// Watch blocks; run it on its own goroutine. Reload failures are logged
// and the previous config stays active.
func (e *Engine) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(e.configPath)
	if err := watcher.Add(dir); err != nil {
		return err
	}

	target := filepath.Clean(e.configPath)
	e.logger.Debug("watching policy config", "path", target)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := e.Reload(); err != nil {
				e.logger.Warn("policy config reload failed, keeping previous config",
					"path", target,
					"error", err,
				)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			e.logger.Warn("policy config watcher error", "error", err)
		}
	}
}
