package profile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"droneops-console/internal/logging"
)

const debounce = 200 * time.Millisecond

// Watch reloads the profile file at file whenever it changes and passes each
// valid revision to fn. Invalid revisions are logged and skipped. Watch blocks
// until ctx is done.
func Watch(ctx context.Context, file string, log *zap.Logger, fn func(*Profile)) error {
	log = logging.Component(log, "profile")
	abs, err := filepath.Abs(file)
	if err != nil {
		return fmt.Errorf("resolve profile path: %w", err)
	}
	if _, err := os.Stat(abs); err != nil {
		return fmt.Errorf("watch profile: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()
	// Editors often replace the file, so watch the directory.
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	log.Info("watching profile", zap.String("path", abs))

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			pending = time.After(debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Error("watcher error", zap.Error(err))
		case <-pending:
			pending = nil
			p, err := Load(abs)
			if err != nil {
				log.Warn("profile reload rejected", zap.Error(err))
				continue
			}
			log.Info("profile reloaded", zap.String("name", p.Name))
			fn(p)
		}
	}
}
