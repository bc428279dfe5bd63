package index

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Reloader is implemented by stores that can re-read their persisted state.
type Reloader interface {
	Reload() error
}

// Watcher reloads a persisted index after the offline builder rewrites it.
// Bursts of file events are collapsed into one reload per debounce window.
type Watcher struct {
	watcher  *fsnotify.Watcher
	target   Reloader
	debounce time.Duration
	logger   *logrus.Entry
}

// NewWatcher watches dir and all of its subdirectories. dir is created if
// it does not exist.
func NewWatcher(dir string, target Reloader, debounce time.Duration, logger *logrus.Entry) (*Watcher, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
	if err != nil {
		w.Close()
		return nil, err
	}
	return &Watcher{watcher: w, target: target, debounce: debounce, logger: logger}, nil
}

// Run processes events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Create == fsnotify.Create {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.watcher.Add(event.Name); err != nil {
						w.logger.WithError(err).WithField("path", event.Name).Warn("Failed to watch new directory")
					}
				}
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(w.debounce)
		case <-timer.C:
			if err := w.target.Reload(); err != nil {
				w.logger.WithError(err).Error("Index reload failed")
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Warn("Index watcher error")
		}
	}
}

// Close stops the underlying watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
