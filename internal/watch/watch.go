// Package watch reports changes to a single file.
package watch

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// Watcher observes one file through its parent directory, so editors that
// replace the file on save are still noticed.
type Watcher struct {
	path    string
	dir     string
	watcher *fsnotify.Watcher
	logger  *log.Logger
}

// New starts watching path. Close must be called to release the watcher.
func New(path string, logger *log.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	dir := filepath.Dir(abs)
	if err := fw.Add(dir); err != nil {
		if cerr := fw.Close(); cerr != nil {
			// Best-effort close; the add error is more useful.
			_ = cerr
		}
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	logger.Debug("watching file", "path", abs)
	return &Watcher{path: abs, dir: dir, watcher: fw, logger: logger}, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string {
	return w.path
}

// Next blocks until the file is written or recreated. It returns the
// context error when ctx ends first, and io.EOF once the watcher is closed.
func (w *Watcher) Next(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return io.EOF
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.logger.Debug("file changed", "path", event.Name, "op", event.Op)
			return nil
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return io.EOF
			}
			w.logger.Debug("watch error", "dir", w.dir, "error", err)
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
