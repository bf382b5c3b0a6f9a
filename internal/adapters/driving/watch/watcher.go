// Package watch keeps the index in step with a data directory by
// ingesting files as they appear and removing them when they go away.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/givemeone1astkiss/ribo/internal/core/domain"
	"github.com/givemeone1astkiss/ribo/internal/logger"
)

// DefaultDebounce is the quiet period before pending changes are applied.
const DefaultDebounce = time.Second

// Ingester is the part of the ingestion service the watcher drives.
type Ingester interface {
	IngestFile(ctx context.Context, path string) (*domain.Document, bool, error)
	Remove(ctx context.Context, sourcePath string) error
}

// action is what a batch flush does with a path.
type action int

const (
	actionNone action = iota
	actionIngest
	actionRemove
)

// Watcher watches a directory tree with fsnotify.
type Watcher struct {
	dir      string
	ingester Ingester
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]action
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// New creates a watcher for dir.
func New(dir string, ingester Ingester, opts ...Option) *Watcher {
	w := &Watcher{
		dir:      dir,
		ingester: ingester,
		debounce: DefaultDebounce,
		pending:  make(map[string]action),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches until ctx is cancelled. Subdirectories are added as they
// are created; hidden entries are ignored.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fsw.Close()

	if err := w.addTree(fsw, w.dir); err != nil {
		return err
	}
	logger.Info("Watching %s for changes", w.dir)

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) && isDir(event.Name) && !hidden(event.Name) {
				if err := w.addTree(fsw, event.Name); err != nil {
					logger.Warn("Failed to watch %s: %v", event.Name, err)
				}
				// Files may land before the new directory is watched.
				if w.recordTree(event.Name) {
					timer.Reset(w.debounce)
				}
				continue
			}
			if w.record(event) {
				timer.Reset(w.debounce)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watcher error: %v", err)

		case <-timer.C:
			w.flush(ctx)
		}
	}
}

// record notes the action an event implies. It reports whether anything
// is now pending.
func (w *Watcher) record(event fsnotify.Event) bool {
	act := classify(event)
	if act == actionNone {
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[event.Name] = act
	return true
}

// classify maps an fsnotify event onto an action. Chmod, directories,
// hidden files and unsupported formats are ignored.
func classify(event fsnotify.Event) action {
	if hidden(event.Name) {
		return actionNone
	}
	if _, ok := domain.FormatFromPath(event.Name); !ok {
		return actionNone
	}

	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return actionRemove
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		if isDir(event.Name) {
			return actionNone
		}
		return actionIngest
	default:
		return actionNone
	}
}

// flush applies every pending action in one batch.
func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	batch := w.pending
	w.pending = make(map[string]action)
	w.mu.Unlock()

	for path, act := range batch {
		// A file written and then deleted inside one quiet period is gone.
		if act == actionIngest && !exists(path) {
			act = actionRemove
		}

		switch act {
		case actionIngest:
			_, added, err := w.ingester.IngestFile(ctx, path)
			switch {
			case err != nil:
				logger.Warn("Failed to ingest %s: %v", path, err)
			case added:
				logger.Info("Ingested %s", path)
			default:
				logger.Debug("Unchanged %s", path)
			}
		case actionRemove:
			if err := w.ingester.Remove(ctx, path); err != nil && !errors.Is(err, domain.ErrNotFound) {
				logger.Warn("Failed to remove %s: %v", path, err)
			}
		}
	}
}

// recordTree queues every supported file under root for ingestion.
func (w *Watcher) recordTree(root string) bool {
	queued := false
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if w.record(fsnotify.Event{Name: path, Op: fsnotify.Create}) {
			queued = true
		}
		return nil
	})
	return queued
}

func (w *Watcher) addTree(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && hidden(path) {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

func hidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
