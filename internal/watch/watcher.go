// Package watch turns file system notifications into host file events
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/ludo-technologies/jsinspect/domain"
)

// DefaultDebounce is how long events of one file are collected before the
// last one is delivered
const DefaultDebounce = 100 * time.Millisecond

// Handler receives file events. Calls come from a single goroutine.
type Handler func(domain.FileEvent)

// Options configures a Watcher
type Options struct {
	// Debounce coalesces bursts of events per file. Zero delivers every event.
	Debounce time.Duration

	// Include reports whether a file is of interest
	Include func(path string) bool

	// SkipDir reports whether a directory is left unwatched
	SkipDir func(path string) bool
}

// Watcher watches directory trees and reports changes of matching files
type Watcher struct {
	watcher *fsnotify.Watcher
	opts    Options
	logger  *logrus.Logger

	mu      sync.Mutex
	pending map[string]domain.FileEvent
	order   []string
}

// New creates a watcher. Call Add to watch trees and Run to deliver events.
func New(opts Options, logger *logrus.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if opts.Include == nil {
		opts.Include = func(string) bool { return true }
	}
	if opts.SkipDir == nil {
		opts.SkipDir = func(path string) bool { return filepath.Base(path) == ".git" }
	}
	return &Watcher{
		watcher: w,
		opts:    opts,
		logger:  logger,
		pending: make(map[string]domain.FileEvent),
	}, nil
}

// Add watches root and every directory below it
func (w *Watcher) Add(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.opts.SkipDir(path) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

// Close stops watching
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// Translate maps a notification to a file event. ok is false for
// notifications that do not concern file content.
func Translate(event fsnotify.Event) (domain.FileEvent, bool) {
	switch {
	case event.Has(fsnotify.Remove):
		return domain.FileEvent{Path: event.Name, Kind: domain.FileDeleted}, true
	case event.Has(fsnotify.Rename):
		return domain.FileEvent{Path: event.Name, Kind: domain.FileMoved}, true
	case event.Has(fsnotify.Write), event.Has(fsnotify.Create):
		return domain.FileEvent{Path: event.Name, Kind: domain.FileChanged}, true
	default:
		return domain.FileEvent{}, false
	}
}

// Run delivers events to handler until ctx is done or the watcher is closed
func (w *Watcher) Run(ctx context.Context, handler Handler) error {
	var timer *time.Timer
	var timerC <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			w.flush(handler)
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				w.flush(handler)
				return nil
			}
			if event.Has(fsnotify.Create) && w.addCreatedDir(event.Name) {
				continue
			}
			fe, ok := Translate(event)
			if !ok || !w.opts.Include(fe.Path) {
				continue
			}
			if w.opts.Debounce <= 0 {
				handler(fe)
				continue
			}
			w.queue(fe)
			if timer == nil {
				timer = time.NewTimer(w.opts.Debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.opts.Debounce)
			}

		case <-timerC:
			timer, timerC = nil, nil
			w.flush(handler)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				w.flush(handler)
				return nil
			}
			w.logger.WithError(err).Warn("file watcher error")
		}
	}
}

// addCreatedDir starts watching a newly created directory
func (w *Watcher) addCreatedDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return false
	}
	if !w.opts.SkipDir(path) {
		if err := w.Add(path); err != nil {
			w.logger.WithError(err).WithField("dir", path).Warn("cannot watch new directory")
		}
	}
	return true
}

// queue records an event, replacing an earlier one for the same file
func (w *Watcher) queue(event domain.FileEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.pending[event.Path]; !ok {
		w.order = append(w.order, event.Path)
	}
	w.pending[event.Path] = event
}

func (w *Watcher) flush(handler Handler) {
	w.mu.Lock()
	events := make([]domain.FileEvent, 0, len(w.order))
	for _, path := range w.order {
		events = append(events, w.pending[path])
	}
	w.pending = make(map[string]domain.FileEvent)
	w.order = nil
	w.mu.Unlock()

	for _, e := range events {
		handler(e)
	}
}
