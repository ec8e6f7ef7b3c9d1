// Package watch dispatches files dropped into the inboxes once they have
// stopped changing.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/quarry/internal/logger"
)

// DefaultDebounce is how long a file must be quiet before it is dispatched.
const DefaultDebounce = 2 * time.Second

// Dispatch handles one settled file.
type Dispatch func(ctx context.Context, path string)

// Watcher watches directories and hands settled files to their route.
// Dispatches run one at a time.
type Watcher struct {
	debounce time.Duration
	routes   map[string]Dispatch

	mu     sync.Mutex
	timers map[string]*time.Timer

	runMu    sync.Mutex
	inflight sync.WaitGroup
	ready    chan struct{}
}

// New creates a watcher. A non-positive debounce uses DefaultDebounce.
func New(debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		debounce: debounce,
		routes:   make(map[string]Dispatch),
		timers:   make(map[string]*time.Timer),
		ready:    make(chan struct{}),
	}
}

// Route sends files created or written in dir to fn.
func (w *Watcher) Route(dir string, fn Dispatch) {
	w.routes[filepath.Clean(dir)] = fn
}

// Ready is closed once every routed directory is being watched.
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Run watches until ctx is cancelled. Pending files are dropped on
// cancellation; a dispatch already running is waited for.
func (w *Watcher) Run(ctx context.Context) error {
	if len(w.routes) == 0 {
		return fmt.Errorf("watch: no directories routed")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer fsw.Close()

	for dir := range w.routes {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("watch: create %s: %w", dir, err)
		}
		if err := fsw.Add(dir); err != nil {
			return fmt.Errorf("watch: add %s: %w", dir, err)
		}
		logger.Debug("Watching %s", dir)
	}
	close(w.ready)

	for {
		select {
		case <-ctx.Done():
			w.stopTimers()
			w.inflight.Wait()
			return nil

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if fn, ok := w.accept(ev); ok {
				w.schedule(ctx, ev.Name, fn)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watch error: %v", err)
		}
	}
}

// accept returns the route for events that may have produced a complete
// file. Removals, renames away, directories and hidden or lock files are
// ignored.
func (w *Watcher) accept(ev fsnotify.Event) (Dispatch, bool) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return nil, false
	}
	base := filepath.Base(ev.Name)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "~$") {
		return nil, false
	}
	fn, ok := w.routes[filepath.Dir(ev.Name)]
	if !ok {
		return nil, false
	}
	info, err := os.Stat(ev.Name)
	if err != nil || info.IsDir() {
		return nil, false
	}
	return fn, true
}

// schedule (re)starts the quiet period for path.
func (w *Watcher) schedule(ctx context.Context, path string, fn Dispatch) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(w.debounce, func() { w.fire(ctx, path, t, fn) })
	w.timers[path] = t
}

// fire dispatches path once its quiet period ends. A timer that expired
// while schedule was replacing it is no longer the current one and does
// nothing.
func (w *Watcher) fire(ctx context.Context, path string, t *time.Timer, fn Dispatch) {
	w.mu.Lock()
	if w.timers[path] != t {
		w.mu.Unlock()
		return
	}
	delete(w.timers, path)
	w.inflight.Add(1)
	w.mu.Unlock()
	defer w.inflight.Done()

	if ctx.Err() != nil {
		return
	}
	// the file may have been moved or processed in the meantime
	if _, err := os.Stat(path); err != nil {
		return
	}
	w.runMu.Lock()
	defer w.runMu.Unlock()
	logger.Debug("Dispatching %s", path)
	fn(ctx, path)
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
}

// Pending returns the number of files waiting out their quiet period.
func (w *Watcher) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.timers)
}
