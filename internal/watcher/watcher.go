// Package watcher emits debounced filesystem change events as JSON records,
// one per line. Only creation, modification and removal are observable;
// delivery is best-effort and watch errors are logged, never fatal.
package watcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the minimum time between two emitted events for the
// same path.
const DefaultDebounce = 500 * time.Millisecond

// sweepInterval controls how often stale debounce entries are evicted so the
// per-path table stays bounded on long-running processes.
const sweepInterval = time.Minute

// Event is the JSON record emitted per debounced change.
type Event struct {
	Type      string `json:"type"` // "create", "modify" or "remove"
	Path      string `json:"path"`
	Timestamp int64  `json:"timestamp"` // unix seconds
}

// Watcher watches a directory tree recursively.
type Watcher struct {
	fs       *fsnotify.Watcher
	out      io.Writer
	debounce time.Duration

	mu       sync.Mutex
	lastEmit map[string]time.Time
}

// New creates a watcher writing events to out. A non-positive debounce falls
// back to DefaultDebounce.
func New(out io.Writer, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fs watcher: %w", err)
	}

	return &Watcher{
		fs:       fsw,
		out:      out,
		debounce: debounce,
		lastEmit: make(map[string]time.Time),
	}, nil
}

// Close releases the underlying fsnotify watcher. Safe to call even when Run
// was never started.
func (w *Watcher) Close() error {
	return w.fs.Close()
}

// Watch registers root and all of its subdirectories. Directories created
// later are picked up by the event loop.
func (w *Watcher) Watch(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if addErr := w.fs.Add(path); addErr != nil {
				fmt.Fprintf(os.Stderr, "watch error: %v\n", addErr)
			}
		}
		return nil
	})
}

// Run processes events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fs.Close()

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handle(event)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "watch error: %v\n", err)

		case now := <-ticker.C:
			w.sweep(now)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	kind := eventKind(event.Op)
	if kind == "" {
		return
	}

	// New directories must be registered or their contents go unobserved.
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.fs.Add(event.Name); err != nil {
				fmt.Fprintf(os.Stderr, "watch error: %v\n", err)
			}
		}
	}

	if !w.shouldEmit(event.Name, time.Now()) {
		return
	}

	record := Event{
		Type:      kind,
		Path:      event.Name,
		Timestamp: time.Now().Unix(),
	}
	data, err := json.Marshal(record)
	if err != nil {
		return
	}
	fmt.Fprintln(w.out, string(data))
}

// shouldEmit enforces the per-path debounce window: at most one event per
// path per window.
func (w *Watcher) shouldEmit(path string, now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if last, ok := w.lastEmit[path]; ok && now.Sub(last) <= w.debounce {
		return false
	}
	w.lastEmit[path] = now
	return true
}

// sweep evicts entries old enough that they can no longer suppress anything.
func (w *Watcher) sweep(now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for path, last := range w.lastEmit {
		if now.Sub(last) > w.debounce {
			delete(w.lastEmit, path)
		}
	}
}

func eventKind(op fsnotify.Op) string {
	switch {
	case op.Has(fsnotify.Create):
		return "create"
	case op.Has(fsnotify.Write):
		return "modify"
	case op.Has(fsnotify.Remove):
		return "remove"
	default:
		return ""
	}
}
