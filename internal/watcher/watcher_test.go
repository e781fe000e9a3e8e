package watcher

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func newTestWatcher(t *testing.T, out io.Writer, debounce time.Duration) *Watcher {
	t.Helper()
	w, err := New(out, debounce)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { w.Close() })
	return w
}

func TestShouldEmitDebounce(t *testing.T) {
	t.Parallel()

	w := newTestWatcher(t, io.Discard, 100*time.Millisecond)

	base := time.Now()
	if !w.shouldEmit("/p/a.go", base) {
		t.Fatalf("first event should emit")
	}
	if w.shouldEmit("/p/a.go", base.Add(50*time.Millisecond)) {
		t.Fatalf("event inside the window should be suppressed")
	}
	if !w.shouldEmit("/p/a.go", base.Add(200*time.Millisecond)) {
		t.Fatalf("event after the window should emit")
	}
}

func TestShouldEmitIndependentPaths(t *testing.T) {
	t.Parallel()

	w := newTestWatcher(t, io.Discard, 100*time.Millisecond)

	base := time.Now()
	if !w.shouldEmit("/p/a.go", base) {
		t.Fatalf("first path should emit")
	}
	if !w.shouldEmit("/p/b.go", base) {
		t.Fatalf("debounce on one path must not suppress another")
	}
}

func TestSweepEvictsStaleEntries(t *testing.T) {
	t.Parallel()

	w := newTestWatcher(t, io.Discard, 100*time.Millisecond)

	base := time.Now()
	w.shouldEmit("/p/old.go", base.Add(-time.Hour))
	w.shouldEmit("/p/fresh.go", base)

	w.sweep(base)

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.lastEmit["/p/old.go"]; ok {
		t.Fatalf("stale entry survived sweep")
	}
	if _, ok := w.lastEmit["/p/fresh.go"]; !ok {
		t.Fatalf("fresh entry evicted by sweep")
	}
}

func TestHandleEmitsJSONRecord(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := newTestWatcher(t, &buf, 100*time.Millisecond)

	dir := t.TempDir()
	path := filepath.Join(dir, "a.go")
	if err := os.WriteFile(path, []byte("package a\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	w.handle(fsnotify.Event{Name: path, Op: fsnotify.Write})

	var ev Event
	if err := json.Unmarshal(buf.Bytes(), &ev); err != nil {
		t.Fatalf("emitted record is not valid JSON: %v (%q)", err, buf.String())
	}
	if ev.Type != "modify" {
		t.Errorf("event type = %q, want modify", ev.Type)
	}
	if ev.Path != path {
		t.Errorf("event path = %q, want %q", ev.Path, path)
	}
	if ev.Timestamp == 0 {
		t.Errorf("event timestamp not set")
	}
}

func TestHandleIgnoresUnobservedOps(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := newTestWatcher(t, &buf, 100*time.Millisecond)

	w.handle(fsnotify.Event{Name: "/p/a.go", Op: fsnotify.Chmod})
	w.handle(fsnotify.Event{Name: "/p/a.go", Op: fsnotify.Rename})

	if buf.Len() != 0 {
		t.Fatalf("chmod/rename produced output: %q", buf.String())
	}
}

func TestEventKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		op   fsnotify.Op
		want string
	}{
		{fsnotify.Create, "create"},
		{fsnotify.Write, "modify"},
		{fsnotify.Remove, "remove"},
		{fsnotify.Chmod, ""},
		{fsnotify.Rename, ""},
	}
	for _, tt := range tests {
		if got := eventKind(tt.op); got != tt.want {
			t.Errorf("eventKind(%v) = %q, want %q", tt.op, got, tt.want)
		}
	}
}

func TestDefaultDebounceFallback(t *testing.T) {
	t.Parallel()

	w := newTestWatcher(t, io.Discard, 0)
	if w.debounce != DefaultDebounce {
		t.Fatalf("debounce = %v, want %v", w.debounce, DefaultDebounce)
	}
}
