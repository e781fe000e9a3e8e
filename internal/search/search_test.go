package search

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/bmatcuk/doublestar/v4"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestGlobDoublestar(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a", "b.go"), "package b\n")
	writeFile(t, filepath.Join(root, "a", "c.txt"), "text\n")
	writeFile(t, filepath.Join(root, "d.go"), "package d\n")

	got, err := Glob(root, "**/*.go")
	if err != nil {
		t.Fatalf("Glob: %v", err)
	}

	want := map[string]bool{
		filepath.Join(root, "a", "b.go"): true,
		filepath.Join(root, "d.go"):      true,
	}
	if len(got) != len(want) {
		t.Fatalf("Glob = %v, want %d matches", got, len(want))
	}
	for _, m := range got {
		if !want[m] {
			t.Errorf("unexpected match %q", m)
		}
	}
}

func TestGlobSingleSegment(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "top.go"), "package top\n")
	writeFile(t, filepath.Join(root, "nested", "deep.go"), "package deep\n")

	got, err := Glob(root, "*.go")
	if err != nil {
		t.Fatalf("Glob: %v", err)
	}
	if len(got) != 1 || got[0] != filepath.Join(root, "top.go") {
		t.Fatalf("Glob(*.go) = %v, want only top.go", got)
	}
}

func TestGlobBadPattern(t *testing.T) {
	t.Parallel()

	if _, err := Glob(t.TempDir(), "["); !errors.Is(err, doublestar.ErrBadPattern) {
		t.Fatalf("Glob(bad pattern) error = %v, want ErrBadPattern", err)
	}
}

func TestGrepFindsMatchesSorted(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b.txt"), "nothing here\nneedle on line two\n")
	writeFile(t, filepath.Join(root, "a.txt"), "needle first\nplain\nneedle again\n")

	got, err := Grep(context.Background(), "needle", root, true)
	if err != nil {
		t.Fatalf("Grep: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Grep returned %d matches, want 3: %+v", len(got), got)
	}

	// Sorted by path, then line.
	if got[0].Path != filepath.Join(root, "a.txt") || got[0].Line != 1 {
		t.Errorf("match[0] = %+v, want a.txt:1", got[0])
	}
	if got[1].Path != filepath.Join(root, "a.txt") || got[1].Line != 3 {
		t.Errorf("match[1] = %+v, want a.txt:3", got[1])
	}
	if got[2].Path != filepath.Join(root, "b.txt") || got[2].Line != 2 {
		t.Errorf("match[2] = %+v, want b.txt:2", got[2])
	}
	if got[0].Content != "needle first" {
		t.Errorf("match content = %q, want original line text", got[0].Content)
	}
}

func TestGrepCaseFolding(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "f.txt"), "Needle\nneedle\nNEEDLE\n")

	insensitive, err := Grep(context.Background(), "needle", root, false)
	if err != nil {
		t.Fatalf("Grep: %v", err)
	}
	if len(insensitive) != 3 {
		t.Fatalf("case-insensitive Grep = %d matches, want 3", len(insensitive))
	}

	sensitive, err := Grep(context.Background(), "needle", root, true)
	if err != nil {
		t.Fatalf("Grep: %v", err)
	}
	if len(sensitive) != 1 {
		t.Fatalf("case-sensitive Grep = %d matches, want 1", len(sensitive))
	}
	if sensitive[0].Line != 2 {
		t.Fatalf("case-sensitive match line = %d, want 2", sensitive[0].Line)
	}
}

func TestGrepNoMatches(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "f.txt"), "nothing\n")

	got, err := Grep(context.Background(), "absent", root, true)
	if err != nil {
		t.Fatalf("Grep: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("Grep = %v, want no matches", got)
	}
}
