// Package search implements the bulk collaborators: glob matching over a
// directory tree and substring grep across file contents. Unreadable entries
// are skipped silently; a malformed glob pattern is the one input error that
// propagates.
package search

import (
	"bufio"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"repocontext/internal/models"
)

// grepWorkers bounds the number of files scanned concurrently.
const grepWorkers = 4

// Glob walks root and returns every file whose root-relative path matches
// pattern. Patterns support doublestar syntax including "**". An invalid
// pattern is reported as an error; unreadable entries are skipped.
func Glob(root, pattern string) ([]string, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, doublestar.ErrBadPattern
	}

	var results []string
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		if ok, _ := doublestar.Match(pattern, filepath.ToSlash(rel)); ok {
			results = append(results, path)
		}
		return nil
	})

	return results, nil
}

// Grep scans every file under root for lines containing pattern and returns
// the matches ordered by path and line. Matching is plain substring
// containment; caseSensitive=false folds both sides to lower case.
func Grep(ctx context.Context, pattern, root string, caseSensitive bool) ([]models.SearchMatch, error) {
	needle := pattern
	if !caseSensitive {
		needle = strings.ToLower(pattern)
	}

	var files []string
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})

	var (
		mu      sync.Mutex
		matches []models.SearchMatch
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(grepWorkers)
	for _, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			found := grepFile(path, needle, caseSensitive)
			if len(found) > 0 {
				mu.Lock()
				matches = append(matches, found...)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Path != matches[j].Path {
			return matches[i].Path < matches[j].Path
		}
		return matches[i].Line < matches[j].Line
	})
	return matches, nil
}

// grepFile scans a single file. Read failures yield no matches.
func grepFile(path, needle string, caseSensitive bool) []models.SearchMatch {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var matches []models.SearchMatch
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		content := scanner.Text()
		haystack := content
		if !caseSensitive {
			haystack = strings.ToLower(content)
		}
		if strings.Contains(haystack, needle) {
			matches = append(matches, models.SearchMatch{
				Path:    path,
				Line:    line,
				Content: content,
			})
		}
	}
	return matches
}
