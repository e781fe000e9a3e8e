// Package gitmine infers file relatedness from version-control history: two
// files that repeatedly appear in the same commit are likely to matter to
// each other. The signal is best-effort enrichment — any retrieval failure
// degrades to an empty result, never an error.
package gitmine

import (
	"context"
	"os/exec"
	"sort"
	"strings"
)

// commitSeparator is injected into the log format so commit groups can be
// split without relying on blank-line heuristics, which are ambiguous when a
// commit touches zero files.
const commitSeparator = "COMMIT_START"

const (
	// probeWindow is only used to decide whether the repository has usable
	// history at all.
	probeWindow = "1.year"
	// scoreWindow bounds the history that actually feeds co-occurrence
	// counts.
	scoreWindow = "6.months"
)

// Miner computes co-occurrence rankings over a repository's recent history.
type Miner struct{}

// New creates a new co-occurrence miner.
func New() *Miner {
	return &Miner{}
}

// RelatedFiles returns the files that most often changed together with
// targetFile, most related first, at most limit entries. The target itself is
// never included. Repositories without history, non-repositories and missing
// git binaries all yield an empty result.
func (m *Miner) RelatedFiles(ctx context.Context, targetFile, rootDir string, limit int) []string {
	// Probe first: a failure here means no usable history, not a parse
	// problem.
	if _, err := runGit(ctx, rootDir, "log", "--name-only", "--pretty=format:", "--since="+probeWindow); err != nil {
		return nil
	}

	raw, err := runGit(ctx, rootDir, "log", "--name-only", "--pretty=format:"+commitSeparator, "--since="+scoreWindow)
	if err != nil {
		return nil
	}

	return rankCoChanges(splitCommitGroups(raw), targetFile, limit)
}

// splitCommitGroups partitions raw log output into per-commit file lists.
func splitCommitGroups(raw string) [][]string {
	blocks := strings.Split(raw, commitSeparator)
	groups := make([][]string, 0, len(blocks))
	for _, block := range blocks {
		var files []string
		for _, line := range strings.Split(block, "\n") {
			if trimmed := strings.TrimSpace(line); trimmed != "" {
				files = append(files, trimmed)
			}
		}
		if len(files) > 0 {
			groups = append(groups, files)
		}
	}
	return groups
}

// rankCoChanges counts, for every file, how many groups contain both it and
// the target, then ranks by count descending. Target membership tolerates
// root-relative vs path-relative differences via suffix matching. Ties keep
// first-seen order so the ranking is stable.
func rankCoChanges(groups [][]string, targetFile string, limit int) []string {
	counts := make(map[string]int)
	var order []string

	for _, files := range groups {
		containsTarget := false
		for _, f := range files {
			if matchesTarget(f, targetFile) {
				containsTarget = true
				break
			}
		}
		if !containsTarget {
			continue
		}

		for _, f := range files {
			if matchesTarget(f, targetFile) {
				continue
			}
			if _, seen := counts[f]; !seen {
				order = append(order, f)
			}
			counts[f]++
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})

	if limit >= 0 && len(order) > limit {
		order = order[:limit]
	}
	return order
}

func matchesTarget(file, target string) bool {
	return file == target || strings.HasSuffix(file, target)
}

// runGit executes git in dir and returns stdout. A non-zero exit or a missing
// binary surfaces as an error for the caller to swallow.
func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return string(out), nil
}
