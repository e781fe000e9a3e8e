// Package hybrid fuses the temporal (co-change history) and static (import)
// relevance signals into a single ranked list of context candidates.
package hybrid

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"repocontext/internal/models"
)

const (
	// staticWeight is awarded when a translated import fragment appears in
	// the candidate path.
	staticWeight = 0.7
	// temporalWeight scales the normalized co-change rank.
	temporalWeight = 0.5
	// synergyBonus is added when both signals agree on a candidate.
	synergyBonus = 0.2
	// overfetchFactor widens the miner request so the fusion step has enough
	// breadth before threshold filtering.
	overfetchFactor = 3
)

// Signal names, in evaluation order.
const (
	ReasonImported   = "imported"
	ReasonGitHistory = "git-history"
)

// RelatedFinder supplies the temporal signal.
type RelatedFinder interface {
	RelatedFiles(ctx context.Context, targetFile, rootDir string, limit int) []string
}

// ImportLister supplies the static signal.
type ImportLister interface {
	List(ctx context.Context, filePath string) ([]string, error)
}

// Scorer combines both signals with a configurable threshold.
type Scorer struct {
	miner   RelatedFinder
	imports ImportLister
}

// NewScorer creates a hybrid scorer over the given signal providers.
func NewScorer(miner RelatedFinder, imports ImportLister) *Scorer {
	return &Scorer{miner: miner, imports: imports}
}

// Context returns the files most relevant to targetFile, score descending, at
// most limit entries, all scoring at least threshold. The candidate universe
// is the miner's output: files that are statically imported but never
// co-changed are not independently discovered.
func (s *Scorer) Context(ctx context.Context, targetFile, rootDir string, limit int, threshold float64) []models.ScoredCandidate {
	related := s.miner.RelatedFiles(ctx, targetFile, rootDir, limit*overfetchFactor)

	// Rank weight: earlier entries score higher; absence implies zero.
	rank := make(map[string]int, len(related))
	for i, f := range related {
		rank[f] = len(related) - i
	}

	fragments := s.importFragments(ctx, targetFile, rootDir)

	scored := make([]models.ScoredCandidate, 0, len(related))
	// Iterating the miner slice rather than a map keeps equal scores in
	// miner-rank order, making tie-breaks deterministic.
	for _, candidate := range related {
		isStatic := false
		for _, frag := range fragments {
			if frag != "" && strings.Contains(candidate, frag) {
				isStatic = true
				break
			}
		}

		var score float64
		var reasons []string
		if isStatic {
			score += staticWeight
			reasons = append(reasons, ReasonImported)
		}
		if w := rank[candidate]; w > 0 {
			score += temporalWeight * float64(w) / float64(len(related))
			reasons = append(reasons, ReasonGitHistory)
		}
		if isStatic && rank[candidate] > 0 {
			score += synergyBonus
		}

		if score >= threshold {
			scored = append(scored, models.ScoredCandidate{
				Path:    candidate,
				Score:   score,
				Reasons: reasons,
			})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if limit >= 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}

// importFragments extracts the target's import specifiers and translates each
// dotted name into a slash-joined path fragment. This is a textual heuristic,
// not a resolver: it consults no package manifests or search paths, and it
// can both over-match and under-match. Any extraction failure degrades to "no
// static signal".
func (s *Scorer) importFragments(ctx context.Context, targetFile, rootDir string) []string {
	fullPath := filepath.Join(rootDir, targetFile)
	if _, err := os.Stat(fullPath); err != nil {
		return nil
	}

	specs, err := s.imports.List(ctx, fullPath)
	if err != nil {
		return nil
	}

	fragments := make([]string, 0, len(specs))
	for _, spec := range specs {
		fragments = append(fragments, strings.Join(strings.Split(spec, "."), "/"))
	}
	return fragments
}
