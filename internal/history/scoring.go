// internal/history/scoring.go
package history

import (
	"math"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/xkilldash9x/hindsight/api/schemas"
)

// Scoring weights.
const (
	overlapWeight     = 0.15
	overlapCap        = 0.5
	keywordBonus      = 0.1
	locationBonus     = 0.3
	maxRelevanceScore = 1.0
)

// recencyTiers award a bonus by commit age in whole days; the first tier the
// age fits under applies.
var recencyTiers = []struct {
	maxDays int
	bonus   float64
}{
	{maxDays: 1, bonus: 0.3},
	{maxDays: 7, bonus: 0.2},
	{maxDays: 30, bonus: 0.1},
}

// fixKeywords mark commit messages that talk about repairing something.
var fixKeywords = []string{"fix", "bug", "error", "patch", "hotfix", "revert"}

// PathsMatch reports whether two paths plausibly name the same file: equal,
// one a string suffix of the other, or sharing a base name.
func PathsMatch(a, b string) bool {
	return a == b ||
		strings.HasSuffix(a, b) ||
		strings.HasSuffix(b, a) ||
		path.Base(toSlash(a)) == path.Base(toSlash(b))
}

// OverlapCount counts the (changed, referenced) pairs that match.
func OverlapCount(changed, referenced []string) int {
	count := 0
	for _, cf := range changed {
		for _, rf := range referenced {
			if PathsMatch(cf, rf) {
				count++
			}
		}
	}
	return count
}

// AgeInDays returns the floored number of days between ts and now. Commits
// dated in the future yield a negative age.
func AgeInDays(ts, now time.Time) int {
	return int(math.Floor(now.Sub(ts).Hours() / 24))
}

// RecencyBonus returns the bonus for a commit of the given age.
func RecencyBonus(ageDays int) float64 {
	for _, tier := range recencyTiers {
		if ageDays <= tier.maxDays {
			return tier.bonus
		}
	}
	return 0
}

// KeywordBonus returns the bonus for a message mentioning a fix keyword. It
// is awarded once regardless of how many keywords appear.
func KeywordBonus(message string) float64 {
	lower := strings.ToLower(message)
	for _, kw := range fixKeywords {
		if strings.Contains(lower, kw) {
			return keywordBonus
		}
	}
	return 0
}

// Score computes the clamped relevance of one commit. Commits that touch
// none of the referenced files score exactly zero.
func Score(commit Commit, changed, referenced []string, now time.Time) float64 {
	overlap := OverlapCount(changed, referenced)
	if overlap == 0 {
		return 0
	}

	score := math.Min(overlapCap, float64(overlap)*overlapWeight)
	score += RecencyBonus(AgeInDays(commit.Timestamp, now))
	score += KeywordBonus(commit.Message)
	return math.Min(maxRelevanceScore, score)
}

// ApplyLocationBonus returns a re-ranked copy of revisions. Each revision
// that changed the file at loc gains a flat bonus, which is not clamped, and
// the copy is stably sorted by descending score. The input is not modified.
func ApplyLocationBonus(revisions []schemas.RevisionInfo, loc schemas.Location) []schemas.RevisionInfo {
	rescored := make([]schemas.RevisionInfo, len(revisions))
	for i, rev := range revisions {
		rev.ChangedFiles = append([]string(nil), rev.ChangedFiles...)
		for _, cf := range rev.ChangedFiles {
			if PathsMatch(cf, loc.FilePath) {
				rev.RelevanceScore += locationBonus
				break
			}
		}
		rescored[i] = rev
	}

	sort.SliceStable(rescored, func(i, j int) bool {
		return rescored[i].RelevanceScore > rescored[j].RelevanceScore
	})
	return rescored
}

// referencedFiles is the union of a failure's referenced files and frame
// paths, in first-seen order.
func referencedFiles(failure schemas.FailureRecord) []string {
	seen := make(map[string]struct{}, len(failure.ReferencedFiles)+len(failure.Frames))
	files := make([]string, 0, len(failure.ReferencedFiles)+len(failure.Frames))
	add := func(p string) {
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		files = append(files, p)
	}
	for _, f := range failure.ReferencedFiles {
		add(f)
	}
	for _, fr := range failure.Frames {
		add(fr.FilePath)
	}
	return files
}

func toSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}
