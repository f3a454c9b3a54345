// internal/history/scoring_test.go
package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/hindsight/api/schemas"
)

var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

// --- Unit Tests (Path Matching) ---

func TestPathsMatch(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name string
		a, b string
		want bool
	}{
		{"Equal", "app/models.py", "app/models.py", true},
		{"Absolute Trace Path Ends With Repo Path", "/srv/project/app/models.py", "app/models.py", true},
		{"Repo Path Ends With Short Path", "app/models.py", "models.py", true},
		{"Same Base Name Different Dirs", "billing/models.py", "users/models.py", true},
		{"Different Files", "app/models.py", "app/views.py", false},
		{"Windows Separators Share Base", `C:\proj\app\views.py`, "app/views.py", true},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, PathsMatch(tc.a, tc.b))
			assert.Equal(t, tc.want, PathsMatch(tc.b, tc.a), "matching must be symmetric")
		})
	}
}

func TestOverlapCount(t *testing.T) {
	t.Parallel()
	changed := []string{"app/models.py", "app/views.py", "README.md"}
	referenced := []string{"/srv/app/models.py", "views.py", "lib/other.py"}
	assert.Equal(t, 2, OverlapCount(changed, referenced))
	assert.Equal(t, 0, OverlapCount(nil, referenced))
	assert.Equal(t, 0, OverlapCount(changed, nil))
}

// --- Unit Tests (Score Components) ---

func TestRecencyBonus(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		age  time.Duration
		want float64
	}{
		{0, 0.3},
		{23 * time.Hour, 0.3},
		{47 * time.Hour, 0.3},
		{48 * time.Hour, 0.2},
		{7 * 24 * time.Hour, 0.2},
		{8 * 24 * time.Hour, 0.1},
		{30 * 24 * time.Hour, 0.1},
		{31 * 24 * time.Hour, 0},
		{-5 * time.Hour, 0.3},
	}
	for _, tc := range testCases {
		got := RecencyBonus(AgeInDays(fixedNow.Add(-tc.age), fixedNow))
		assert.InDelta(t, tc.want, got, 1e-9, "age %s", tc.age)
	}
}

func TestKeywordBonus(t *testing.T) {
	t.Parallel()
	assert.InDelta(t, 0.1, KeywordBonus("Fix crash in loader"), 1e-9)
	assert.InDelta(t, 0.1, KeywordBonus("HOTFIX: revert bug fix for error patch"), 1e-9, "awarded once")
	assert.InDelta(t, 0.1, KeywordBonus("prefix handling"), 1e-9, "substring match")
	assert.Zero(t, KeywordBonus("Add user profile page"))
}

func TestScore(t *testing.T) {
	t.Parallel()
	referenced := []string{"/srv/app/models.py", "/srv/app/views.py"}
	old := fixedNow.Add(-90 * 24 * time.Hour)

	testCases := []struct {
		name    string
		commit  Commit
		changed []string
		want    float64
	}{
		{
			name:    "No Overlap Is Zero Even When Recent And Keyworded",
			commit:  Commit{Timestamp: fixedNow, Message: "fix bug"},
			changed: []string{"docs/index.md"},
			want:    0,
		},
		{
			name:    "Single Overlap Old Commit",
			commit:  Commit{Timestamp: old, Message: "add field"},
			changed: []string{"app/models.py"},
			want:    0.15,
		},
		{
			name:    "Overlap Capped At Half",
			commit:  Commit{Timestamp: old, Message: "refactor"},
			changed: []string{"app/models.py", "app/views.py", "models.py", "views.py"},
			want:    0.5,
		},
		{
			name:    "All Components",
			commit:  Commit{Timestamp: fixedNow.Add(-3 * 24 * time.Hour), Message: "Fix lookup"},
			changed: []string{"app/models.py"},
			want:    0.15 + 0.2 + 0.1,
		},
		{
			name:    "Maximum Combined Score",
			commit:  Commit{Timestamp: fixedNow, Message: "hotfix"},
			changed: []string{"app/models.py", "app/views.py", "models.py", "views.py"},
			want:    0.9,
		},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := Score(tc.commit, tc.changed, referenced, fixedNow)
			assert.InDelta(t, tc.want, got, 1e-9)
			assert.LessOrEqual(t, got, 1.0)
		})
	}
}

// --- Unit Tests (Location Re-ranking) ---

func TestApplyLocationBonus(t *testing.T) {
	t.Parallel()
	revisions := []schemas.RevisionInfo{
		{ID: "aaaaaaaa", ChangedFiles: []string{"app/views.py"}, RelevanceScore: 0.5},
		{ID: "bbbbbbbb", ChangedFiles: []string{"app/models.py", "models.py"}, RelevanceScore: 0.4},
		{ID: "cccccccc", ChangedFiles: []string{"app/models.py"}, RelevanceScore: 0.95},
		{ID: "dddddddd", ChangedFiles: []string{"docs/a.md"}, RelevanceScore: 0},
	}
	loc := schemas.Location{FilePath: "/srv/app/models.py", LineNumber: 3}

	got := ApplyLocationBonus(revisions, loc)

	require.Len(t, got, 4)
	assert.Equal(t, "cccccccc", got[0].ID)
	assert.InDelta(t, 1.25, got[0].RelevanceScore, 1e-9, "bonus is not clamped")
	assert.Equal(t, "bbbbbbbb", got[1].ID)
	assert.InDelta(t, 0.7, got[1].RelevanceScore, 1e-9, "bonus applies once per revision")
	assert.Equal(t, "aaaaaaaa", got[2].ID)
	assert.Equal(t, "dddddddd", got[3].ID)

	// The input is left untouched.
	assert.InDelta(t, 0.5, revisions[0].RelevanceScore, 1e-9)
	assert.InDelta(t, 0.95, revisions[2].RelevanceScore, 1e-9)
	assert.Equal(t, "aaaaaaaa", revisions[0].ID)
}

func TestApplyLocationBonus_StableForTies(t *testing.T) {
	t.Parallel()
	revisions := []schemas.RevisionInfo{
		{ID: "first", RelevanceScore: 0.3},
		{ID: "second", RelevanceScore: 0.3},
		{ID: "third", RelevanceScore: 0.3},
	}
	got := ApplyLocationBonus(revisions, schemas.Location{FilePath: "x.py"})
	assert.Equal(t, []string{"first", "second", "third"}, ids(got))
}

func TestApplyLocationBonus_Empty(t *testing.T) {
	t.Parallel()
	got := ApplyLocationBonus(nil, schemas.Location{FilePath: "x.py"})
	assert.Empty(t, got)
}

func TestReferencedFiles_UnionsFrames(t *testing.T) {
	t.Parallel()
	failure := schemas.FailureRecord{
		ReferencedFiles: []string{"a.py", "b.py"},
		Frames:          []schemas.Frame{{FilePath: "b.py"}, {FilePath: "c.py"}},
	}
	assert.Equal(t, []string{"a.py", "b.py", "c.py"}, referencedFiles(failure))
}

func ids(revs []schemas.RevisionInfo) []string {
	out := make([]string, len(revs))
	for i, r := range revs {
		out[i] = r.ID
	}
	return out
}
