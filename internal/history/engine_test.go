// internal/history/engine_test.go
package history

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/hindsight/api/schemas"
)

// fakeProvider is an in-memory Provider. Commits are stored most recent
// first and keyed by hash for the per-commit lookups.
type fakeProvider struct {
	commits    []Commit
	changed    map[string][]string
	diffs      map[string]string
	tracked    []TrackedFile
	recentErr  error
	countErr   error
	failDiffOf map[string]bool

	mu      sync.Mutex
	lookups map[string]int
}

func (f *fakeProvider) Validate(context.Context) error { return nil }

func (f *fakeProvider) Recent(_ context.Context, limit int) ([]Commit, error) {
	if f.recentErr != nil {
		return nil, f.recentErr
	}
	if limit <= 0 {
		return []Commit{}, nil
	}
	if limit > len(f.commits) {
		limit = len(f.commits)
	}
	return append([]Commit(nil), f.commits[:limit]...), nil
}

func (f *fakeProvider) Changes(_ context.Context, hash string) (ChangeSet, error) {
	f.mu.Lock()
	f.lookups[hash]++
	f.mu.Unlock()
	if f.failDiffOf[hash] {
		return ChangeSet{}, errors.New("object not found")
	}
	return ChangeSet{Files: f.changed[hash], Diff: f.diffs[hash]}, nil
}

func (f *fakeProvider) TotalCount(context.Context) (int, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return len(f.commits), nil
}

func (f *fakeProvider) TrackedFiles(context.Context) ([]TrackedFile, error) {
	return f.tracked, nil
}

func newFakeHistory(depth int) *fakeProvider {
	p := &fakeProvider{
		changed:    make(map[string][]string),
		diffs:      make(map[string]string),
		failDiffOf: make(map[string]bool),
		lookups:    make(map[string]int),
	}
	for i := 0; i < depth; i++ {
		hash := fmt.Sprintf("%040x", i+1)
		p.commits = append(p.commits, Commit{
			Hash:      hash,
			Author:    "dev",
			Timestamp: fixedNow.Add(-time.Duration(i) * 24 * time.Hour),
			Message:   fmt.Sprintf("change %d", i),
		})
		p.changed[hash] = []string{"app/models.py"}
		p.diffs[hash] = "diff --git a/app/models.py b/app/models.py\n"
	}
	return p
}

func newTestEngine(t *testing.T, p Provider) *Engine {
	t.Helper()
	return NewEngine(p, zaptest.NewLogger(t), WithClock(func() time.Time { return fixedNow }))
}

// --- Unit Tests (ScoreHistory) ---

func TestScoreHistory_ReturnsMinOfDepthAndLimit(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		depth, limit, want int
	}{
		{depth: 0, limit: 50, want: 0},
		{depth: 3, limit: 50, want: 3},
		{depth: 10, limit: 4, want: 4},
		{depth: 10, limit: 10, want: 10},
		{depth: 5, limit: 0, want: 0},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(fmt.Sprintf("depth=%d limit=%d", tc.depth, tc.limit), func(t *testing.T) {
			t.Parallel()
			engine := newTestEngine(t, newFakeHistory(tc.depth))
			got := engine.ScoreHistory(context.Background(), schemas.FailureRecord{}, tc.limit)
			assert.Len(t, got, tc.want)
		})
	}
}

func TestScoreHistory_ScoresAndShortensIDs(t *testing.T) {
	t.Parallel()
	p := newFakeHistory(3)
	p.changed[p.commits[1].Hash] = []string{"docs/guide.md"}
	p.commits[2].Message = "Fix None handling"

	engine := newTestEngine(t, p)
	failure := schemas.FailureRecord{
		ReferencedFiles: []string{"/srv/app/models.py"},
		Frames:          []schemas.Frame{{FilePath: "/srv/app/models.py", LineNumber: 4}},
	}
	got := engine.ScoreHistory(context.Background(), failure, 10)

	require.Len(t, got, 3)
	assert.Equal(t, p.commits[0].Hash[:8], got[0].ID)
	assert.Equal(t, "dev", got[0].Author)
	assert.InDelta(t, 0.15+0.3, got[0].RelevanceScore, 1e-9)
	assert.Zero(t, got[1].RelevanceScore, "no overlap forces zero")
	assert.InDelta(t, 0.15+0.2+0.1, got[2].RelevanceScore, 1e-9)
	for _, rev := range got {
		assert.GreaterOrEqual(t, rev.RelevanceScore, 0.0)
		assert.LessOrEqual(t, rev.RelevanceScore, 1.0)
	}
}

func TestScoreHistory_HistoryFailureYieldsEmpty(t *testing.T) {
	t.Parallel()
	p := newFakeHistory(3)
	p.recentErr = errors.New("corrupt pack")

	got := newTestEngine(t, p).ScoreHistory(context.Background(), schemas.FailureRecord{}, 10)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestScoreHistory_DiffFailureDegradesSingleRevision(t *testing.T) {
	t.Parallel()
	p := newFakeHistory(3)
	p.failDiffOf[p.commits[1].Hash] = true

	failure := schemas.FailureRecord{ReferencedFiles: []string{"app/models.py"}}
	got := newTestEngine(t, p).ScoreHistory(context.Background(), failure, 10)

	require.Len(t, got, 3)
	assert.Empty(t, got[1].ChangedFiles)
	assert.Empty(t, got[1].DiffText)
	assert.Zero(t, got[1].RelevanceScore)
	assert.NotEmpty(t, got[0].ChangedFiles)
	assert.NotEmpty(t, got[2].DiffText)
}

func TestScoreHistory_ResolvesEachCommitOnce(t *testing.T) {
	t.Parallel()
	p := newFakeHistory(4)

	got := newTestEngine(t, p).ScoreHistory(context.Background(), schemas.FailureRecord{}, 10)

	require.Len(t, got, 4)
	for _, c := range p.commits {
		assert.Equal(t, 1, p.lookups[c.Hash], "commit %s", c.ShortID())
	}
	assert.Equal(t, "diff --git a/app/models.py b/app/models.py\n", got[0].DiffText)
}

// --- Unit Tests (Auxiliary Queries) ---

func TestTotalRevisionCount(t *testing.T) {
	t.Parallel()
	p := newFakeHistory(7)
	assert.Equal(t, 7, newTestEngine(t, p).TotalRevisionCount(context.Background()))

	p.countErr = errors.New("boom")
	assert.Zero(t, newTestEngine(t, p).TotalRevisionCount(context.Background()))
}

func TestFileChanges(t *testing.T) {
	t.Parallel()
	p := newFakeHistory(1)
	hash := p.commits[0].Hash
	p.diffs[hash] = sampleMultiFileDiff

	changes, err := newTestEngine(t, p).FileChanges(context.Background(), hash, "/srv/app/models.py")
	require.NoError(t, err)
	assert.Equal(t, "/srv/app/models.py", changes.Path)
	assert.Equal(t, []string{"    return None"}, changes.Additions)
	assert.Equal(t, []string{"    return user"}, changes.Deletions)

	p.failDiffOf[hash] = true
	_, err = newTestEngine(t, p).FileChanges(context.Background(), hash, "app/models.py")
	assert.ErrorContains(t, err, "failed to read diff")
}

func TestSummarize(t *testing.T) {
	t.Parallel()
	p := newFakeHistory(2)
	p.tracked = []TrackedFile{
		{Path: "app/models.py", Size: 4000},
		{Path: "app/views.py", Size: 2000},
		{Path: "web/static/app.js", Size: 3000},
		{Path: "README.md", Size: 500},
	}
	summary := newTestEngine(t, p).Summarize(context.Background(), "/srv/project")
	assert.Equal(t, "/srv/project", summary.RepoPath)
	assert.Equal(t, 2, summary.TotalCommits)
	assert.Equal(t, "Python", summary.PrimaryLanguage)
}
