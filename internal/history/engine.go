// internal/history/engine.go
package history

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/hindsight/api/schemas"
)

// Engine scores revisions from a history provider by their likelihood of
// having caused a failure.
type Engine struct {
	provider Provider
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the clock used for recency scoring.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an engine reading from provider.
func NewEngine(provider Provider, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		provider: provider,
		logger:   logger.Named("history"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Validate reports whether the underlying history can be read.
func (e *Engine) Validate(ctx context.Context) error {
	return e.provider.Validate(ctx)
}

// ScoreHistory returns the limit most recent revisions, each scored against
// the failure. When history cannot be read the result is empty. A revision
// whose changes cannot be read is kept with whatever part was recovered.
// Each commit is resolved and diffed once.
func (e *Engine) ScoreHistory(ctx context.Context, failure schemas.FailureRecord, limit int) []schemas.RevisionInfo {
	commits, err := e.provider.Recent(ctx, limit)
	if err != nil {
		e.logger.Error("Failed to read commit history.", zap.Error(err))
		return []schemas.RevisionInfo{}
	}
	if len(commits) > limit {
		commits = commits[:limit]
	}

	referenced := referencedFiles(failure)
	now := e.now()

	revisions := make([]schemas.RevisionInfo, 0, len(commits))
	for _, c := range commits {
		set, err := e.provider.Changes(ctx, c.Hash)
		if err != nil {
			e.logger.Debug("Could not read commit changes.", zap.String("commit", c.ShortID()), zap.Error(err))
		}
		changed := set.Files
		if changed == nil {
			changed = []string{}
		}

		revisions = append(revisions, schemas.RevisionInfo{
			ID:             c.ShortID(),
			Author:         c.Author,
			Timestamp:      c.Timestamp,
			Message:        c.Message,
			ChangedFiles:   changed,
			DiffText:       set.Diff,
			RelevanceScore: Score(c, changed, referenced, now),
		})
	}

	e.logger.Debug("Scored commit history.",
		zap.Int("requested", limit),
		zap.Int("scanned", len(revisions)),
		zap.Int("referenced_files", len(referenced)),
	)
	return revisions
}

// Prioritize re-ranks revisions toward the failure location. See
// ApplyLocationBonus.
func (e *Engine) Prioritize(revisions []schemas.RevisionInfo, loc schemas.Location) []schemas.RevisionInfo {
	return ApplyLocationBonus(revisions, loc)
}

// TotalRevisionCount returns the full history depth, or 0 if it cannot be
// determined.
func (e *Engine) TotalRevisionCount(ctx context.Context) int {
	n, err := e.provider.TotalCount(ctx)
	if err != nil {
		e.logger.Debug("Could not count commits.", zap.Error(err))
		return 0
	}
	return n
}

// FileChanges returns the diff of a single file within a revision.
func (e *Engine) FileChanges(ctx context.Context, hash, filePath string) (schemas.FileChanges, error) {
	set, err := e.provider.Changes(ctx, hash)
	if err != nil {
		return schemas.FileChanges{Path: filePath}, fmt.Errorf("failed to read diff for %s: %w", shortHash(hash), err)
	}
	return ExtractFileChanges(set.Diff, filePath)
}

// Summarize describes the repository for reporting. Every lookup degrades
// independently.
func (e *Engine) Summarize(ctx context.Context, repoPath string) schemas.RepositoryContext {
	summary := schemas.RepositoryContext{
		RepoPath:        repoPath,
		TotalCommits:    e.TotalRevisionCount(ctx),
		PrimaryLanguage: DefaultLanguage,
	}

	files, err := e.provider.TrackedFiles(ctx)
	if err != nil {
		e.logger.Debug("Could not list tracked files.", zap.Error(err))
		return summary
	}
	summary.PrimaryLanguage = PrimaryLanguage(files)
	return summary
}
