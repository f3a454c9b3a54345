// File: internal/attribution/analyzer.go
// Description: Runs a failure through parsing, history scoring, intent
// extraction and explanation, and assembles the analysis result.

package attribution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/hindsight/api/schemas"
	"github.com/xkilldash9x/hindsight/internal/config"
	"github.com/xkilldash9x/hindsight/internal/coroner"
	"github.com/xkilldash9x/hindsight/internal/history"
)

// LimitationNotRepository is the only limitation of a run against a path
// that is not a readable git repository.
const LimitationNotRepository = "Not a valid git repository. Git analysis skipped."

// History is the view of a repository's revision history the analyzer needs.
type History interface {
	Validate(ctx context.Context) error
	ScoreHistory(ctx context.Context, failure schemas.FailureRecord, limit int) []schemas.RevisionInfo
	Prioritize(revisions []schemas.RevisionInfo, loc schemas.Location) []schemas.RevisionInfo
	Summarize(ctx context.Context, repoPath string) schemas.RepositoryContext
}

// HistoryOpener opens the history of the repository at repoPath.
type HistoryOpener func(ctx context.Context, repoPath string) (History, error)

// IntentSource extracts the intent signals of a single source file.
type IntentSource interface {
	Extract(ctx context.Context, filePath string) schemas.IntentBundle
}

// GitOpener opens repositories with go-git and scores them with a history
// engine.
func GitOpener(logger *zap.Logger, opts ...history.Option) HistoryOpener {
	return func(_ context.Context, repoPath string) (History, error) {
		provider, err := history.OpenGit(repoPath, logger)
		if err != nil {
			return nil, err
		}
		return history.NewEngine(provider, logger, opts...), nil
	}
}

// Analyzer orchestrates a complete attribution run.
type Analyzer struct {
	logger     *zap.Logger
	parser     *coroner.Parser
	openRepo   HistoryOpener
	intents    IntentSource
	explainer  schemas.ExplanationGenerator
	cache      schemas.ResultCache
	maxCommits int
	workers    int
	excluded   []string
	now        func() time.Time
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithExplainer enables model generated explanations. Without one, every
// run records the missing API key and explains the failure locally.
func WithExplainer(g schemas.ExplanationGenerator) Option {
	return func(a *Analyzer) {
		a.explainer = g
	}
}

// WithCache reuses explanations across runs with the same bug context.
func WithCache(c schemas.ResultCache) Option {
	return func(a *Analyzer) {
		a.cache = c
	}
}

// WithClock overrides the clock used to time runs.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) {
		a.now = now
	}
}

// New creates an Analyzer. The opener and intent source are required.
func New(cfg config.AnalysisConfig, logger *zap.Logger, openRepo HistoryOpener, intents IntentSource, opts ...Option) (*Analyzer, error) {
	if logger == nil || openRepo == nil || intents == nil {
		return nil, errors.New("cannot initialize analyzer with nil dependencies")
	}

	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	a := &Analyzer{
		logger:     logger.Named("attribution"),
		parser:     coroner.NewParser(),
		openRepo:   openRepo,
		intents:    intents,
		maxCommits: cfg.MaxCommits,
		workers:    workers,
		excluded:   cfg.ExcludedPatterns,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Analyze attributes the failure described by rawText to the history of the
// repository at repoPath. It always returns a result; anything that could
// not be done is listed in the result's limitations.
func (a *Analyzer) Analyze(ctx context.Context, rawText, repoPath string) *schemas.AnalysisResult {
	start := a.now()
	failure := a.parser.Parse(rawText)
	a.logger.Info("Analyzing failure.",
		zap.String("error_type", failure.Category),
		zap.Int("frames", len(failure.Frames)),
		zap.String("repo", repoPath),
	)

	repo, err := a.openHistory(ctx, repoPath)
	if err != nil {
		a.logger.Warn("Repository is not readable, skipping history analysis.", zap.String("repo", repoPath), zap.Error(err))
		return &schemas.AnalysisResult{
			Failure:           failure,
			RelevantRevisions: []schemas.RevisionInfo{},
			Intent:            schemas.IntentBundle{FilePath: CombinedIntentPath},
			Elapsed:           a.now().Sub(start),
			Limitations:       []string{LimitationNotRepository},
		}
	}

	revisions := repo.ScoreHistory(ctx, failure, a.maxCommits)
	scanned := len(revisions)
	if loc, ok := failure.Location(); ok {
		revisions = repo.Prioritize(revisions, loc)
	}
	relevant := relevantOnly(revisions)

	combined, limitations := a.extractIntents(ctx, failure.ReferencedFiles)
	if limitations == nil {
		limitations = []string{}
	}

	rootCause := SelectRootCause(relevant)
	if rootCause != nil && rootCause.Confidence > 1.0 {
		limitations = append(limitations, fmt.Sprintf(
			"Root cause confidence %.2f exceeds 1.0 because of the failure location bonus; it ranks commits and is not a probability.",
			rootCause.Confidence))
	}

	repoContext := repo.Summarize(ctx, repoPath)
	repoContext.RecentActivity = recentActivity(relevant, scanned)

	bug := schemas.BugContext{
		Failure:           failure,
		RelevantRevisions: relevant,
		Intent:            combined,
		Repository:        repoContext,
	}
	explanation, limitations := a.explain(ctx, bug, limitations)

	result := &schemas.AnalysisResult{
		Failure:           failure,
		RootCause:         rootCause,
		Explanation:       explanation,
		RelevantRevisions: relevant,
		Intent:            combined,
		Repository:        &repoContext,
		Elapsed:           a.now().Sub(start),
		Limitations:       limitations,
	}
	a.logger.Info("Analysis complete.",
		zap.Int("relevant_commits", len(relevant)),
		zap.Int("limitations", len(limitations)),
		zap.Duration("elapsed", result.Elapsed),
	)
	return result
}

func (a *Analyzer) openHistory(ctx context.Context, repoPath string) (History, error) {
	repo, err := a.openRepo(ctx, repoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}
	if err := repo.Validate(ctx); err != nil {
		return nil, fmt.Errorf("failed to validate repository: %w", err)
	}
	return repo, nil
}

// recentActivity describes how much of the scanned history bears on the
// failure.
func recentActivity(relevant []schemas.RevisionInfo, scanned int) string {
	if len(relevant) == 0 {
		return fmt.Sprintf("None of the %d most recent commits touch the failing code.", scanned)
	}

	latest := relevant[0]
	for _, r := range relevant[1:] {
		if r.Timestamp.After(latest.Timestamp) {
			latest = r
		}
	}
	return fmt.Sprintf("%d of the %d most recent commits are relevant; the latest is %s by %s on %s.",
		len(relevant), scanned, latest.ID, latest.Author, latest.Timestamp.Format("2006-01-02"))
}
