// internal/explainer/explainer.go
package explainer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/hindsight/api/schemas"
	"github.com/xkilldash9x/hindsight/internal/config"
	"github.com/xkilldash9x/hindsight/internal/llmutil"
)

// BugExplainer turns an assembled bug context into a narrative explanation
// using a language model.
type BugExplainer struct {
	logger      *zap.Logger
	llmClient   schemas.LLMClient
	temperature float64
	maxTokens   int
}

var _ schemas.ExplanationGenerator = (*BugExplainer)(nil)

// NewBugExplainer initializes an explainer on top of llmClient. Generation
// parameters come from cfg.
func NewBugExplainer(logger *zap.Logger, llmClient schemas.LLMClient, cfg config.APIConfig) *BugExplainer {
	return &BugExplainer{
		logger:      logger.Named("explainer"),
		llmClient:   llmClient,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

// Explain asks the model for an explanation of bug and parses its sections.
// The error is returned unchanged in meaning so callers can degrade to a
// local explanation.
func (e *BugExplainer) Explain(ctx context.Context, bug schemas.BugContext) (*schemas.Explanation, error) {
	e.logger.Debug("Requesting explanation.", zap.String("context_hash", bug.ContextHash()))

	raw, err := e.generate(ctx, schemas.TierPowerful, SystemPrompt, buildAnalysisPrompt(bug))
	if err != nil {
		return nil, fmt.Errorf("LLM generation failed: %w", err)
	}

	explanation := parseExplanation(raw, bug.RelevantRevisions)
	e.logger.Debug("Explanation parsed.",
		zap.Int("fix_suggestions", len(explanation.FixSuggestions)),
		zap.Int("educational_notes", len(explanation.EducationalNotes)))
	return explanation, nil
}

// SuggestFixes asks for concrete fixes that reconcile the stated intent with
// the observed behavior. Replies given as a JSON array are accepted as well.
func (e *BugExplainer) SuggestFixes(ctx context.Context, intent schemas.IntentBundle, actual string) ([]schemas.FixSuggestion, error) {
	raw, err := e.generate(ctx, schemas.TierPowerful, SystemPrompt, buildFixPrompt(intent, actual))
	if err != nil {
		return nil, fmt.Errorf("LLM generation failed: %w", err)
	}

	if suggestions := parseFixSuggestions(raw); len(suggestions) > 0 {
		return suggestions, nil
	}

	parsed, err := llmutil.ParseJSONResponse[[]schemas.FixSuggestion](raw)
	if err != nil {
		e.logger.Debug("Fix suggestion reply had no recognizable structure.", zap.Error(err))
		return []schemas.FixSuggestion{}, nil
	}
	suggestions := *parsed
	for i := range suggestions {
		if suggestions[i].Difficulty == "" {
			suggestions[i].Difficulty = schemas.DifficultyMedium
		}
	}
	return suggestions, nil
}

// FormatForEducation rewrites an explanation with background on the bug
// class. On failure the input is returned unchanged.
func (e *BugExplainer) FormatForEducation(ctx context.Context, explanation string) string {
	raw, err := e.generate(ctx, schemas.TierFast, SystemPrompt, buildEducationPrompt(explanation))
	if err != nil {
		e.logger.Warn("Educational rewrite failed, keeping original text.", zap.Error(err))
		return explanation
	}
	if strings.TrimSpace(raw) == "" {
		return explanation
	}
	return raw
}

// IncludeCommitReferences appends a "Relevant Commits:" list of the scored
// revisions to text.
func IncludeCommitReferences(text string, revisions []schemas.RevisionInfo) string {
	relevant := scored(revisions)
	if len(relevant) == 0 {
		return text
	}

	refs := make([]string, 0, len(relevant))
	for _, r := range relevant {
		refs = append(refs, fmt.Sprintf("  - %s: %s (by %s, %s)", r.ID, r.Message, r.Author, r.Timestamp.Format("2006-01-02")))
	}
	return text + "\n\nRelevant Commits:\n" + strings.Join(refs, "\n")
}

func (e *BugExplainer) generate(ctx context.Context, tier schemas.ModelTier, system, user string) (string, error) {
	return e.llmClient.Generate(ctx, schemas.GenerationRequest{
		SystemPrompt: system,
		UserPrompt:   user,
		Tier:         tier,
		Options: schemas.GenerationOptions{
			Temperature: e.temperature,
			MaxTokens:   e.maxTokens,
		},
	})
}
