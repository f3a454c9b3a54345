// internal/attribution/explanation.go
package attribution

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/hindsight/api/schemas"
)

const (
	// LimitationNoAPIKey is recorded when no explanation generator is configured.
	LimitationNoAPIKey = "No API key found. Set ANTHROPIC_API_KEY or HINDSIGHT_API_KEY environment variable for AI-powered explanations."
	// maxBasicReferences bounds the commit references of a local explanation.
	maxBasicReferences = 5
)

// explain produces the explanation for bug. A cached explanation wins,
// then the configured generator; anything else falls back to a locally
// synthesized explanation. Degradations are appended to limitations.
func (a *Analyzer) explain(ctx context.Context, bug schemas.BugContext, limitations []string) (*schemas.Explanation, []string) {
	key := bug.ContextHash()

	if a.cache != nil {
		var cached schemas.Explanation
		found, err := a.cache.Get(ctx, schemas.NamespaceAIResponses, key, &cached)
		if err != nil {
			a.logger.Debug("Cache lookup failed.", zap.String("context_hash", key), zap.Error(err))
		}
		if found {
			a.logger.Info("Using cached AI explanation.", zap.String("context_hash", key))
			return &cached, limitations
		}
	}

	if a.explainer == nil {
		limitations = append(limitations, LimitationNoAPIKey)
		return BasicExplanation(bug, limitations), limitations
	}

	explanation, err := a.explainer.Explain(ctx, bug)
	if err != nil {
		a.logger.Error("AI explanation failed.", zap.Error(err))
		limitations = append(limitations, fmt.Sprintf("AI explanation failed: %v", err))
		return BasicExplanation(bug, limitations), limitations
	}

	if a.cache != nil {
		if err := a.cache.Set(ctx, schemas.NamespaceAIResponses, key, explanation); err != nil {
			a.logger.Warn("Failed to cache AI explanation.", zap.String("context_hash", key), zap.Error(err))
		}
	}
	return explanation, limitations
}

// BasicExplanation synthesizes an explanation from the gathered evidence
// alone. The limitations become its educational notes.
func BasicExplanation(bug schemas.BugContext, limitations []string) *schemas.Explanation {
	explanation := &schemas.Explanation{
		Summary:          fmt.Sprintf("%s: %s", bug.Failure.Category, bug.Failure.Message),
		CommitReferences: []string{},
		FixSuggestions:   []schemas.FixSuggestion{},
		EducationalNotes: append([]string{}, limitations...),
	}

	relevant := relevantOnly(bug.RelevantRevisions)
	if len(relevant) > 0 {
		top := RankByLikelihood(relevant)[0]
		explanation.RootCause = fmt.Sprintf("Most likely related to commit %s by %s: %s", top.ID, top.Author, top.Message)
	}

	if declared := bug.Intent.DeclaredIntents; len(declared) > 0 {
		explanation.IntentVsActual = fmt.Sprintf("Intended behavior of `%s`: %s", declared[0].FunctionName, declared[0].IntendedBehavior)
	}

	for i, r := range relevant {
		if i == maxBasicReferences {
			break
		}
		explanation.CommitReferences = append(explanation.CommitReferences, r.ID+": "+r.Message)
	}
	return explanation
}
