package schemas

import (
	"context"
)

// -- LLM Interfaces --

// ModelTier allows for selecting a large language model based on a preference
// for speed versus advanced capabilities.
type ModelTier string

const (
	TierFast     ModelTier = "fast"     // Prefers a faster, potentially less capable model.
	TierPowerful ModelTier = "powerful" // Prefers a more capable, potentially slower model.
)

// GenerationOptions provides detailed parameters to control the text generation
// process of the LLM.
type GenerationOptions struct {
	Temperature float64 `json:"temperature"` // Controls randomness. Lower is more deterministic.
	MaxTokens   int     `json:"max_tokens"`  // Zero means the client default.
}

// GenerationRequest encapsulates a complete request to the LLM, including the
// system and user prompts, the desired model tier, and generation options.
type GenerationRequest struct {
	SystemPrompt string            `json:"system_prompt"`
	UserPrompt   string            `json:"user_prompt"`
	Tier         ModelTier         `json:"tier"`
	Options      GenerationOptions `json:"options"`
}

// LLMClient defines a standard interface for interacting with a Large Language
// Model, abstracting the specifics of the underlying provider.
type LLMClient interface {
	// Generate produces a text completion based on the provided request.
	Generate(ctx context.Context, req GenerationRequest) (string, error)
	// Close cleans up any resources held by the client.
	Close() error
}

// -- Pipeline Collaborators --

// ExplanationGenerator turns an assembled bug context into a narrative
// explanation. Implementations may call remote services and may fail; callers
// are expected to degrade to a locally synthesized explanation.
type ExplanationGenerator interface {
	Explain(ctx context.Context, bug BugContext) (*Explanation, error)
}

// ResultCache is an expiring key-value store partitioned by namespace.
type ResultCache interface {
	// Get decodes the cached value into dst and reports whether it was found.
	Get(ctx context.Context, namespace, key string, dst any) (bool, error)
	// Set stores value under the namespace and key.
	Set(ctx context.Context, namespace, key string, value any) error
}

// Cache namespaces.
const (
	NamespaceGitAnalysis      = "git_analysis"
	NamespaceIntentExtraction = "intent_extraction"
	NamespaceAIResponses      = "ai_responses"
)
