package schemas

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// DifficultyMedium is the difficulty assumed for fix suggestions that do not
// state one.
const DifficultyMedium = "medium"

// RootCauseCandidate is the revision selected as the most likely origin of a
// failure.
type RootCauseCandidate struct {
	Revision    RevisionInfo `json:"commit"`
	Description string       `json:"description"`
	// Confidence equals the revision's relevance score.
	Confidence float64 `json:"confidence"`
}

// RepositoryContext summarizes the repository an analysis ran against.
type RepositoryContext struct {
	RepoPath        string `json:"repo_path"`
	TotalCommits    int    `json:"total_commits"`
	PrimaryLanguage string `json:"primary_language"`
	RecentActivity  string `json:"recent_activity"`
}

// FixSuggestion is one concrete remediation proposed for a failure.
type FixSuggestion struct {
	Description string `json:"description"`
	CodeExample string `json:"code_example,omitempty"`
	Rationale   string `json:"rationale,omitempty"`
	Difficulty  string `json:"difficulty"`
}

// Explanation is the narrative produced for an analysis, either by a language
// model or synthesized locally.
type Explanation struct {
	Summary          string          `json:"summary"`
	RootCause        string          `json:"root_cause"`
	IntentVsActual   string          `json:"intent_vs_actual"`
	CommitReferences []string        `json:"commit_references"`
	FixSuggestions   []FixSuggestion `json:"fix_suggestions"`
	EducationalNotes []string        `json:"educational_notes"`
}

// BugContext is everything handed to an explanation generator.
type BugContext struct {
	Failure           FailureRecord     `json:"error_info"`
	RelevantRevisions []RevisionInfo    `json:"relevant_commits"`
	Intent            IntentBundle      `json:"intent_info"`
	Repository        RepositoryContext `json:"repository_context"`
}

// contextKey lists the hashed fields in key order.
type contextKey struct {
	Commits   []string `json:"commits"`
	ErrorType string   `json:"error_type"`
	Files     []string `json:"files"`
	Message   string   `json:"message"`
}

// ContextHash returns a stable 16 hex character digest over the failure
// category, message, referenced files and relevant revision ids. Nothing
// else contributes to the digest.
func (c BugContext) ContextHash() string {
	key := contextKey{
		Commits:   make([]string, 0, len(c.RelevantRevisions)),
		ErrorType: c.Failure.Category,
		Files:     append([]string{}, c.Failure.ReferencedFiles...),
		Message:   c.Failure.Message,
	}
	for _, r := range c.RelevantRevisions {
		key.Commits = append(key.Commits, r.ID)
	}

	// Marshaling a flat struct of strings cannot fail.
	raw, _ := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(key)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])[:16]
}

// AnalysisResult is the immutable outcome of a single attribution run.
type AnalysisResult struct {
	Failure           FailureRecord       `json:"error_info"`
	RootCause         *RootCauseCandidate `json:"root_cause,omitempty"`
	Explanation       *Explanation        `json:"explanation,omitempty"`
	RelevantRevisions []RevisionInfo      `json:"relevant_commits"`
	Intent            IntentBundle        `json:"intent_info"`
	Repository        *RepositoryContext  `json:"repository_context,omitempty"`
	Elapsed           time.Duration       `json:"analysis_time"`
	Limitations       []string            `json:"limitations"`
}
