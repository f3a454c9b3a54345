// internal/explainer/prompts.go
package explainer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xkilldash9x/hindsight/api/schemas"
	"github.com/xkilldash9x/hindsight/internal/coroner"
	"github.com/xkilldash9x/hindsight/internal/llmutil"
)

const (
	// maxPromptCommits bounds how many revisions are described to the model.
	maxPromptCommits = 10
	// maxPromptDiff bounds each revision's diff in the prompt.
	maxPromptDiff = 2000
)

// SystemPrompt frames every explanation request.
const SystemPrompt = `You are Hindsight, an AI debugging assistant that explains why bugs happen.
Given error information, git history, and developer intent signals, provide:
1. A clear summary of what went wrong
2. The root cause, referencing specific commits
3. How the developer's intent differs from actual behavior
4. Concrete fix suggestions with code examples
5. Educational notes to help the developer learn

Be concise, specific, and reference actual code/commits. Format your response as structured sections.
`

// Section labels expected in the model's reply.
const (
	sectionSummary        = "SUMMARY"
	sectionRootCause      = "ROOT_CAUSE"
	sectionIntentVsActual = "INTENT_VS_ACTUAL"
	sectionFixSuggestions = "FIX_SUGGESTIONS"
	sectionEducational    = "EDUCATIONAL_NOTES"
)

var sectionLabels = []string{
	sectionSummary,
	sectionRootCause,
	sectionIntentVsActual,
	sectionFixSuggestions,
	sectionEducational,
}

// buildAnalysisPrompt renders the failure, the best-scoring revisions and the
// intent signals into the user prompt.
func buildAnalysisPrompt(bug schemas.BugContext) string {
	affected := strings.Join(bug.Failure.ReferencedFiles, ", ")
	if affected == "" {
		affected = "(unknown)"
	}

	return fmt.Sprintf(`## Error Information
- **Type**: %s (%s)
- **Message**: %s
- **Affected Files**: %s
- **Stack Trace**:
%s

## Recent Relevant Commits
%s

## Developer Intent Signals
%s

---

Analyze this bug and provide your explanation in the following format:

SUMMARY: <one-paragraph summary>

ROOT_CAUSE: <explain the root cause, referencing specific commits>

INTENT_VS_ACTUAL: <how the developer's intent differs from actual behavior>

FIX_SUGGESTIONS:
- <suggestion 1>
- <suggestion 2>

EDUCATIONAL_NOTES:
- <learning point 1>
- <learning point 2>
`, bug.Failure.Category, coroner.Classify(bug.Failure.Category), bug.Failure.Message, affected,
		stackTraceSection(bug.Failure.Frames),
		commitsSection(bug.RelevantRevisions),
		intentSection(bug.Intent))
}

func stackTraceSection(frames []schemas.Frame) string {
	if len(frames) == 0 {
		return "(no stack trace available)"
	}
	lines := make([]string, 0, len(frames)*2)
	for _, f := range frames {
		lines = append(lines, fmt.Sprintf(`  File "%s", line %d, in %s`, f.FilePath, f.LineNumber, f.FunctionName))
		if f.CodeContext != "" {
			lines = append(lines, "    "+f.CodeContext)
		}
	}
	return strings.Join(lines, "\n")
}

func commitsSection(revisions []schemas.RevisionInfo) string {
	relevant := scored(revisions)
	sort.SliceStable(relevant, func(i, j int) bool {
		return relevant[i].RelevanceScore > relevant[j].RelevanceScore
	})
	if len(relevant) > maxPromptCommits {
		relevant = relevant[:maxPromptCommits]
	}
	if len(relevant) == 0 {
		return "(no relevant commits found)"
	}

	parts := make([]string, 0, len(relevant))
	for _, r := range relevant {
		parts = append(parts, fmt.Sprintf("### Commit %s (score: %.2f)\nAuthor: %s | Date: %s\nMessage: %s\nChanged files: %s\nDiff:\n```\n%s\n```",
			r.ID, r.RelevanceScore, r.Author, r.Timestamp.Format("2006-01-02 15:04"), r.Message,
			strings.Join(r.ChangedFiles, ", "), llmutil.Truncate(r.DiffText, maxPromptDiff)))
	}
	return strings.Join(parts, "\n\n")
}

func intentSection(intent schemas.IntentBundle) string {
	var lines []string
	for _, d := range intent.DeclaredIntents {
		lines = append(lines, fmt.Sprintf("- Function `%s`: %s", d.FunctionName, d.IntendedBehavior))
	}
	for _, t := range intent.TestIntents {
		lines = append(lines, fmt.Sprintf("- Test `%s`: expects %s", t.TestName, t.ExpectedBehavior))
	}
	for _, a := range intent.AnnotationIntents {
		if a.Kind == schemas.AnnotationInline {
			continue
		}
		lines = append(lines, fmt.Sprintf("- [%s] line %d: %s", strings.ToUpper(string(a.Kind)), a.LineNumber, a.Text))
	}
	if len(lines) == 0 {
		return "(no intent signals found)"
	}
	return strings.Join(lines, "\n")
}

func buildFixPrompt(intent schemas.IntentBundle, actual string) string {
	declared := make([]string, 0, len(intent.DeclaredIntents))
	for _, d := range intent.DeclaredIntents {
		declared = append(declared, d.IntendedBehavior)
	}
	tested := make([]string, 0, len(intent.TestIntents))
	for _, t := range intent.TestIntents {
		tested = append(tested, t.ExpectedBehavior)
	}

	return fmt.Sprintf("Given the developer's intent:\n"+
		"- Docstrings: %s\n"+
		"- Test expectations: %s\n\n"+
		"And the actual behavior:\n%s\n\n"+
		"Provide 2-3 concrete fix suggestions. For each, give:\n"+
		"DESCRIPTION: <what to do>\nCODE: <code example>\nRATIONALE: <why>\nDIFFICULTY: <easy/medium/hard>",
		quoteList(declared), quoteList(tested), actual)
}

func buildEducationPrompt(explanation string) string {
	return "Rewrite this debugging explanation to be more educational. " +
		"Add context about why this type of bug happens commonly and how " +
		"to prevent it in the future:\n\n" + explanation
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = fmt.Sprintf("%q", item)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

func scored(revisions []schemas.RevisionInfo) []schemas.RevisionInfo {
	out := make([]schemas.RevisionInfo, 0, len(revisions))
	for _, r := range revisions {
		if r.RelevanceScore > 0 {
			out = append(out, r)
		}
	}
	return out
}
