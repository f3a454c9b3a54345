// internal/explainer/parse.go
package explainer

import (
	"strings"

	"github.com/xkilldash9x/hindsight/api/schemas"
	"github.com/xkilldash9x/hindsight/internal/llmutil"
)

// parseExplanation maps the labelled sections of a reply onto an Explanation.
// A reply with no recognizable section becomes the summary verbatim.
func parseExplanation(raw string, revisions []schemas.RevisionInfo) *schemas.Explanation {
	sections := llmutil.ParseSections(raw, sectionLabels...)

	found := false
	for _, body := range sections {
		if body != "" {
			found = true
			break
		}
	}
	if !found {
		return &schemas.Explanation{
			Summary:          strings.TrimSpace(raw),
			CommitReferences: []string{},
			FixSuggestions:   []schemas.FixSuggestion{},
			EducationalNotes: []string{},
		}
	}

	notes := llmutil.BulletItems(sections[sectionEducational])
	if notes == nil {
		notes = []string{}
	}
	return &schemas.Explanation{
		Summary:          sections[sectionSummary],
		RootCause:        sections[sectionRootCause],
		IntentVsActual:   sections[sectionIntentVsActual],
		CommitReferences: commitReferences(revisions),
		FixSuggestions:   parseFixSuggestions(sections[sectionFixSuggestions]),
		EducationalNotes: notes,
	}
}

// commitReferences lists every scored revision as "<id>: <message>".
func commitReferences(revisions []schemas.RevisionInfo) []string {
	refs := []string{}
	for _, r := range scored(revisions) {
		refs = append(refs, r.ID+": "+r.Message)
	}
	return refs
}

// Fix suggestion block keys.
const (
	keyDescription = "DESCRIPTION:"
	keyCode        = "CODE:"
	keyRationale   = "RATIONALE:"
	keyDifficulty  = "DIFFICULTY:"
)

// parseFixSuggestions reads DESCRIPTION/CODE/RATIONALE/DIFFICULTY blocks.
// Plain "- " bullets seen before the first block are suggestions of their
// own. Unlabelled lines inside a block extend its code example.
func parseFixSuggestions(text string) []schemas.FixSuggestion {
	suggestions := []schemas.FixSuggestion{}
	if strings.TrimSpace(text) == "" {
		return suggestions
	}

	var (
		current *schemas.FixSuggestion
		code    strings.Builder
	)
	flush := func() {
		if current == nil || current.Description == "" {
			current = nil
			code.Reset()
			return
		}
		current.CodeExample = llmutil.StripFenceLines(code.String())
		if current.Difficulty == "" {
			current.Difficulty = schemas.DifficultyMedium
		}
		suggestions = append(suggestions, *current)
		current = nil
		code.Reset()
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, keyDescription):
			flush()
			current = &schemas.FixSuggestion{
				Description: strings.TrimSpace(trimmed[len(keyDescription):]),
				Difficulty:  schemas.DifficultyMedium,
			}
		case current == nil:
			if strings.HasPrefix(trimmed, "- ") {
				suggestions = append(suggestions, schemas.FixSuggestion{
					Description: strings.TrimSpace(trimmed[2:]),
					Difficulty:  schemas.DifficultyMedium,
				})
			}
		case strings.HasPrefix(trimmed, keyCode):
			code.Reset()
			code.WriteString(strings.TrimSpace(trimmed[len(keyCode):]))
		case strings.HasPrefix(trimmed, keyRationale):
			current.Rationale = strings.TrimSpace(trimmed[len(keyRationale):])
		case strings.HasPrefix(trimmed, keyDifficulty):
			current.Difficulty = strings.ToLower(strings.TrimSpace(trimmed[len(keyDifficulty):]))
		default:
			code.WriteString("\n")
			code.WriteString(line)
		}
	}
	flush()
	return suggestions
}
