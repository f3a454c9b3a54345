// internal/intent/comments.go
package intent

import (
	"regexp"
	"strings"

	"github.com/xkilldash9x/hindsight/api/schemas"
)

// PEP 263 source encoding declaration, honored only on the first two lines.
var codingRegex = regexp.MustCompile(`^[ \t\f]*#.*?coding[:=][ \t]*[-\w.]+`)

var annotationPrefixes = []struct {
	prefixes []string
	kind     schemas.AnnotationKind
}{
	{[]string{"todo"}, schemas.AnnotationTodo},
	{[]string{"fixme", "fix me"}, schemas.AnnotationFixme},
	{[]string{"note"}, schemas.AnnotationNote},
	{[]string{"hack", "workaround"}, schemas.AnnotationWorkaround},
}

// annotationIntents scans raw source text for full-line comments. It works
// without a syntax tree so it still produces results for unparsable files.
func annotationIntents(source string) []schemas.AnnotationIntent {
	intents := []schemas.AnnotationIntent{}
	for i, line := range splitSourceLines(source) {
		lineNo := i + 1
		stripped := strings.TrimSpace(line)
		if !strings.HasPrefix(stripped, "#") {
			continue
		}
		if strings.HasPrefix(stripped, "#!") || strings.HasPrefix(stripped, "# -*-") {
			continue
		}
		if lineNo <= 2 && codingRegex.MatchString(line) {
			continue
		}

		text := strings.TrimSpace(strings.TrimLeft(stripped, "#"))
		if text == "" {
			continue
		}
		intents = append(intents, schemas.AnnotationIntent{
			LineNumber: lineNo,
			Text:       text,
			Kind:       classifyAnnotation(text),
		})
	}
	return intents
}

func classifyAnnotation(text string) schemas.AnnotationKind {
	lower := strings.ToLower(text)
	for _, group := range annotationPrefixes {
		for _, p := range group.prefixes {
			if strings.HasPrefix(lower, p) {
				return group.kind
			}
		}
	}
	return schemas.AnnotationInline
}

func splitSourceLines(source string) []string {
	source = strings.ReplaceAll(source, "\r\n", "\n")
	source = strings.ReplaceAll(source, "\r", "\n")
	source = strings.TrimSuffix(source, "\n")
	if source == "" {
		return nil
	}
	return strings.Split(source, "\n")
}
