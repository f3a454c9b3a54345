// internal/history/language.go
package history

import (
	"path"
	"sort"

	"github.com/src-d/enry/v2"
)

// DefaultLanguage is reported when no tracked file maps to a language.
const DefaultLanguage = "Python"

// PrimaryLanguage picks the language covering the most bytes among tracked
// files. Vendored, dot, documentation and configuration files are ignored.
// Ties are broken alphabetically so the result is stable.
func PrimaryLanguage(files []TrackedFile) string {
	totals := make(map[string]int64)
	for _, f := range files {
		if enry.IsVendor(f.Path) || enry.IsDotFile(f.Path) ||
			enry.IsDocumentation(f.Path) || enry.IsConfiguration(f.Path) {
			continue
		}
		lang, _ := enry.GetLanguageByExtension(path.Base(f.Path))
		if lang == "" {
			lang, _ = enry.GetLanguageByFilename(path.Base(f.Path))
		}
		if lang == "" {
			continue
		}
		// Empty files still count as evidence.
		totals[lang] += f.Size + 1
	}
	if len(totals) == 0 {
		return DefaultLanguage
	}

	langs := make([]string, 0, len(totals))
	for lang := range totals {
		langs = append(langs, lang)
	}
	sort.Slice(langs, func(i, j int) bool {
		if totals[langs[i]] != totals[langs[j]] {
			return totals[langs[i]] > totals[langs[j]]
		}
		return langs[i] < langs[j]
	})
	return langs[0]
}
