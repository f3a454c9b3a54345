// internal/history/changes.go
package history

import (
	"bytes"
	"fmt"
	"strings"

	godiff "github.com/sourcegraph/go-diff/diff"

	"github.com/xkilldash9x/hindsight/api/schemas"
)

// ExtractFileChanges finds the first file in a multi-file unified diff whose
// path matches filePath and splits its hunks into added and removed lines.
// A diff that mentions no matching file yields empty changes.
func ExtractFileChanges(diffText, filePath string) (schemas.FileChanges, error) {
	changes := schemas.FileChanges{
		Path:      filePath,
		Additions: []string{},
		Deletions: []string{},
	}
	if strings.TrimSpace(diffText) == "" {
		return changes, nil
	}

	fileDiffs, err := godiff.ParseMultiFileDiff([]byte(diffText))
	if err != nil {
		return changes, fmt.Errorf("failed to parse diff: %w", err)
	}

	for _, fd := range fileDiffs {
		target := cleanDiffPath(fd.NewName)
		if target == "" {
			target = cleanDiffPath(fd.OrigName)
		}
		if target == "" || !PathsMatch(target, filePath) {
			continue
		}

		var text bytes.Buffer
		for _, hunk := range fd.Hunks {
			fmt.Fprintf(&text, "@@ -%d,%d +%d,%d @@", hunk.OrigStartLine, hunk.OrigLines, hunk.NewStartLine, hunk.NewLines)
			if hunk.Section != "" {
				text.WriteString(" " + hunk.Section)
			}
			text.WriteByte('\n')
			text.Write(hunk.Body)

			for _, line := range strings.Split(strings.TrimSuffix(string(hunk.Body), "\n"), "\n") {
				switch {
				case strings.HasPrefix(line, "+"):
					changes.Additions = append(changes.Additions, line[1:])
				case strings.HasPrefix(line, "-"):
					changes.Deletions = append(changes.Deletions, line[1:])
				}
			}
		}
		changes.Diff = text.String()
		break
	}
	return changes, nil
}

// cleanDiffPath strips the a/ and b/ prefixes git puts on diff headers.
func cleanDiffPath(name string) string {
	if name == "/dev/null" {
		return ""
	}
	if strings.HasPrefix(name, "a/") || strings.HasPrefix(name, "b/") {
		return name[2:]
	}
	return name
}
