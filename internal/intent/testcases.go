// internal/intent/testcases.go
package intent

import (
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/xkilldash9x/hindsight/api/schemas"
)

const testPrefix = "test_"

// Checked in order; the first marker present in the test name wins.
var testedFunctionMarkers = []string{"_returns", "_raises", "_when", "_should", "_with", "_handles"}

// testFileCandidates lists where the tests of sourcePath may live, in lookup
// order. Test files have no tests of their own.
func testFileCandidates(sourcePath string) []string {
	dir, base := filepath.Split(sourcePath)
	if strings.HasPrefix(base, testPrefix) {
		return nil
	}
	return []string{
		filepath.Join(dir, testPrefix+base),
		filepath.Join(dir, "tests", testPrefix+base),
	}
}

// testIntents reads the expectations of every test function in a module.
func testIntents(t *syntaxTree) []schemas.TestIntent {
	intents := []schemas.TestIntent{}
	walk(t.root, func(n *sitter.Node) {
		if n.Type() != "function_definition" {
			return
		}
		name := t.content(n.ChildByFieldName("name"))
		if !strings.HasPrefix(name, testPrefix) {
			return
		}

		behavior := behaviorFromTestName(name)
		if doc, ok := docstring(t, n); ok && doc != "" {
			behavior = strings.TrimSpace(strings.SplitN(doc, "\n", 2)[0])
		}
		intents = append(intents, schemas.TestIntent{
			TestName:         name,
			ExpectedBehavior: behavior,
			TestedFunction:   testedFunction(name),
		})
	})
	return intents
}

// behaviorFromTestName turns test_parse_returns_none into "parse returns none".
func behaviorFromTestName(name string) string {
	return strings.ReplaceAll(strings.TrimPrefix(name, testPrefix), "_", " ")
}

func testedFunction(name string) string {
	if !strings.HasPrefix(name, testPrefix) {
		return ""
	}
	remainder := name[len(testPrefix):]
	for _, marker := range testedFunctionMarkers {
		if i := strings.Index(remainder, marker); i >= 0 {
			return remainder[:i]
		}
	}
	return remainder
}
