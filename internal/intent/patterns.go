// internal/intent/patterns.go
package intent

import (
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/xkilldash9x/hindsight/api/schemas"
)

// detector inspects a single node and reports the idiom it represents, if any.
type detector func(t *syntaxTree, n *sitter.Node) (schemas.PatternIntent, bool)

var detectors = []detector{
	detectGuardClause,
	detectErrorHandling,
	detectAssertion,
	detectTypeCheck,
	detectRetryLogic,
}

// patternIntents runs every detector over every node of the tree.
func patternIntents(t *syntaxTree) []schemas.PatternIntent {
	intents := []schemas.PatternIntent{}
	walk(t.root, func(n *sitter.Node) {
		for _, detect := range detectors {
			if p, ok := detect(t, n); ok {
				intents = append(intents, p)
			}
		}
	})
	return intents
}

func patternAt(n *sitter.Node, kind schemas.PatternKind, description string) schemas.PatternIntent {
	return schemas.PatternIntent{
		Kind:        kind,
		Description: description,
		Location:    fmt.Sprintf("line %d", lineOf(n)),
	}
}

// detectGuardClause checks if and elif branches alike; both carry the same
// condition and consequence fields.
func detectGuardClause(_ *syntaxTree, n *sitter.Node) (schemas.PatternIntent, bool) {
	if n.Type() != "if_statement" && n.Type() != "elif_clause" {
		return schemas.PatternIntent{}, false
	}
	first := firstStatement(n.ChildByFieldName("consequence"))
	if first == nil || (first.Type() != "return_statement" && first.Type() != "raise_statement") {
		return schemas.PatternIntent{}, false
	}

	cond := unwrapParens(n.ChildByFieldName("condition"))
	switch {
	case cond == nil:
		return schemas.PatternIntent{}, false
	case cond.Type() == "comparison_operator" && isSingleIdentityCheck(cond):
		return patternAt(n, schemas.PatternGuardClause, "Guard clause checking for None/invalid state"), true
	case cond.Type() == "not_operator":
		return patternAt(n, schemas.PatternGuardClause, "Guard clause for falsy value check"), true
	}
	return schemas.PatternIntent{}, false
}

// isSingleIdentityCheck matches "a is b" but not "a is not b" or chains
// such as "a is b is c".
func isSingleIdentityCheck(cmp *sitter.Node) bool {
	var ops []string
	for i := 0; i < int(cmp.ChildCount()); i++ {
		if c := cmp.Child(i); !c.IsNamed() {
			ops = append(ops, c.Type())
		}
	}
	return len(ops) == 1 && ops[0] == "is"
}

func detectErrorHandling(_ *syntaxTree, n *sitter.Node) (schemas.PatternIntent, bool) {
	if n.Type() != "try_statement" {
		return schemas.PatternIntent{}, false
	}
	return patternAt(n, schemas.PatternErrorHandling, "Error handling for expected failure modes"), true
}

func detectAssertion(_ *syntaxTree, n *sitter.Node) (schemas.PatternIntent, bool) {
	if n.Type() != "assert_statement" {
		return schemas.PatternIntent{}, false
	}
	return patternAt(n, schemas.PatternAssertion, "Developer asserts invariant condition"), true
}

func detectTypeCheck(t *syntaxTree, n *sitter.Node) (schemas.PatternIntent, bool) {
	if n.Type() != "call" {
		return schemas.PatternIntent{}, false
	}
	fn := n.ChildByFieldName("function")
	if fn == nil || fn.Type() != "identifier" || t.content(fn) != "isinstance" {
		return schemas.PatternIntent{}, false
	}
	return patternAt(n, schemas.PatternTypeCheck, "Runtime type validation"), true
}

func detectRetryLogic(_ *syntaxTree, n *sitter.Node) (schemas.PatternIntent, bool) {
	if n.Type() != "for_statement" && n.Type() != "while_statement" {
		return schemas.PatternIntent{}, false
	}
	if !contains(n, "try_statement") {
		return schemas.PatternIntent{}, false
	}
	return patternAt(n, schemas.PatternRetryLogic, "Retry mechanism for transient failures"), true
}
