// internal/intent/syntax.go
package intent

import (
	"context"
	"errors"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

var errSyntax = errors.New("source contains syntax errors")

// legacyStatements are Python 2 forms the grammar still accepts but the
// Python 3 interpreter rejects.
var legacyStatements = map[string]bool{
	"print_statement": true,
	"exec_statement":  true,
}

// syntaxTree is a parsed Python module together with the bytes it was
// parsed from. Node contents are only valid against that source.
type syntaxTree struct {
	tree   *sitter.Tree
	root   *sitter.Node
	source []byte
}

// parsePython builds a tree-sitter tree for source. Trees with error or
// missing nodes, or with Python 2 only statements, are rejected so callers
// never reason over input the interpreter would refuse.
func parsePython(ctx context.Context, source []byte) (*syntaxTree, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter failed to parse source: %w", err)
	}
	root := tree.RootNode()
	if root.HasError() || hasLegacyStatement(root) {
		tree.Close()
		return nil, errSyntax
	}
	return &syntaxTree{tree: tree, root: root, source: source}, nil
}

func hasLegacyStatement(root *sitter.Node) bool {
	found := false
	walk(root, func(n *sitter.Node) {
		if legacyStatements[n.Type()] {
			found = true
		}
	})
	return found
}

func (t *syntaxTree) Close() {
	t.tree.Close()
}

func (t *syntaxTree) content(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(t.source)
}

// walk visits n and its named descendants in pre-order.
func walk(n *sitter.Node, visit func(*sitter.Node)) {
	if n == nil {
		return
	}
	visit(n)
	for i := 0; i < int(n.NamedChildCount()); i++ {
		walk(n.NamedChild(i), visit)
	}
}

// contains reports whether any strict descendant of n has the given type.
func contains(n *sitter.Node, nodeType string) bool {
	found := false
	for i := 0; i < int(n.NamedChildCount()) && !found; i++ {
		walk(n.NamedChild(i), func(c *sitter.Node) {
			if c.Type() == nodeType {
				found = true
			}
		})
	}
	return found
}

// firstStatement returns the first non-comment child of a block.
func firstStatement(block *sitter.Node) *sitter.Node {
	if block == nil {
		return nil
	}
	for i := 0; i < int(block.NamedChildCount()); i++ {
		child := block.NamedChild(i)
		if child.Type() != "comment" {
			return child
		}
	}
	return nil
}

func unwrapParens(n *sitter.Node) *sitter.Node {
	for n != nil && n.Type() == "parenthesized_expression" {
		n = firstStatement(n)
	}
	return n
}

func lineOf(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}
