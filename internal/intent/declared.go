// internal/intent/declared.go
package intent

import (
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/xkilldash9x/hindsight/api/schemas"
)

var (
	// Sphinx ":param name: desc" or the looser "name: desc" / "name (type): desc".
	paramRegex   = regexp.MustCompile(`(?::param\s+(\w+):\s*(.+?)(?:\n|$))|(?:(\w+)\s*(?:\(.*?\))?\s*:\s*(.+?)(?:\n|$))`)
	returnRegex  = regexp.MustCompile(`(?::returns?:\s*(.+?)(?:\n|$))|(?:Returns?:\s*\n\s+(.+?)(?:\n|$))`)
	exampleRegex = regexp.MustCompile(`>>>\s*(.+)`)
)

// declaredIntents collects the documented functions and classes of a module.
func declaredIntents(t *syntaxTree) []schemas.DeclaredIntent {
	intents := []schemas.DeclaredIntent{}
	walk(t.root, func(n *sitter.Node) {
		if n.Type() != "function_definition" && n.Type() != "class_definition" {
			return
		}
		doc, ok := docstring(t, n)
		if !ok || doc == "" {
			return
		}
		intents = append(intents, parseDocstring(t.content(n.ChildByFieldName("name")), doc))
	})
	return intents
}

func parseDocstring(name, doc string) schemas.DeclaredIntent {
	intent := schemas.DeclaredIntent{
		FunctionName:     name,
		IntendedBehavior: strings.TrimSpace(strings.SplitN(doc, "\n", 2)[0]),
		Parameters:       make(map[string]string),
		Examples:         []string{},
	}

	for _, m := range paramRegex.FindAllStringSubmatch(doc, -1) {
		paramName, desc := m[1], m[2]
		if paramName == "" {
			paramName, desc = m[3], m[4]
		}
		if paramName != "" && desc != "" {
			intent.Parameters[strings.TrimSpace(paramName)] = strings.TrimSpace(desc)
		}
	}

	if m := returnRegex.FindStringSubmatch(doc); m != nil {
		ret := m[1]
		if ret == "" {
			ret = m[2]
		}
		intent.ReturnDescription = strings.TrimSpace(ret)
	}

	for _, m := range exampleRegex.FindAllStringSubmatch(doc, -1) {
		intent.Examples = append(intent.Examples, m[1])
	}
	return intent
}

// docstring returns the cleaned documentation block of a definition: a plain
// string literal as the first statement of its body. Bytes and f-strings do
// not count.
func docstring(t *syntaxTree, def *sitter.Node) (string, bool) {
	stmt := firstStatement(def.ChildByFieldName("body"))
	if stmt == nil || stmt.Type() != "expression_statement" || stmt.NamedChildCount() != 1 {
		return "", false
	}
	lit := stmt.NamedChild(0)
	if lit.Type() != "string" {
		return "", false
	}
	value, ok := stringValue(t.content(lit))
	if !ok {
		return "", false
	}
	return cleanDoc(value), true
}

// stringValue strips the prefix and quotes from a Python string literal.
// Escape sequences are left as written.
func stringValue(literal string) (string, bool) {
	i := strings.IndexAny(literal, `"'`)
	if i < 0 {
		return "", false
	}
	prefix := strings.ToLower(literal[:i])
	if strings.ContainsAny(prefix, "bf") {
		return "", false
	}
	body := literal[i:]
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if len(body) >= 2*len(q) && strings.HasPrefix(body, q) && strings.HasSuffix(body, q) {
			return body[len(q) : len(body)-len(q)], true
		}
	}
	return "", false
}

// cleanDoc normalizes docstring indentation: tabs expanded, the first line
// left-trimmed, the common indent of the remaining lines removed and blank
// leading and trailing lines dropped.
func cleanDoc(doc string) string {
	lines := strings.Split(expandTabs(doc), "\n")

	margin := -1
	for _, line := range lines[1:] {
		stripped := strings.TrimLeft(line, " ")
		if stripped == "" {
			continue
		}
		if indent := len(line) - len(stripped); margin < 0 || indent < margin {
			margin = indent
		}
	}

	lines[0] = strings.TrimLeft(lines[0], " \t\r\n\v\f")
	if margin > 0 {
		for i := 1; i < len(lines); i++ {
			if len(lines[i]) >= margin {
				lines[i] = lines[i][margin:]
			} else {
				lines[i] = strings.TrimLeft(lines[i], " ")
			}
		}
	}

	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	return strings.Join(lines, "\n")
}

func expandTabs(s string) string {
	if !strings.Contains(s, "\t") {
		return s
	}
	var b strings.Builder
	col := 0
	for _, r := range s {
		switch r {
		case '\t':
			n := 8 - col%8
			b.WriteString(strings.Repeat(" ", n))
			col += n
		case '\n', '\r':
			b.WriteRune(r)
			col = 0
		default:
			b.WriteRune(r)
			col++
		}
	}
	return b.String()
}
