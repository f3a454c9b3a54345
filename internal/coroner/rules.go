// internal/coroner/rules.go
package coroner

import (
	"regexp"
	"strings"
)

// errorLineRule is one grammar for the terminating "<Category>: <message>" line.
type errorLineRule struct {
	name    string
	pattern *regexp.Regexp
}

// errorLineRules are evaluated in order; the first rule that matches wins.
var errorLineRules = []errorLineRule{
	{
		name:    "strict",
		pattern: regexp.MustCompile(`^(\w+(?:\.\w+)*(?:Error|Exception|Warning))\s*:\s*(.*)`),
	},
	{
		name:    "loose",
		pattern: regexp.MustCompile(`^(\w+(?:\.\w+)*)\s*:\s*(.*)`),
	},
}

// errorLine is the result of evaluating the rule list against one line.
type errorLine struct {
	category string
	message  string
	rule     string
}

// matchErrorLine evaluates the rule list against the trimmed line.
func matchErrorLine(line string) (errorLine, bool) {
	trimmed := strings.TrimSpace(line)
	for _, rule := range errorLineRules {
		if m := rule.pattern.FindStringSubmatch(trimmed); m != nil {
			return errorLine{category: m[1], message: m[2], rule: rule.name}, true
		}
	}
	return errorLine{}, false
}

// categoryClasses maps recognized Python exception names to broad classes.
var categoryClasses = map[string]string{
	"TypeError":           "type_error",
	"AttributeError":      "attribute_error",
	"NameError":           "name_error",
	"ValueError":          "value_error",
	"KeyError":            "key_error",
	"IndexError":          "index_error",
	"ImportError":         "import_error",
	"ModuleNotFoundError": "import_error",
	"FileNotFoundError":   "file_error",
	"IOError":             "io_error",
	"OSError":             "os_error",
	"RuntimeError":        "runtime_error",
	"ZeroDivisionError":   "math_error",
	"StopIteration":       "iteration_error",
	"RecursionError":      "recursion_error",
	"MemoryError":         "resource_error",
	"OverflowError":       "math_error",
	"SyntaxError":         "syntax_error",
	"IndentationError":    "syntax_error",
	"AssertionError":      "assertion_error",
	"NotImplementedError": "not_implemented",
	"PermissionError":     "permission_error",
	"TimeoutError":        "timeout_error",
	"ConnectionError":     "network_error",
}

// UnknownClass is returned for categories outside the known set.
const UnknownClass = "unknown_error"

// Classify maps an error category token to its broad class.
func Classify(category string) string {
	if class, ok := categoryClasses[category]; ok {
		return class
	}
	return UnknownClass
}
