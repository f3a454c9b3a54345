// internal/llmutil/parser.go
package llmutil

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	// Regex definitions use \x60 (hex representation) for backticks because Go raw strings cannot contain backticks.

	// jsonArrayRegex extracts a JSON array if the response is wrapped in markdown.
	jsonArrayRegex = regexp.MustCompile("(?s)\x60\x60\x60(?:json)?\\s*(\\[.*\\])\\s*\x60\x60\x60")
	// jsonObjectRegex extracts a JSON object if the response is wrapped in markdown.
	jsonObjectRegex = regexp.MustCompile("(?s)\x60\x60\x60(?:json)?\\s*({.*})\\s*\x60\x60\x60")

	// codeBlockRegex extracts content wrapped in markdown, supporting various language tags (python, diff, etc.).
	codeBlockRegex = regexp.MustCompile("(?s)\x60\x60\x60[a-zA-Z]*\\s*(.*?)\\s*\x60\x60\x60")
)

// ParseJSONResponse attempts to parse an LLM response string into a target Go type using generics.
// It handles responses wrapped in markdown code blocks or embedded in conversational text.
func ParseJSONResponse[T any](response string) (*T, error) {
	response = strings.TrimSpace(response)
	candidate := response

	isObject := strings.Contains(response, "{")
	isArray := strings.Contains(response, "[")

	if strings.HasPrefix(response, "```") {
		var matches []string
		if isArray {
			matches = jsonArrayRegex.FindStringSubmatch(response)
		}
		if len(matches) <= 1 && isObject {
			matches = jsonObjectRegex.FindStringSubmatch(response)
		}
		if len(matches) > 1 {
			candidate = matches[1]
		}
	} else if (isObject || isArray) && !strings.HasPrefix(response, "{") && !strings.HasPrefix(response, "[") {
		if start, end, ok := enclosing(response, "[", "]"); ok && isArray {
			candidate = response[start:end]
		} else if start, end, ok := enclosing(response, "{", "}"); ok {
			candidate = response[start:end]
		}
	}

	var result T
	if err := json.Unmarshal([]byte(candidate), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal LLM JSON response: %w. Extracted JSON (truncated): %s", err, Truncate(candidate, 500))
	}
	return &result, nil
}

func enclosing(s, open, close string) (int, int, bool) {
	first := strings.Index(s, open)
	last := strings.LastIndex(s, close)
	if first == -1 || last <= first {
		return 0, 0, false
	}
	return first, last + 1, true
}

// CleanCodeOutput removes a surrounding markdown fence (like ```python) from a code string.
func CleanCodeOutput(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		if matches := codeBlockRegex.FindStringSubmatch(content); len(matches) > 1 {
			return strings.TrimSpace(matches[1])
		}
	}
	return content
}

// StripFenceLines drops markdown fence lines anywhere in a block, keeping
// the lines between them.
func StripFenceLines(content string) string {
	lines := strings.Split(content, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// ParseSections splits a response into labelled sections. A section starts
// at a line whose trimmed form begins with "<LABEL>:"; the text after the
// colon and the following lines up to the next label form its body. Lines
// before the first label are ignored. Labels that never appear map to "".
func ParseSections(response string, labels ...string) map[string]string {
	sections := make(map[string]string, len(labels))
	for _, label := range labels {
		sections[label] = ""
	}

	var (
		current string
		buf     []string
	)
	flush := func() {
		if current != "" {
			sections[current] = strings.TrimSpace(strings.Join(buf, "\n"))
		}
	}

	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(line)
		label, ok := matchLabel(trimmed, labels)
		if !ok {
			if current != "" {
				buf = append(buf, line)
			}
			continue
		}
		flush()
		current = label
		buf = buf[:0]
		if rest := strings.TrimSpace(trimmed[len(label)+1:]); rest != "" {
			buf = append(buf, rest)
		}
	}
	flush()
	return sections
}

func matchLabel(line string, labels []string) (string, bool) {
	for _, label := range labels {
		if strings.HasPrefix(line, label+":") {
			return label, true
		}
	}
	return "", false
}

// BulletItems returns the non-empty lines of a block with any leading
// dashes and spaces removed.
func BulletItems(block string) []string {
	var items []string
	for _, line := range strings.Split(block, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || trimmed == "-" {
			continue
		}
		if item := strings.TrimSpace(strings.TrimLeft(trimmed, "- ")); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// Truncate shortens s to at most maxLen bytes without splitting a rune and
// marks the cut with "...".
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 0 {
		return ""
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
