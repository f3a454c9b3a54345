// internal/coroner/parser.go
package coroner

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/xkilldash9x/hindsight/api/schemas"
)

// TracebackHeader opens every multi-frame Python traceback.
const TracebackHeader = "Traceback (most recent call last):"

// Regex definitions for parsing Python traceback output.
var (
	// Matches a frame line: `  File "<path>", line <N>, in <function>`.
	frameRegex = regexp.MustCompile(`^\s*File "(.+?)", line (\d+), in (.+)`)
	// Matches bare source file tokens in unstructured text.
	fileRefRegex = regexp.MustCompile(`["']?([/\w.-]+\.py)["']?`)
)

// Parser turns raw error text into a structured failure record.
type Parser struct{}

// NewParser creates a new trace parser.
func NewParser() *Parser {
	return &Parser{}
}

// ParseFile reads a traceback from disk and parses it.
func (p *Parser) ParseFile(path string) (schemas.FailureRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return schemas.FailureRecord{}, fmt.Errorf("failed to read traceback file: %w", err)
	}
	return p.Parse(string(data)), nil
}

// Parse interprets raw failure text. It never fails: text it cannot
// structure still yields a record with the UnknownError category.
func (p *Parser) Parse(rawText string) schemas.FailureRecord {
	lines := splitLines(rawText)

	start := -1
	for i, line := range lines {
		if strings.HasPrefix(line, TracebackHeader) {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return p.parseUnstructured(rawText, lines)
	}

	record := schemas.FailureRecord{
		Frames:          []schemas.Frame{},
		ReferencedFiles: []string{},
		LineNumbers:     []int{},
		RawText:         rawText,
	}
	seen := make(map[string]struct{})

	var found errorLine
	matched := false
	for i := start; i < len(lines); i++ {
		if m := frameRegex.FindStringSubmatch(lines[i]); m != nil {
			lineNumber, _ := strconv.Atoi(m[2])
			frame := schemas.Frame{
				FilePath:     m[1],
				LineNumber:   lineNumber,
				FunctionName: m[3],
			}
			if i+1 < len(lines) && !frameRegex.MatchString(lines[i+1]) {
				frame.CodeContext = strings.TrimSpace(lines[i+1])
				i++
			}

			record.Frames = append(record.Frames, frame)
			record.LineNumbers = append(record.LineNumbers, lineNumber)
			if _, dup := seen[frame.FilePath]; !dup {
				seen[frame.FilePath] = struct{}{}
				record.ReferencedFiles = append(record.ReferencedFiles, frame.FilePath)
			}
			continue
		}

		if el, ok := matchErrorLine(lines[i]); ok {
			found, matched = el, true
			break
		}
	}

	// A frame without source context swallows the following line, so the
	// final line gets one more chance.
	if !matched && len(lines) > 0 {
		found, matched = matchErrorLine(lines[len(lines)-1])
	}

	record.Category, record.Message = finalize(found, matched, rawText)
	return record
}

// parseUnstructured handles input without a traceback header: a bare error
// line or free text mentioning source files.
func (p *Parser) parseUnstructured(rawText string, lines []string) schemas.FailureRecord {
	var found errorLine
	matched := false
	for _, line := range lines {
		if el, ok := matchErrorLine(line); ok {
			found, matched = el, true
			break
		}
	}

	record := schemas.FailureRecord{
		Frames:          []schemas.Frame{},
		ReferencedFiles: []string{},
		LineNumbers:     []int{},
		RawText:         rawText,
	}
	record.Category, record.Message = finalize(found, matched, rawText)

	seen := make(map[string]struct{})
	for _, m := range fileRefRegex.FindAllStringSubmatch(rawText, -1) {
		if _, dup := seen[m[1]]; dup {
			continue
		}
		seen[m[1]] = struct{}{}
		record.ReferencedFiles = append(record.ReferencedFiles, m[1])
	}
	return record
}

// finalize applies the sentinel category and the raw-text message fallback.
func finalize(found errorLine, matched bool, rawText string) (string, string) {
	category := found.category
	message := found.message
	if !matched || category == "" {
		category = schemas.UnknownCategory
	}
	if message == "" {
		message = strings.TrimSpace(rawText)
	}
	return category, message
}

// splitLines splits trimmed text into lines, treating CRLF like LF.
func splitLines(text string) []string {
	trimmed := strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "\n")
}
