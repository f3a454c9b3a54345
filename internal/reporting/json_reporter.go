// internal/reporting/json_reporter.go
package reporting

import (
	"fmt"
	"io"
	"sync"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/hindsight/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// JSONReporter writes each result as an indented JSON document.
type JSONReporter struct {
	writer io.WriteCloser
	mu     sync.Mutex
}

// NewJSONReporter creates a JSON reporter that takes ownership of w.
func NewJSONReporter(w io.WriteCloser) *JSONReporter {
	return &JSONReporter{writer: w}
}

// jsonResult adds the elapsed time in seconds next to the raw duration.
type jsonResult struct {
	*schemas.AnalysisResult
	ElapsedSeconds float64 `json:"analysis_time_seconds"`
}

// Write encodes result followed by a newline.
func (r *JSONReporter) Write(result *schemas.AnalysisResult) error {
	if result == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	out, err := json.MarshalIndent(jsonResult{AnalysisResult: result, ElapsedSeconds: result.Elapsed.Seconds()}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal analysis result: %w", err)
	}
	out = append(out, '\n')
	if _, err := r.writer.Write(out); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// Close closes the underlying writer.
func (r *JSONReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writer.Close()
}
