// -- internal/reporting/reporter.go --
package reporting

import (
	"fmt"
	"io"
	"os"

	"github.com/xkilldash9x/hindsight/api/schemas"
)

// Supported output formats.
const (
	FormatTerminal = "terminal"
	FormatJSON     = "json"
)

// Reporter defines the interface for writing analysis results to an output.
type Reporter interface {
	// Write renders a single analysis result.
	Write(result *schemas.AnalysisResult) error
	// Close finalizes the report and closes any underlying resources (e.g., file handles).
	Close() error
}

// Options tunes rendering.
type Options struct {
	// Color enables ANSI styling in the terminal format.
	Color bool
	// Verbose adds repository and intent details to the terminal format.
	Verbose bool
}

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error {
	return nil
}

// New creates a new reporter based on the specified format and output path.
// An empty path or "stdout" writes to standard output.
func New(format, outputPath string, opts Options) (Reporter, error) {
	if format != FormatTerminal && format != FormatJSON {
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}

	var writer io.WriteCloser
	if outputPath == "" || outputPath == "stdout" {
		// Wrap Stdout so Close() is a no-op.
		writer = &nopWriteCloser{os.Stdout}
	} else {
		f, err := os.Create(outputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file %s: %w", outputPath, err)
		}
		writer = f
		// Files never receive escape codes.
		opts.Color = false
	}
	return NewForWriter(format, writer, opts)
}

// NewForWriter creates a reporter that takes ownership of w.
func NewForWriter(format string, w io.WriteCloser, opts Options) (Reporter, error) {
	switch format {
	case FormatTerminal:
		return NewTerminalReporter(w, opts), nil
	case FormatJSON:
		return NewJSONReporter(w), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// Nop wraps w so that closing the reporter leaves w open.
func Nop(w io.Writer) io.WriteCloser {
	return &nopWriteCloser{w}
}
