package schemas

// UnknownCategory is the category assigned when no error line is recognized.
const UnknownCategory = "UnknownError"

// Frame is one call-site entry in a failure's call chain.
type Frame struct {
	FilePath     string `json:"file_path"`
	LineNumber   int    `json:"line_number"`
	FunctionName string `json:"function_name"`
	// CodeContext is the source line printed under the frame, if any.
	CodeContext string `json:"code_context,omitempty"`
}

// Location pinpoints where a failure surfaced.
type Location struct {
	FilePath     string `json:"file_path"`
	LineNumber   int    `json:"line_number"`
	FunctionName string `json:"function_name"`
}

// FailureRecord is the structured decomposition of a raw error report.
type FailureRecord struct {
	Category string `json:"error_type"`
	Message  string `json:"message"`
	// Frames are ordered innermost-last; the failure site is the final frame.
	Frames []Frame `json:"stack_trace"`
	// ReferencedFiles holds each path once, in first-seen order.
	ReferencedFiles []string `json:"affected_files"`
	// LineNumbers pairs positionally with Frames.
	LineNumbers []int  `json:"line_numbers"`
	RawText     string `json:"raw_traceback"`
}

// Location returns the deepest frame as a failure location. The boolean is
// false when the record carries no frames.
func (f FailureRecord) Location() (Location, bool) {
	if len(f.Frames) == 0 {
		return Location{}, false
	}
	top := f.Frames[len(f.Frames)-1]
	return Location{
		FilePath:     top.FilePath,
		LineNumber:   top.LineNumber,
		FunctionName: top.FunctionName,
	}, true
}
