package schemas

// AnnotationKind classifies a source comment by its leading word.
type AnnotationKind string

const (
	AnnotationInline     AnnotationKind = "inline"
	AnnotationTodo       AnnotationKind = "todo"
	AnnotationFixme      AnnotationKind = "fixme"
	AnnotationNote       AnnotationKind = "note"
	AnnotationWorkaround AnnotationKind = "workaround"
)

// PatternKind names a recognizable code idiom.
type PatternKind string

const (
	PatternGuardClause   PatternKind = "guard_clause"
	PatternErrorHandling PatternKind = "error_handling"
	PatternAssertion     PatternKind = "assertion"
	PatternTypeCheck     PatternKind = "type_check"
	PatternRetryLogic    PatternKind = "retry_logic"
)

// DeclaredIntent is what a function or class says about itself in its
// documentation block.
type DeclaredIntent struct {
	FunctionName      string            `json:"function_name"`
	IntendedBehavior  string            `json:"intended_behavior"`
	Parameters        map[string]string `json:"parameters,omitempty"`
	ReturnDescription string            `json:"return_description,omitempty"`
	Examples          []string          `json:"examples,omitempty"`
}

// TestIntent is the expectation expressed by a single test function.
type TestIntent struct {
	TestName         string `json:"test_name"`
	ExpectedBehavior string `json:"expected_behavior"`
	TestedFunction   string `json:"tested_function,omitempty"`
}

// AnnotationIntent is a full-line source comment.
type AnnotationIntent struct {
	LineNumber int            `json:"line_number"`
	Text       string         `json:"text"`
	Kind       AnnotationKind `json:"intent_type"`
}

// PatternIntent is developer intent inferred from a code idiom.
type PatternIntent struct {
	Kind        PatternKind `json:"pattern_type"`
	Description string      `json:"description"`
	Location    string      `json:"location"`
}

// IntentBundle aggregates the intent signals of one file, or of several
// files once merged.
type IntentBundle struct {
	FilePath          string             `json:"file_path"`
	DeclaredIntents   []DeclaredIntent   `json:"docstring_intents"`
	TestIntents       []TestIntent       `json:"test_intents"`
	AnnotationIntents []AnnotationIntent `json:"comment_intents"`
	PatternIntents    []PatternIntent    `json:"pattern_intents"`
}

// Merge appends the intents of other onto b.
func (b *IntentBundle) Merge(other IntentBundle) {
	b.DeclaredIntents = append(b.DeclaredIntents, other.DeclaredIntents...)
	b.TestIntents = append(b.TestIntents, other.TestIntents...)
	b.AnnotationIntents = append(b.AnnotationIntents, other.AnnotationIntents...)
	b.PatternIntents = append(b.PatternIntents, other.PatternIntents...)
}

// IsEmpty reports whether the bundle carries no signal at all.
func (b IntentBundle) IsEmpty() bool {
	return len(b.DeclaredIntents) == 0 &&
		len(b.TestIntents) == 0 &&
		len(b.AnnotationIntents) == 0 &&
		len(b.PatternIntents) == 0
}
