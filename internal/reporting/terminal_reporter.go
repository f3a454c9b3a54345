// internal/reporting/terminal_reporter.go
package reporting

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/xkilldash9x/hindsight/api/schemas"
)

const (
	ruleWidth         = 60
	maxCommitsPrinted = 5
)

// palette holds one formatter per role so colors can be disabled per
// reporter instead of globally.
type palette struct {
	rule    *color.Color
	errorH  *color.Color
	dim     *color.Color
	summary *color.Color
	cause   *color.Color
	intent  *color.Color
	commits *color.Color
	fixes   *color.Color
	bullet  *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		rule:    color.New(color.Bold, color.FgHiCyan),
		errorH:  color.New(color.Bold, color.FgHiRed),
		dim:     color.New(color.Faint),
		summary: color.New(color.Bold, color.FgHiBlue),
		cause:   color.New(color.Bold, color.FgHiYellow),
		intent:  color.New(color.Bold, color.FgHiMagenta),
		commits: color.New(color.Bold, color.FgHiCyan),
		fixes:   color.New(color.Bold, color.FgHiGreen),
		bullet:  color.New(color.FgHiGreen),
	}
	for _, c := range []*color.Color{p.rule, p.errorH, p.dim, p.summary, p.cause, p.intent, p.commits, p.fixes, p.bullet} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// TerminalReporter renders results as a sectioned, human readable report.
type TerminalReporter struct {
	writer  io.WriteCloser
	colors  palette
	verbose bool
	now     func() time.Time
	mu      sync.Mutex
}

// NewTerminalReporter creates a terminal reporter that takes ownership of w.
func NewTerminalReporter(w io.WriteCloser, opts Options) *TerminalReporter {
	return &TerminalReporter{
		writer:  w,
		colors:  newPalette(opts.Color),
		verbose: opts.Verbose,
		now:     time.Now,
	}
}

// Write renders result.
func (r *TerminalReporter) Write(result *schemas.AnalysisResult) error {
	if result == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := io.WriteString(r.writer, r.Format(result)); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// Close closes the underlying writer.
func (r *TerminalReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writer.Close()
}

// Format renders result to a string.
func (r *TerminalReporter) Format(result *schemas.AnalysisResult) string {
	c := r.colors
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format+"\n", args...)
	}
	rule := c.rule.Sprint(strings.Repeat("=", ruleWidth))

	line("")
	line("%s", rule)
	line("%s", c.rule.Sprint("  Hindsight Analysis"))
	line("%s", rule)
	line("")

	f := result.Failure
	line("%s %s: %s", c.errorH.Sprint("Error:"), f.Category, f.Message)
	if len(f.ReferencedFiles) > 0 {
		line("%s", c.dim.Sprint("Files: "+strings.Join(f.ReferencedFiles, ", ")))
	}
	line("")

	if r.verbose && result.Repository != nil {
		repo := result.Repository
		line("%s", c.commits.Sprint("Repository"))
		line("  Path: %s", repo.RepoPath)
		line("  Commits: %s", humanize.Comma(int64(repo.TotalCommits)))
		line("  Language: %s", repo.PrimaryLanguage)
		if repo.RecentActivity != "" {
			line("  Activity: %s", repo.RecentActivity)
		}
		line("  Intent signals: %d docstrings, %d tests, %d comments, %d patterns",
			len(result.Intent.DeclaredIntents), len(result.Intent.TestIntents),
			len(result.Intent.AnnotationIntents), len(result.Intent.PatternIntents))
		line("")
	}

	if exp := result.Explanation; exp != nil {
		if exp.Summary != "" {
			line("%s", c.summary.Sprint("Summary"))
			line("  %s", exp.Summary)
			line("")
		}
		if exp.RootCause != "" {
			line("%s", c.cause.Sprint("Root Cause"))
			indented(&b, exp.RootCause, "  ")
			line("")
		}
		if exp.IntentVsActual != "" {
			line("%s", c.intent.Sprint("Intent vs Reality"))
			indented(&b, exp.IntentVsActual, "  ")
			line("")
		}
		if len(exp.CommitReferences) > 0 {
			line("%s", c.commits.Sprint("Relevant Commits"))
			for i, ref := range exp.CommitReferences {
				if i == maxCommitsPrinted {
					break
				}
				line("  %s %s", c.dim.Sprint("-"), ref)
			}
			line("")
		}
		if len(exp.FixSuggestions) > 0 {
			line("%s", c.fixes.Sprint("Suggested Fixes"))
			for i, fix := range exp.FixSuggestions {
				line("  %s %s", c.bullet.Sprintf("%d.", i+1), fix.Description)
				if fix.CodeExample != "" {
					line("     %s", c.dim.Sprint("Code:"))
					indented(&b, fix.CodeExample, "       ")
				}
				if fix.Rationale != "" {
					line("     %s", c.dim.Sprint("Why: "+fix.Rationale))
				}
				line("")
			}
		}
		if len(exp.EducationalNotes) > 0 {
			line("%s", c.summary.Sprint("Notes"))
			for _, note := range exp.EducationalNotes {
				line("  %s %s", c.dim.Sprint("-"), note)
			}
			line("")
		}
	}

	if rc := result.RootCause; rc != nil {
		rev := rc.Revision
		line("%s", c.cause.Sprint("Most Likely Cause"))
		line("  Commit %s by %s: %s", rev.ID, rev.Author, rev.Message)
		if !rev.Timestamp.IsZero() {
			line("  %s", c.dim.Sprint("Committed "+humanize.RelTime(rev.Timestamp, r.now(), "ago", "from now")))
		}
		line("  Confidence: %.0f%%", rc.Confidence*100)
		line("")
	}

	if len(result.Limitations) > 0 {
		line("%s", c.dim.Sprint("Limitations:"))
		for _, lim := range result.Limitations {
			line("  %s", c.dim.Sprint("- "+lim))
		}
		line("")
	}

	line("%s", c.dim.Sprintf("Analysis completed in %.1fs", result.Elapsed.Seconds()))
	line("%s", rule)
	line("")
	return b.String()
}

func indented(b *strings.Builder, text, prefix string) {
	for _, l := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		b.WriteString(prefix)
		b.WriteString(l)
		b.WriteString("\n")
	}
}
