// internal/attribution/intents.go
package attribution

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/mattn/go-zglob"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/hindsight/api/schemas"
)

// CombinedIntentPath labels an intent bundle merged from several files.
const CombinedIntentPath = "(combined)"

// intentOutcome is the result slot owned by one extraction task.
type intentOutcome struct {
	bundle schemas.IntentBundle
	err    error
}

// extractIntents gathers intent for every file and merges the bundles in the
// order the files were given. At most workers extractions run at once. The
// returned limitations describe files that could not be processed.
func (a *Analyzer) extractIntents(ctx context.Context, files []string) (schemas.IntentBundle, []string) {
	combined := schemas.IntentBundle{
		FilePath:          CombinedIntentPath,
		DeclaredIntents:   []schemas.DeclaredIntent{},
		TestIntents:       []schemas.TestIntent{},
		AnnotationIntents: []schemas.AnnotationIntent{},
		PatternIntents:    []schemas.PatternIntent{},
	}

	targets := make([]string, 0, len(files))
	for _, f := range files {
		if a.isExcluded(f) {
			a.logger.Debug("Skipping excluded file.", zap.String("file", f))
			continue
		}
		targets = append(targets, f)
	}

	outcomes := make([]intentOutcome, len(targets))
	var g errgroup.Group
	g.SetLimit(a.workers)
	for i, f := range targets {
		i, f := i, f
		g.Go(func() error {
			outcomes[i] = a.extractOne(ctx, f)
			return nil
		})
	}
	// Tasks never return an error; failures live in their slots.
	_ = g.Wait()

	var limitations []string
	for i, out := range outcomes {
		if out.err != nil {
			a.logger.Debug("Intent extraction failed.", zap.String("file", targets[i]), zap.Error(out.err))
			limitations = append(limitations, fmt.Sprintf("Could not extract intent from %s: %v", targets[i], out.err))
			continue
		}
		combined.Merge(out.bundle)
	}
	return combined, limitations
}

func (a *Analyzer) extractOne(ctx context.Context, file string) (out intentOutcome) {
	defer func() {
		if r := recover(); r != nil {
			out = intentOutcome{err: fmt.Errorf("panic during extraction: %v", r)}
		}
	}()

	if err := ctx.Err(); err != nil {
		return intentOutcome{err: err}
	}
	return intentOutcome{bundle: a.intents.Extract(ctx, file)}
}

// isExcluded reports whether file matches one of the excluded patterns. A
// pattern is tried against the whole path, the base name and every trailing
// run of path segments, so "__pycache__/*" excludes "pkg/__pycache__/m.pyc".
func (a *Analyzer) isExcluded(file string) bool {
	if len(a.excluded) == 0 {
		return false
	}

	slashed := filepath.ToSlash(file)
	candidates := []string{slashed, path.Base(slashed)}
	segments := strings.Split(strings.TrimPrefix(slashed, "/"), "/")
	for i := 1; i < len(segments)-1; i++ {
		candidates = append(candidates, strings.Join(segments[i:], "/"))
	}

	for _, pattern := range a.excluded {
		for _, candidate := range candidates {
			matched, err := zglob.Match(pattern, candidate)
			if err != nil {
				a.logger.Debug("Ignoring malformed exclusion pattern.", zap.String("pattern", pattern), zap.Error(err))
				break
			}
			if matched {
				return true
			}
		}
	}
	return false
}
