// internal/intent/extractor.go
package intent

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/xkilldash9x/hindsight/api/schemas"
)

// DefaultMaxFileSize bounds how much source is read per file.
const DefaultMaxFileSize int64 = 1 << 20

// Extractor mines Python source files for what their authors meant the code
// to do: documentation, comments, tests and recognizable idioms.
type Extractor struct {
	fs          afero.Fs
	maxFileSize int64
	logger      *zap.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithMaxFileSize skips files larger than n bytes. Non-positive values keep
// the default.
func WithMaxFileSize(n int64) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxFileSize = n
		}
	}
}

// NewExtractor creates an extractor reading through fs. A nil fs reads the
// local disk.
func NewExtractor(fs afero.Fs, logger *zap.Logger, opts ...Option) *Extractor {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	e := &Extractor{
		fs:          fs,
		maxFileSize: DefaultMaxFileSize,
		logger:      logger.Named("intent"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract gathers every intent signal for one source file. It never fails:
// a file that is missing, unreadable or too large yields an empty bundle,
// and a file that does not parse still yields its comments.
func (e *Extractor) Extract(ctx context.Context, filePath string) schemas.IntentBundle {
	bundle := emptyBundle(filePath)

	source, ok := e.readSource(filePath)
	if !ok {
		return bundle
	}

	tree, err := parsePython(ctx, source)
	if err != nil {
		e.logger.Debug("Could not parse source file.", zap.String("file", filePath), zap.Error(err))
	} else {
		bundle.DeclaredIntents = declaredIntents(tree)
		bundle.PatternIntents = patternIntents(tree)
		tree.Close()
	}

	bundle.AnnotationIntents = annotationIntents(string(source))

	for _, candidate := range testFileCandidates(filePath) {
		if isFile(e.fs, candidate) {
			bundle.TestIntents = e.ExtractTests(ctx, candidate)
			break
		}
	}
	return bundle
}

// ExtractTests reads the expectations declared by the test functions in
// testPath. Unreadable or unparsable files yield no tests.
func (e *Extractor) ExtractTests(ctx context.Context, testPath string) []schemas.TestIntent {
	source, ok := e.readSource(testPath)
	if !ok {
		return []schemas.TestIntent{}
	}
	tree, err := parsePython(ctx, source)
	if err != nil {
		e.logger.Debug("Could not parse test file.", zap.String("file", testPath), zap.Error(err))
		return []schemas.TestIntent{}
	}
	defer tree.Close()
	return testIntents(tree)
}

// readSource loads a file as text. Invalid UTF-8 is replaced rather than
// rejected.
func (e *Extractor) readSource(path string) ([]byte, bool) {
	info, err := e.fs.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			e.logger.Debug("Source file not found.", zap.String("file", path))
		} else {
			e.logger.Debug("Could not stat source file.", zap.String("file", path), zap.Error(err))
		}
		return nil, false
	}
	if info.IsDir() {
		e.logger.Debug("Source path is a directory.", zap.String("file", path))
		return nil, false
	}
	if info.Size() > e.maxFileSize {
		e.logger.Debug("Skipping oversized source file.",
			zap.String("file", path),
			zap.Int64("size", info.Size()),
			zap.Int64("max_size", e.maxFileSize),
		)
		return nil, false
	}

	data, err := afero.ReadFile(e.fs, path)
	if err != nil {
		e.logger.Debug("Could not read source file.", zap.String("file", path), zap.Error(err))
		return nil, false
	}
	return []byte(strings.ToValidUTF8(string(data), "\uFFFD")), true
}

func isFile(fs afero.Fs, path string) bool {
	info, err := fs.Stat(filepath.Clean(path))
	return err == nil && !info.IsDir()
}

func emptyBundle(filePath string) schemas.IntentBundle {
	return schemas.IntentBundle{
		FilePath:          filePath,
		DeclaredIntents:   []schemas.DeclaredIntent{},
		TestIntents:       []schemas.TestIntent{},
		AnnotationIntents: []schemas.AnnotationIntent{},
		PatternIntents:    []schemas.PatternIntent{},
	}
}
