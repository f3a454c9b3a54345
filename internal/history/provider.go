// internal/history/provider.go
package history

import (
	"context"
	"errors"
	"time"
)

// ErrNotRepository is returned when a path does not hold a usable, non-bare
// git repository.
var ErrNotRepository = errors.New("not a valid git repository")

// Commit is the raw metadata of a single revision as read from history.
type Commit struct {
	Hash      string
	Author    string
	Timestamp time.Time
	Message   string
}

// ShortID returns the abbreviated identifier used in reports.
func (c Commit) ShortID() string {
	if len(c.Hash) <= 8 {
		return c.Hash
	}
	return c.Hash[:8]
}

// ChangeSet is what a commit changed relative to its first parent.
type ChangeSet struct {
	// Files lists the touched paths. Deleted files appear under their old
	// path.
	Files []string
	// Diff is the unified diff of the commit.
	Diff string
}

// TrackedFile is a file present in the tree at HEAD.
type TrackedFile struct {
	Path string
	Size int64
}

// Provider is read-only access to a revision history. Implementations must
// never mutate the underlying repository.
type Provider interface {
	// Validate reports ErrNotRepository (possibly wrapped) when the history
	// cannot be read at all.
	Validate(ctx context.Context) error
	// Recent returns up to limit commits, most recent first.
	Recent(ctx context.Context, limit int) ([]Commit, error)
	// Changes resolves a commit once and returns both its touched paths and
	// its diff. When only the diff cannot be rendered, the returned set still
	// carries Files alongside the error.
	Changes(ctx context.Context, hash string) (ChangeSet, error)
	// TotalCount returns the full depth of the history reachable from HEAD.
	TotalCount(ctx context.Context) (int, error)
	// TrackedFiles lists the files at HEAD.
	TrackedFiles(ctx context.Context) ([]TrackedFile, error)
}
