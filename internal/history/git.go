// internal/history/git.go
package history

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"go.uber.org/zap"
)

// GitProvider reads history from a local git repository using go-git.
type GitProvider struct {
	path   string
	repo   *git.Repository
	logger *zap.Logger
}

// OpenGit opens the repository rooted at path. Parent directories are not
// searched, and bare repositories are rejected.
func OpenGit(path string, logger *zap.Logger) (*GitProvider, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotRepository, path, err)
	}
	if _, err := repo.Worktree(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotRepository, path, err)
	}
	return NewGitProvider(repo, path, logger), nil
}

// NewGitProvider wraps an already opened repository.
func NewGitProvider(repo *git.Repository, path string, logger *zap.Logger) *GitProvider {
	return &GitProvider{
		path:   path,
		repo:   repo,
		logger: logger.Named("git-provider"),
	}
}

// Path returns the repository location the provider was opened with.
func (g *GitProvider) Path() string {
	return g.path
}

// Validate checks that the repository is usable. An empty repository (no
// HEAD yet) is valid; it simply has no history.
func (g *GitProvider) Validate(_ context.Context) error {
	if g.repo == nil {
		return ErrNotRepository
	}
	if _, err := g.repo.Worktree(); err != nil {
		return fmt.Errorf("%w: %v", ErrNotRepository, err)
	}
	return nil
}

// Recent walks history from HEAD in committer-time order.
func (g *GitProvider) Recent(ctx context.Context, limit int) ([]Commit, error) {
	if limit <= 0 {
		return []Commit{}, nil
	}

	iter, err := g.log()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return []Commit{}, nil
		}
		return nil, err
	}
	defer iter.Close()

	commits := make([]Commit, 0, limit)
	err = iter.ForEach(func(c *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		commits = append(commits, Commit{
			Hash:      c.Hash.String(),
			Author:    c.Author.Name,
			Timestamp: c.Committer.When,
			Message:   strings.TrimSpace(c.Message),
		})
		if len(commits) >= limit {
			return storer.ErrStop
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk commit history: %w", err)
	}
	return commits, nil
}

// Changes lists the paths touched by the commit and renders its diff from a
// single tree comparison. Deleted files are reported under their old path. A
// root commit reports every file it adds.
func (g *GitProvider) Changes(_ context.Context, hash string) (ChangeSet, error) {
	changes, err := g.changes(hash)
	if err != nil {
		return ChangeSet{}, err
	}

	set := ChangeSet{Files: make([]string, 0, len(changes))}
	for _, ch := range changes {
		switch {
		case ch.To.Name != "":
			set.Files = append(set.Files, ch.To.Name)
		case ch.From.Name != "":
			set.Files = append(set.Files, ch.From.Name)
		}
	}

	patch, err := changes.Patch()
	if err != nil {
		return set, fmt.Errorf("failed to build patch for %s: %w", shortHash(hash), err)
	}
	set.Diff = patch.String()
	return set, nil
}

// TotalCount counts every commit reachable from HEAD.
func (g *GitProvider) TotalCount(ctx context.Context) (int, error) {
	iter, err := g.log()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return 0, nil
		}
		return 0, err
	}
	defer iter.Close()

	count := 0
	err = iter.ForEach(func(*object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		count++
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count commits: %w", err)
	}
	return count, nil
}

// TrackedFiles lists the files in the HEAD tree.
func (g *GitProvider) TrackedFiles(_ context.Context) ([]TrackedFile, error) {
	head, err := g.repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return []TrackedFile{}, nil
		}
		return nil, fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	commit, err := g.repo.CommitObject(head.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to load HEAD commit: %w", err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to load HEAD tree: %w", err)
	}

	var files []TrackedFile
	err = tree.Files().ForEach(func(f *object.File) error {
		files = append(files, TrackedFile{Path: f.Name, Size: f.Size})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list tracked files: %w", err)
	}
	return files, nil
}

func (g *GitProvider) log() (object.CommitIter, error) {
	head, err := g.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	iter, err := g.repo.Log(&git.LogOptions{
		From:  head.Hash(),
		Order: git.LogOrderCommitterTime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open commit log: %w", err)
	}
	return iter, nil
}

// changes diffs a commit's tree against its first parent, or against the
// empty tree for a root commit. Abbreviated hashes are accepted.
func (g *GitProvider) changes(hash string) (object.Changes, error) {
	resolved, err := g.repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve commit %s: %w", shortHash(hash), err)
	}
	commit, err := g.repo.CommitObject(*resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to load commit %s: %w", shortHash(hash), err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to load tree of %s: %w", shortHash(hash), err)
	}

	var parentTree *object.Tree
	if commit.NumParents() > 0 {
		parent, err := commit.Parent(0)
		if err != nil {
			return nil, fmt.Errorf("failed to load parent of %s: %w", shortHash(hash), err)
		}
		if parentTree, err = parent.Tree(); err != nil {
			return nil, fmt.Errorf("failed to load parent tree of %s: %w", shortHash(hash), err)
		}
	}

	changes, err := object.DiffTree(parentTree, tree)
	if err != nil {
		return nil, fmt.Errorf("failed to diff %s: %w", shortHash(hash), err)
	}
	return changes, nil
}

func shortHash(hash string) string {
	return Commit{Hash: hash}.ShortID()
}
