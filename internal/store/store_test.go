package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/hindsight/api/schemas"
)

// -- Test Setup Helpers --

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCache(t *testing.T, opts Options, logger *zap.Logger) (*Cache, *fakeClock) {
	t.Helper()
	if opts.Path == "" {
		opts.Path = filepath.Join(t.TempDir(), "cache", "hindsight.db")
	}
	if logger == nil {
		logger = zaptest.NewLogger(t)
	}
	c, err := Open(context.Background(), opts, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	c.now = clock.Now
	return c, clock
}

type sample struct {
	Summary string   `json:"summary"`
	Commits []string `json:"commits"`
}

// -- Test Cases --

func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("should reject an empty path", func(t *testing.T) {
		t.Parallel()
		_, err := Open(context.Background(), Options{}, zap.NewNop())
		require.Error(t, err)
	})

	t.Run("should create parent directories", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "a", "b", "c.db")
		c, err := Open(context.Background(), Options{Path: path}, zap.NewNop())
		require.NoError(t, err)
		require.NoError(t, c.Close())
		assert.FileExists(t, path)
	})

	t.Run("should reopen existing entries", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "hindsight.db")
		ctx := context.Background()

		first, err := Open(ctx, Options{Path: path}, zap.NewNop())
		require.NoError(t, err)
		require.NoError(t, first.Set(ctx, schemas.NamespaceAIResponses, "k", sample{Summary: "kept"}))
		require.NoError(t, first.Close())

		second, err := Open(ctx, Options{Path: path}, zap.NewNop())
		require.NoError(t, err)
		defer second.Close()

		var got sample
		found, err := second.Get(ctx, schemas.NamespaceAIResponses, "k", &got)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "kept", got.Summary)
	})
}

func TestMakeKey(t *testing.T) {
	t.Parallel()
	key := MakeKey("abc")
	assert.Len(t, key, 32)
	assert.Equal(t, key, MakeKey("abc"))
	assert.NotEqual(t, key, MakeKey("abd"))
	// sha256("abc") prefix.
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223", key)
}

func TestGetSet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, _ := newTestCache(t, Options{TTL: time.Hour}, nil)

	want := sample{Summary: "nil user", Commits: []string{"abc12345", "def67890"}}
	require.NoError(t, c.Set(ctx, schemas.NamespaceAIResponses, "ctx-hash", want))

	var got sample
	found, err := c.Get(ctx, schemas.NamespaceAIResponses, "ctx-hash", &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, want, got)

	t.Run("namespaces are isolated", func(t *testing.T) {
		var other sample
		found, err := c.Get(ctx, schemas.NamespaceGitAnalysis, "ctx-hash", &other)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("set replaces", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, schemas.NamespaceAIResponses, "ctx-hash", sample{Summary: "second"}))
		var replaced sample
		found, err := c.Get(ctx, schemas.NamespaceAIResponses, "ctx-hash", &replaced)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "second", replaced.Summary)
	})

	t.Run("unknown namespace", func(t *testing.T) {
		err := c.Set(ctx, "bogus", "k", sample{})
		assert.ErrorIs(t, err, ErrUnknownNamespace)
		_, err = c.Get(ctx, "bogus", "k", &sample{})
		assert.ErrorIs(t, err, ErrUnknownNamespace)
	})
}

func TestGet_Expiry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, clock := newTestCache(t, Options{TTL: time.Hour}, nil)

	require.NoError(t, c.Set(ctx, schemas.NamespaceGitAnalysis, "k", sample{Summary: "fresh"}))

	clock.Advance(59 * time.Minute)
	found, err := c.Get(ctx, schemas.NamespaceGitAnalysis, "k", &sample{})
	require.NoError(t, err)
	assert.True(t, found, "entries within the ttl are served")

	clock.Advance(2 * time.Minute)
	found, err = c.Get(ctx, schemas.NamespaceGitAnalysis, "k", &sample{})
	require.NoError(t, err)
	assert.False(t, found, "expired entries are misses")

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Entries, "expired entries are deleted on read")
}

func TestGet_ZeroTTLNeverExpires(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, clock := newTestCache(t, Options{}, nil)

	require.NoError(t, c.Set(ctx, schemas.NamespaceGitAnalysis, "k", sample{Summary: "forever"}))
	clock.Advance(365 * 24 * time.Hour)

	found, err := c.Get(ctx, schemas.NamespaceGitAnalysis, "k", &sample{})
	require.NoError(t, err)
	assert.True(t, found)
}

func TestGet_CorruptEntryIsDiscarded(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	core, logs := observer.New(zap.DebugLevel)
	c, clock := newTestCache(t, Options{}, zap.New(core))

	_, err := c.db.ExecContext(ctx,
		`INSERT INTO entries (namespace, key, created_at, size, payload) VALUES (?, ?, ?, ?, ?)`,
		schemas.NamespaceAIResponses, MakeKey("bad"), clock.Now().UnixNano(), 3, []byte("not zstd"))
	require.NoError(t, err)

	found, err := c.Get(ctx, schemas.NamespaceAIResponses, "bad", &sample{})
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 1, logs.FilterMessage("Discarding unreadable cache entry.").Len())

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Entries)
}

func TestInvalidate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, _ := newTestCache(t, Options{}, nil)

	require.NoError(t, c.Set(ctx, schemas.NamespaceIntentExtraction, "models.py", sample{Summary: "x"}))
	require.NoError(t, c.Invalidate(ctx, schemas.NamespaceIntentExtraction, "models.py"))
	require.NoError(t, c.Invalidate(ctx, schemas.NamespaceIntentExtraction, "models.py"), "absent entries are not an error")

	found, err := c.Get(ctx, schemas.NamespaceIntentExtraction, "models.py", &sample{})
	require.NoError(t, err)
	assert.False(t, found)
}

func TestClear(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	seed := func(t *testing.T) *Cache {
		c, _ := newTestCache(t, Options{}, nil)
		require.NoError(t, c.Set(ctx, schemas.NamespaceGitAnalysis, "a", sample{}))
		require.NoError(t, c.Set(ctx, schemas.NamespaceGitAnalysis, "b", sample{}))
		require.NoError(t, c.Set(ctx, schemas.NamespaceAIResponses, "c", sample{}))
		return c
	}

	t.Run("single namespace", func(t *testing.T) {
		t.Parallel()
		c := seed(t)
		removed, err := c.Clear(ctx, schemas.NamespaceGitAnalysis)
		require.NoError(t, err)
		assert.Equal(t, 2, removed)

		stats, err := c.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Entries)
		assert.Equal(t, 1, stats.Namespaces[schemas.NamespaceAIResponses])
		assert.Equal(t, 0, stats.Namespaces[schemas.NamespaceGitAnalysis])
	})

	t.Run("all namespaces", func(t *testing.T) {
		t.Parallel()
		c := seed(t)
		removed, err := c.Clear(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, 3, removed)
	})

	t.Run("unknown namespace", func(t *testing.T) {
		t.Parallel()
		c := seed(t)
		_, err := c.Clear(ctx, "bogus")
		assert.ErrorIs(t, err, ErrUnknownNamespace)
	})
}

func TestCleanupExpired(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, clock := newTestCache(t, Options{TTL: time.Hour}, nil)

	require.NoError(t, c.Set(ctx, schemas.NamespaceGitAnalysis, "old-1", sample{}))
	require.NoError(t, c.Set(ctx, schemas.NamespaceAIResponses, "old-2", sample{}))
	clock.Advance(90 * time.Minute)
	require.NoError(t, c.Set(ctx, schemas.NamespaceAIResponses, "new", sample{}))

	removed, err := c.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	found, err := c.Get(ctx, schemas.NamespaceAIResponses, "new", &sample{})
	require.NoError(t, err)
	assert.True(t, found)
}

func TestStats(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, clock := newTestCache(t, Options{}, nil)

	empty, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, empty.Entries)
	assert.True(t, empty.Oldest.IsZero())
	assert.Len(t, empty.Namespaces, len(Namespaces), "every namespace is reported")

	start := clock.Now()
	require.NoError(t, c.Set(ctx, schemas.NamespaceGitAnalysis, "a", sample{Summary: "a"}))
	clock.Advance(time.Minute)
	require.NoError(t, c.Set(ctx, schemas.NamespaceIntentExtraction, "b", sample{Summary: "b"}))

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Entries)
	assert.Positive(t, stats.Bytes)
	assert.True(t, stats.Oldest.Equal(start))
	assert.Equal(t, c.path, stats.Path)
}

func TestSet_PrunesOldestBeyondLimit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, clock := newTestCache(t, Options{}, nil)

	value := sample{Summary: "same payload", Commits: []string{"abc12345"}}
	require.NoError(t, c.Set(ctx, schemas.NamespaceAIResponses, "first", value))

	var size int64
	require.NoError(t, c.db.QueryRowContext(ctx, `SELECT size FROM entries`).Scan(&size))
	// Room for one entry but not two.
	c.maxBytes = size + size/2

	clock.Advance(time.Second)
	require.NoError(t, c.Set(ctx, schemas.NamespaceAIResponses, "second", value))

	found, err := c.Get(ctx, schemas.NamespaceAIResponses, "first", &sample{})
	require.NoError(t, err)
	assert.False(t, found, "the oldest entry is pruned")

	found, err = c.Get(ctx, schemas.NamespaceAIResponses, "second", &sample{})
	require.NoError(t, err)
	assert.True(t, found)
}
