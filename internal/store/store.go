package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/xkilldash9x/hindsight/api/schemas"
)

var (
	// ErrNotFound is returned by lookups for keys that are absent or expired.
	ErrNotFound = errors.New("cache entry not found")
	// ErrUnknownNamespace rejects namespaces outside Namespaces.
	ErrUnknownNamespace = errors.New("unknown cache namespace")
)

// Namespaces lists the partitions the cache accepts.
var Namespaces = []string{
	schemas.NamespaceGitAnalysis,
	schemas.NamespaceIntentExtraction,
	schemas.NamespaceAIResponses,
}

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const schema = `
	CREATE TABLE IF NOT EXISTS entries (
		namespace  TEXT    NOT NULL,
		key        TEXT    NOT NULL,
		created_at INTEGER NOT NULL,
		size       INTEGER NOT NULL,
		payload    BLOB    NOT NULL,
		PRIMARY KEY (namespace, key)
	);
	CREATE INDEX IF NOT EXISTS idx_entries_created_at ON entries(created_at);
`

// Options configures a Cache.
type Options struct {
	// Path of the sqlite database file. Parent directories are created.
	Path string
	// TTL is the maximum entry age; zero disables expiry.
	TTL time.Duration
	// MaxSizeMB caps the total compressed payload size; zero disables pruning.
	MaxSizeMB int
}

// Stats summarizes the cache contents.
type Stats struct {
	Path       string
	Entries    int
	Bytes      int64
	Namespaces map[string]int
	Oldest     time.Time
}

// Cache is an expiring, namespaced result cache backed by sqlite. Values
// are stored as zstd-compressed JSON.
type Cache struct {
	db       *sql.DB
	path     string
	ttl      time.Duration
	maxBytes int64
	encoder  *zstd.Encoder
	decoder  *zstd.Decoder
	log      *zap.Logger
	now      func() time.Time
}

var _ schemas.ResultCache = (*Cache)(nil)

// Open opens or creates the cache database and verifies the connection.
func Open(ctx context.Context, opts Options, logger *zap.Logger) (*Cache, error) {
	if opts.Path == "" {
		return nil, errors.New("cache path is required")
	}
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	// A single connection serializes writers and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	c, err := newCache(ctx, db, opts, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

func newCache(ctx context.Context, db *sql.DB, opts Options, logger *zap.Logger) (*Cache, error) {
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping cache database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to initialize cache schema: %w", err)
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		_ = encoder.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	return &Cache{
		db:       db,
		path:     opts.Path,
		ttl:      opts.TTL,
		maxBytes: int64(opts.MaxSizeMB) * 1024 * 1024,
		encoder:  encoder,
		decoder:  decoder,
		log:      logger.Named("store"),
		now:      time.Now,
	}, nil
}

// MakeKey hashes an arbitrary key to the fixed-width form stored on disk.
func MakeKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])[:32]
}

// Get decodes the entry for key into dst. Expired and undecodable entries
// are removed and reported as misses.
func (c *Cache) Get(ctx context.Context, namespace, key string, dst any) (bool, error) {
	payload, err := c.lookup(ctx, namespace, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	raw, err := c.decoder.DecodeAll(payload, nil)
	if err == nil {
		err = json.Unmarshal(raw, dst)
	}
	if err != nil {
		c.log.Debug("Discarding unreadable cache entry.",
			zap.String("namespace", namespace), zap.String("key", key), zap.Error(err))
		if delErr := c.Invalidate(ctx, namespace, key); delErr != nil {
			return false, delErr
		}
		return false, nil
	}
	return true, nil
}

func (c *Cache) lookup(ctx context.Context, namespace, key string) ([]byte, error) {
	if err := checkNamespace(namespace); err != nil {
		return nil, err
	}

	var (
		createdAt int64
		payload   []byte
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT created_at, payload FROM entries WHERE namespace = ? AND key = ?`,
		namespace, MakeKey(key),
	).Scan(&createdAt, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry: %w", err)
	}

	if c.expired(createdAt) {
		if err := c.Invalidate(ctx, namespace, key); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	return payload, nil
}

// Set stores value under key, replacing any previous entry, then prunes the
// oldest entries if the cache exceeds its size limit.
func (c *Cache) Set(ctx context.Context, namespace, key string, value any) error {
	if err := checkNamespace(namespace); err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache value: %w", err)
	}
	payload := c.encoder.EncodeAll(raw, nil)

	_, err = c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO entries (namespace, key, created_at, size, payload) VALUES (?, ?, ?, ?, ?)`,
		namespace, MakeKey(key), c.now().UnixNano(), len(payload), payload,
	)
	if err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}

	if c.maxBytes > 0 {
		if _, err := c.prune(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Invalidate removes a single entry. Removing an absent entry is not an error.
func (c *Cache) Invalidate(ctx context.Context, namespace, key string) error {
	if err := checkNamespace(namespace); err != nil {
		return err
	}
	if _, err := c.db.ExecContext(ctx,
		`DELETE FROM entries WHERE namespace = ? AND key = ?`, namespace, MakeKey(key)); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// Clear removes every entry in namespace, or in all namespaces when
// namespace is empty, and returns how many were removed.
func (c *Cache) Clear(ctx context.Context, namespace string) (int, error) {
	var (
		res sql.Result
		err error
	)
	if namespace == "" {
		res, err = c.db.ExecContext(ctx, `DELETE FROM entries`)
	} else {
		if err := checkNamespace(namespace); err != nil {
			return 0, err
		}
		res, err = c.db.ExecContext(ctx, `DELETE FROM entries WHERE namespace = ?`, namespace)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to clear cache: %w", err)
	}
	return rowsAffected(res)
}

// CleanupExpired removes every entry older than the TTL.
func (c *Cache) CleanupExpired(ctx context.Context) (int, error) {
	if c.ttl <= 0 {
		return 0, nil
	}
	cutoff := c.now().Add(-c.ttl).UnixNano()
	res, err := c.db.ExecContext(ctx, `DELETE FROM entries WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to remove expired entries: %w", err)
	}
	return rowsAffected(res)
}

// Stats reports entry counts per namespace and the total payload size.
func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{Path: c.path, Namespaces: make(map[string]int, len(Namespaces))}
	for _, ns := range Namespaces {
		stats.Namespaces[ns] = 0
	}

	rows, err := c.db.QueryContext(ctx,
		`SELECT namespace, COUNT(*), COALESCE(SUM(size), 0), MIN(created_at) FROM entries GROUP BY namespace`)
	if err != nil {
		return stats, fmt.Errorf("failed to query cache stats: %w", err)
	}
	defer rows.Close()

	var oldest int64
	for rows.Next() {
		var (
			ns     string
			count  int
			size   int64
			minAge int64
		)
		if err := rows.Scan(&ns, &count, &size, &minAge); err != nil {
			return stats, fmt.Errorf("failed to scan cache stats: %w", err)
		}
		stats.Namespaces[ns] = count
		stats.Entries += count
		stats.Bytes += size
		if oldest == 0 || minAge < oldest {
			oldest = minAge
		}
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("failed to iterate cache stats: %w", err)
	}
	if oldest > 0 {
		stats.Oldest = time.Unix(0, oldest)
	}
	return stats, nil
}

// Close releases the database and codec resources.
func (c *Cache) Close() error {
	c.decoder.Close()
	encErr := c.encoder.Close()
	if err := c.db.Close(); err != nil {
		return fmt.Errorf("failed to close cache database: %w", err)
	}
	return encErr
}

// prune deletes the oldest entries until the total size fits the limit.
func (c *Cache) prune(ctx context.Context) (int, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			c.log.Error("Failed to rollback transaction.", zap.Error(rollbackErr))
		}
	}()

	type victim struct{ namespace, key string }
	var (
		victims []victim
		total   int64
	)
	rows, err := tx.QueryContext(ctx, `SELECT namespace, key, size FROM entries ORDER BY created_at DESC`)
	if err != nil {
		return 0, fmt.Errorf("failed to scan cache for pruning: %w", err)
	}
	for rows.Next() {
		var (
			v    victim
			size int64
		)
		if err := rows.Scan(&v.namespace, &v.key, &size); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan cache entry: %w", err)
		}
		total += size
		if total > c.maxBytes {
			victims = append(victims, v)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to iterate cache entries: %w", err)
	}

	for _, v := range victims {
		if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE namespace = ? AND key = ?`, v.namespace, v.key); err != nil {
			return 0, fmt.Errorf("failed to prune cache entry: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	if len(victims) > 0 {
		c.log.Debug("Pruned cache to size limit.", zap.Int("removed", len(victims)), zap.Int64("max_bytes", c.maxBytes))
	}
	return len(victims), nil
}

func (c *Cache) expired(createdAt int64) bool {
	return c.ttl > 0 && c.now().Sub(time.Unix(0, createdAt)) > c.ttl
}

func checkNamespace(namespace string) error {
	for _, ns := range Namespaces {
		if ns == namespace {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownNamespace, namespace)
}

func rowsAffected(res sql.Result) (int, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count removed entries: %w", err)
	}
	return int(n), nil
}
