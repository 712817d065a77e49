package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// CacheGet returns the cached metadata blob for a key, or ErrNotFound.
func (s *Store) CacheGet(ctx context.Context, key string) (*CacheEntry, error) {
	const query = `SELECT key, value, mtime, size, md5sum, sha1, sha256 FROM filecache WHERE key = $1 LIMIT 2;`
	rows, err := s.pool.Query(ctx, query, key)
	if err != nil {
		return nil, fmt.Errorf("catalog: filecache lookup failed: %w", err)
	}
	return oneOf(rows, func(r pgx.Rows, e *CacheEntry) error {
		return r.Scan(&e.Key, &e.Value, &e.MTime, &e.Size, &e.MD5Sum, &e.SHA1, &e.SHA256)
	}, "filecache", key)
}

// CachePut stores or replaces a cached metadata blob under its key.
func (s *Store) CachePut(ctx context.Context, entry *CacheEntry) error {
	const query = `
	INSERT INTO filecache (key, value, mtime, size, md5sum, sha1, sha256)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (key) DO UPDATE SET
		value = EXCLUDED.value,
		mtime = EXCLUDED.mtime,
		size = EXCLUDED.size,
		md5sum = EXCLUDED.md5sum,
		sha1 = EXCLUDED.sha1,
		sha256 = EXCLUDED.sha256;
	`
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("catalog: failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, query,
		entry.Key, entry.Value, entry.MTime, entry.Size, entry.MD5Sum, entry.SHA1, entry.SHA256)
	if err != nil {
		return fmt.Errorf("catalog: failed to store cache entry %q: %w", entry.Key, err)
	}
	return tx.Commit(ctx)
}

// CacheDelete drops a cached blob so the next request regenerates it. Deleting
// an absent key is not an error.
func (s *Store) CacheDelete(ctx context.Context, key string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("catalog: failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM filecache WHERE key = $1;`, key); err != nil {
		return fmt.Errorf("catalog: failed to delete cache entry %q: %w", key, err)
	}
	return tx.Commit(ctx)
}
