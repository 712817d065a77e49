package catalog

import (
	"context"
	"fmt"
)

// MarkAllDirty flags every channel, index and relic ahead of a reindex
// sweep. Rows still dirty when the sweep finishes no longer exist on disk
// and are deleted by DeleteDirty.
func (s *Store) MarkAllDirty(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("catalog: failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, table := range []string{"channels", "indices", "relics"} {
		if _, err := tx.Exec(ctx, `UPDATE `+table+` SET dirty = TRUE;`); err != nil {
			return fmt.Errorf("catalog: failed to mark %s dirty: %w", table, err)
		}
	}
	return tx.Commit(ctx)
}

// DeleteDirty removes every row still flagged dirty. Deletes cascade down
// the channel/index/relic/debinfo hierarchy.
func (s *Store) DeleteDirty(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("catalog: failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, table := range []string{"channels", "indices", "relics"} {
		if _, err := tx.Exec(ctx, `DELETE FROM `+table+` WHERE dirty;`); err != nil {
			return fmt.Errorf("catalog: failed to delete dirty %s: %w", table, err)
		}
	}
	return tx.Commit(ctx)
}

// UpsertChannel inserts or revalidates a channel seen on disk and returns
// its id.
func (s *Store) UpsertChannel(ctx context.Context, name string) (int64, error) {
	const query = `
	INSERT INTO channels (name, dirty) VALUES ($1, FALSE)
	ON CONFLICT (name) DO UPDATE SET dirty = FALSE
	RETURNING id;
	`
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("catalog: failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var id int64
	if err := tx.QueryRow(ctx, query, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("catalog: failed to upsert channel %q: %w", name, err)
	}
	return id, tx.Commit(ctx)
}

// UpsertIndex inserts or revalidates an index seen on disk and returns its
// id.
func (s *Store) UpsertIndex(ctx context.Context, channelID int64, name string) (int64, error) {
	const query = `
	INSERT INTO indices (channel_id, name, dirty) VALUES ($1, $2, FALSE)
	ON CONFLICT (channel_id, name) DO UPDATE SET dirty = FALSE
	RETURNING id;
	`
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("catalog: failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var id int64
	if err := tx.QueryRow(ctx, query, channelID, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("catalog: failed to upsert index %q: %w", name, err)
	}
	return id, tx.Commit(ctx)
}

// UpsertRelic inserts or refreshes a relic seen on disk and returns its id.
// The stored mtime and size always follow the file.
func (s *Store) UpsertRelic(ctx context.Context, indexID int64, name, mtime string, size int64) (int64, error) {
	const query = `
	INSERT INTO relics (index_id, name, mtime, size, dirty) VALUES ($1, $2, $3, $4, FALSE)
	ON CONFLICT (index_id, name) DO UPDATE SET mtime = EXCLUDED.mtime, size = EXCLUDED.size, dirty = FALSE
	RETURNING id;
	`
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("catalog: failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var id int64
	if err := tx.QueryRow(ctx, query, indexID, name, mtime, size).Scan(&id); err != nil {
		return 0, fmt.Errorf("catalog: failed to upsert relic %q: %w", name, err)
	}
	return id, tx.Commit(ctx)
}

// InsertRelic registers a freshly persisted relic. Used by fetch-on-miss,
// which must not revalidate an existing row the way the sweep does.
func (s *Store) InsertRelic(ctx context.Context, indexID int64, name, mtime string, size int64) error {
	const query = `
	INSERT INTO relics (index_id, name, mtime, size, dirty) VALUES ($1, $2, $3, $4, FALSE)
	ON CONFLICT (index_id, name) DO NOTHING;
	`
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("catalog: failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, query, indexID, name, mtime, size); err != nil {
		return fmt.Errorf("catalog: failed to insert relic %q: %w", name, err)
	}
	return tx.Commit(ctx)
}
