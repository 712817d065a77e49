package catalog

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v8"
	_ "github.com/doug-martin/goqu/v8/dialect/postgres"
	"github.com/jackc/pgx/v5"
)

var psql = goqu.Dialect("postgres")

// oneOf scans up to two rows and reports none, one or many. The two-row
// bound is what lets the ambiguous case be detected without draining the
// result set.
func oneOf[T any](rows pgx.Rows, scan func(pgx.Rows, *T) error, entity, key string) (*T, error) {
	defer rows.Close()
	var (
		out   T
		count int
	)
	for rows.Next() {
		if count == 0 {
			if err := scan(rows, &out); err != nil {
				return nil, err
			}
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	switch count {
	case 0:
		return nil, ErrNotFound
	case 1:
		return &out, nil
	default:
		return nil, &AmbiguousError{Entity: entity, Key: key}
	}
}

// ChannelByName finds a channel by its unique name.
func (s *Store) ChannelByName(ctx context.Context, name string) (*Channel, error) {
	const query = `SELECT id, name, dirty FROM channels WHERE name = $1 LIMIT 2;`
	rows, err := s.pool.Query(ctx, query, name)
	if err != nil {
		return nil, fmt.Errorf("catalog: channel lookup failed: %w", err)
	}
	return oneOf(rows, func(r pgx.Rows, c *Channel) error {
		return r.Scan(&c.ID, &c.Name, &c.Dirty)
	}, "channel", name)
}

// IndexByName finds an index by name within a channel.
func (s *Store) IndexByName(ctx context.Context, channelID int64, name string) (*Index, error) {
	const query = `SELECT id, channel_id, name, dirty FROM indices WHERE channel_id = $1 AND name = $2 LIMIT 2;`
	rows, err := s.pool.Query(ctx, query, channelID, name)
	if err != nil {
		return nil, fmt.Errorf("catalog: index lookup failed: %w", err)
	}
	return oneOf(rows, func(r pgx.Rows, i *Index) error {
		return r.Scan(&i.ID, &i.ChannelID, &i.Name, &i.Dirty)
	}, "index", name)
}

// IndexByNames resolves a (channel, index) name pair in one go.
func (s *Store) IndexByNames(ctx context.Context, channel, index string) (*Index, error) {
	ch, err := s.ChannelByName(ctx, channel)
	if err != nil {
		return nil, err
	}
	return s.IndexByName(ctx, ch.ID, index)
}

// RelicByName finds a relic by name within an index.
func (s *Store) RelicByName(ctx context.Context, indexID int64, name string) (*Relic, error) {
	const query = `SELECT id, index_id, name, mtime, size, dirty FROM relics WHERE index_id = $1 AND name = $2 LIMIT 2;`
	rows, err := s.pool.Query(ctx, query, indexID, name)
	if err != nil {
		return nil, fmt.Errorf("catalog: relic lookup failed: %w", err)
	}
	return oneOf(rows, scanRelic, "relic", name)
}

func scanRelic(r pgx.Rows, rl *Relic) error {
	return r.Scan(&rl.ID, &rl.IndexID, &rl.Name, &rl.MTime, &rl.Size, &rl.Dirty)
}

// RelicsByIndex returns every relic under an index, ordered by name.
func (s *Store) RelicsByIndex(ctx context.Context, indexID int64) ([]Relic, error) {
	query, args, err := psql.From("relics").
		Select("id", "index_id", "name", "mtime", "size", "dirty").
		Where(goqu.Ex{"index_id": indexID}).
		Order(goqu.I("name").Asc()).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to build relics query: %w", err)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog: relics query failed: %w", err)
	}
	defer rows.Close()

	var out []Relic
	for rows.Next() {
		var rl Relic
		if err := scanRelic(rows, &rl); err != nil {
			return nil, err
		}
		out = append(out, rl)
	}
	return out, rows.Err()
}

// IndexesByChannel returns every index under a channel, ordered by name.
func (s *Store) IndexesByChannel(ctx context.Context, channelID int64) ([]Index, error) {
	query, args, err := psql.From("indices").
		Select("id", "channel_id", "name", "dirty").
		Where(goqu.Ex{"channel_id": channelID}).
		Order(goqu.I("name").Asc()).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to build indices query: %w", err)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog: indices query failed: %w", err)
	}
	defer rows.Close()

	var out []Index
	for rows.Next() {
		var idx Index
		if err := rows.Scan(&idx.ID, &idx.ChannelID, &idx.Name, &idx.Dirty); err != nil {
			return nil, err
		}
		out = append(out, idx)
	}
	return out, rows.Err()
}

// AllIndexes returns every (channel, index) pair in the catalog, ordered by
// channel then index name. Used by the home page and by pregeneration.
func (s *Store) AllIndexes(ctx context.Context) ([]IndexRef, error) {
	const query = `
	SELECT indices.id, channels.name, indices.name
	FROM indices
	JOIN channels ON channels.id = indices.channel_id
	ORDER BY channels.name, indices.name;
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("catalog: index enumeration failed: %w", err)
	}
	defer rows.Close()

	var out []IndexRef
	for rows.Next() {
		var ref IndexRef
		if err := rows.Scan(&ref.IndexID, &ref.Channel, &ref.Index); err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}
