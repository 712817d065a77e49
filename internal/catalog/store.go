package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/remind101/migrate"

	"github.com/reliquary/reliquary/internal/catalog/migrations"
)

// Store provides transactional access to the catalog tables.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps an existing connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Connect opens a connection pool for the given connection string, runs
// pending schema migrations, and returns a ready Store.
func Connect(ctx context.Context, connString string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to parse connection string: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to create connection pool: %w", err)
	}
	if err := runMigrations(connString); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// runMigrations applies the embedded schema migrations over a database/sql
// handle. The migrate package does not take a context.
func runMigrations(connString string) error {
	cfg, err := pgx.ParseConfig(connString)
	if err != nil {
		return fmt.Errorf("catalog: failed to parse connection string: %w", err)
	}
	db := stdlib.OpenDB(*cfg)
	defer db.Close()

	migrator := migrate.NewPostgresMigrator(db)
	migrator.Table = migrations.MigrationTable
	if err := migrator.Exec(migrate.Up, migrations.Migrations...); err != nil {
		return fmt.Errorf("catalog: failed to perform migrations: %w", err)
	}
	return nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}
