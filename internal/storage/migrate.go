package storage

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationFiles embed.FS

// SchemaMigrator applies the sync_state schema. Partition tables are created
// lazily and are not versioned.
type SchemaMigrator struct {
	m   *migrate.Migrate
	src source.Driver
	// SQLite migrators share the application's *sql.DB, which the driver
	// would close along with the migrator.
	ownsDB bool
}

// NewSQLiteSchemaMigrator builds a migrator on an open SQLite database
func NewSQLiteSchemaMigrator(db *SQLiteDB) (*SchemaMigrator, error) {
	src, err := iofs.New(migrationFiles, "migrations/sqlite")
	if err != nil {
		return nil, fmt.Errorf("failed to load sqlite migrations: %w", err)
	}

	driver, err := sqlite.WithInstance(db.DB(), &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	return &SchemaMigrator{m: m, src: src}, nil
}

// NewPostgresSchemaMigrator builds a migrator for a Postgres URL
// (postgres:// or pgx5:// scheme).
func NewPostgresSchemaMigrator(databaseURL string) (*SchemaMigrator, error) {
	src, err := iofs.New(migrationFiles, "migrations/postgres")
	if err != nil {
		return nil, fmt.Errorf("failed to load postgres migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	return &SchemaMigrator{m: m, src: src, ownsDB: true}, nil
}

// Up applies all pending migrations
func (s *SchemaMigrator) Up() error {
	if err := s.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Down rolls back the last migration
func (s *SchemaMigrator) Down() error {
	if err := s.m.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to rollback migration: %w", err)
	}
	return nil
}

// Version returns the current migration version
func (s *SchemaMigrator) Version() (version uint, dirty bool, err error) {
	version, dirty, err = s.m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}
	return version, dirty, nil
}

// Close releases the migrator
func (s *SchemaMigrator) Close() error {
	if s.ownsDB {
		srcErr, dbErr := s.m.Close()
		return errors.Join(srcErr, dbErr)
	}
	return s.src.Close()
}
