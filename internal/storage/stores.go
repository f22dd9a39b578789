package storage

import (
	"errors"
	"fmt"

	"github.com/trade-history-sync/internal/config"
)

// Stores bundles the history store and state store selected by configuration
type Stores struct {
	History HistoryStore
	State   StateStore

	sqlite   *SQLiteDB
	postgres *PostgresDB
	redis    *RedisCache
}

// Open connects the configured backends and applies pending schema migrations
func Open(cfg *config.DatabaseConfig) (*Stores, error) {
	s, err := Connect(cfg)
	if err != nil {
		return nil, err
	}

	if err := s.migrate(cfg); err != nil {
		_ = s.Close()
		return nil, err
	}

	if cfg.StateBackend == config.StateBackendRedis {
		cache, err := NewRedisCache(&cfg.Redis)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		s.redis = cache
		s.State = NewRedisStateStore(cache)
	}

	return s, nil
}

// Connect opens the configured SQL backend without touching its schema
func Connect(cfg *config.DatabaseConfig) (*Stores, error) {
	s := &Stores{}

	switch cfg.Driver {
	case config.DriverPostgres:
		db, err := NewPostgresDB(&cfg.Postgres)
		if err != nil {
			return nil, err
		}
		s.postgres = db
		s.History = NewPostgresHistoryRepository(db)
		s.State = NewPostgresStateRepository(db)
	default:
		db, err := NewSQLiteDB(&cfg.SQLite)
		if err != nil {
			return nil, err
		}
		s.sqlite = db
		s.History = NewSQLiteHistoryRepository(db)
		s.State = NewSQLiteStateRepository(db)
	}

	return s, nil
}

func (s *Stores) migrate(cfg *config.DatabaseConfig) error {
	m, err := s.SchemaMigrator(cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = m.Close() // nolint:errcheck // cleanup in defer
	}()
	return m.Up()
}

// SchemaMigrator returns a migrator for the configured SQL backend
func (s *Stores) SchemaMigrator(cfg *config.DatabaseConfig) (*SchemaMigrator, error) {
	if s.postgres != nil {
		return NewPostgresSchemaMigrator(cfg.Postgres.PostgresURL("pgx5"))
	}
	if s.sqlite != nil {
		return NewSQLiteSchemaMigrator(s.sqlite)
	}
	return nil, fmt.Errorf("no SQL backend open")
}

// Close closes every open backend
func (s *Stores) Close() error {
	var errs []error
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	if s.postgres != nil {
		s.postgres.Close()
	}
	if s.sqlite != nil {
		errs = append(errs, s.sqlite.Close())
	}
	return errors.Join(errs...)
}
