package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trade-history-sync/internal/config"
)

func sqliteDatabaseConfig(t *testing.T) *config.DatabaseConfig {
	return &config.DatabaseConfig{
		Driver:       config.DriverSQLite,
		StateBackend: config.StateBackendStore,
		SQLite:       config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "stores.db")},
	}
}

func schemaVersion(t *testing.T, s *Stores, cfg *config.DatabaseConfig) uint {
	t.Helper()
	m, err := s.SchemaMigrator(cfg)
	require.NoError(t, err)
	defer m.Close()

	version, dirty, err := m.Version()
	require.NoError(t, err)
	assert.False(t, dirty)
	return version
}

func TestConnect_LeavesSchemaAlone(t *testing.T) {
	cfg := sqliteDatabaseConfig(t)

	s, err := Connect(cfg)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, uint(0), schemaVersion(t, s, cfg))
}

func TestOpen_AppliesMigrations(t *testing.T) {
	cfg := sqliteDatabaseConfig(t)
	ctx := testContext(t)

	s, err := Open(cfg)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, uint(1), schemaVersion(t, s, cfg))

	require.NoError(t, s.State.Set(ctx, "k", "v"))
	v, ok, err := s.State.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}
