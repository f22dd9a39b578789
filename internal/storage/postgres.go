package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trade-history-sync/internal/config"
	syncerrors "github.com/trade-history-sync/internal/errors"
	"github.com/trade-history-sync/internal/models"
)

// PostgresDB wraps the pgxpool connection
type PostgresDB struct {
	pool *pgxpool.Pool
}

// NewPostgresDB creates a new Postgres database connection
func NewPostgresDB(cfg *config.PostgresConfig) (*PostgresDB, error) {
	connString := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable pool_max_conns=%d",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Database,
		cfg.MaxConnections,
	)

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections) // #nosec G115 - small configured value
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &PostgresDB{pool: pool}, nil
}

// Close closes the database connection pool
func (db *PostgresDB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// Pool returns the underlying connection pool
func (db *PostgresDB) Pool() *pgxpool.Pool {
	return db.pool
}

// Ping checks if the database is reachable
func (db *PostgresDB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// PostgresHistoryRepository stores partitions as Postgres tables
type PostgresHistoryRepository struct {
	db      *PostgresDB
	created sync.Map
}

// NewPostgresHistoryRepository creates a history repository on db
func NewPostgresHistoryRepository(db *PostgresDB) *PostgresHistoryRepository {
	return &PostgresHistoryRepository{db: db}
}

func (r *PostgresHistoryRepository) ensurePartition(ctx context.Context, table string) error {
	if _, ok := r.created.Load(table); ok {
		return nil
	}
	for _, stmt := range postgresDialect.createPartitionSQL(table) {
		if _, err := r.db.Pool().Exec(ctx, stmt); err != nil {
			return syncerrors.NewStoreError("create partition", err)
		}
	}
	r.created.Store(table, struct{}{})
	return nil
}

// Batch runs fn in one transaction on p
func (r *PostgresHistoryRepository) Batch(ctx context.Context, p Partition, fn func(tx PartitionTx) error) error {
	table := postgresDialect.tableName(p)
	if err := r.ensurePartition(ctx, table); err != nil {
		return err
	}

	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return syncerrors.NewStoreError("begin", err)
	}
	defer func() {
		_ = tx.Rollback(ctx) // nolint:errcheck // no-op after commit
	}()

	if err := fn(&pgPartitionTx{tx: tx, insert: postgresDialect.insertSQL(table)}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return syncerrors.NewStoreError("commit", err)
	}
	return nil
}

// GetAll returns every record of p
func (r *PostgresHistoryRepository) GetAll(ctx context.Context, p Partition) ([]models.Record, error) {
	table := postgresDialect.tableName(p)
	if err := r.ensurePartition(ctx, table); err != nil {
		return nil, err
	}

	rows, err := r.db.Pool().Query(ctx, postgresDialect.selectAllSQL(table))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	var records []models.Record
	for rows.Next() {
		var (
			rec     models.Record
			details *string
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.ItemName,
			&rec.ItemNameUnique,
			&rec.Currency,
			&rec.Amount,
			&rec.Time,
			&rec.League,
			&details,
			&rec.SourceItemKey,
		); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", table, err)
		}
		if details != nil {
			rec.DetailsJSON = []byte(*details)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Count returns the number of records in p
func (r *PostgresHistoryRepository) Count(ctx context.Context, p Partition) (int64, error) {
	table := postgresDialect.tableName(p)
	if err := r.ensurePartition(ctx, table); err != nil {
		return 0, err
	}

	var n int64
	if err := r.db.Pool().QueryRow(ctx, countSQL(table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}

// Exists reports whether the table of p exists in the current schema
func (r *PostgresHistoryRepository) Exists(ctx context.Context, p Partition) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = current_schema() AND table_name = $1
		)
	`
	var exists bool
	if err := r.db.Pool().QueryRow(ctx, query, postgresDialect.tableName(p)).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to inspect schema: %w", err)
	}
	return exists, nil
}

// Close closes the pool
func (r *PostgresHistoryRepository) Close() error {
	r.db.Close()
	return nil
}

type pgPartitionTx struct {
	tx     pgx.Tx
	insert string
}

func (t *pgPartitionTx) InsertIfAbsent(ctx context.Context, rec *models.Record) (bool, error) {
	tag, err := t.tx.Exec(ctx, t.insert, recordArgs(rec)...)
	if err != nil {
		return false, syncerrors.NewStoreError("insert", err)
	}
	return tag.RowsAffected() > 0, nil
}

// PostgresStateRepository keeps sync state in the sync_state table
type PostgresStateRepository struct {
	db *PostgresDB
}

// NewPostgresStateRepository creates a state repository on db
func NewPostgresStateRepository(db *PostgresDB) *PostgresStateRepository {
	return &PostgresStateRepository{db: db}
}

// Get returns the value stored under key
func (r *PostgresStateRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.db.Pool().QueryRow(ctx, postgresDialect.getStateSQL(), key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read state %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key
func (r *PostgresStateRepository) Set(ctx context.Context, key, value string) error {
	if _, err := r.db.Pool().Exec(ctx, postgresDialect.upsertStateSQL(), key, value); err != nil {
		return fmt.Errorf("failed to write state %s: %w", key, err)
	}
	return nil
}
