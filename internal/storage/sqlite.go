package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/trade-history-sync/internal/config"
	syncerrors "github.com/trade-history-sync/internal/errors"
	"github.com/trade-history-sync/internal/models"
)

// SQLiteDB wraps a single-writer SQLite connection
type SQLiteDB struct {
	db   *sql.DB
	path string
}

// NewSQLiteDB opens (creating if needed) the SQLite database at cfg.Path
func NewSQLiteDB(cfg *config.SQLiteConfig) (*SQLiteDB, error) {
	dsn := cfg.Path + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(10000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite database: %w", err)
	}

	// SQLite allows one writer; a single connection also serializes batches.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("unable to ping sqlite database: %w", err)
	}

	return &SQLiteDB{db: db, path: cfg.Path}, nil
}

// Close closes the database
func (s *SQLiteDB) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB returns the underlying handle
func (s *SQLiteDB) DB() *sql.DB {
	return s.db
}

// Ping checks if the database is reachable
func (s *SQLiteDB) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SQLiteHistoryRepository stores partitions as SQLite tables
type SQLiteHistoryRepository struct {
	db      *SQLiteDB
	created sync.Map // table name -> struct{}
}

// NewSQLiteHistoryRepository creates a history repository on db
func NewSQLiteHistoryRepository(db *SQLiteDB) *SQLiteHistoryRepository {
	return &SQLiteHistoryRepository{db: db}
}

func (r *SQLiteHistoryRepository) ensurePartition(ctx context.Context, table string) error {
	if _, ok := r.created.Load(table); ok {
		return nil
	}
	for _, stmt := range sqliteDialect.createPartitionSQL(table) {
		if _, err := r.db.DB().ExecContext(ctx, stmt); err != nil {
			return syncerrors.NewStoreError("create partition", err)
		}
	}
	r.created.Store(table, struct{}{})
	return nil
}

// Batch runs fn in one transaction on p
func (r *SQLiteHistoryRepository) Batch(ctx context.Context, p Partition, fn func(tx PartitionTx) error) error {
	table := p.TableName()
	if err := r.ensurePartition(ctx, table); err != nil {
		return err
	}

	tx, err := r.db.DB().BeginTx(ctx, nil)
	if err != nil {
		return syncerrors.NewStoreError("begin", err)
	}

	if err := fn(&sqlPartitionTx{tx: tx, insert: sqliteDialect.insertSQL(table)}); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return syncerrors.NewStoreError("commit", err)
	}
	return nil
}

// GetAll returns every record of p
func (r *SQLiteHistoryRepository) GetAll(ctx context.Context, p Partition) ([]models.Record, error) {
	table := p.TableName()
	if err := r.ensurePartition(ctx, table); err != nil {
		return nil, err
	}

	rows, err := r.db.DB().QueryContext(ctx, sqliteDialect.selectAllSQL(table))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	var records []models.Record
	for rows.Next() {
		rec, err := scanSQLRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", table, err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// Count returns the number of records in p
func (r *SQLiteHistoryRepository) Count(ctx context.Context, p Partition) (int64, error) {
	table := p.TableName()
	if err := r.ensurePartition(ctx, table); err != nil {
		return 0, err
	}

	var n int64
	if err := r.db.DB().QueryRowContext(ctx, countSQL(table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}

// Exists reports whether the table of p exists
func (r *SQLiteHistoryRepository) Exists(ctx context.Context, p Partition) (bool, error) {
	var name string
	err := r.db.DB().QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", p.TableName(),
	).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to inspect schema: %w", err)
	}
	return true, nil
}

// Close closes the underlying database
func (r *SQLiteHistoryRepository) Close() error {
	return r.db.Close()
}

type sqlPartitionTx struct {
	tx     *sql.Tx
	insert string
}

func (t *sqlPartitionTx) InsertIfAbsent(ctx context.Context, rec *models.Record) (bool, error) {
	res, err := t.tx.ExecContext(ctx, t.insert, recordArgs(rec)...)
	if err != nil {
		return false, syncerrors.NewStoreError("insert", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, syncerrors.NewStoreError("insert", err)
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSQLRecord(row rowScanner) (*models.Record, error) {
	var (
		rec     models.Record
		unique  sql.NullString
		details sql.NullString
	)
	if err := row.Scan(
		&rec.ID,
		&rec.ItemName,
		&unique,
		&rec.Currency,
		&rec.Amount,
		&rec.Time,
		&rec.League,
		&details,
		&rec.SourceItemKey,
	); err != nil {
		return nil, err
	}
	if unique.Valid {
		rec.ItemNameUnique = &unique.String
	}
	if details.Valid {
		rec.DetailsJSON = []byte(details.String)
	}
	return &rec, nil
}

// SQLStateRepository keeps sync state in the sync_state table
type SQLStateRepository struct {
	db *sql.DB
	d  dialect
}

// NewSQLiteStateRepository creates a state repository on db. The sync_state
// table comes from the schema migrations.
func NewSQLiteStateRepository(db *SQLiteDB) *SQLStateRepository {
	return &SQLStateRepository{db: db.DB(), d: sqliteDialect}
}

// Get returns the value stored under key
func (r *SQLStateRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx, r.d.getStateSQL(), key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read state %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key
func (r *SQLStateRepository) Set(ctx context.Context, key, value string) error {
	if _, err := r.db.ExecContext(ctx, r.d.upsertStateSQL(), key, value); err != nil {
		return fmt.Errorf("failed to write state %s: %w", key, err)
	}
	return nil
}
