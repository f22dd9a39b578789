// Package storage provides the local trade history store and persisted sync state.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/trade-history-sync/internal/models"
	"github.com/trade-history-sync/internal/normalize"
	"github.com/trade-history-sync/internal/types"
)

const tablePrefix = "trade_history_"

// State keys
const (
	KeyLastFetchAt       = "lastHistoryFetchAt"
	keyLegacyMigratedFmt = "legacyMigrated:%s"
)

// LegacyMigratedKey returns the state key of the migration flag for a league.
func LegacyMigratedKey(league string) string {
	return fmt.Sprintf(keyLegacyMigratedFmt, normalize.LeagueKey(league))
}

// Partition identifies one durable table of records. An empty Locale selects
// the legacy layout keyed by league only.
type Partition struct {
	Locale types.Locale
	League string
}

// CurrentPartition returns the locale-qualified partition of a league.
func CurrentPartition(locale types.Locale, league string) Partition {
	return Partition{Locale: locale, League: league}
}

// LegacyPartition returns the pre-locale partition of a league.
func LegacyPartition(league string) Partition {
	return Partition{League: league}
}

// IsLegacy reports whether p uses the league-only layout.
func (p Partition) IsLegacy() bool {
	return p.Locale == ""
}

// TableName returns the table backing p.
func (p Partition) TableName() string {
	key := normalize.LeagueKey(p.League)
	if p.IsLegacy() {
		return tablePrefix + key
	}
	return tablePrefix + string(p.Locale) + "__" + key
}

func (p Partition) String() string {
	if p.IsLegacy() {
		return "legacy/" + p.League
	}
	return string(p.Locale) + "/" + p.League
}

// PartitionTx is the write side of one batch transaction.
type PartitionTx interface {
	// InsertIfAbsent stores rec unless its id already exists. It reports
	// whether a row was written.
	InsertIfAbsent(ctx context.Context, rec *models.Record) (bool, error)
}

// HistoryStore is a set of independent partitions of trade records.
type HistoryStore interface {
	// Batch runs fn inside a single transaction on p. Any error returned by
	// fn rolls back every insert made through tx.
	Batch(ctx context.Context, p Partition, fn func(tx PartitionTx) error) error
	GetAll(ctx context.Context, p Partition) ([]models.Record, error)
	Count(ctx context.Context, p Partition) (int64, error)
	// Exists reports whether p has been created, without creating it.
	Exists(ctx context.Context, p Partition) (bool, error)
	Close() error
}

// StateStore is the small key-value store holding the rate limit timestamp
// and migration flags.
type StateStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// ArmingStateStore is a StateStore able to check and arm a cooldown
// atomically on the server side.
type ArmingStateStore interface {
	StateStore
	// CheckAndArm stores now under key if at least interval has elapsed since
	// the stored value. Otherwise it returns the remaining wait.
	CheckAndArm(ctx context.Context, key string, now time.Time, interval time.Duration) (remaining time.Duration, armed bool, err error)
}

// dialect captures the SQL differences between the supported drivers.
type dialect struct {
	realType   string
	jsonType   string
	selectJSON string
	bind       func(n int) string
	// maxIdent is the identifier length limit in bytes; 0 means unlimited.
	maxIdent int
}

var (
	sqliteDialect = dialect{
		realType:   "REAL",
		jsonType:   "TEXT",
		selectJSON: "details_json",
		bind:       func(int) string { return "?" },
	}
	postgresDialect = dialect{
		realType:   "DOUBLE PRECISION",
		jsonType:   "JSON",
		selectJSON: "details_json::text",
		bind:       func(n int) string { return fmt.Sprintf("$%d", n) },
		maxIdent:   63,
	}
)

var recordColumns = []string{
	"id", "item_name", "item_name_unique", "currency", "amount",
	"time", "league", "details_json", "source_item_key",
}

// indexedColumns back the read paths (sorting, filtering, totals).
var indexedColumns = []string{"time", "currency", "amount", "item_name"}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// ident shortens name to the dialect's limit. Names over the limit keep a
// prefix and get a hash of the full name appended, so distinct long names
// stay distinct instead of being truncated onto each other.
func (d dialect) ident(name string) string {
	if d.maxIdent <= 0 || len(name) <= d.maxIdent {
		return name
	}
	sum := sha256.Sum256([]byte(name))
	suffix := "_" + hex.EncodeToString(sum[:])[:12]
	return name[:d.maxIdent-len(suffix)] + suffix
}

// tableName returns the table backing p under this dialect's identifier limit.
func (d dialect) tableName(p Partition) string {
	return d.ident(p.TableName())
}

func (d dialect) createPartitionSQL(table string) []string {
	stmts := []string{fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			item_name TEXT NOT NULL,
			item_name_unique TEXT,
			currency TEXT NOT NULL,
			amount %s NOT NULL,
			time TEXT NOT NULL,
			league TEXT NOT NULL,
			details_json %s,
			source_item_key TEXT NOT NULL
		)`, quoteIdent(table), d.realType, d.jsonType)}

	for _, col := range indexedColumns {
		stmts = append(stmts, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
			quoteIdent(d.ident("idx_"+col+"_"+table)), quoteIdent(table), col))
	}
	return stmts
}

func (d dialect) insertSQL(table string) string {
	binds := make([]string, len(recordColumns))
	for i := range recordColumns {
		binds[i] = d.bind(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (id) DO NOTHING",
		quoteIdent(table), strings.Join(recordColumns, ", "), strings.Join(binds, ", "))
}

func (d dialect) selectAllSQL(table string) string {
	cols := make([]string, len(recordColumns))
	copy(cols, recordColumns)
	cols[7] = d.selectJSON
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), quoteIdent(table))
}

func countSQL(table string) string {
	return "SELECT COUNT(*) FROM " + quoteIdent(table)
}

func (d dialect) upsertStateSQL() string {
	return fmt.Sprintf(`
		INSERT INTO sync_state (key, value, updated_at)
		VALUES (%s, %s, CURRENT_TIMESTAMP)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		d.bind(1), d.bind(2))
}

func (d dialect) getStateSQL() string {
	return "SELECT value FROM sync_state WHERE key = " + d.bind(1)
}

// recordArgs returns rec in recordColumns order.
func recordArgs(rec *models.Record) []interface{} {
	details := string(rec.DetailsJSON)
	if details == "" {
		details = "null"
	}
	var unique interface{}
	if rec.ItemNameUnique != nil {
		unique = *rec.ItemNameUnique
	}
	return []interface{}{
		rec.ID,
		rec.ItemName,
		unique,
		rec.Currency,
		rec.Amount,
		rec.Time,
		rec.League,
		details,
		rec.SourceItemKey,
	}
}
