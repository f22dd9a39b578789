package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trade-history-sync/internal/types"
)

func TestPartition_TableName(t *testing.T) {
	tests := []struct {
		name string
		p    Partition
		want string
	}{
		{"english", CurrentPartition(types.LocaleEnglish, "Standard"), "trade_history_en__Standard"},
		{"japanese", CurrentPartition(types.LocaleJapanese, "Dawn of the Hunt"), "trade_history_ja__Dawn_of_the_Hunt"},
		{"legacy", LegacyPartition("Dawn of the Hunt"), "trade_history_Dawn_of_the_Hunt"},
		{"unsafe characters", CurrentPartition(types.LocaleEnglish, `x"; DROP TABLE y`), "trade_history_en__x_DROP_TABLE_y"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.p.TableName())
		})
	}
}

func TestPartition_LocalesNeverShareTables(t *testing.T) {
	en := CurrentPartition(types.LocaleEnglish, "Standard").TableName()
	ja := CurrentPartition(types.LocaleJapanese, "Standard").TableName()
	legacy := LegacyPartition("Standard").TableName()

	assert.NotEqual(t, en, ja)
	assert.NotEqual(t, en, legacy)
	assert.NotEqual(t, ja, legacy)
}

func TestLegacyMigratedKey(t *testing.T) {
	assert.Equal(t, "legacyMigrated:Dawn_of_the_Hunt", LegacyMigratedKey("Dawn of the Hunt"))
}

func TestDialectSQL(t *testing.T) {
	insert := postgresDialect.insertSQL("trade_history_en__Standard")
	assert.Contains(t, insert, `INSERT INTO "trade_history_en__Standard"`)
	assert.Contains(t, insert, "$9")
	assert.True(t, strings.HasSuffix(insert, "ON CONFLICT (id) DO NOTHING"))

	insert = sqliteDialect.insertSQL("t")
	assert.Equal(t, 9, strings.Count(insert, "?"))

	stmts := sqliteDialect.createPartitionSQL("t")
	assert.Len(t, stmts, 1+len(indexedColumns))
	assert.Contains(t, postgresDialect.selectAllSQL("t"), "details_json::text")
}

func TestPostgresIdentifiersStayDistinctWhenLong(t *testing.T) {
	prefix := strings.Repeat("Long League Name ", 5)
	a := CurrentPartition(types.LocaleEnglish, prefix+"Alpha")
	b := CurrentPartition(types.LocaleEnglish, prefix+"Beta")

	ta, tb := postgresDialect.tableName(a), postgresDialect.tableName(b)
	assert.LessOrEqual(t, len(ta), 63)
	assert.LessOrEqual(t, len(tb), 63)
	assert.NotEqual(t, ta, tb)
	assert.Equal(t, ta, postgresDialect.tableName(a), "names are stable")

	short := CurrentPartition(types.LocaleEnglish, "Standard")
	assert.Equal(t, short.TableName(), postgresDialect.tableName(short))
	assert.Equal(t, a.TableName(), sqliteDialect.tableName(a), "sqlite has no limit")
}

func TestPostgresIndexNamesFitLimit(t *testing.T) {
	table := postgresDialect.tableName(CurrentPartition(types.LocaleEnglish, "Thirty Two Character League Key"))
	seen := map[string]bool{}
	for _, stmt := range postgresDialect.createPartitionSQL(table)[1:] {
		name := strings.Split(stmt, `"`)[1]
		assert.LessOrEqual(t, len(name), 63, stmt)
		assert.False(t, seen[name], "duplicate index name %s", name)
		seen[name] = true
	}
}

func TestPartition_StrippedCharactersShareTable(t *testing.T) {
	// Table names follow the league key, which drops punctuation.
	a := CurrentPartition(types.LocaleEnglish, "Standard")
	b := CurrentPartition(types.LocaleEnglish, "Standard!")
	assert.Equal(t, a.TableName(), b.TableName())
}
