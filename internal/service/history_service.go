package service

import (
	"context"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/trade-history-sync/internal/migration"
	"github.com/trade-history-sync/internal/models"
	"github.com/trade-history-sync/internal/storage"
	"github.com/trade-history-sync/internal/types"
)

// CurrencyOrder is the display order of known currencies. Others follow in
// first-seen order.
var CurrencyOrder = []string{
	"divine", "exalted", "chaos", "annul", "regal", "alchemy",
	"chance", "scour", "transmute", "alteration", "augmentation", "wisdom",
}

const (
	defaultPageSize = 50
	maxPageSize     = 1000
)

// Migrator prepares a partition before first use
type Migrator interface {
	MigrateIfNeeded(ctx context.Context, l types.Locale, league string) migration.Result
}

// HistoryService reads stored records for display and export
type HistoryService struct {
	history  storage.HistoryStore
	migrator Migrator
}

// NewHistoryService creates a new history service
func NewHistoryService(history storage.HistoryStore, migrator Migrator) *HistoryService {
	return &HistoryService{history: history, migrator: migrator}
}

// HistoryQuery selects records of one partition
type HistoryQuery struct {
	League   string       `json:"league"`
	Locale   types.Locale `json:"locale"`
	TypeLine string       `json:"q,omitempty"`        // case-insensitive substring of the item type line
	Page     int          `json:"page,omitempty"`     // 1-based, clamped to the last page
	PageSize int          `json:"pageSize,omitempty"` // Default: 50, Max: 1000
}

// HistoryPage is one page of records plus partition-wide totals
type HistoryPage struct {
	League     string                `json:"league"`
	Locale     types.Locale          `json:"locale"`
	Records    []models.Record       `json:"records"`
	Totals     []types.CurrencyTotal `json:"totals"`
	Total      int                   `json:"total"`   // records in the partition
	Matched    int                   `json:"matched"` // records passing the filter
	Page       int                   `json:"page"`
	PageSize   int                   `json:"pageSize"`
	TotalPages int                   `json:"totalPages"`
}

// History migrates the partition if needed and returns the requested page,
// newest first. Totals cover every record of the partition.
func (s *HistoryService) History(ctx context.Context, q *HistoryQuery) (*HistoryPage, error) {
	if s.migrator != nil {
		s.migrator.MigrateIfNeeded(ctx, q.Locale, q.League)
	}

	records, err := s.history.GetAll(ctx, storage.CurrentPartition(q.Locale, q.League))
	if err != nil {
		return nil, err
	}
	SortNewestFirst(records)

	matched := FilterByTypeLine(records, q.TypeLine)

	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	totalPages := (len(matched) + pageSize - 1) / pageSize
	if totalPages < 1 {
		totalPages = 1
	}
	page := q.Page
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	start := (page - 1) * pageSize
	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}
	pageRecords := make([]models.Record, end-start)
	copy(pageRecords, matched[start:end])

	return &HistoryPage{
		League:     q.League,
		Locale:     q.Locale,
		Records:    pageRecords,
		Totals:     CurrencyTotals(records),
		Total:      len(records),
		Matched:    len(matched),
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

// SortNewestFirst orders records by time, newest first. Unparseable times sort last.
func SortNewestFirst(records []models.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp().After(records[j].Timestamp())
	})
}

// FilterByTypeLine keeps records whose type line contains query, ignoring case
func FilterByTypeLine(records []models.Record, query string) []models.Record {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return records
	}

	out := make([]models.Record, 0, len(records))
	for _, r := range records {
		if strings.Contains(strings.ToLower(r.TypeLine()), query) {
			out = append(out, r)
		}
	}
	return out
}

// CurrencyTotals sums amounts per currency in CurrencyOrder, then extras in
// first-seen order. Records without a currency are ignored.
func CurrencyTotals(records []models.Record) []types.CurrencyTotal {
	sums := map[string]decimal.Decimal{}
	var extras []string
	known := map[string]bool{}
	for _, c := range CurrencyOrder {
		known[c] = true
	}

	for _, r := range records {
		if r.Currency == "" {
			continue
		}
		if _, ok := sums[r.Currency]; !ok && !known[r.Currency] {
			extras = append(extras, r.Currency)
		}
		sums[r.Currency] = sums[r.Currency].Add(decimal.NewFromFloat(r.Amount))
	}

	totals := make([]types.CurrencyTotal, 0, len(sums))
	for _, c := range append(append([]string{}, CurrencyOrder...), extras...) {
		if sum, ok := sums[c]; ok {
			totals = append(totals, types.CurrencyTotal{Currency: c, Amount: sum.String()})
		}
	}
	return totals
}
