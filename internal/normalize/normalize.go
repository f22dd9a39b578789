// Package normalize turns raw trade history feed responses into canonical records.
package normalize

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/trade-history-sync/internal/errors"
	"github.com/trade-history-sync/internal/models"
)

var (
	whitespaceRun = regexp.MustCompile(`[\s\p{Z}]+`)
	nonKeyChar    = regexp.MustCompile(`[^A-Za-z0-9_]`)
)

// LeagueKey derives the storage-safe key of a league id: trimmed, whitespace
// runs collapsed to "_", and everything outside [A-Za-z0-9_] removed.
func LeagueKey(leagueID string) string {
	key := whitespaceRun.ReplaceAllString(strings.TrimSpace(leagueID), "_")
	return nonKeyChar.ReplaceAllString(key, "")
}

// Decode parses a response body and normalizes it for league.
func Decode(body []byte, league string) ([]models.Record, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, errors.NewFeedShapeError(fmt.Errorf("decode response: %w", err))
	}

	var resp models.HistoryResponse
	raw, ok := envelope["result"]
	if !ok {
		return nil, errors.NewFeedShapeError(fmt.Errorf("missing result field"))
	}
	if err := json.Unmarshal(raw, &resp.Result); err != nil || resp.Result == nil {
		return nil, errors.NewFeedShapeError(fmt.Errorf("result is not a list"))
	}

	return History(&resp, league)
}

// History validates and converts every usable entry of resp.
//
// Entries missing an id, item, price or time are skipped. A single entry whose
// league differs from league fails the whole batch with LEAGUE_MISMATCH and
// no records are returned. Repeated ids keep their first occurrence. Input
// order is preserved.
func History(resp *models.HistoryResponse, league string) ([]models.Record, error) {
	if resp == nil || resp.Result == nil {
		return nil, errors.NewFeedShapeError(fmt.Errorf("missing result field"))
	}

	records := make([]models.Record, 0, len(resp.Result))
	seen := make(map[string]struct{}, len(resp.Result))

	for _, rawEntry := range resp.Result {
		entry, item, ok := parseEntry(rawEntry)
		if !ok {
			continue
		}

		actual := ""
		if item.League != nil {
			actual = *item.League
		}
		if item.League == nil || actual != league {
			return nil, errors.NewLeagueMismatchError(league, actual)
		}

		if _, dup := seen[entry.ItemID]; dup {
			continue
		}
		seen[entry.ItemID] = struct{}{}

		records = append(records, toRecord(entry, item, league))
	}

	return records, nil
}

// parseEntry decodes one feed entry, reporting false for shapes we skip.
func parseEntry(raw json.RawMessage) (*models.FeedEntry, *models.ItemPayload, bool) {
	var entry models.FeedEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, nil, false
	}
	if entry.ItemID == "" || entry.Price == nil || entry.Time == "" || isNullJSON(entry.Item) {
		return nil, nil, false
	}

	var item models.ItemPayload
	if err := json.Unmarshal(entry.Item, &item); err != nil {
		return nil, nil, false
	}
	return &entry, &item, true
}

func toRecord(entry *models.FeedEntry, item *models.ItemPayload, league string) models.Record {
	rec := models.Record{
		ID:            entry.ItemID,
		ItemName:      item.TypeLine,
		Currency:      entry.Price.Currency,
		Amount:        entry.Price.Amount,
		Time:          entry.Time,
		League:        *item.League,
		DetailsJSON:   append(json.RawMessage(nil), entry.Item...),
		SourceItemKey: league,
	}

	if strings.TrimSpace(item.Name) != "" {
		name := item.Name
		rec.ItemName = name + " " + item.TypeLine
		rec.ItemNameUnique = &name
	}

	return rec
}

func isNullJSON(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed == "" || trimmed == "null" || trimmed == "false"
}
