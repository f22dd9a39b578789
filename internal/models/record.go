package models

import (
	"encoding/json"
	"time"
)

// Record is one completed trade as stored in a partition.
type Record struct {
	ID             string          `json:"id" db:"id"`
	ItemName       string          `json:"item_name" db:"item_name"`
	ItemNameUnique *string         `json:"item_name_unique" db:"item_name_unique"`
	Currency       string          `json:"currency" db:"currency"`
	Amount         float64         `json:"amount" db:"amount"`
	Time           string          `json:"time" db:"time"`
	League         string          `json:"league" db:"league"`
	DetailsJSON    json.RawMessage `json:"details_json" db:"details_json"`
	SourceItemKey  string          `json:"source_item_key" db:"source_item_key"`
}

// Timestamp parses Time into an ordering key. Unparseable values map to the zero time.
func (r *Record) Timestamp() time.Time {
	ts, err := time.Parse(time.RFC3339Nano, r.Time)
	if err != nil {
		return time.Time{}
	}
	return ts
}

// TypeLine returns the item's type line from the opaque details payload.
func (r *Record) TypeLine() string {
	var details struct {
		TypeLine string `json:"typeLine"`
	}
	if len(r.DetailsJSON) == 0 || json.Unmarshal(r.DetailsJSON, &details) != nil {
		return ""
	}
	return details.TypeLine
}
