// Package models holds the persisted record type and the raw shapes of the remote feed.
package models

import "encoding/json"

// HistoryResponse is the envelope returned by the trade history endpoint.
// Result stays raw so malformed entries can be skipped one by one.
type HistoryResponse struct {
	Result []json.RawMessage `json:"result"`
}

// FeedEntry is a single entry of the history feed.
type FeedEntry struct {
	ItemID string          `json:"item_id"`
	Item   json.RawMessage `json:"item"`
	Price  *PricePayload   `json:"price"`
	Time   string          `json:"time"`
}

// ItemPayload is the subset of the item document the normalizer reads.
// The full document is kept verbatim in Record.DetailsJSON.
type ItemPayload struct {
	League   *string `json:"league"`
	Name     string  `json:"name"`
	TypeLine string  `json:"typeLine"`
}

// PricePayload is the sale price of an entry.
type PricePayload struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// League is one selectable league as advertised by the trade site.
type League struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}
