// Package types provides common type definitions for the trade history synchronizer.
package types

// Locale represents a regional variant of the trade site. It selects both the
// remote host and the local storage partition.
type Locale string

const (
	// LocaleEnglish is the international site
	LocaleEnglish Locale = "en"
	// LocaleJapanese is the Japanese site
	LocaleJapanese Locale = "ja"
)

// ErrorCode identifies a failure class reported to callers of a synchronization.
type ErrorCode string

const (
	// CodeFetchFailed covers network failures and malformed feed responses
	CodeFetchFailed ErrorCode = "FETCH_FAILED"
	// CodeLeagueMismatch means the feed returned an entry for a different league
	CodeLeagueMismatch ErrorCode = "LEAGUE_MISMATCH"
	// CodeAuthExpired means a required session credential is missing
	CodeAuthExpired ErrorCode = "AUTH_EXPIRED"
	// CodeRateLimit means the client-side cooldown has not elapsed yet
	CodeRateLimit ErrorCode = "RATE_LIMIT"
	// CodeStoreWriteFailed is the fatal storage class (anything but a duplicate key)
	CodeStoreWriteFailed ErrorCode = "STORE_WRITE_FAILED"
	// CodeUnknown is the catch-all for unclassified failures
	CodeUnknown ErrorCode = "UNKNOWN"
)

// InboundCodes are the codes a caller of synchronize may observe.
var InboundCodes = []ErrorCode{
	CodeFetchFailed,
	CodeLeagueMismatch,
	CodeAuthExpired,
	CodeRateLimit,
	CodeUnknown,
}

// IsInbound reports whether code belongs to the caller-facing taxonomy.
func (c ErrorCode) IsInbound() bool {
	for _, inbound := range InboundCodes {
		if c == inbound {
			return true
		}
	}
	return false
}

// ServiceError represents a structured error response
type ServiceError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Meta    map[string]interface{} `json:"meta"`
}

func (e *ServiceError) Error() string {
	return e.Message
}

// SyncResult summarizes one synchronization pass.
type SyncResult struct {
	AddedCount   int   `json:"addedCount"`
	FetchedCount int   `json:"fetchedCount"`
	TotalCount   int64 `json:"totalCount"`
}

// CurrencyTotal is the summed amount for one currency.
type CurrencyTotal struct {
	Currency string `json:"currency"`
	Amount   string `json:"amount"`
}

// CredentialStatus describes whether a required session cookie is available.
type CredentialStatus struct {
	Name      string  `json:"name"`
	Present   bool    `json:"present"`
	ExpiresAt *string `json:"expiresAt,omitempty"`
}
