// Package errors defines the categorized failures of a synchronization pass.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/trade-history-sync/internal/types"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryProvider represents remote feed errors
	CategoryProvider ErrorCategory = "provider"
	// CategoryIntegrity represents data that contradicts the requested partition
	CategoryIntegrity ErrorCategory = "integrity"
	// CategoryAuthorization represents missing or expired credentials
	CategoryAuthorization ErrorCategory = "authorization"
	// CategoryRateLimit represents client-side throttling
	CategoryRateLimit ErrorCategory = "rate_limit"
	// CategoryDatabase represents local store errors
	CategoryDatabase ErrorCategory = "database"
	// CategorySystem represents everything else
	CategorySystem ErrorCategory = "system"
)

// SyncError is an error with a caller-facing code and metadata.
type SyncError struct {
	Category ErrorCategory
	Code     types.ErrorCode
	Message  string
	Meta     map[string]interface{}
	Cause    error
}

// Error implements the error interface
func (e *SyncError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *SyncError) Unwrap() error {
	return e.Cause
}

// ToServiceError converts to the caller-facing shape. Codes outside the inbound
// taxonomy are reported as UNKNOWN with the original message.
func (e *SyncError) ToServiceError() *types.ServiceError {
	code := e.Code
	if !code.IsInbound() {
		code = types.CodeUnknown
	}
	return &types.ServiceError{
		Code:    code,
		Message: e.Message,
		Meta:    e.Meta,
	}
}

// NewFetchFailedError reports a non-success HTTP status from the feed.
func NewFetchFailedError(status int) *SyncError {
	return &SyncError{
		Category: CategoryProvider,
		Code:     types.CodeFetchFailed,
		Message:  fmt.Sprintf("failed to fetch trade history (status %d)", status),
		Meta: map[string]interface{}{
			"status": status,
		},
	}
}

// NewFetchTransportError reports a network failure while talking to the feed.
func NewFetchTransportError(cause error) *SyncError {
	return &SyncError{
		Category: CategoryProvider,
		Code:     types.CodeFetchFailed,
		Message:  "failed to fetch trade history",
		Cause:    cause,
	}
}

// NewFeedShapeError reports a response without a usable result sequence.
func NewFeedShapeError(cause error) *SyncError {
	return &SyncError{
		Category: CategoryProvider,
		Code:     types.CodeFetchFailed,
		Message:  "response does not contain a result list",
		Cause:    cause,
	}
}

// NewLeagueListError reports a league page that could not be scraped.
func NewLeagueListError(cause error) *SyncError {
	return &SyncError{
		Category: CategoryProvider,
		Code:     types.CodeFetchFailed,
		Message:  "failed to load leagues",
		Cause:    cause,
	}
}

// NewLeagueMismatchError reports an entry whose league differs from the requested one.
func NewLeagueMismatchError(expected, actual string) *SyncError {
	return &SyncError{
		Category: CategoryIntegrity,
		Code:     types.CodeLeagueMismatch,
		Message:  fmt.Sprintf("league mismatch: expected %q, got %q", expected, actual),
		Meta: map[string]interface{}{
			"expectedLeague": expected,
			"actualLeague":   actual,
		},
	}
}

// NewAuthExpiredError reports required credentials that are not present.
func NewAuthExpiredError(missing []string) *SyncError {
	return &SyncError{
		Category: CategoryAuthorization,
		Code:     types.CodeAuthExpired,
		Message:  "login session has expired",
		Meta: map[string]interface{}{
			"missing": missing,
		},
	}
}

// NewRateLimitError reports the remaining cooldown in whole seconds.
func NewRateLimitError(remainingSec int) *SyncError {
	return &SyncError{
		Category: CategoryRateLimit,
		Code:     types.CodeRateLimit,
		Message:  fmt.Sprintf("updates are limited to once per minute, wait %d seconds", remainingSec),
		Meta: map[string]interface{}{
			"remainingSec": remainingSec,
		},
	}
}

// NewStoreError reports an unexpected local store failure.
func NewStoreError(operation string, cause error) *SyncError {
	return &SyncError{
		Category: CategoryDatabase,
		Code:     types.CodeStoreWriteFailed,
		Message:  fmt.Sprintf("local store error during %s", operation),
		Cause:    cause,
		Meta: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewUnknownError wraps an unclassified failure.
func NewUnknownError(cause error) *SyncError {
	return &SyncError{
		Category: CategorySystem,
		Code:     types.CodeUnknown,
		Message:  "an unexpected error occurred",
		Cause:    cause,
	}
}

// Categorize returns the SyncError in err's chain, or wraps err as UNKNOWN.
func Categorize(err error) *SyncError {
	if err == nil {
		return nil
	}

	var syncErr *SyncError
	if stderrors.As(err, &syncErr) {
		return syncErr
	}

	return NewUnknownError(err)
}

// CodeOf returns the code of err, UNKNOWN for unclassified errors.
func CodeOf(err error) types.ErrorCode {
	if err == nil {
		return ""
	}
	return Categorize(err).Code
}

// Is reports whether err carries the given code.
func Is(err error, code types.ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// HTTPStatus returns the HTTP status code for an error
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case types.CodeRateLimit:
		return http.StatusTooManyRequests
	case types.CodeAuthExpired:
		return http.StatusUnauthorized
	case types.CodeLeagueMismatch:
		return http.StatusConflict
	case types.CodeFetchFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// IsRetryable reports whether the caller may retry after the cooldown.
func IsRetryable(err error) bool {
	switch CodeOf(err) {
	case types.CodeFetchFailed, types.CodeRateLimit:
		return true
	default:
		return false
	}
}
