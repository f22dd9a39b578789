package api

import (
	"encoding/json"
	"net/http"

	syncerrors "github.com/trade-history-sync/internal/errors"
	"github.com/trade-history-sync/internal/types"
)

// Envelope is the body of every API response.
type Envelope struct {
	OK     bool                `json:"ok"`
	Result interface{}         `json:"result,omitempty"`
	Error  *types.ServiceError `json:"error,omitempty"`
}

// API-level error codes. Synchronization failures use the codes of types.ErrorCode.
const (
	ErrCodeInvalidInput     types.ErrorCode = "INVALID_INPUT"
	ErrCodeNotFound         types.ErrorCode = "NOT_FOUND"
	ErrCodeTooManyRequests  types.ErrorCode = "TOO_MANY_REQUESTS"
	ErrCodeInternalError    types.ErrorCode = "INTERNAL_ERROR"
	ErrCodeMethodNotAllowed types.ErrorCode = "METHOD_NOT_ALLOWED"
)

// respondError sends an error envelope.
func respondError(w http.ResponseWriter, statusCode int, code types.ErrorCode, message string, meta map[string]interface{}) {
	writeEnvelope(w, statusCode, Envelope{
		OK: false,
		Error: &types.ServiceError{
			Code:    code,
			Message: message,
			Meta:    meta,
		},
	})
}

// respondServiceError maps err onto the caller-facing taxonomy and its HTTP status.
func respondServiceError(w http.ResponseWriter, err error) {
	writeEnvelope(w, syncerrors.HTTPStatus(err), Envelope{
		OK:    false,
		Error: syncerrors.Categorize(err).ToServiceError(),
	})
}

// respondJSON sends a success envelope.
func respondJSON(w http.ResponseWriter, statusCode int, result interface{}) {
	writeEnvelope(w, statusCode, Envelope{OK: true, Result: result})
}

func writeEnvelope(w http.ResponseWriter, statusCode int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(env)
}
