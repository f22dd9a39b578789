package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trade-history-sync/internal/types"
)

func TestCategorize(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		assert.Nil(t, Categorize(nil))
	})

	t.Run("wrapped sync error is found", func(t *testing.T) {
		base := NewRateLimitError(12)
		wrapped := fmt.Errorf("gate: %w", base)

		got := Categorize(wrapped)
		require.NotNil(t, got)
		assert.Equal(t, types.CodeRateLimit, got.Code)
		assert.Equal(t, 12, got.Meta["remainingSec"])
	})

	t.Run("plain error becomes unknown", func(t *testing.T) {
		got := Categorize(fmt.Errorf("boom"))
		assert.Equal(t, types.CodeUnknown, got.Code)
		assert.EqualError(t, got.Cause, "boom")
	})
}

func TestToServiceError(t *testing.T) {
	tests := []struct {
		name     string
		err      *SyncError
		wantCode types.ErrorCode
	}{
		{"league mismatch", NewLeagueMismatchError("Standard", "Hardcore"), types.CodeLeagueMismatch},
		{"auth expired", NewAuthExpiredError([]string{"POESESSID"}), types.CodeAuthExpired},
		{"fetch failed", NewFetchFailedError(503), types.CodeFetchFailed},
		{"store error surfaces as unknown", NewStoreError("insert", fmt.Errorf("disk full")), types.CodeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := tt.err.ToServiceError()
			assert.Equal(t, tt.wantCode, svc.Code)
			assert.Equal(t, tt.err.Message, svc.Message)
		})
	}
}

func TestLeagueMismatchMeta(t *testing.T) {
	err := NewLeagueMismatchError("Dawn", "Standard")
	assert.Equal(t, "Dawn", err.Meta["expectedLeague"])
	assert.Equal(t, "Standard", err.Meta["actualLeague"])
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusTooManyRequests, HTTPStatus(NewRateLimitError(1)))
	assert.Equal(t, http.StatusUnauthorized, HTTPStatus(NewAuthExpiredError(nil)))
	assert.Equal(t, http.StatusConflict, HTTPStatus(NewLeagueMismatchError("a", "b")))
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(NewFetchFailedError(500)))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(fmt.Errorf("other")))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewFetchFailedError(502)))
	assert.True(t, IsRetryable(NewRateLimitError(30)))
	assert.False(t, IsRetryable(NewLeagueMismatchError("a", "b")))
	assert.False(t, IsRetryable(NewAuthExpiredError([]string{"POESESSID"})))
	assert.False(t, IsRetryable(nil))
}
