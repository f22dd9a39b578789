package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	syncerrors "github.com/trade-history-sync/internal/errors"
	"github.com/trade-history-sync/internal/models"
	"github.com/trade-history-sync/internal/service"
	"github.com/trade-history-sync/internal/types"
)

func TestHandleSync_MigratesThenSynchronizes(t *testing.T) {
	server := createTestServer()

	w := server.do("POST", "/api/leagues/Dawn%20of%20the%20Hunt/sync?locale=ja-JP")
	require.Equal(t, http.StatusOK, w.Code)

	env := decodeEnvelope(t, w)
	assert.True(t, env.OK)
	var result types.SyncResult
	require.NoError(t, json.Unmarshal(env.Result, &result))
	assert.Equal(t, types.SyncResult{AddedCount: 3, FetchedCount: 5, TotalCount: 40}, result)

	assert.Equal(t, []string{
		"migrate:ja/Dawn of the Hunt",
		"sync:ja/Dawn of the Hunt",
	}, server.sync.calls)
}

func TestHandleSync_DefaultsToEnglish(t *testing.T) {
	server := createTestServer()

	server.do("POST", "/api/leagues/Standard/sync?locale=fr")
	assert.Equal(t, "sync:en/Standard", server.sync.calls[len(server.sync.calls)-1])
}

func TestHandleSync_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   types.ErrorCode
	}{
		{"rate limit", syncerrors.NewRateLimitError(42), http.StatusTooManyRequests, types.CodeRateLimit},
		{"auth", syncerrors.NewAuthExpiredError([]string{"POESESSID"}), http.StatusUnauthorized, types.CodeAuthExpired},
		{"mismatch", syncerrors.NewLeagueMismatchError("X", "Y"), http.StatusConflict, types.CodeLeagueMismatch},
		{"fetch", syncerrors.NewFetchFailedError(503), http.StatusBadGateway, types.CodeFetchFailed},
		{"store surfaces as unknown", syncerrors.NewStoreError("insert", errors.New("disk full")), http.StatusInternalServerError, types.CodeUnknown},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, types.CodeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := createTestServer()
			server.sync.synchronizeFunc = func(context.Context, string, types.Locale) (*types.SyncResult, error) {
				return nil, tt.err
			}

			w := server.do("POST", "/api/leagues/Standard/sync")
			assert.Equal(t, tt.wantStatus, w.Code)

			env := decodeEnvelope(t, w)
			assert.False(t, env.OK)
			require.NotNil(t, env.Error)
			assert.Equal(t, string(tt.wantCode), env.Error.Code)
			assert.NotEmpty(t, env.Error.Message)
		})
	}
}

func TestHandleSync_RateLimitMeta(t *testing.T) {
	server := createTestServer()
	server.sync.synchronizeFunc = func(context.Context, string, types.Locale) (*types.SyncResult, error) {
		return nil, syncerrors.NewRateLimitError(42)
	}

	env := decodeEnvelope(t, server.do("POST", "/api/leagues/Standard/sync"))
	require.NotNil(t, env.Error)
	assert.Equal(t, float64(42), env.Error.Meta["remainingSec"])
}

func TestHandleSync_RecoversFromPanic(t *testing.T) {
	server := createTestServer()
	server.sync.synchronizeFunc = func(context.Context, string, types.Locale) (*types.SyncResult, error) {
		panic("unexpected")
	}

	w := server.do("POST", "/api/leagues/Standard/sync")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	env := decodeEnvelope(t, w)
	require.NotNil(t, env.Error)
	assert.Equal(t, string(ErrCodeInternalError), env.Error.Code)
}

func TestHandleSync_WrongMethod(t *testing.T) {
	server := createTestServer()

	w := server.do("GET", "/api/leagues/Standard/sync")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	env := decodeEnvelope(t, w)
	require.NotNil(t, env.Error)
	assert.Equal(t, string(ErrCodeMethodNotAllowed), env.Error.Code)
	assert.Empty(t, server.sync.calls)

	w = server.do("DELETE", "/api/credentials")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w = server.do("GET", "/api/leagues/Standard/unknown")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleHistory(t *testing.T) {
	server := createTestServer()

	w := server.do("GET", "/api/leagues/Standard/history?locale=ja&q=ring&page=2&pageSize=10")
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, &service.HistoryQuery{
		League:   "Standard",
		Locale:   types.LocaleJapanese,
		TypeLine: "ring",
		Page:     2,
		PageSize: 10,
	}, server.history.lastQuery)

	env := decodeEnvelope(t, w)
	var page service.HistoryPage
	require.NoError(t, json.Unmarshal(env.Result, &page))
	require.Len(t, page.Records, 1)
	assert.Equal(t, "a", page.Records[0].ID)
	assert.Equal(t, []types.CurrencyTotal{{Currency: "chaos", Amount: "2"}}, page.Totals)
}

func TestHandleHistory_InvalidPagination(t *testing.T) {
	server := createTestServer()

	for _, target := range []string{
		"/api/leagues/Standard/history?page=0",
		"/api/leagues/Standard/history?page=abc",
		"/api/leagues/Standard/history?pageSize=-5",
	} {
		w := server.do("GET", target)
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
		env := decodeEnvelope(t, w)
		require.NotNil(t, env.Error, target)
		assert.Equal(t, string(ErrCodeInvalidInput), env.Error.Code, target)
	}
	assert.Nil(t, server.history.lastQuery)
}

func TestHandleHistory_StoreFailure(t *testing.T) {
	server := createTestServer()
	server.history.err = syncerrors.NewStoreError("select", errors.New("locked"))

	w := server.do("GET", "/api/leagues/Standard/history")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	env := decodeEnvelope(t, w)
	require.NotNil(t, env.Error)
	assert.Equal(t, string(types.CodeUnknown), env.Error.Code)
}

func TestHandleLeagues(t *testing.T) {
	server := createTestServer()

	w := server.do("GET", "/api/leagues")
	require.Equal(t, http.StatusOK, w.Code)

	env := decodeEnvelope(t, w)
	var leagues []models.League
	require.NoError(t, json.Unmarshal(env.Result, &leagues))
	assert.Equal(t, "Standard", leagues[0].ID)
	assert.Len(t, leagues, 2)
}

func TestHandleLeagues_FeedFailure(t *testing.T) {
	server := createTestServer()
	server.leagues.err = syncerrors.NewLeagueListError(errors.New("no config"))

	w := server.do("GET", "/api/leagues")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	env := decodeEnvelope(t, w)
	require.NotNil(t, env.Error)
	assert.Equal(t, string(types.CodeFetchFailed), env.Error.Code)
}

func TestHandleCredentials(t *testing.T) {
	server := createTestServer()

	env := decodeEnvelope(t, server.do("GET", "/api/credentials?locale=ja"))
	var statuses []types.CredentialStatus
	require.NoError(t, json.Unmarshal(env.Result, &statuses))
	require.Len(t, statuses, 1)
	assert.Equal(t, "POESESSID", statuses[0].Name)
	assert.False(t, statuses[0].Present)
}

func TestOptionalPositiveInt(t *testing.T) {
	n, err := optionalPositiveInt("")
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = optionalPositiveInt("7")
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	_, err = optionalPositiveInt("0")
	assert.Error(t, err)
}
