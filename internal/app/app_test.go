package app

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trade-history-sync/internal/config"
	syncerrors "github.com/trade-history-sync/internal/errors"
	"github.com/trade-history-sync/internal/service"
	"github.com/trade-history-sync/internal/types"
)

func testConfig(t *testing.T, feedHost string) *config.Config {
	t.Helper()
	return &config.Config{
		Database: config.DatabaseConfig{
			Driver:       config.DriverSQLite,
			StateBackend: config.StateBackendStore,
			SQLite:       config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "app.db")},
		},
		Sync: config.SyncConfig{
			Cooldown:     time.Minute,
			Leagues:      []string{"Standard"},
			Locale:       "en",
			PollInterval: 5 * time.Minute,
		},
		Auth: config.AuthConfig{SessionID: "session"},
		Feed: config.FeedConfig{Hosts: map[string]string{"en": feedHost}},
	}
}

func TestApp_EndToEnd(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		if c, err := r.Cookie("POESESSID"); err != nil || c.Value != "session" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"result":[
			{"item_id":"a","item":{"league":"Standard","name":"","typeLine":"Ruby Ring"},"price":{"amount":1,"currency":"divine"},"time":"2025-02-01T00:00:00Z"},
			{"item_id":"b","item":{"league":"Standard","name":"Doom","typeLine":"Leather Belt"},"price":{"amount":5,"currency":"chaos"},"time":"2025-01-01T00:00:00Z"}
		]}`)
	}))
	defer srv.Close()

	a, err := New(testConfig(t, srv.URL), nil)
	require.NoError(t, err)
	defer a.Close()

	ctx := context.Background()
	result, err := a.Sync.Synchronize(ctx, "Standard", a.Locale())
	require.NoError(t, err)
	assert.Equal(t, &types.SyncResult{AddedCount: 2, FetchedCount: 2, TotalCount: 2}, result)

	_, err = a.Sync.Synchronize(ctx, "Standard", a.Locale())
	assert.True(t, syncerrors.Is(err, types.CodeRateLimit))
	assert.Equal(t, int32(1), atomic.LoadInt32(&requests), "rejected attempt never reaches the feed")

	page, err := a.History.History(ctx, &service.HistoryQuery{League: "Standard", Locale: types.LocaleEnglish, TypeLine: "ring"})
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.Equal(t, "a", page.Records[0].ID)
	assert.Equal(t, 2, page.Total)

	w, err := a.NewWorker()
	require.NoError(t, err)
	assert.Equal(t, types.LocaleEnglish, w.GetStatus().Locale)
}

func TestApp_CooldownSurvivesRestart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":[]}`)
	}))
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	ctx := context.Background()

	first, err := New(cfg, nil)
	require.NoError(t, err)
	_, err = first.Sync.Synchronize(ctx, "Standard", types.LocaleEnglish)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := New(cfg, nil)
	require.NoError(t, err)
	defer second.Close()
	_, err = second.Sync.Synchronize(ctx, "Standard", types.LocaleEnglish)
	assert.True(t, syncerrors.Is(err, types.CodeRateLimit))
}
