package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trade-history-sync/internal/config"
	"github.com/trade-history-sync/internal/types"
)

const feedBody = `{"result":[
	{"item_id":"a","item":{"league":"Standard","name":"","typeLine":"Ruby Ring"},"price":{"amount":1.5,"currency":"divine"},"time":"2025-02-01T00:00:00Z"},
	{"item_id":"b","item":{"league":"Standard","name":"Doom Hold","typeLine":"Leather Belt"},"price":{"amount":5,"currency":"chaos"},"time":"2025-01-01T00:00:00Z"}
]}`

const leaguePage = `<html><body><script>
require(["trade"], function(t){ t({"leagues":[{"id":"Standard","text":"Standard"},{"id":"Hardcore","text":"Hardcore League"}]}); });
</script></body></html>`

func newFeedServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/api/trade2/history/"):
			fmt.Fprint(w, feedBody)
		case r.URL.Path == "/trade2/history":
			fmt.Fprint(w, leaguePage)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testOptions(t *testing.T, feedHost, session string) *RootOptions {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "cli.db")
	return &RootOptions{
		LoadConfig: func() (*config.Config, error) {
			return &config.Config{
				Database: config.DatabaseConfig{
					Driver:       config.DriverSQLite,
					StateBackend: config.StateBackendStore,
					SQLite:       config.SQLiteConfig{Path: dbPath},
				},
				Sync: config.SyncConfig{
					Cooldown:     time.Minute,
					Locale:       "en",
					PollInterval: 5 * time.Minute,
				},
				Auth:    config.AuthConfig{SessionID: session},
				Feed:    config.FeedConfig{Hosts: map[string]string{"en": feedHost}},
				Logging: config.LoggingConfig{Level: "info", Format: "text"},
			}, nil
		},
	}
}

func execute(opts *RootOptions, args ...string) (string, string, error) {
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := newRootCommand(opts)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

type jsonResponse struct {
	OK     bool                `json:"ok"`
	Result json.RawMessage     `json:"result"`
	Error  *types.ServiceError `json:"error"`
}

func TestSyncCommand(t *testing.T) {
	opts := testOptions(t, newFeedServer(t).URL, "session")

	stdout, _, err := execute(opts, "sync", "Standard")
	require.NoError(t, err)
	assert.Equal(t, "Standard (en): 2 new, 2 fetched, 2 stored\n", stdout)

	stdout, stderr, err := execute(opts, "sync", "Standard")
	require.Error(t, err)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "Error [RATE_LIMIT]")
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, IsReported(err))
}

func TestSyncCommand_JSON(t *testing.T) {
	opts := testOptions(t, newFeedServer(t).URL, "session")

	stdout, _, err := execute(opts, "sync", "Standard", "--format", "json")
	require.NoError(t, err)

	var resp jsonResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.True(t, resp.OK)
	var result types.SyncResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.Equal(t, 2, result.AddedCount)
}

func TestSyncCommand_MissingSession(t *testing.T) {
	opts := testOptions(t, newFeedServer(t).URL, "")

	stdout, _, err := execute(opts, "sync", "Standard", "--format", "json")
	require.Error(t, err)

	var resp jsonResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.False(t, resp.OK)
	require.NotNil(t, resp.Error)
	assert.Equal(t, types.CodeAuthExpired, resp.Error.Code)
}

func TestHistoryCommand(t *testing.T) {
	opts := testOptions(t, newFeedServer(t).URL, "session")
	_, _, err := execute(opts, "sync", "Standard")
	require.NoError(t, err)

	stdout, _, err := execute(opts, "history", "Standard")
	require.NoError(t, err)
	lines := strings.Split(stdout, "\n")
	assert.Contains(t, lines[1], "Ruby Ring", "newest first")
	assert.Contains(t, lines[2], "Doom Hold Leather Belt")
	assert.Contains(t, stdout, "Totals: 1.5 divine 5 chaos")

	stdout, _, err = execute(opts, "history", "Standard", "-q", "belt")
	require.NoError(t, err)
	assert.Contains(t, stdout, "1 of 2 trades match")
	assert.NotContains(t, stdout, "Ruby Ring")
}

func TestLeaguesCommand(t *testing.T) {
	opts := testOptions(t, newFeedServer(t).URL, "session")

	stdout, _, err := execute(opts, "leagues")
	require.NoError(t, err)
	assert.Equal(t, "Standard\nHardcore\tHardcore League\n", stdout)
}

func TestCredentialsCommand(t *testing.T) {
	opts := testOptions(t, newFeedServer(t).URL, "session")

	stdout, _, err := execute(opts, "credentials")
	require.NoError(t, err)
	assert.Equal(t, "POESESSID: present\n", stdout)

	stdout, _, err = execute(opts, "credentials", "--locale", "ja")
	require.NoError(t, err)
	assert.Equal(t, "POESESSID: present\n", stdout, "shared session applies to every locale")
}

func TestDBMigrateCommand(t *testing.T) {
	opts := testOptions(t, "http://127.0.0.1:1", "")

	stdout, _, err := execute(opts, "db", "migrate", "version")
	require.NoError(t, err)
	assert.Equal(t, "Schema version 0 (dirty: false)\n", stdout)

	stdout, _, err = execute(opts, "db", "migrate", "up")
	require.NoError(t, err)
	assert.Equal(t, "Schema version 1 (dirty: false)\n", stdout)

	stdout, _, err = execute(opts, "db", "migrate", "down", "--format", "json")
	require.NoError(t, err)
	var resp jsonResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	var status MigrationStatus
	require.NoError(t, json.Unmarshal(resp.Result, &status))
	assert.Equal(t, MigrationStatus{Action: "down", Version: 0}, status)

	_, _, err = execute(opts, "db", "migrate", "sideways")
	assert.Error(t, err)
}

func TestConfigFailureIsCommandError(t *testing.T) {
	opts := &RootOptions{LoadConfig: func() (*config.Config, error) {
		return nil, errors.New("bad STORE_DRIVER")
	}}

	_, _, err := execute(opts, "credentials")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.False(t, IsReported(err))
}

func TestWatchCommand_StopsWithContext(t *testing.T) {
	opts := testOptions(t, newFeedServer(t).URL, "session")

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	stdout := &bytes.Buffer{}
	cmd := newRootCommand(opts)
	cmd.SetOut(stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"watch", "--league", "Standard", "--interval", "2m"})
	require.NoError(t, cmd.ExecuteContext(ctx))
	assert.Contains(t, stdout.String(), "0 passes")
}

func TestWatchCommand_RejectsShortInterval(t *testing.T) {
	opts := testOptions(t, newFeedServer(t).URL, "session")

	_, _, err := execute(opts, "watch", "--league", "Standard", "--interval", "10s")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
