package adapter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trade-history-sync/internal/config"
	"github.com/trade-history-sync/internal/locale"
	"github.com/trade-history-sync/internal/types"
)

type staticCookies map[string]*Cookie

func (s staticCookies) Cookie(_ context.Context, host, name string) (*Cookie, error) {
	return s[host+"|"+name], nil
}

func TestConfigCookieStore_PerLocale(t *testing.T) {
	hosts := locale.NewHosts(nil)
	store := NewConfigCookieStore(config.AuthConfig{
		SessionID:       "shared",
		SessionByLocale: map[string]string{"ja": "japan-only"},
	}, hosts)
	ctx := context.Background()

	c, err := store.Cookie(ctx, "https://jp.pathofexile.com", SessionCookieName)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "japan-only", c.Value)

	c, err = store.Cookie(ctx, "https://pathofexile.com/", SessionCookieName)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "shared", c.Value)

	c, err = store.Cookie(ctx, "https://example.com", SessionCookieName)
	require.NoError(t, err)
	assert.Nil(t, c)

	c, err = store.Cookie(ctx, "https://pathofexile.com", "other")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestMissingCredentials(t *testing.T) {
	ctx := context.Background()
	host := locale.Host(types.LocaleEnglish)

	missing, err := MissingCredentials(ctx, staticCookies{}, host)
	require.NoError(t, err)
	assert.Equal(t, []string{"POESESSID"}, missing)

	missing, err = MissingCredentials(ctx, staticCookies{host + "|POESESSID": {Name: "POESESSID", Value: "x"}}, host)
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestCredentialStatuses(t *testing.T) {
	host := locale.Host(types.LocaleJapanese)
	exp := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	statuses, err := CredentialStatuses(context.Background(), staticCookies{
		host + "|POESESSID": {Name: "POESESSID", Value: "x", Expires: &exp},
	}, host)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.True(t, statuses[0].Present)
	require.NotNil(t, statuses[0].ExpiresAt)
	assert.Equal(t, "2026-01-02T03:04:05Z", *statuses[0].ExpiresAt)
}
