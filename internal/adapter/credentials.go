package adapter

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/trade-history-sync/internal/config"
	"github.com/trade-history-sync/internal/locale"
	"github.com/trade-history-sync/internal/types"
)

// SessionCookieName is the login session cookie of the trade site
const SessionCookieName = "POESESSID"

// RequiredCookies must all be present before the feed is requested
var RequiredCookies = []string{SessionCookieName}

// Cookie is a credential available for a host
type Cookie struct {
	Name    string
	Value   string
	Expires *time.Time
}

// CookieStore looks up credentials by host and name
type CookieStore interface {
	// Cookie returns the named cookie for host, or nil if there is none
	Cookie(ctx context.Context, host, name string) (*Cookie, error)
}

// ConfigCookieStore serves session cookies from configuration
type ConfigCookieStore struct {
	auth  config.AuthConfig
	hosts locale.Hosts
}

// NewConfigCookieStore creates a cookie store over the configured sessions
func NewConfigCookieStore(auth config.AuthConfig, hosts locale.Hosts) *ConfigCookieStore {
	return &ConfigCookieStore{auth: auth, hosts: hosts}
}

// Cookie implements CookieStore
func (s *ConfigCookieStore) Cookie(_ context.Context, host, name string) (*Cookie, error) {
	if name != SessionCookieName {
		return nil, nil
	}

	l, ok := s.localeForHost(host)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(s.auth.SessionFor(string(l)))
	if value == "" {
		return nil, nil
	}
	return &Cookie{Name: name, Value: value}, nil
}

func (s *ConfigCookieStore) localeForHost(host string) (types.Locale, bool) {
	want := hostname(host)
	for _, l := range []types.Locale{types.LocaleEnglish, types.LocaleJapanese} {
		if hostname(s.hosts.For(l)) == want {
			return l, true
		}
	}
	return "", false
}

func hostname(origin string) string {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return strings.ToLower(strings.TrimRight(origin, "/"))
	}
	return strings.ToLower(u.Host)
}

// MissingCredentials returns the required cookies absent for host
func MissingCredentials(ctx context.Context, store CookieStore, host string) ([]string, error) {
	var missing []string
	for _, name := range RequiredCookies {
		c, err := store.Cookie(ctx, host, name)
		if err != nil {
			return nil, err
		}
		if c == nil {
			missing = append(missing, name)
		}
	}
	return missing, nil
}

// CredentialStatuses reports presence and expiry of every required cookie
func CredentialStatuses(ctx context.Context, store CookieStore, host string) ([]types.CredentialStatus, error) {
	statuses := make([]types.CredentialStatus, 0, len(RequiredCookies))
	for _, name := range RequiredCookies {
		c, err := store.Cookie(ctx, host, name)
		if err != nil {
			return nil, err
		}
		status := types.CredentialStatus{Name: name, Present: c != nil}
		if c != nil && c.Expires != nil {
			exp := c.Expires.UTC().Format(time.RFC3339)
			status.ExpiresAt = &exp
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}
