// Package adapter talks to the trade site: the history feed, the league list
// and the session credentials it requires.
package adapter

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	syncerrors "github.com/trade-history-sync/internal/errors"
	"github.com/trade-history-sync/internal/locale"
	"github.com/trade-history-sync/internal/logging"
	"github.com/trade-history-sync/internal/models"
	"github.com/trade-history-sync/internal/normalize"
	"github.com/trade-history-sync/internal/types"
)

const (
	historyAPIPath  = "/api/trade2/history/"
	historyPagePath = "/trade2/history"
)

// FeedClient fetches trade history and league lists from the trade site.
// Requests carry no timeout of their own; callers bound them through ctx.
type FeedClient struct {
	client  *http.Client
	hosts   locale.Hosts
	cookies CookieStore
	health  *healthTracker
	logger  *logging.Logger
}

// FeedClientConfig holds configuration for the feed client
type FeedClientConfig struct {
	// HTTPClient performs requests. Default: a client without timeout
	HTTPClient *http.Client
	// Hosts resolves locale origins. Default: the public sites
	Hosts locale.Hosts
	// Cookies supplies the session attached to requests. Required
	Cookies CookieStore
	Logger  *logging.Logger
}

// NewFeedClient creates a new feed client
func NewFeedClient(cfg *FeedClientConfig) (*FeedClient, error) {
	if cfg == nil || cfg.Cookies == nil {
		return nil, fmt.Errorf("cookie store is required")
	}

	c := &FeedClient{
		client:  cfg.HTTPClient,
		hosts:   cfg.Hosts,
		cookies: cfg.Cookies,
		health:  newHealthTracker(),
		logger:  cfg.Logger,
	}
	if c.client == nil {
		c.client = &http.Client{}
	}
	if c.hosts == nil {
		c.hosts = locale.Hosts{}
	}
	if c.logger == nil {
		c.logger = logging.Discard()
	}
	return c, nil
}

// Host returns the origin used for l
func (c *FeedClient) Host(l types.Locale) string {
	return c.hosts.For(l)
}

// Cookies returns the credential store used by the client
func (c *FeedClient) Cookies() CookieStore {
	return c.cookies
}

// Health returns request statistics
func (c *FeedClient) Health() *FeedHealth {
	return c.health.snapshot()
}

// FetchHistoryBody performs the history request and returns the raw body.
// Non-2xx statuses fail with FETCH_FAILED carrying the status.
func (c *FeedClient) FetchHistoryBody(ctx context.Context, league string, l types.Locale) ([]byte, error) {
	host := c.Host(l)
	endpoint := host + historyAPIPath + url.PathEscape(league)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, syncerrors.NewFetchTransportError(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", locale.AcceptLanguage(l))
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("Referer", host+historyPagePath)
	if err := c.attachSession(ctx, req, host); err != nil {
		return nil, err
	}

	return c.do(req, league, l)
}

// FetchHistory fetches and normalizes the history of league
func (c *FeedClient) FetchHistory(ctx context.Context, league string, l types.Locale) ([]models.Record, error) {
	body, err := c.FetchHistoryBody(ctx, league, l)
	if err != nil {
		return nil, err
	}
	return normalize.Decode(body, league)
}

// FetchLeagues scrapes the league list from the history page of l
func (c *FeedClient) FetchLeagues(ctx context.Context, l types.Locale) ([]models.League, error) {
	host := c.Host(l)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, host+historyPagePath, nil)
	if err != nil {
		return nil, syncerrors.NewLeagueListError(err)
	}
	req.Header.Set("Accept-Language", locale.AcceptLanguage(l))
	if err := c.attachSession(ctx, req, host); err != nil {
		return nil, err
	}

	body, err := c.do(req, "", l)
	if err != nil {
		return nil, err
	}

	leagues, err := ExtractLeagues(body)
	if err != nil {
		return nil, syncerrors.NewLeagueListError(err)
	}
	return leagues, nil
}

func (c *FeedClient) attachSession(ctx context.Context, req *http.Request, host string) error {
	cookie, err := c.cookies.Cookie(ctx, host, SessionCookieName)
	if err != nil {
		return syncerrors.NewUnknownError(fmt.Errorf("read session cookie: %w", err))
	}
	if cookie != nil {
		req.AddCookie(&http.Cookie{Name: cookie.Name, Value: cookie.Value})
	}
	return nil
}

func (c *FeedClient) do(req *http.Request, league string, l types.Locale) ([]byte, error) {
	log := c.logger.WithFields(map[string]interface{}{
		"url":    req.URL.Path,
		"league": league,
		"locale": string(l),
	})

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.health.recordFailure(0)
		log.WithError(err).Warn("Feed request failed")
		return nil, syncerrors.NewFetchTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.health.recordFailure(resp.StatusCode)
		_, _ = io.Copy(io.Discard, resp.Body)
		log.WithField("status", resp.StatusCode).Warn("Feed returned non-success status")
		return nil, syncerrors.NewFetchFailedError(resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.health.recordFailure(resp.StatusCode)
		return nil, syncerrors.NewFetchTransportError(fmt.Errorf("failed to read response: %w", err))
	}

	c.health.recordSuccess(resp.StatusCode, time.Since(start))
	log.WithFields(map[string]interface{}{
		"status":   resp.StatusCode,
		"bytes":    len(body),
		"duration": time.Since(start).String(),
	}).Debug("Feed request completed")
	return body, nil
}
