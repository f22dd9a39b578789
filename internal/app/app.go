// Package app wires configuration into the components shared by the server
// and the command line tool.
package app

import (
	"fmt"

	"github.com/trade-history-sync/internal/adapter"
	"github.com/trade-history-sync/internal/config"
	"github.com/trade-history-sync/internal/locale"
	"github.com/trade-history-sync/internal/logging"
	"github.com/trade-history-sync/internal/migration"
	"github.com/trade-history-sync/internal/ratelimit"
	"github.com/trade-history-sync/internal/service"
	"github.com/trade-history-sync/internal/storage"
	"github.com/trade-history-sync/internal/types"
	"github.com/trade-history-sync/internal/worker"
)

// App holds the connected components
type App struct {
	Config   *config.Config
	Logger   *logging.Logger
	Stores   *storage.Stores
	Gate     *ratelimit.CooldownGate
	Feed     *adapter.FeedClient
	Migrator *migration.Migrator
	Sync     *service.SyncService
	History  *service.HistoryService
}

// New opens the configured stores and builds the services on top of them.
func New(cfg *config.Config, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Discard()
	}

	logger.WithFields(map[string]interface{}{
		"driver":       cfg.Database.Driver,
		"stateBackend": cfg.Database.StateBackend,
	}).Info("Opening local store")

	stores, err := storage.Open(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}

	gate, err := ratelimit.NewCooldownGate(&ratelimit.CooldownGateConfig{
		State:    stores.State,
		Interval: cfg.Sync.Cooldown,
	})
	if err != nil {
		_ = stores.Close()
		return nil, fmt.Errorf("failed to create cooldown gate: %w", err)
	}

	hosts := locale.NewHosts(cfg.Feed.Hosts)
	cookies := adapter.NewConfigCookieStore(cfg.Auth, hosts)

	feed, err := adapter.NewFeedClient(&adapter.FeedClientConfig{
		Hosts:   hosts,
		Cookies: cookies,
		Logger:  logger.WithField("component", "feed"),
	})
	if err != nil {
		_ = stores.Close()
		return nil, fmt.Errorf("failed to create feed client: %w", err)
	}

	migrator := migration.NewMigrator(stores.History, stores.State, logger.WithField("component", "migration"))

	return &App{
		Config:   cfg,
		Logger:   logger,
		Stores:   stores,
		Gate:     gate,
		Feed:     feed,
		Migrator: migrator,
		Sync:     service.NewSyncService(gate, feed, cookies, stores.History, logger.WithField("component", "sync")),
		History:  service.NewHistoryService(stores.History, migrator),
	}, nil
}

// Locale returns the configured default locale
func (a *App) Locale() types.Locale {
	return locale.Normalize(a.Config.Sync.Locale)
}

// NewWorker creates the background worker for the configured leagues
func (a *App) NewWorker() (*worker.SyncWorker, error) {
	return worker.NewSyncWorker(&worker.SyncWorkerConfig{
		Locale:       a.Locale(),
		Leagues:      a.Config.Sync.Leagues,
		Sync:         a.Sync,
		Migrator:     a.Migrator,
		PollInterval: a.Config.Sync.PollInterval,
		MinInterval:  a.Config.Sync.Cooldown,
		Logger:       a.Logger.WithField("component", "worker"),
	})
}

// Close releases the stores
func (a *App) Close() error {
	return a.Stores.Close()
}
