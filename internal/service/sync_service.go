// Package service composes the gate, feed, normalizer and store into the
// operations exposed by the API, the CLI and the worker.
package service

import (
	"context"
	"time"

	"github.com/trade-history-sync/internal/adapter"
	syncerrors "github.com/trade-history-sync/internal/errors"
	"github.com/trade-history-sync/internal/logging"
	"github.com/trade-history-sync/internal/models"
	"github.com/trade-history-sync/internal/storage"
	"github.com/trade-history-sync/internal/types"
)

// Gate admits or rejects a synchronization attempt
type Gate interface {
	CheckAndArm(ctx context.Context) error
}

// HistoryFetcher retrieves normalized records from the remote feed
type HistoryFetcher interface {
	Host(l types.Locale) string
	FetchHistory(ctx context.Context, league string, l types.Locale) ([]models.Record, error)
}

// SyncService performs one synchronization of a (locale, league) partition
type SyncService struct {
	gate    Gate
	fetcher HistoryFetcher
	cookies adapter.CookieStore
	history storage.HistoryStore
	logger  *logging.Logger
}

// NewSyncService creates a new sync service
func NewSyncService(
	gate Gate,
	fetcher HistoryFetcher,
	cookies adapter.CookieStore,
	history storage.HistoryStore,
	logger *logging.Logger,
) *SyncService {
	if logger == nil {
		logger = logging.Discard()
	}
	return &SyncService{
		gate:    gate,
		fetcher: fetcher,
		cookies: cookies,
		history: history,
		logger:  logger,
	}
}

// Synchronize fetches the feed of league and stores the records not yet
// present. Steps run strictly in order and the first failure is returned as
// a *errors.SyncError:
//
//  1. cooldown gate (RATE_LIMIT)
//  2. credential check (AUTH_EXPIRED)
//  3. fetch (FETCH_FAILED)
//  4. normalize (LEAGUE_MISMATCH, FETCH_FAILED)
//  5. insert in one transaction
//  6. count
func (s *SyncService) Synchronize(ctx context.Context, league string, l types.Locale) (*types.SyncResult, error) {
	start := time.Now()
	log := s.logger.WithFields(map[string]interface{}{
		"league": league,
		"locale": string(l),
	})

	if err := s.gate.CheckAndArm(ctx); err != nil {
		log.WithError(err).Info("Synchronization rejected by cooldown")
		return nil, syncerrors.Categorize(err)
	}

	host := s.fetcher.Host(l)
	missing, err := adapter.MissingCredentials(ctx, s.cookies, host)
	if err != nil {
		return nil, syncerrors.Categorize(err)
	}
	if len(missing) > 0 {
		log.WithField("missing", missing).Warn("Session credentials missing")
		return nil, syncerrors.NewAuthExpiredError(missing)
	}

	records, err := s.fetcher.FetchHistory(ctx, league, l)
	if err != nil {
		log.WithError(err).Warn("Failed to fetch trade history")
		return nil, syncerrors.Categorize(err)
	}

	partition := storage.CurrentPartition(l, league)
	added, err := s.save(ctx, partition, records)
	if err != nil {
		log.WithError(err).Error("Failed to store trade history")
		return nil, syncerrors.Categorize(err)
	}

	total, err := s.history.Count(ctx, partition)
	if err != nil {
		return nil, syncerrors.NewStoreError("count", err)
	}

	result := &types.SyncResult{
		AddedCount:   added,
		FetchedCount: len(records),
		TotalCount:   total,
	}

	log.WithFields(map[string]interface{}{
		"fetched":  result.FetchedCount,
		"added":    result.AddedCount,
		"total":    result.TotalCount,
		"duration": time.Since(start).String(),
	}).Info("Synchronization completed")

	return result, nil
}

// save inserts records in one transaction and returns how many were new
func (s *SyncService) save(ctx context.Context, p storage.Partition, records []models.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	added := 0
	err := s.history.Batch(ctx, p, func(tx storage.PartitionTx) error {
		for i := range records {
			inserted, err := tx.InsertIfAbsent(ctx, &records[i])
			if err != nil {
				return err
			}
			if inserted {
				added++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return added, nil
}

// Credentials reports the session cookies available for l
func (s *SyncService) Credentials(ctx context.Context, l types.Locale) ([]types.CredentialStatus, error) {
	return adapter.CredentialStatuses(ctx, s.cookies, s.fetcher.Host(l))
}
