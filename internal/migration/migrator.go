// Package migration copies records from the league-only legacy partitions into
// the locale-qualified ones, at most once per league.
package migration

import (
	"context"
	"fmt"
	"sync"

	"github.com/trade-history-sync/internal/logging"
	"github.com/trade-history-sync/internal/normalize"
	"github.com/trade-history-sync/internal/storage"
	"github.com/trade-history-sync/internal/types"
)

const flagDone = "true"

// Outcome describes what MigrateIfNeeded did.
type Outcome string

const (
	OutcomeAlreadyDone     Outcome = "already_done"
	OutcomeNoLegacy        Outcome = "no_legacy"
	OutcomeTargetPopulated Outcome = "target_populated"
	OutcomeLegacyEmpty     Outcome = "legacy_empty"
	OutcomeCopied          Outcome = "copied"
	OutcomeFailed          Outcome = "failed"
)

// Result is the report of one MigrateIfNeeded call.
type Result struct {
	Outcome Outcome
	Copied  int
	Err     error
}

// Migrator runs the legacy copy.
type Migrator struct {
	history storage.HistoryStore
	state   storage.StateStore
	logger  *logging.Logger

	locks sync.Map // league key -> *sync.Mutex
}

// NewMigrator creates a migrator.
func NewMigrator(history storage.HistoryStore, state storage.StateStore, logger *logging.Logger) *Migrator {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Migrator{history: history, state: state, logger: logger}
}

func (m *Migrator) lockFor(league string) *sync.Mutex {
	mu, _ := m.locks.LoadOrStore(normalize.LeagueKey(league), &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// MigrateIfNeeded copies the legacy partition of league into the (locale,
// league) partition unless the league was already handled or the target holds
// data. Failures are logged and reported in the Result, and the league is
// still marked as handled, so the copy is attempted at most once.
func (m *Migrator) MigrateIfNeeded(ctx context.Context, locale types.Locale, league string) Result {
	mu := m.lockFor(league)
	mu.Lock()
	defer mu.Unlock()

	flagKey := storage.LegacyMigratedKey(league)
	log := m.logger.WithFields(map[string]interface{}{
		"league": league,
		"locale": string(locale),
	})

	done, ok, err := m.state.Get(ctx, flagKey)
	if err != nil {
		// Without the flag we cannot tell; try again next time.
		log.WithError(err).Warn("Failed to read legacy migration flag")
		return Result{Outcome: OutcomeFailed, Err: err}
	}
	if ok && done == flagDone {
		return Result{Outcome: OutcomeAlreadyDone}
	}

	res := m.migrate(ctx, locale, league)
	if res.Err != nil {
		log.WithError(res.Err).Warn("Legacy migration failed, marking league as migrated")
	} else {
		log.WithFields(map[string]interface{}{
			"outcome": string(res.Outcome),
			"copied":  res.Copied,
		}).Info("Legacy migration checked")
	}

	if err := m.state.Set(ctx, flagKey, flagDone); err != nil {
		log.WithError(err).Warn("Failed to persist legacy migration flag")
	}
	return res
}

func (m *Migrator) migrate(ctx context.Context, locale types.Locale, league string) Result {
	legacy := storage.LegacyPartition(league)
	target := storage.CurrentPartition(locale, league)

	exists, err := m.history.Exists(ctx, legacy)
	if err != nil {
		return Result{Outcome: OutcomeFailed, Err: fmt.Errorf("check legacy partition: %w", err)}
	}
	if !exists {
		return Result{Outcome: OutcomeNoLegacy}
	}

	count, err := m.history.Count(ctx, target)
	if err != nil {
		return Result{Outcome: OutcomeFailed, Err: fmt.Errorf("count target partition: %w", err)}
	}
	if count > 0 {
		return Result{Outcome: OutcomeTargetPopulated}
	}

	records, err := m.history.GetAll(ctx, legacy)
	if err != nil {
		return Result{Outcome: OutcomeFailed, Err: fmt.Errorf("read legacy partition: %w", err)}
	}
	if len(records) == 0 {
		return Result{Outcome: OutcomeLegacyEmpty}
	}

	copied := 0
	err = m.history.Batch(ctx, target, func(tx storage.PartitionTx) error {
		for i := range records {
			inserted, err := tx.InsertIfAbsent(ctx, &records[i])
			if err != nil {
				return err
			}
			if inserted {
				copied++
			}
		}
		return nil
	})
	if err != nil {
		return Result{Outcome: OutcomeFailed, Err: fmt.Errorf("copy legacy records: %w", err)}
	}

	return Result{Outcome: OutcomeCopied, Copied: copied}
}
