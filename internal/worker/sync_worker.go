// Package worker keeps configured leagues synchronized in the background.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	syncerrors "github.com/trade-history-sync/internal/errors"
	"github.com/trade-history-sync/internal/logging"
	"github.com/trade-history-sync/internal/migration"
	"github.com/trade-history-sync/internal/types"
)

// Synchronizer runs one synchronization pass
type Synchronizer interface {
	Synchronize(ctx context.Context, league string, l types.Locale) (*types.SyncResult, error)
}

// Migrator prepares a partition before first use
type Migrator interface {
	MigrateIfNeeded(ctx context.Context, l types.Locale, league string) migration.Result
}

// SyncWorker periodically synchronizes configured leagues, one per tick
type SyncWorker struct {
	locale       types.Locale
	sync         Synchronizer
	migrator     Migrator
	queue        *PriorityQueue
	pollInterval time.Duration
	logger       *logging.Logger
	now          func() time.Time

	running      bool
	mu           sync.RWMutex
	stopCh       chan struct{}
	stopOnce     sync.Once
	doneCh       chan struct{}
	lastPollTime time.Time
	lastLeague   string
	lastResult   *types.SyncResult
	lastErrCode  types.ErrorCode
	passes       int64
	rateLimited  int64
	failures     int64
}

// SyncWorkerConfig holds configuration for a sync worker
type SyncWorkerConfig struct {
	Locale       types.Locale
	Leagues      []string
	Sync         Synchronizer
	Migrator     Migrator      // optional
	PollInterval time.Duration // must not be shorter than MinInterval (default: 5m)
	MinInterval  time.Duration // usually the cooldown interval
	Logger       *logging.Logger
}

// SyncWorkerStatus represents the current worker state
type SyncWorkerStatus struct {
	Locale       types.Locale      `json:"locale"`
	Running      bool              `json:"running"`
	PollInterval string            `json:"pollInterval"`
	LastPollTime time.Time         `json:"lastPollTime"`
	LastLeague   string            `json:"lastLeague,omitempty"`
	LastResult   *types.SyncResult `json:"lastResult,omitempty"`
	LastError    types.ErrorCode   `json:"lastError,omitempty"`
	Passes       int64             `json:"passes"`
	RateLimited  int64             `json:"rateLimited"`
	Failures     int64             `json:"failures"`
	Leagues      []LeaguePriority  `json:"leagues"`
}

// NewSyncWorker creates a new sync worker
func NewSyncWorker(cfg *SyncWorkerConfig) (*SyncWorker, error) {
	if cfg.Sync == nil {
		return nil, fmt.Errorf("synchronizer cannot be nil")
	}
	queue := NewPriorityQueue(cfg.Leagues)
	if queue.Len() == 0 {
		return nil, fmt.Errorf("at least one league is required")
	}

	// Default poll interval: 5 minutes
	pollInterval := cfg.PollInterval
	if pollInterval == 0 {
		pollInterval = 5 * time.Minute
	}
	if pollInterval < cfg.MinInterval {
		return nil, fmt.Errorf("poll interval %v is shorter than the cooldown %v", pollInterval, cfg.MinInterval)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	l := cfg.Locale
	if l == "" {
		l = types.LocaleEnglish
	}

	return &SyncWorker{
		locale:       l,
		sync:         cfg.Sync,
		migrator:     cfg.Migrator,
		queue:        queue,
		pollInterval: pollInterval,
		logger:       logger.WithField("locale", string(l)),
		now:          time.Now,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}, nil
}

// Start begins the polling loop
func (w *SyncWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("sync worker for locale %s is already running", w.locale)
	}
	w.running = true
	w.mu.Unlock()

	w.logger.WithFields(map[string]interface{}{
		"pollInterval": w.pollInterval.String(),
		"leagues":      w.queue.Len(),
	}).Info("Starting sync worker")

	go w.pollLoop(ctx)

	return nil
}

// Stop gracefully stops the sync worker
func (w *SyncWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return fmt.Errorf("sync worker for locale %s is not running", w.locale)
	}
	w.mu.Unlock()

	w.logger.Info("Stopping sync worker")

	// A Stop that timed out leaves the worker running; calling Stop again
	// waits on the same loop.
	w.stopOnce.Do(func() { close(w.stopCh) })

	// Wait for the polling loop to finish its current pass
	select {
	case <-w.doneCh:
		w.logger.Info("Sync worker stopped gracefully")
	case <-ctx.Done():
		w.logger.Warn("Sync worker stop timed out")
		return ctx.Err()
	}

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	return nil
}

// pollLoop is the main polling loop that runs in a goroutine
func (w *SyncWorker) pollLoop(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("Sync worker context cancelled")
			return
		case <-w.stopCh:
			w.logger.Debug("Sync worker stop signal received")
			return
		case <-ticker.C:
			// Errors are recorded in the status; polling continues
			_, _ = w.PollOnce(ctx)
		}
	}
}

// PollOnce synchronizes the stalest league: migrate if needed, then
// synchronize. A rejected cooldown leaves the league first in line.
func (w *SyncWorker) PollOnce(ctx context.Context) (*types.SyncResult, error) {
	league, ok := w.queue.Next()
	if !ok {
		return nil, nil
	}
	log := w.logger.WithField("league", league)

	w.mu.Lock()
	w.lastPollTime = w.now()
	w.lastLeague = league
	w.mu.Unlock()

	if w.migrator != nil {
		w.migrator.MigrateIfNeeded(ctx, w.locale, league)
	}

	result, err := w.sync.Synchronize(ctx, league, w.locale)

	w.mu.Lock()
	defer w.mu.Unlock()

	if err != nil {
		w.lastErrCode = syncerrors.CodeOf(err)
		if w.lastErrCode == types.CodeRateLimit {
			w.rateLimited++
			log.WithError(err).Info("Cooldown active, skipping this tick")
			return nil, err
		}
		w.failures++
		w.queue.MarkFailed(league)
		log.WithError(err).WithField("code", string(w.lastErrCode)).Warn("Background synchronization failed")
		return nil, err
	}

	w.passes++
	w.lastErrCode = ""
	w.lastResult = result
	w.queue.MarkSynced(league, w.now())

	if result.AddedCount > 0 {
		log.WithField("added", result.AddedCount).Info("Background synchronization stored new records")
	}
	return result, nil
}

// GetStatus returns the current worker status
func (w *SyncWorker) GetStatus() *SyncWorkerStatus {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return &SyncWorkerStatus{
		Locale:       w.locale,
		Running:      w.running,
		PollInterval: w.pollInterval.String(),
		LastPollTime: w.lastPollTime,
		LastLeague:   w.lastLeague,
		LastResult:   w.lastResult,
		LastError:    w.lastErrCode,
		Passes:       w.passes,
		RateLimited:  w.rateLimited,
		Failures:     w.failures,
		Leagues:      w.queue.Snapshot(),
	}
}
