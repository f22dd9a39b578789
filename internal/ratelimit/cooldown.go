// Package ratelimit provides the persisted cooldown gate in front of the remote feed.
package ratelimit

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	syncerrors "github.com/trade-history-sync/internal/errors"
	"github.com/trade-history-sync/internal/storage"
)

// DefaultInterval is the minimum time between two feed requests.
const DefaultInterval = 60 * time.Second

// CooldownGate admits at most one caller per interval. The last admitted time
// is persisted so the cooldown survives restarts.
type CooldownGate struct {
	state    storage.StateStore
	key      string
	interval time.Duration
	now      func() time.Time

	// serializes the read-compare-write against the state store
	mu sync.Mutex

	passed   int64
	rejected int64
}

// CooldownGateConfig holds configuration for the gate.
type CooldownGateConfig struct {
	// State persists the last admitted time.
	// Required.
	State storage.StateStore

	// Interval is the cooldown length.
	// Default: 60s
	Interval time.Duration

	// Key is the state key holding the timestamp.
	// Default: storage.KeyLastFetchAt
	Key string

	// Now returns the current time.
	// Default: time.Now
	Now func() time.Time
}

// GateStats is a snapshot of gate decisions made by this process.
type GateStats struct {
	Passed   int64 `json:"passed"`
	Rejected int64 `json:"rejected"`
}

// NewCooldownGate creates a new gate.
func NewCooldownGate(cfg *CooldownGateConfig) (*CooldownGate, error) {
	if cfg == nil || cfg.State == nil {
		return nil, errors.New("state store is required")
	}

	g := &CooldownGate{
		state:    cfg.State,
		key:      cfg.Key,
		interval: cfg.Interval,
		now:      cfg.Now,
	}
	if g.key == "" {
		g.key = storage.KeyLastFetchAt
	}
	if g.interval <= 0 {
		g.interval = DefaultInterval
	}
	if g.now == nil {
		g.now = time.Now
	}
	return g, nil
}

// Interval returns the configured cooldown.
func (g *CooldownGate) Interval() time.Duration {
	return g.interval
}

// CheckAndArm admits the caller and records the current time, or fails with
// RATE_LIMIT carrying the remaining whole seconds (rounded up). The new
// timestamp is persisted before the caller is admitted.
func (g *CooldownGate) CheckAndArm(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()

	if arming, ok := g.state.(storage.ArmingStateStore); ok {
		remaining, armed, err := arming.CheckAndArm(ctx, g.key, now, g.interval)
		if err != nil {
			return syncerrors.NewStoreError("arm rate limit", err)
		}
		if !armed {
			return g.reject(remaining)
		}
		atomic.AddInt64(&g.passed, 1)
		return nil
	}

	last, err := g.lastArmed(ctx)
	if err != nil {
		return err
	}

	if elapsed := now.Sub(last); elapsed < g.interval {
		return g.reject(g.interval - elapsed)
	}

	if err := g.state.Set(ctx, g.key, strconv.FormatInt(now.UnixMilli(), 10)); err != nil {
		return syncerrors.NewStoreError("arm rate limit", err)
	}

	atomic.AddInt64(&g.passed, 1)
	return nil
}

// Remaining returns how long a caller would currently have to wait.
func (g *CooldownGate) Remaining(ctx context.Context) (time.Duration, error) {
	last, err := g.lastArmed(ctx)
	if err != nil {
		return 0, err
	}
	if elapsed := g.now().Sub(last); elapsed < g.interval {
		return g.interval - elapsed, nil
	}
	return 0, nil
}

// Stats returns the decisions made so far.
func (g *CooldownGate) Stats() GateStats {
	return GateStats{
		Passed:   atomic.LoadInt64(&g.passed),
		Rejected: atomic.LoadInt64(&g.rejected),
	}
}

// lastArmed reads the persisted timestamp. Missing or unreadable values mean
// the gate was never armed.
func (g *CooldownGate) lastArmed(ctx context.Context) (time.Time, error) {
	value, ok, err := g.state.Get(ctx, g.key)
	if err != nil {
		return time.Time{}, syncerrors.NewStoreError("read rate limit", err)
	}
	if !ok {
		return time.UnixMilli(0), nil
	}
	ms, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.UnixMilli(0), nil
	}
	return time.UnixMilli(ms), nil
}

func (g *CooldownGate) reject(remaining time.Duration) error {
	atomic.AddInt64(&g.rejected, 1)
	return syncerrors.NewRateLimitError(ceilSeconds(remaining))
}

func ceilSeconds(d time.Duration) int {
	ms := d.Milliseconds()
	if d > time.Duration(ms)*time.Millisecond {
		ms++
	}
	return int((ms + 999) / 1000)
}
