package worker

import (
	"sort"
	"sync"
	"time"
)

// LeaguePriority represents a league with the time it was last synchronized
type LeaguePriority struct {
	League   string
	LastSync time.Time // zero until the first successful pass
	Failures int       // consecutive failed passes
}

// PriorityQueue orders leagues so the stalest one is synchronized next.
// All leagues share one cooldown, so the worker serves one league per tick.
type PriorityQueue struct {
	leagues []LeaguePriority
	mu      sync.RWMutex
}

// NewPriorityQueue creates a queue over leagues, keeping their configured order
// as the tie-breaker. Blank and duplicate names are dropped.
func NewPriorityQueue(leagues []string) *PriorityQueue {
	seen := make(map[string]bool, len(leagues))
	pq := &PriorityQueue{leagues: make([]LeaguePriority, 0, len(leagues))}
	for _, league := range leagues {
		if league == "" || seen[league] {
			continue
		}
		seen[league] = true
		pq.leagues = append(pq.leagues, LeaguePriority{League: league})
	}
	return pq
}

// Next returns the league synchronized least recently. Never-synchronized
// leagues come first; among equals, fewer failures win, then configured order.
func (pq *PriorityQueue) Next() (string, bool) {
	pq.mu.RLock()
	defer pq.mu.RUnlock()

	if len(pq.leagues) == 0 {
		return "", false
	}

	best := 0
	for i := 1; i < len(pq.leagues); i++ {
		if pq.less(i, best) {
			best = i
		}
	}
	return pq.leagues[best].League, true
}

func (pq *PriorityQueue) less(i, j int) bool {
	a, b := pq.leagues[i], pq.leagues[j]
	if !a.LastSync.Equal(b.LastSync) {
		return a.LastSync.Before(b.LastSync)
	}
	return a.Failures < b.Failures
}

// MarkSynced records a successful pass of league at t
func (pq *PriorityQueue) MarkSynced(league string, t time.Time) {
	pq.update(league, func(lp *LeaguePriority) {
		lp.LastSync = t
		lp.Failures = 0
	})
}

// MarkFailed records a failed pass of league. The league keeps its place by
// LastSync but yields to equally stale leagues.
func (pq *PriorityQueue) MarkFailed(league string) {
	pq.update(league, func(lp *LeaguePriority) {
		lp.Failures++
	})
}

func (pq *PriorityQueue) update(league string, fn func(*LeaguePriority)) {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	for i := range pq.leagues {
		if pq.leagues[i].League == league {
			fn(&pq.leagues[i])
			return
		}
	}
}

// Snapshot returns the leagues in priority order
func (pq *PriorityQueue) Snapshot() []LeaguePriority {
	pq.mu.RLock()
	out := make([]LeaguePriority, len(pq.leagues))
	copy(out, pq.leagues)
	pq.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].LastSync.Equal(out[j].LastSync) {
			return out[i].LastSync.Before(out[j].LastSync)
		}
		return out[i].Failures < out[j].Failures
	})
	return out
}

// Len returns the number of leagues in the queue
func (pq *PriorityQueue) Len() int {
	pq.mu.RLock()
	defer pq.mu.RUnlock()
	return len(pq.leagues)
}
