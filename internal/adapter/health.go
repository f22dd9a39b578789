package adapter

import (
	"sync"
	"time"
)

// FeedHealth represents the request history of the remote feed
type FeedHealth struct {
	TotalRequests    int64         `json:"totalRequests"`
	SuccessfulReqs   int64         `json:"successfulRequests"`
	FailedReqs       int64         `json:"failedRequests"`
	SuccessRate      float64       `json:"successRate"`
	AverageLatency   time.Duration `json:"averageLatency"`
	LastSuccess      time.Time     `json:"lastSuccess"`
	LastFailure      time.Time     `json:"lastFailure"`
	LastStatus       int           `json:"lastStatus"`
	ConsecutiveFails int           `json:"consecutiveFails"`
	IsHealthy        bool          `json:"isHealthy"`
}

// healthTracker records outcomes of feed requests
type healthTracker struct {
	mu sync.RWMutex

	totalRequests    int64
	successfulReqs   int64
	failedReqs       int64
	totalLatency     time.Duration
	lastSuccess      time.Time
	lastFailure      time.Time
	lastStatus       int
	consecutiveFails int

	maxConsecutiveFails int
}

func newHealthTracker() *healthTracker {
	return &healthTracker{maxConsecutiveFails: 3}
}

func (h *healthTracker) recordSuccess(status int, duration time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.totalRequests++
	h.successfulReqs++
	h.totalLatency += duration
	h.lastSuccess = time.Now()
	h.lastStatus = status
	h.consecutiveFails = 0
}

func (h *healthTracker) recordFailure(status int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.totalRequests++
	h.failedReqs++
	h.lastFailure = time.Now()
	h.lastStatus = status
	h.consecutiveFails++
}

func (h *healthTracker) snapshot() *FeedHealth {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var successRate float64
	if h.totalRequests > 0 {
		successRate = float64(h.successfulReqs) / float64(h.totalRequests)
	}

	var avgLatency time.Duration
	if h.successfulReqs > 0 {
		avgLatency = h.totalLatency / time.Duration(h.successfulReqs)
	}

	return &FeedHealth{
		TotalRequests:    h.totalRequests,
		SuccessfulReqs:   h.successfulReqs,
		FailedReqs:       h.failedReqs,
		SuccessRate:      successRate,
		AverageLatency:   avgLatency,
		LastSuccess:      h.lastSuccess,
		LastFailure:      h.lastFailure,
		LastStatus:       h.lastStatus,
		ConsecutiveFails: h.consecutiveFails,
		IsHealthy:        h.consecutiveFails < h.maxConsecutiveFails,
	}
}
