package resilience

import (
	"sync"
	"time"
)

// Health tracks rolling provider health. It is advisory only: callers may
// poll it for reporting or load shedding decisions of their own, but Health
// never blocks an attempt. Counters are best-effort under concurrency —
// off-by-one races only affect reporting.
type Health struct {
	mu sync.Mutex

	consecutiveFailures int
	lastSuccess         time.Time
	lastFailure         time.Time
	failureThreshold    int

	nowFunc func() time.Time
}

// NewHealth creates a tracker that reports unavailable once consecutive
// failures reach threshold. A threshold <= 0 defaults to 5.
func NewHealth(threshold int) *Health {
	if threshold <= 0 {
		threshold = 5
	}
	return &Health{
		failureThreshold: threshold,
		nowFunc:          time.Now,
	}
}

// RecordSuccess resets the failure streak.
func (h *Health) RecordSuccess() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.consecutiveFailures = 0
	h.lastSuccess = h.nowFunc()
}

// RecordFailure extends the failure streak.
func (h *Health) RecordFailure() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.consecutiveFailures++
	h.lastFailure = h.nowFunc()
}

// Available reports whether the failure streak is below the threshold.
func (h *Health) Available() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.consecutiveFailures < h.failureThreshold
}

// Snapshot returns the current health counters for observability.
func (h *Health) Snapshot() HealthSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return HealthSnapshot{
		ConsecutiveFailures: h.consecutiveFailures,
		LastSuccess:         h.lastSuccess,
		LastFailure:         h.lastFailure,
		Available:           h.consecutiveFailures < h.failureThreshold,
	}
}

// HealthSnapshot is a point-in-time view of provider health.
type HealthSnapshot struct {
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastSuccess         time.Time `json:"last_success,omitzero"`
	LastFailure         time.Time `json:"last_failure,omitzero"`
	Available           bool      `json:"available"`
}
