// Package ratelimit implements per-tenant sliding-window admission control
// across multiple time granularities.
package ratelimit

import (
	"sync"
	"time"
)

// Limit is one window/ceiling pair. A Max <= 0 disables the limit.
type Limit struct {
	Name   string        `json:"name"`
	Window time.Duration `json:"window"`
	Max    int           `json:"max"`
}

// Config holds the per-granularity ceilings applied to every tenant.
type Config struct {
	PerMinute int `yaml:"per_minute" mapstructure:"per_minute"`
	PerHour   int `yaml:"per_hour" mapstructure:"per_hour"`
	PerDay    int `yaml:"per_day" mapstructure:"per_day"`
}

// DefaultConfig returns the admission ceilings used when none are configured.
func DefaultConfig() Config {
	return Config{PerMinute: 20, PerHour: 300, PerDay: 2000}
}

// Limits expands the config into the active limit set, tightest window first.
func (c Config) Limits() []Limit {
	var limits []Limit
	if c.PerMinute > 0 {
		limits = append(limits, Limit{Name: "minute", Window: time.Minute, Max: c.PerMinute})
	}
	if c.PerHour > 0 {
		limits = append(limits, Limit{Name: "hour", Window: time.Hour, Max: c.PerHour})
	}
	if c.PerDay > 0 {
		limits = append(limits, Limit{Name: "day", Window: 24 * time.Hour, Max: c.PerDay})
	}
	return limits
}

// Limiter admits or refuses requests per tenant. All configured windows must
// have headroom for an admit to succeed; the tightest binding window wins.
// Admission is consumed at attempt time and never rolled back, biasing
// toward under-admission.
type Limiter struct {
	limits []Limit

	mu      sync.RWMutex
	tenants map[string]*tenantWindow

	nowFunc func() time.Time
}

// tenantWindow serializes admission for one tenant. Different tenants
// proceed fully in parallel.
type tenantWindow struct {
	mu     sync.Mutex
	stamps []time.Time
}

// NewLimiter creates a limiter with the given per-granularity limits.
func NewLimiter(cfg Config) *Limiter {
	return &Limiter{
		limits:  cfg.Limits(),
		tenants: make(map[string]*tenantWindow),
		nowFunc: time.Now,
	}
}

// Admit decides whether one more request for tenantID may proceed now. On
// success the request timestamp is recorded; on refusal nothing is recorded.
// Refusal is a normal outcome, not an error.
func (l *Limiter) Admit(tenantID string) bool {
	if len(l.limits) == 0 {
		return true
	}

	tw := l.tenant(tenantID)
	now := l.nowFunc()

	tw.mu.Lock()
	defer tw.mu.Unlock()

	tw.gc(now, l.maxWindow())

	for _, lim := range l.limits {
		if tw.countSince(now.Add(-lim.Window)) >= lim.Max {
			return false
		}
	}

	tw.stamps = append(tw.stamps, now)
	return true
}

// Remaining reports limit minus current count per granularity, without
// mutating state.
func (l *Limiter) Remaining(tenantID string) map[string]int {
	out := make(map[string]int, len(l.limits))
	tw := l.tenant(tenantID)
	now := l.nowFunc()

	tw.mu.Lock()
	defer tw.mu.Unlock()

	for _, lim := range l.limits {
		rem := lim.Max - tw.countSince(now.Add(-lim.Window))
		if rem < 0 {
			rem = 0
		}
		out[lim.Name] = rem
	}
	return out
}

// Reset clears all admission history for a tenant.
func (l *Limiter) Reset(tenantID string) {
	tw := l.tenant(tenantID)
	tw.mu.Lock()
	defer tw.mu.Unlock()
	tw.stamps = nil
}

// Limits returns the active limit set.
func (l *Limiter) Limits() []Limit {
	return l.limits
}

func (l *Limiter) tenant(tenantID string) *tenantWindow {
	l.mu.RLock()
	tw, ok := l.tenants[tenantID]
	l.mu.RUnlock()
	if ok {
		return tw
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if tw, ok = l.tenants[tenantID]; ok {
		return tw
	}
	tw = &tenantWindow{}
	l.tenants[tenantID] = tw
	return tw
}

func (l *Limiter) maxWindow() time.Duration {
	var max time.Duration
	for _, lim := range l.limits {
		if lim.Window > max {
			max = lim.Window
		}
	}
	return max
}

// gc drops timestamps older than the largest configured window. Called with
// tw.mu held on every admit, bounding per-tenant memory.
func (tw *tenantWindow) gc(now time.Time, maxWindow time.Duration) {
	cutoff := now.Add(-maxWindow)
	i := 0
	for ; i < len(tw.stamps); i++ {
		if tw.stamps[i].After(cutoff) {
			break
		}
	}
	if i > 0 {
		tw.stamps = append(tw.stamps[:0], tw.stamps[i:]...)
	}
}

// countSince counts timestamps newer than cutoff. Stamps are appended in
// order, so scan from the tail.
func (tw *tenantWindow) countSince(cutoff time.Time) int {
	n := 0
	for i := len(tw.stamps) - 1; i >= 0; i-- {
		if !tw.stamps[i].After(cutoff) {
			break
		}
		n++
	}
	return n
}
