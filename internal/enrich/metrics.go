package enrich

import (
	"sync"
	"time"
)

// Metrics tallies pipeline activity. All methods are safe for concurrent use.
type Metrics struct {
	mu sync.Mutex

	requests       int64
	cacheHits      int64
	cacheMisses    int64
	rateLimited    int64
	providerCalls  int64
	providerErrors int64
	autoApplied    int64
	manualReview   int64
	evalErrors     int64
	inputTokens    int64
	outputTokens   int64
	costUSD        float64
}

// MetricsSnapshot is a point-in-time view of pipeline counters.
type MetricsSnapshot struct {
	Requests       int64     `json:"requests"`
	CacheHits      int64     `json:"cache_hits"`
	CacheMisses    int64     `json:"cache_misses"`
	RateLimited    int64     `json:"rate_limited"`
	ProviderCalls  int64     `json:"provider_calls"`
	ProviderErrors int64     `json:"provider_errors"`
	AutoApplied    int64     `json:"auto_applied"`
	ManualReview   int64     `json:"manual_review"`
	EvalErrors     int64     `json:"eval_errors"`
	InputTokens    int64     `json:"input_tokens"`
	OutputTokens   int64     `json:"output_tokens"`
	CostUSD        float64   `json:"cost_usd"`
	CollectedAt    time.Time `json:"collected_at"`
}

// NewMetrics creates an empty Metrics.
func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) recordRequest()       { m.add(func() { m.requests++ }) }
func (m *Metrics) recordCacheHit()      { m.add(func() { m.cacheHits++ }) }
func (m *Metrics) recordCacheMiss()     { m.add(func() { m.cacheMisses++ }) }
func (m *Metrics) recordRateLimited()   { m.add(func() { m.rateLimited++ }) }
func (m *Metrics) recordProviderError() { m.add(func() { m.providerErrors++ }) }
func (m *Metrics) recordAutoApplied()   { m.add(func() { m.autoApplied++ }) }
func (m *Metrics) recordManualReview()  { m.add(func() { m.manualReview++ }) }
func (m *Metrics) recordEvalError()     { m.add(func() { m.evalErrors++ }) }

func (m *Metrics) recordProviderCall(inputTokens, outputTokens int64, costUSD float64) {
	m.add(func() {
		m.providerCalls++
		m.inputTokens += inputTokens
		m.outputTokens += outputTokens
		m.costUSD += costUSD
	})
}

func (m *Metrics) add(fn func()) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	fn()
}

// Snapshot returns the current counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{CollectedAt: time.Now().UTC()}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return MetricsSnapshot{
		Requests:       m.requests,
		CacheHits:      m.cacheHits,
		CacheMisses:    m.cacheMisses,
		RateLimited:    m.rateLimited,
		ProviderCalls:  m.providerCalls,
		ProviderErrors: m.providerErrors,
		AutoApplied:    m.autoApplied,
		ManualReview:   m.manualReview,
		EvalErrors:     m.evalErrors,
		InputTokens:    m.inputTokens,
		OutputTokens:   m.outputTokens,
		CostUSD:        m.costUSD,
		CollectedAt:    time.Now().UTC(),
	}
}
