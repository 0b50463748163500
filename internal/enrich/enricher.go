// Package enrich orchestrates a single enrichment attempt end to end:
// cache lookup, rate admission, the model call, confidence evaluation, and
// routing into the ledger or the review queue.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/enrich-cli/internal/cache"
	"github.com/sells-group/enrich-cli/internal/evaluator"
	"github.com/sells-group/enrich-cli/internal/ledger"
	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/internal/ratelimit"
	"github.com/sells-group/enrich-cli/internal/resilience"
	"github.com/sells-group/enrich-cli/internal/review"
	"github.com/sells-group/enrich-cli/pkg/llm"
)

const defaultMaxTokens = 1024

// Options configures an Enricher. Provider, Cache, Limiter, Evaluator,
// Store, and Reviews are required.
type Options struct {
	Provider  llm.Provider
	Cache     cache.Cache
	Limiter   *ratelimit.Limiter
	Evaluator *evaluator.Evaluator
	Store     ledger.Store
	Reviews   *review.Queue
	Health    *resilience.Health
	Retry     resilience.RetryConfig
	Metrics   *Metrics
	CacheTTL  time.Duration
	MaxTokens int64
}

// Outcome is the result of one enrichment attempt.
type Outcome struct {
	Request    model.EnrichmentRequest    `json:"request"`
	Result     model.RawModelResult       `json:"result"`
	Evaluation model.ConfidenceEvaluation `json:"evaluation"`
	Entry      *model.LedgerEntry         `json:"entry,omitempty"`
	ReviewItem *model.ReviewItem          `json:"review_item,omitempty"`
	FromCache  bool                       `json:"from_cache"`
}

// Enricher runs the enrichment pipeline for individual requests.
type Enricher struct {
	provider  llm.Provider
	cache     cache.Cache
	limiter   *ratelimit.Limiter
	evaluator *evaluator.Evaluator
	store     ledger.Store
	reviews   *review.Queue
	health    *resilience.Health
	retry     resilience.RetryConfig
	metrics   *Metrics
	cacheTTL  time.Duration
	maxTokens int64
}

// New creates an Enricher, validating required dependencies.
func New(opts Options) (*Enricher, error) {
	switch {
	case opts.Provider == nil:
		return nil, eris.New("enrich: provider is required")
	case opts.Cache == nil:
		return nil, eris.New("enrich: cache is required")
	case opts.Limiter == nil:
		return nil, eris.New("enrich: limiter is required")
	case opts.Evaluator == nil:
		return nil, eris.New("enrich: evaluator is required")
	case opts.Store == nil:
		return nil, eris.New("enrich: store is required")
	case opts.Reviews == nil:
		return nil, eris.New("enrich: review queue is required")
	}

	if opts.Health == nil {
		opts.Health = resilience.NewHealth(0)
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics()
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 24 * time.Hour
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = defaultMaxTokens
	}

	return &Enricher{
		provider:  opts.Provider,
		cache:     opts.Cache,
		limiter:   opts.Limiter,
		evaluator: opts.Evaluator,
		store:     opts.Store,
		reviews:   opts.Reviews,
		health:    opts.Health,
		retry:     opts.Retry,
		metrics:   opts.Metrics,
		cacheTTL:  opts.CacheTTL,
		maxTokens: opts.MaxTokens,
	}, nil
}

// Metrics returns the pipeline counters.
func (e *Enricher) Metrics() *Metrics {
	return e.metrics
}

// Health returns the provider health tracker.
func (e *Enricher) Health() *resilience.Health {
	return e.health
}

// Enrich runs the full pipeline for one request. A cache hit returns the
// stored result without consuming admission quota or calling the provider.
func (e *Enricher) Enrich(ctx context.Context, req model.EnrichmentRequest, payload string) (*Outcome, error) {
	if err := req.Validate(); err != nil {
		return nil, eris.Wrap(err, "enrich: invalid request")
	}
	e.metrics.recordRequest()

	result, fromCache, err := e.obtain(ctx, req, payload)
	if err != nil {
		return nil, err
	}

	// A hit was already evaluated and its disposition persisted when the
	// result was first produced; only the result itself is re-served.
	if fromCache {
		return &Outcome{Request: req, Result: *result, FromCache: true}, nil
	}

	eval := e.evaluator.Evaluate(*result)
	outcome := &Outcome{
		Request:    req,
		Result:     *result,
		Evaluation: eval,
	}
	return e.route(ctx, outcome)
}

// obtain returns the raw model result, from cache when possible.
func (e *Enricher) obtain(ctx context.Context, req model.EnrichmentRequest, payload string) (*model.RawModelResult, bool, error) {
	key := cache.Key(req)
	if cached, ok := e.cache.Get(ctx, key); ok {
		e.metrics.recordCacheHit()
		zap.L().Debug("cache hit",
			zap.String("record_id", req.RecordID),
			zap.String("field", req.Field),
		)
		return cached, true, nil
	}
	e.metrics.recordCacheMiss()

	if !e.limiter.Admit(req.TenantID) {
		e.metrics.recordRateLimited()
		zap.L().Warn("admission refused",
			zap.String("tenant_id", req.TenantID),
			zap.String("record_id", req.RecordID),
		)
		return nil, false, &RateLimitError{
			TenantID:  req.TenantID,
			Remaining: e.limiter.Remaining(req.TenantID),
		}
	}

	retryCfg := e.retry
	if retryCfg.OnRetry == nil {
		retryCfg.OnRetry = resilience.RetryLogger("llm", "complete")
	}

	llmRes, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*llm.Result, error) {
		return e.provider.Complete(ctx, llm.Request{
			System:    systemPrompt,
			Prompt:    buildPrompt(req, payload),
			MaxTokens: e.maxTokens,
		})
	})
	if err != nil {
		e.health.RecordFailure()
		e.metrics.recordProviderError()
		return nil, false, &ProviderError{Err: err}
	}
	e.health.RecordSuccess()

	cost := llmRes.Usage.EstimateCost(llmRes.ModelID)
	e.metrics.recordProviderCall(llmRes.Usage.InputTokens, llmRes.Usage.OutputTokens, cost)
	llmRes.Usage.LogCost(llmRes.ModelID, req.Field)

	result := parseResult(req.Field, llmRes)
	e.cache.Set(ctx, key, &result, e.cacheTTL)
	return &result, false, nil
}

// route records the attempt in the ledger and dispatches by decision.
func (e *Enricher) route(ctx context.Context, outcome *Outcome) (*Outcome, error) {
	eval := outcome.Evaluation
	entry := ledger.NewEntry(outcome.Request, eval, ledger.DispositionForDecision(eval.Decision))
	if eval.Decision == model.DecisionAutoApply {
		entry.AppliedValue = outcome.Result.Value
	}
	if err := e.store.RecordEntry(ctx, entry); err != nil {
		return nil, &PersistenceError{Op: "record entry", Err: err}
	}
	outcome.Entry = entry

	switch eval.Decision {
	case model.DecisionAutoApply:
		e.metrics.recordAutoApplied()
		zap.L().Info("value auto-applied",
			zap.String("record_id", outcome.Request.RecordID),
			zap.String("field", outcome.Request.Field),
			zap.Float64("confidence", eval.AdjustedConfidence),
		)
		return outcome, nil

	case model.DecisionManualReview:
		item, err := e.reviews.MarkForReview(ctx, outcome.Request, outcome.Result, eval, entry.ID)
		if err != nil {
			return nil, &ReviewCreationError{Err: err}
		}
		e.metrics.recordManualReview()
		outcome.ReviewItem = item
		return outcome, nil

	default:
		// Routed like manual review so the result stays actionable, but
		// counted separately.
		item, err := e.reviews.MarkForReview(ctx, outcome.Request, outcome.Result, eval, entry.ID)
		if err != nil {
			return nil, &ReviewCreationError{Err: err}
		}
		e.metrics.recordEvalError()
		outcome.ReviewItem = item
		zap.L().Warn("evaluation error",
			zap.String("record_id", outcome.Request.RecordID),
			zap.String("field", outcome.Request.Field),
			zap.String("reason", eval.Reason),
		)
		return outcome, &EvaluationError{Reason: eval.Reason}
	}
}

const systemPrompt = `You are a data enrichment assistant. Given a record payload and a target field, respond with a single JSON object of the form {"value": <field value>, "confidence": <0..1>}. Respond with JSON only.`

func buildPrompt(req model.EnrichmentRequest, payload string) string {
	return fmt.Sprintf("Field: %s\nRecord payload:\n%s", req.Field, payload)
}

// modelOutput is the JSON shape the model is instructed to return.
type modelOutput struct {
	Value      any     `json:"value"`
	Confidence float64 `json:"confidence"`
}

// parseResult converts provider text into a RawModelResult. Unparseable
// output yields NaN confidence, which the evaluator rejects with an error
// decision, keeping malformed-output handling on a single path.
func parseResult(field string, llmRes *llm.Result) model.RawModelResult {
	result := model.RawModelResult{
		Field:   field,
		ModelID: llmRes.ModelID,
		Usage: model.TokenUsage{
			InputTokens:  llmRes.Usage.InputTokens,
			OutputTokens: llmRes.Usage.OutputTokens,
		},
		ProducedAt: time.Now().UTC(),
	}

	var out modelOutput
	if err := json.Unmarshal([]byte(stripFences(llmRes.Text)), &out); err != nil {
		zap.L().Warn("unparseable model output",
			zap.String("field", field),
			zap.Error(err),
		)
		result.RawConfidence = math.NaN()
		return result
	}

	result.Value = out.Value
	result.RawConfidence = out.Confidence
	return result
}

// stripFences removes a surrounding markdown code fence if present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
