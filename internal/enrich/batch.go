package enrich

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/enrich-cli/internal/model"
)

// Batch outcome statuses.
const (
	StatusApplied              = "applied"
	StatusPendingReview        = "pending_review"
	StatusSkippedRateLimited   = "skipped_rate_limited"
	StatusSkippedProviderError = "skipped_provider_error"

	// StatusError marks unexpected failures such as persistence errors or
	// cancellation, never an expected pipeline outcome.
	StatusError = "error"
)

// Task is one unit of batch work: a record payload and the field to enrich.
type Task struct {
	RecordID string `json:"record_id"`
	TenantID string `json:"tenant_id"`
	Field    string `json:"field"`
	Payload  string `json:"payload"`
}

// BatchOutcome pairs a task with how it ended.
type BatchOutcome struct {
	Task    Task     `json:"task"`
	Status  string   `json:"status"`
	Outcome *Outcome `json:"outcome,omitempty"`
	Err     string   `json:"error,omitempty"`
}

// RunBatch enriches tasks concurrently, bounded by the given worker count.
// Per-task failures are captured in the outcome rather than aborting the
// batch; only context cancellation stops the run early.
func (e *Enricher) RunBatch(ctx context.Context, tasks []Task, concurrency int) ([]BatchOutcome, error) {
	if concurrency <= 0 {
		concurrency = 4
	}

	outcomes := make([]BatchOutcome, len(tasks))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, task := range tasks {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				outcomes[i] = BatchOutcome{Task: task, Status: StatusError, Err: err.Error()}
				return err
			}

			req := model.NewEnrichmentRequest(task.RecordID, task.TenantID, task.Field, task.Payload)
			outcome, err := e.Enrich(gCtx, req, task.Payload)
			outcomes[i] = classifyOutcome(task, outcome, err)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return outcomes, err
	}

	zap.L().Info("batch complete",
		zap.Int("tasks", len(tasks)),
		zap.Int("concurrency", concurrency),
	)
	return outcomes, nil
}

func classifyOutcome(task Task, outcome *Outcome, err error) BatchOutcome {
	bo := BatchOutcome{Task: task, Outcome: outcome}
	if err == nil {
		if outcome != nil && outcome.Evaluation.Decision == model.DecisionManualReview {
			bo.Status = StatusPendingReview
		} else {
			bo.Status = StatusApplied
		}
		return bo
	}

	bo.Err = err.Error()

	var rateErr *RateLimitError
	var provErr *ProviderError
	var evalErr *EvaluationError
	switch {
	case errors.As(err, &rateErr):
		bo.Status = StatusSkippedRateLimited
	case errors.As(err, &provErr):
		bo.Status = StatusSkippedProviderError
	case errors.As(err, &evalErr):
		// An evaluation error still queues a review item, so the record
		// ends up pending like any other low-confidence result.
		bo.Status = StatusPendingReview
	default:
		bo.Status = StatusError
	}
	return bo
}
