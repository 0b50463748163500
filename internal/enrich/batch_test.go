package enrich

import (
	"context"
	"fmt"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/internal/ratelimit"
	"github.com/sells-group/enrich-cli/internal/resilience"
	"github.com/sells-group/enrich-cli/pkg/llm"
)

func TestRunBatch_MixedOutcomes(t *testing.T) {
	env := newTestEnv(t, &fakeProvider{responses: []func() (*llm.Result, error){
		confidenceResponse("Software", 0.95),
		confidenceResponse("Fintech", 0.6),
	}}, ratelimit.DefaultConfig())

	tasks := []Task{
		{RecordID: "rec-1", TenantID: "tenant-a", Field: "industry", Payload: "payload one"},
		{RecordID: "rec-2", TenantID: "tenant-a", Field: "industry", Payload: "payload two"},
	}

	outcomes, err := env.enricher.RunBatch(context.Background(), tasks, 1)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)

	assert.Equal(t, StatusApplied, outcomes[0].Status)
	assert.Equal(t, StatusPendingReview, outcomes[1].Status)
	require.NotNil(t, outcomes[1].Outcome)
	assert.NotNil(t, outcomes[1].Outcome.ReviewItem)
}

func TestRunBatch_RateLimitedTasksAreSkipped(t *testing.T) {
	env := newTestEnv(t, &fakeProvider{responses: []func() (*llm.Result, error){
		confidenceResponse("Software", 0.95),
	}}, ratelimit.Config{PerMinute: 2, PerHour: 100, PerDay: 1000})

	var tasks []Task
	for i := range 4 {
		tasks = append(tasks, Task{
			RecordID: fmt.Sprintf("rec-%d", i),
			TenantID: "r1",
			Field:    "industry",
			Payload:  fmt.Sprintf("payload %d", i),
		})
	}

	outcomes, err := env.enricher.RunBatch(context.Background(), tasks, 1)
	require.NoError(t, err)

	counts := map[string]int{}
	for _, o := range outcomes {
		counts[o.Status]++
	}
	assert.Equal(t, 2, counts[StatusApplied])
	assert.Equal(t, 2, counts[StatusSkippedRateLimited])
	assert.Equal(t, 2, env.provider.callCount())
}

func TestRunBatch_ProviderFailureSkipsTask(t *testing.T) {
	env := newTestEnv(t, &fakeProvider{responses: []func() (*llm.Result, error){
		errorResponse(resilience.NewPermanentError(eris.New("invalid key"))),
	}}, ratelimit.DefaultConfig())

	outcomes, err := env.enricher.RunBatch(context.Background(), []Task{
		{RecordID: "rec-1", TenantID: "tenant-a", Field: "industry", Payload: "x"},
	}, 2)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, StatusSkippedProviderError, outcomes[0].Status)
	assert.Contains(t, outcomes[0].Err, "provider call failed")
}

func TestRunBatch_EvaluationErrorEndsPending(t *testing.T) {
	env := newTestEnv(t, &fakeProvider{responses: []func() (*llm.Result, error){
		textResponse("not json at all"),
	}}, ratelimit.DefaultConfig())

	outcomes, err := env.enricher.RunBatch(context.Background(), []Task{
		{RecordID: "rec-1", TenantID: "tenant-a", Field: "industry", Payload: "x"},
	}, 1)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, StatusPendingReview, outcomes[0].Status)
	require.NotNil(t, outcomes[0].Outcome)
	assert.NotNil(t, outcomes[0].Outcome.ReviewItem)
}

func TestRunBatch_ConcurrentTasksAllLand(t *testing.T) {
	env := newTestEnv(t, &fakeProvider{responses: []func() (*llm.Result, error){
		confidenceResponse("Software", 0.95),
	}}, ratelimit.Config{PerMinute: 100, PerHour: 1000, PerDay: 10000})

	var tasks []Task
	for i := range 20 {
		tasks = append(tasks, Task{
			RecordID: fmt.Sprintf("rec-%d", i),
			TenantID: "tenant-a",
			Field:    "industry",
			Payload:  fmt.Sprintf("payload %d", i),
		})
	}

	outcomes, err := env.enricher.RunBatch(context.Background(), tasks, 8)
	require.NoError(t, err)
	require.Len(t, outcomes, 20)
	for _, o := range outcomes {
		assert.Equal(t, StatusApplied, o.Status)
	}

	entries, err := env.store.ListByDisposition(context.Background(), model.DispositionApplied, 50)
	require.NoError(t, err)
	assert.Len(t, entries, 20)
}

func TestRunBatch_Empty(t *testing.T) {
	env := newTestEnv(t, &fakeProvider{responses: []func() (*llm.Result, error){
		confidenceResponse("Software", 0.95),
	}}, ratelimit.DefaultConfig())

	outcomes, err := env.enricher.RunBatch(context.Background(), nil, 4)
	require.NoError(t, err)
	assert.Empty(t, outcomes)
}
