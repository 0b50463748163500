package review

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/enrich-cli/internal/ledger"
	"github.com/sells-group/enrich-cli/internal/model"
)

func newTestStore(t *testing.T) ledger.Store {
	t.Helper()
	st, err := ledger.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testRequest() model.EnrichmentRequest {
	return model.EnrichmentRequest{
		RecordID:    "rec-1",
		TenantID:    "tenant-a",
		Field:       "industry",
		ContentHash: "abc123",
	}
}

func testResult(value any, confidence float64) model.RawModelResult {
	return model.RawModelResult{
		Field:         "industry",
		Value:         value,
		RawConfidence: confidence,
		ModelID:       "claude-haiku-4-5-20251001",
		ProducedAt:    time.Now().UTC(),
	}
}

func testEvaluation(adjusted float64) model.ConfidenceEvaluation {
	return model.ConfidenceEvaluation{
		RawConfidence:      adjusted,
		AdjustedConfidence: adjusted,
		ThresholdUsed:      0.7,
		Decision:           model.DecisionManualReview,
		Reason:             "confidence 0.600 < threshold 0.700",
	}
}

func TestMarkForReview_CreatesPendingItem(t *testing.T) {
	st := newTestStore(t)
	q := NewQueue(st, nil)
	ctx := context.Background()

	item, err := q.MarkForReview(ctx, testRequest(), testResult("Software", 0.6), testEvaluation(0.6), "entry-1")
	require.NoError(t, err)
	assert.Equal(t, model.ReviewPending, item.Status)
	assert.Equal(t, "entry-1", item.LedgerEntryID)
	assert.Contains(t, item.Reason, "0.600")
	assert.Nil(t, item.ResolvedAt)

	got, err := q.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, item.ID, got.ID)
}

func TestMarkForReview_InvalidRequest(t *testing.T) {
	st := newTestStore(t)
	q := NewQueue(st, nil)

	req := testRequest()
	req.RecordID = ""
	_, err := q.MarkForReview(context.Background(), req, testResult("x", 0.5), testEvaluation(0.5), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid request")
}

func TestMarkForReview_SupersedesPending(t *testing.T) {
	st := newTestStore(t)
	q := NewQueue(st, nil)
	ctx := context.Background()

	first, err := q.MarkForReview(ctx, testRequest(), testResult("Software", 0.6), testEvaluation(0.6), "entry-1")
	require.NoError(t, err)

	second, err := q.MarkForReview(ctx, testRequest(), testResult("Fintech", 0.65), testEvaluation(0.65), "entry-2")
	require.NoError(t, err)

	// Same item, newer payload.
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.CreatedAt.Unix(), second.CreatedAt.Unix())
	assert.Equal(t, "Fintech", second.Result.Value)
	assert.Equal(t, "entry-2", second.LedgerEntryID)

	items, err := q.List(ctx, ledger.ReviewFilter{Status: model.ReviewPending})
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestMarkForReview_ResolvedItemNotSuperseded(t *testing.T) {
	st := newTestStore(t)
	q := NewQueue(st, nil)
	ctx := context.Background()

	first, err := q.MarkForReview(ctx, testRequest(), testResult("Software", 0.6), testEvaluation(0.6), "")
	require.NoError(t, err)
	_, err = q.Reject(ctx, first.ID, "reviewer-1", "wrong value", "")
	require.NoError(t, err)

	second, err := q.MarkForReview(ctx, testRequest(), testResult("Fintech", 0.65), testEvaluation(0.65), "")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	// The rejected item is untouched.
	got, err := q.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReviewRejected, got.Status)
	assert.Equal(t, "Software", got.Result.Value)
}

func TestApprove_AppliesLedgerEntry(t *testing.T) {
	st := newTestStore(t)
	q := NewQueue(st, nil)
	ctx := context.Background()

	entry := ledger.NewEntry(testRequest(), testEvaluation(0.6), model.DispositionPendingReview)
	require.NoError(t, st.RecordEntry(ctx, entry))

	item, err := q.MarkForReview(ctx, testRequest(), testResult("Software", 0.6), testEvaluation(0.6), entry.ID)
	require.NoError(t, err)

	resolved, err := q.Approve(ctx, item.ID, "reviewer-1", "looks right")
	require.NoError(t, err)
	assert.Equal(t, model.ReviewApproved, resolved.Status)
	assert.Equal(t, "reviewer-1", resolved.ReviewerID)
	require.NotNil(t, resolved.ResolvedAt)

	got, err := st.GetEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DispositionApplied, got.Disposition)
	assert.Equal(t, "Software", got.AppliedValue)
}

func TestReject_MarksLedgerRejected(t *testing.T) {
	st := newTestStore(t)
	q := NewQueue(st, nil)
	ctx := context.Background()

	entry := ledger.NewEntry(testRequest(), testEvaluation(0.6), model.DispositionPendingReview)
	require.NoError(t, st.RecordEntry(ctx, entry))

	item, err := q.MarkForReview(ctx, testRequest(), testResult("Software", 0.6), testEvaluation(0.6), entry.ID)
	require.NoError(t, err)

	resolved, err := q.Reject(ctx, item.ID, "reviewer-1", "hallucinated", "checked the company site")
	require.NoError(t, err)
	assert.Equal(t, "hallucinated", resolved.RejectionReason)
	assert.Equal(t, "checked the company site", resolved.Notes)

	got, err := st.GetEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DispositionRejected, got.Disposition)
	assert.Nil(t, got.AppliedValue)

	// The reason survives the round trip.
	stored, err := q.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "hallucinated", stored.RejectionReason)
}

func TestEscalate_LeavesLedgerPending(t *testing.T) {
	st := newTestStore(t)
	q := NewQueue(st, nil)
	ctx := context.Background()

	entry := ledger.NewEntry(testRequest(), testEvaluation(0.6), model.DispositionPendingReview)
	require.NoError(t, st.RecordEntry(ctx, entry))

	item, err := q.MarkForReview(ctx, testRequest(), testResult("Software", 0.6), testEvaluation(0.6), entry.ID)
	require.NoError(t, err)

	resolved, err := q.Escalate(ctx, item.ID, "reviewer-1", "needs domain expert")
	require.NoError(t, err)
	assert.Equal(t, model.ReviewEscalated, resolved.Status)

	got, err := st.GetEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DispositionPendingReview, got.Disposition)
}

func TestResolve_TerminalItemIsImmutable(t *testing.T) {
	st := newTestStore(t)
	q := NewQueue(st, nil)
	ctx := context.Background()

	item, err := q.MarkForReview(ctx, testRequest(), testResult("Software", 0.6), testEvaluation(0.6), "")
	require.NoError(t, err)

	_, err = q.Approve(ctx, item.ID, "reviewer-1", "")
	require.NoError(t, err)

	for _, resolve := range []func() error{
		func() error { _, err := q.Approve(ctx, item.ID, "reviewer-2", ""); return err },
		func() error { _, err := q.Reject(ctx, item.ID, "reviewer-2", "", ""); return err },
		func() error { _, err := q.Escalate(ctx, item.ID, "reviewer-2", ""); return err },
	} {
		err := resolve()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrAlreadyResolved)
	}

	// First resolution stands.
	got, err := q.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReviewApproved, got.Status)
	assert.Equal(t, "reviewer-1", got.ReviewerID)
}

func TestNotifier_PostsItem(t *testing.T) {
	var received model.ReviewItem
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	st := newTestStore(t)
	q := NewQueue(st, NewNotifier(srv.URL))

	item, err := q.MarkForReview(context.Background(), testRequest(), testResult("Software", 0.6), testEvaluation(0.6), "")
	require.NoError(t, err)
	assert.Equal(t, item.ID, received.ID)
	assert.Equal(t, "rec-1", received.Request.RecordID)
}

func TestNotifier_FailureDoesNotBlockCreation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	st := newTestStore(t)
	q := NewQueue(st, NewNotifier(srv.URL))

	item, err := q.MarkForReview(context.Background(), testRequest(), testResult("Software", 0.6), testEvaluation(0.6), "")
	require.NoError(t, err)
	assert.Equal(t, model.ReviewPending, item.Status)
}
