package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/enrich-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
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

func testEvaluation(decision model.Decision) model.ConfidenceEvaluation {
	return model.ConfidenceEvaluation{
		RawConfidence:      0.82,
		AdjustedConfidence: 0.82,
		ThresholdUsed:      0.7,
		Decision:           decision,
	}
}

func testReviewItem(id, recordID, field string) *model.ReviewItem {
	return &model.ReviewItem{
		ID: id,
		Request: model.EnrichmentRequest{
			RecordID:    recordID,
			TenantID:    "tenant-a",
			Field:       field,
			ContentHash: "abc123",
		},
		Result:     model.RawModelResult{Field: field, Value: "Software", RawConfidence: 0.6},
		Evaluation: testEvaluation(model.DecisionManualReview),
		Status:     model.ReviewPending,
		Reason:     "confidence 0.600 < threshold 0.700",
		CreatedAt:  time.Now().UTC().Truncate(time.Second),
	}
}

// --- Ledger entries ---

func TestSQLite_RecordAndGetEntry(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	entry := NewEntry(testRequest(), testEvaluation(model.DecisionAutoApply), model.DispositionApplied)
	entry.AppliedValue = "Software"
	require.NoError(t, st.RecordEntry(ctx, entry))

	got, err := st.GetEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.RecordID, got.RecordID)
	assert.Equal(t, entry.TenantID, got.TenantID)
	assert.Equal(t, model.DispositionApplied, got.Disposition)
	assert.Equal(t, model.DecisionAutoApply, got.Decision)
	assert.Equal(t, "Software", got.AppliedValue)
	assert.InDelta(t, 0.82, got.Confidence, 1e-9)
}

func TestSQLite_GetEntry_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetEntry(context.Background(), "nonexistent")
	assert.Error(t, err)
}

func TestSQLite_UpdateDisposition(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	entry := NewEntry(testRequest(), testEvaluation(model.DecisionManualReview), model.DispositionPendingReview)
	require.NoError(t, st.RecordEntry(ctx, entry))

	require.NoError(t, st.UpdateDisposition(ctx, entry.ID, model.DispositionRejected))

	got, err := st.GetEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DispositionRejected, got.Disposition)
	assert.Nil(t, got.AppliedValue)
}

func TestSQLite_UpdateDisposition_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.UpdateDisposition(context.Background(), "nope", model.DispositionRejected)
	assert.ErrorContains(t, err, "not found")
}

func TestSQLite_Apply(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	entry := NewEntry(testRequest(), testEvaluation(model.DecisionManualReview), model.DispositionPendingReview)
	require.NoError(t, st.RecordEntry(ctx, entry))

	require.NoError(t, st.Apply(ctx, entry.ID, map[string]any{"name": "Software"}))

	got, err := st.GetEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DispositionApplied, got.Disposition)
	assert.Equal(t, map[string]any{"name": "Software"}, got.AppliedValue)
}

func TestSQLite_GetByRecord(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	for _, field := range []string{"industry", "employee_count"} {
		req := testRequest()
		req.Field = field
		entry := NewEntry(req, testEvaluation(model.DecisionAutoApply), model.DispositionApplied)
		require.NoError(t, st.RecordEntry(ctx, entry))
	}
	other := testRequest()
	other.RecordID = "rec-2"
	require.NoError(t, st.RecordEntry(ctx, NewEntry(other, testEvaluation(model.DecisionAutoApply), model.DispositionApplied)))

	entries, err := st.GetByRecord(ctx, "rec-1")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, "rec-1", e.RecordID)
	}
}

func TestSQLite_ListByDisposition(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	applied := NewEntry(testRequest(), testEvaluation(model.DecisionAutoApply), model.DispositionApplied)
	require.NoError(t, st.RecordEntry(ctx, applied))

	req2 := testRequest()
	req2.RecordID = "rec-2"
	pending := NewEntry(req2, testEvaluation(model.DecisionManualReview), model.DispositionPendingReview)
	require.NoError(t, st.RecordEntry(ctx, pending))

	entries, err := st.ListByDisposition(ctx, model.DispositionPendingReview, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "rec-2", entries[0].RecordID)
}

// --- Review items ---

func TestSQLite_SaveAndGetReviewItem(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	item := testReviewItem("ri-1", "rec-1", "industry")
	require.NoError(t, st.SaveReviewItem(ctx, item))

	got, err := st.GetReviewItem(ctx, "ri-1")
	require.NoError(t, err)
	assert.Equal(t, model.ReviewPending, got.Status)
	assert.Equal(t, "rec-1", got.Request.RecordID)
	assert.Equal(t, "Software", got.Result.Value)
	assert.Contains(t, got.Reason, "0.600")
}

func TestSQLite_GetReviewItem_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetReviewItem(context.Background(), "nonexistent")
	assert.ErrorContains(t, err, "not found")
}

func TestSQLite_UpdateReviewItem(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	item := testReviewItem("ri-1", "rec-1", "industry")
	require.NoError(t, st.SaveReviewItem(ctx, item))

	now := time.Now().UTC()
	item.Status = model.ReviewApproved
	item.ReviewerID = "reviewer-9"
	item.ResolvedAt = &now
	require.NoError(t, st.UpdateReviewItem(ctx, item))

	got, err := st.GetReviewItem(ctx, "ri-1")
	require.NoError(t, err)
	assert.Equal(t, model.ReviewApproved, got.Status)
	assert.Equal(t, "reviewer-9", got.ReviewerID)
	require.NotNil(t, got.ResolvedAt)
}

func TestSQLite_FindPendingReview(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SaveReviewItem(ctx, testReviewItem("ri-1", "rec-1", "industry")))
	require.NoError(t, st.SaveReviewItem(ctx, testReviewItem("ri-2", "rec-1", "employee_count")))

	got, err := st.FindPendingReview(ctx, "rec-1", "industry")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "ri-1", got.ID)

	got, err = st.FindPendingReview(ctx, "rec-1", "revenue")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_FindPendingReview_IgnoresResolved(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	item := testReviewItem("ri-1", "rec-1", "industry")
	require.NoError(t, st.SaveReviewItem(ctx, item))

	now := time.Now().UTC()
	item.Status = model.ReviewRejected
	item.ResolvedAt = &now
	require.NoError(t, st.UpdateReviewItem(ctx, item))

	got, err := st.FindPendingReview(ctx, "rec-1", "industry")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_ListReviewItems_Filters(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a := testReviewItem("ri-1", "rec-1", "industry")
	require.NoError(t, st.SaveReviewItem(ctx, a))

	b := testReviewItem("ri-2", "rec-2", "industry")
	b.Request.TenantID = "tenant-b"
	require.NoError(t, st.SaveReviewItem(ctx, b))

	now := time.Now().UTC()
	b.Status = model.ReviewApproved
	b.ResolvedAt = &now
	require.NoError(t, st.UpdateReviewItem(ctx, b))

	pending, err := st.ListReviewItems(ctx, ReviewFilter{Status: model.ReviewPending})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "ri-1", pending[0].ID)

	tenantB, err := st.ListReviewItems(ctx, ReviewFilter{TenantID: "tenant-b"})
	require.NoError(t, err)
	require.Len(t, tenantB, 1)
	assert.Equal(t, "ri-2", tenantB[0].ID)
}

func TestDispositionForDecision(t *testing.T) {
	assert.Equal(t, model.DispositionApplied, DispositionForDecision(model.DecisionAutoApply))
	assert.Equal(t, model.DispositionPendingReview, DispositionForDecision(model.DecisionManualReview))
	assert.Equal(t, model.DispositionPendingReview, DispositionForDecision(model.DecisionError))
}
