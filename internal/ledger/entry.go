package ledger

import (
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/enrich-cli/internal/model"
)

// NewEntry builds a ledger entry for one enrichment attempt. The applied
// value stays empty until the entry is applied.
func NewEntry(req model.EnrichmentRequest, eval model.ConfidenceEvaluation, disposition model.Disposition) *model.LedgerEntry {
	now := time.Now().UTC()
	return &model.LedgerEntry{
		ID:          uuid.New().String(),
		RecordID:    req.RecordID,
		TenantID:    req.TenantID,
		Field:       req.Field,
		ContentHash: req.ContentHash,
		Disposition: disposition,
		Decision:    eval.Decision,
		Confidence:  eval.AdjustedConfidence,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// DispositionForDecision maps an evaluator decision to the ledger
// disposition recorded at orchestration time. Error decisions land in
// pending_review alongside manual ones: both produce an actionable
// review item, and the decision column keeps them distinguishable.
func DispositionForDecision(d model.Decision) model.Disposition {
	switch d {
	case model.DecisionAutoApply:
		return model.DispositionApplied
	default:
		return model.DispositionPendingReview
	}
}
