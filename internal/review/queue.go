// Package review manages the manual review queue for low-confidence results.
package review

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/enrich-cli/internal/ledger"
	"github.com/sells-group/enrich-cli/internal/model"
)

// ErrAlreadyResolved is returned when a terminal review item is resolved again.
var ErrAlreadyResolved = eris.New("review item already resolved")

// Queue coordinates review item lifecycle: creation with supersession of
// stale pending items, and resolution into the ledger.
type Queue struct {
	store    ledger.Store
	notifier *Notifier
	nowFunc  func() time.Time
}

// NewQueue creates a review queue backed by the given store. The notifier
// may be nil to disable webhook delivery.
func NewQueue(store ledger.Store, notifier *Notifier) *Queue {
	return &Queue{
		store:    store,
		notifier: notifier,
		nowFunc:  func() time.Time { return time.Now().UTC() },
	}
}

// MarkForReview creates a pending review item for a low-confidence result.
// If an unresolved item already exists for the same (record, field), the new
// result supersedes it in place: the item keeps its ID and CreatedAt, and
// carries the latest result and evaluation.
func (q *Queue) MarkForReview(ctx context.Context, req model.EnrichmentRequest, result model.RawModelResult, eval model.ConfidenceEvaluation, ledgerEntryID string) (*model.ReviewItem, error) {
	if err := req.Validate(); err != nil {
		return nil, eris.Wrap(err, "review: invalid request")
	}

	existing, err := q.store.FindPendingReview(ctx, req.RecordID, req.Field)
	if err != nil {
		return nil, eris.Wrap(err, "review: find pending")
	}

	if existing != nil {
		existing.Request = req
		existing.Result = result
		existing.Evaluation = eval
		existing.Reason = eval.Reason
		existing.LedgerEntryID = ledgerEntryID
		if err := q.store.UpdateReviewItem(ctx, existing); err != nil {
			return nil, eris.Wrap(err, "review: supersede pending item")
		}
		zap.L().Info("review item superseded",
			zap.String("item_id", existing.ID),
			zap.String("record_id", req.RecordID),
			zap.String("field", req.Field),
		)
		q.notify(ctx, existing)
		return existing, nil
	}

	item := &model.ReviewItem{
		ID:            uuid.New().String(),
		Request:       req,
		Result:        result,
		Evaluation:    eval,
		Status:        model.ReviewPending,
		Reason:        eval.Reason,
		LedgerEntryID: ledgerEntryID,
		CreatedAt:     q.nowFunc(),
	}
	if err := q.store.SaveReviewItem(ctx, item); err != nil {
		return nil, eris.Wrap(err, "review: save item")
	}

	zap.L().Info("review item created",
		zap.String("item_id", item.ID),
		zap.String("record_id", req.RecordID),
		zap.String("field", req.Field),
		zap.String("reason", item.Reason),
	)
	q.notify(ctx, item)
	return item, nil
}

// Approve resolves a pending item and applies its value to the ledger.
func (q *Queue) Approve(ctx context.Context, itemID, reviewerID, notes string) (*model.ReviewItem, error) {
	item, err := q.resolve(ctx, itemID, reviewerID, notes, model.ReviewApproved)
	if err != nil {
		return nil, err
	}

	if item.LedgerEntryID != "" {
		if err := q.store.Apply(ctx, item.LedgerEntryID, item.Result.Value); err != nil {
			return nil, eris.Wrap(err, "review: apply approved value")
		}
	}
	return item, nil
}

// Reject resolves a pending item with a rejection reason and marks the
// ledger entry rejected.
func (q *Queue) Reject(ctx context.Context, itemID, reviewerID, reason, notes string) (*model.ReviewItem, error) {
	item, err := q.resolveWithReason(ctx, itemID, reviewerID, reason, notes, model.ReviewRejected)
	if err != nil {
		return nil, err
	}

	if item.LedgerEntryID != "" {
		if err := q.store.UpdateDisposition(ctx, item.LedgerEntryID, model.DispositionRejected); err != nil {
			return nil, eris.Wrap(err, "review: reject ledger entry")
		}
	}
	return item, nil
}

// Escalate resolves a pending item to escalated. The ledger entry stays
// pending until someone with more context settles it out of band.
func (q *Queue) Escalate(ctx context.Context, itemID, reviewerID, notes string) (*model.ReviewItem, error) {
	return q.resolve(ctx, itemID, reviewerID, notes, model.ReviewEscalated)
}

// Get returns one review item by ID.
func (q *Queue) Get(ctx context.Context, itemID string) (*model.ReviewItem, error) {
	return q.store.GetReviewItem(ctx, itemID)
}

// List returns review items matching the filter.
func (q *Queue) List(ctx context.Context, filter ledger.ReviewFilter) ([]model.ReviewItem, error) {
	return q.store.ListReviewItems(ctx, filter)
}

func (q *Queue) resolve(ctx context.Context, itemID, reviewerID, notes string, status model.ReviewStatus) (*model.ReviewItem, error) {
	return q.resolveWithReason(ctx, itemID, reviewerID, "", notes, status)
}

func (q *Queue) resolveWithReason(ctx context.Context, itemID, reviewerID, rejectionReason, notes string, status model.ReviewStatus) (*model.ReviewItem, error) {
	item, err := q.store.GetReviewItem(ctx, itemID)
	if err != nil {
		return nil, eris.Wrapf(err, "review: get item %s", itemID)
	}
	if item.Status.Terminal() {
		return nil, eris.Wrapf(ErrAlreadyResolved, "review: item %s is %s", itemID, item.Status)
	}

	now := q.nowFunc()
	item.Status = status
	item.ReviewerID = reviewerID
	item.RejectionReason = rejectionReason
	item.Notes = notes
	item.ResolvedAt = &now

	if err := q.store.UpdateReviewItem(ctx, item); err != nil {
		return nil, eris.Wrapf(err, "review: update item %s", itemID)
	}

	zap.L().Info("review item resolved",
		zap.String("item_id", item.ID),
		zap.String("status", string(status)),
		zap.String("reviewer_id", reviewerID),
	)
	return item, nil
}

// notify posts the item to the webhook. Failures are logged and swallowed so
// review creation never depends on webhook availability.
func (q *Queue) notify(ctx context.Context, item *model.ReviewItem) {
	if !q.notifier.Enabled() {
		return
	}
	if err := q.notifier.NotifyCreated(ctx, item); err != nil {
		zap.L().Warn("review: webhook notification failed",
			zap.String("item_id", item.ID),
			zap.Error(err),
		)
	}
}
