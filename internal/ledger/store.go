// Package ledger persists the enrichment audit trail and review queue state.
package ledger

import (
	"context"

	"github.com/sells-group/enrich-cli/internal/model"
)

// ReviewFilter specifies criteria for listing review items.
type ReviewFilter struct {
	Status   model.ReviewStatus `json:"status,omitempty"`
	TenantID string             `json:"tenant_id,omitempty"`
	Limit    int                `json:"limit,omitempty"`
	Offset   int                `json:"offset,omitempty"`
}

// Store defines the persistence interface for the enrichment pipeline.
type Store interface {
	// Ledger entries
	RecordEntry(ctx context.Context, entry *model.LedgerEntry) error
	UpdateDisposition(ctx context.Context, entryID string, disposition model.Disposition) error
	Apply(ctx context.Context, entryID string, value any) error
	GetEntry(ctx context.Context, entryID string) (*model.LedgerEntry, error)
	GetByRecord(ctx context.Context, recordID string) ([]model.LedgerEntry, error)
	ListByDisposition(ctx context.Context, disposition model.Disposition, limit int) ([]model.LedgerEntry, error)

	// Review items
	SaveReviewItem(ctx context.Context, item *model.ReviewItem) error
	GetReviewItem(ctx context.Context, itemID string) (*model.ReviewItem, error)
	ListReviewItems(ctx context.Context, filter ReviewFilter) ([]model.ReviewItem, error)
	UpdateReviewItem(ctx context.Context, item *model.ReviewItem) error
	FindPendingReview(ctx context.Context, recordID, field string) (*model.ReviewItem, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
