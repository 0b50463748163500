package model

import "time"

// ReviewStatus is the state of a review item. Pending is the only
// non-terminal state.
type ReviewStatus string

const (
	ReviewPending   ReviewStatus = "pending"
	ReviewApproved  ReviewStatus = "approved"
	ReviewRejected  ReviewStatus = "rejected"
	ReviewEscalated ReviewStatus = "escalated"
)

// Terminal reports whether the status admits no further transitions.
func (s ReviewStatus) Terminal() bool {
	return s == ReviewApproved || s == ReviewRejected || s == ReviewEscalated
}

// ReviewItem tracks one low-confidence result through manual review.
// At most one unresolved item exists per (record_id, field).
type ReviewItem struct {
	ID              string               `json:"id"`
	Request         EnrichmentRequest    `json:"request"`
	Result          RawModelResult       `json:"result"`
	Evaluation      ConfidenceEvaluation `json:"evaluation"`
	Status          ReviewStatus         `json:"status"`
	Reason          string               `json:"reason"`
	LedgerEntryID   string               `json:"ledger_entry_id,omitempty"`
	ReviewerID      string               `json:"reviewer_id,omitempty"`
	RejectionReason string               `json:"rejection_reason,omitempty"`
	Notes           string               `json:"notes,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
	ResolvedAt      *time.Time           `json:"resolved_at,omitempty"`
}
