package model

import "time"

// Disposition is the final (or current) standing of one enrichment attempt
// in the audit ledger.
type Disposition string

const (
	DispositionApplied       Disposition = "applied"
	DispositionPendingReview Disposition = "pending_review"
	DispositionRejected      Disposition = "rejected"
	DispositionError         Disposition = "error"
)

// LedgerEntry is the durable audit record of one enrichment attempt. Entries
// are appended or updated, never deleted.
type LedgerEntry struct {
	ID           string      `json:"id"`
	RecordID     string      `json:"record_id"`
	TenantID     string      `json:"tenant_id"`
	Field        string      `json:"field"`
	ContentHash  string      `json:"content_hash"`
	Disposition  Disposition `json:"disposition"`
	Decision     Decision    `json:"decision"`
	AppliedValue any         `json:"applied_value,omitempty"`
	Confidence   float64     `json:"confidence"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}
