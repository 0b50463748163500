package model

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/unicode/norm"
)

// EnrichmentRequest identifies one record field that needs LLM enrichment.
// Immutable once constructed; cache and ledger keys are derived from it.
type EnrichmentRequest struct {
	RecordID    string `json:"record_id"`
	TenantID    string `json:"tenant_id"`
	Field       string `json:"field"`
	ContentHash string `json:"content_hash"`
}

// NewEnrichmentRequest builds a request with the content fingerprint derived
// from the record's canonical payload.
func NewEnrichmentRequest(recordID, tenantID, field, payload string) EnrichmentRequest {
	return EnrichmentRequest{
		RecordID:    recordID,
		TenantID:    tenantID,
		Field:       field,
		ContentHash: Fingerprint(payload),
	}
}

// Fingerprint returns SHA-256 hex of the NFC-normalized, whitespace-trimmed
// payload. Two records with the same canonical content always share a
// fingerprint regardless of Unicode representation.
func Fingerprint(payload string) string {
	canonical := norm.NFC.String(strings.TrimSpace(payload))
	h := sha256.Sum256([]byte(canonical))
	return fmt.Sprintf("%x", h)
}

// Validate checks structural validity. A request without record identity is
// a programming or data error, not an operational one.
func (r EnrichmentRequest) Validate() error {
	if r.RecordID == "" {
		return eris.New("request: missing record id")
	}
	if r.TenantID == "" {
		return eris.New("request: missing tenant id")
	}
	if r.Field == "" {
		return eris.New("request: missing field name")
	}
	if r.ContentHash == "" {
		return eris.New("request: missing content hash")
	}
	return nil
}
