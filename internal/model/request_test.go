package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint_Deterministic(t *testing.T) {
	a := Fingerprint("Chateau Margaux 2015")
	b := Fingerprint("Chateau Margaux 2015")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestFingerprint_TrimsAndNormalizes(t *testing.T) {
	// Trailing whitespace does not change the fingerprint.
	assert.Equal(t, Fingerprint("payload"), Fingerprint("  payload \n"))

	// NFC vs NFD representations of é hash identically.
	nfc := "Rosé"
	nfd := "Rosé"
	assert.Equal(t, Fingerprint(nfc), Fingerprint(nfd))
}

func TestFingerprint_ChangesWithPayload(t *testing.T) {
	assert.NotEqual(t, Fingerprint("v1"), Fingerprint("v2"))
}

func TestNewEnrichmentRequest(t *testing.T) {
	req := NewEnrichmentRequest("rec-1", "acme", "variety", "some payload")
	assert.Equal(t, "rec-1", req.RecordID)
	assert.Equal(t, "acme", req.TenantID)
	assert.Equal(t, "variety", req.Field)
	assert.Equal(t, Fingerprint("some payload"), req.ContentHash)
	assert.NoError(t, req.Validate())
}

func TestValidate_MissingFields(t *testing.T) {
	cases := []struct {
		name string
		req  EnrichmentRequest
	}{
		{"no record id", EnrichmentRequest{TenantID: "t", Field: "f", ContentHash: "h"}},
		{"no tenant id", EnrichmentRequest{RecordID: "r", Field: "f", ContentHash: "h"}},
		{"no field", EnrichmentRequest{RecordID: "r", TenantID: "t", ContentHash: "h"}},
		{"no hash", EnrichmentRequest{RecordID: "r", TenantID: "t", Field: "f"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Error(t, tc.req.Validate())
		})
	}
}

func TestReviewStatus_Terminal(t *testing.T) {
	assert.False(t, ReviewPending.Terminal())
	assert.True(t, ReviewApproved.Terminal())
	assert.True(t, ReviewRejected.Terminal())
	assert.True(t, ReviewEscalated.Terminal())
}

func TestTokenUsage_Total(t *testing.T) {
	u := TokenUsage{InputTokens: 120, OutputTokens: 30}
	assert.Equal(t, int64(150), u.Total())
}
