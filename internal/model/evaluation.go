package model

// Decision is the routing outcome of confidence evaluation.
type Decision string

const (
	// DecisionAutoApply means the value is written without human review.
	DecisionAutoApply Decision = "auto_apply"
	// DecisionManualReview means the value is held for human approval.
	DecisionManualReview Decision = "manual_review"
	// DecisionError means evaluation itself failed; routed like manual
	// review but recorded distinctly.
	DecisionError Decision = "error"
)

// ConfidenceEvaluation is the deterministic output of scoring one
// RawModelResult against configured rules and thresholds.
type ConfidenceEvaluation struct {
	RawConfidence      float64  `json:"raw_confidence"`
	AdjustedConfidence float64  `json:"adjusted_confidence"`
	ThresholdUsed      float64  `json:"threshold_used"`
	Decision           Decision `json:"decision"`
	RulesApplied       []string `json:"rules_applied,omitempty"`
	Reason             string   `json:"reason,omitempty"`
}
