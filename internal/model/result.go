package model

import "time"

// TokenUsage tracks token consumption for one model call.
type TokenUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Total returns the combined token count.
func (u TokenUsage) Total() int64 {
	return u.InputTokens + u.OutputTokens
}

// RawModelResult is the output of one successful external model call. The
// value is opaque to the orchestration core; it is evaluated, cached, and
// recorded but never interpreted.
type RawModelResult struct {
	Field         string     `json:"field"`
	Value         any        `json:"value"`
	RawConfidence float64    `json:"raw_confidence"`
	ModelID       string     `json:"model_id"`
	Usage         TokenUsage `json:"token_usage"`
	ProducedAt    time.Time  `json:"produced_at"`
}
