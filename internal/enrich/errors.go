package enrich

import (
	"fmt"
)

// RateLimitError is returned when admission is refused for a tenant. The
// request consumed no quota and no provider call was made.
type RateLimitError struct {
	TenantID  string
	Remaining map[string]int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for tenant %s", e.TenantID)
}

// ProviderError is returned when the model call fails after all retries.
type ProviderError struct {
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider call failed: %v", e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// EvaluationError is returned when a model result cannot be scored. The
// attempt is still recorded in the ledger with an error disposition.
type EvaluationError struct {
	Reason string
}

func (e *EvaluationError) Error() string {
	return e.Reason
}

// ReviewCreationError is returned when a low-confidence result cannot be
// queued for manual review.
type ReviewCreationError struct {
	Err error
}

func (e *ReviewCreationError) Error() string {
	return fmt.Sprintf("review creation failed: %v", e.Err)
}

func (e *ReviewCreationError) Unwrap() error { return e.Err }

// PersistenceError is returned when a ledger write fails. Writes surface
// errors; cache reads and writes degrade silently instead.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
