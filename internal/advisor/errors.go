package advisor

import (
	"fmt"
	"time"
)

// ValidationError rejects a request whose input is out of bounds. No
// external call is made and no cost is incurred.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// RateLimitError rejects a request that exceeded this service's own
// per-client or global ceiling.
type RateLimitError struct {
	Count   int
	ResetAt time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded (%d requests this window, resets %s)", e.Count, e.ResetAt.UTC().Format(time.RFC3339))
}

// BudgetError rejects a request because the monthly spend cap is reached.
type BudgetError struct {
	Total float64
	Cap   float64
}

func (e *BudgetError) Error() string {
	return fmt.Sprintf("monthly budget cap reached ($%.4f of $%.2f)", e.Total, e.Cap)
}

// NormalizationError means the provider output did not match the expected
// shape. Raw carries the unparsed text for diagnosis; no partial structure
// is ever returned alongside it.
type NormalizationError struct {
	Raw string
	Err error
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("response normalization failed: %v", e.Err)
}

func (e *NormalizationError) Unwrap() error { return e.Err }
