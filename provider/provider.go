// Package provider defines the single call-out boundary to external
// large-language-model APIs: prompt in, generated text plus token counts out.
package provider

import (
	"context"
	"errors"
	"fmt"
)

// Request is a composed prompt payload for one generation call.
type Request struct {
	System      string
	Prompt      string
	Model       string // model key from configuration, not the API name
	MaxTokens   int
	Temperature float64
}

// Result carries the generated text and the provider-metered token usage.
type Result struct {
	Text         string
	InputTokens  int64
	OutputTokens int64
	Model        string
}

// ModelInfo describes a configured model, including its billing rates.
type ModelInfo struct {
	Name            string
	APIName         string
	MaxTokens       int
	Temperature     float64
	CostPer1KInput  float64
	CostPer1KOutput float64
	Encoding        string
}

// Provider generates text for a composed prompt.
type Provider interface {
	Generate(ctx context.Context, req Request) (Result, error)
	ModelInfo(model string) (ModelInfo, error)
	Models() []string
}

// ErrRateLimited indicates provider-side throttling (HTTP 429). Distinct
// from this service's own per-client rate limiter.
var ErrRateLimited = errors.New("provider rate limited")

// ServiceError is a transient provider failure (outage, overload, 5xx).
type ServiceError struct {
	Status int
	Body   string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("provider service error: status=%d %s", e.Status, e.Body)
}

// FatalError is a non-retryable provider failure (auth, malformed request).
type FatalError struct {
	Status int
	Body   string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("provider fatal error: status=%d %s", e.Status, e.Body)
}

// IsTransient reports whether the error is worth retrying: provider-side
// throttling and 5xx-class outages. Fatal errors and context cancellation
// are not.
func IsTransient(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var se *ServiceError
	return errors.As(err, &se)
}
