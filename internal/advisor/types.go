// Package advisor implements the request-orchestration pipeline: validation,
// rate limiting, budget gating, prompt composition, provider invocation,
// response normalization, and usage accounting.
package advisor

// ReportShape declares the output shape the caller expects.
type ReportShape string

const (
	// FreeText returns the provider's markdown unchanged.
	FreeText ReportShape = "markdown"
	// StructuredJSON requires the provider output to parse as JSON.
	StructuredJSON ReportShape = "json"
)

// RequestContext carries the optional structured fields accompanying a query.
type RequestContext struct {
	ReportPurpose       string `json:"report_purpose,omitempty"`
	PrimaryAudience     string `json:"primary_audience,omitempty"`
	Budget              string `json:"budget,omitempty"`
	ExistingTools       string `json:"existing_tools,omitempty"`
	TeamSize            string `json:"team_size,omitempty"`
	Timeline            string `json:"timeline,omitempty"`
	TechnicalExperience string `json:"technical_experience,omitempty"`
}

// Fields returns the context as named values, for validation and templating.
func (c RequestContext) Fields() map[string]string {
	return map[string]string{
		"report_purpose":       c.ReportPurpose,
		"primary_audience":     c.PrimaryAudience,
		"budget":               c.Budget,
		"existing_tools":       c.ExistingTools,
		"team_size":            c.TeamSize,
		"timeline":             c.Timeline,
		"technical_experience": c.TechnicalExperience,
	}
}

// AdvisoryRequest is one incoming advisory call. It is validated, used to
// build the prompt, and discarded; requests are never persisted.
type AdvisoryRequest struct {
	Query   string         `json:"query"`
	Context RequestContext `json:"context"`
	Shape   ReportShape    `json:"format,omitempty"`
}

// FollowupRequest is a follow-up question about a previously generated
// report. The report excerpt is truncated before it reaches the prompt.
type FollowupRequest struct {
	Question       string `json:"question"`
	OriginalReport string `json:"original_report,omitempty"`
}

// UsageMetadata reports the token usage and spend of one advisory call.
type UsageMetadata struct {
	InputTokens   int64   `json:"input_tokens"`
	OutputTokens  int64   `json:"output_tokens"`
	EstimatedCost float64 `json:"estimated_cost"`
	MonthTotal    float64 `json:"month_total"`
	BudgetCap     float64 `json:"budget_cap"`
}

// AdvisoryResponse is the result returned to the caller. Report is a string
// for markdown mode and a decoded JSON value for structured mode.
type AdvisoryResponse struct {
	Report   any           `json:"report"`
	Metadata UsageMetadata `json:"metadata"`
}
