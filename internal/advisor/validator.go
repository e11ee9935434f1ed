package advisor

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Validator enforces input bounds before anything downstream runs.
type Validator struct {
	MaxQueryLen int
	MaxFieldLen int
}

// Validate checks the query and every context field against the configured
// bounds. Lengths are counted in runes so multi-byte input is not penalized.
func (v Validator) Validate(req AdvisoryRequest) error {
	if strings.TrimSpace(req.Query) == "" {
		return &ValidationError{Field: "query", Reason: "must not be empty"}
	}
	if n := utf8.RuneCountInString(req.Query); n > v.MaxQueryLen {
		return &ValidationError{Field: "query", Reason: fmt.Sprintf("length %d exceeds maximum %d", n, v.MaxQueryLen)}
	}
	for name, val := range req.Context.Fields() {
		if n := utf8.RuneCountInString(val); n > v.MaxFieldLen {
			return &ValidationError{Field: name, Reason: fmt.Sprintf("length %d exceeds maximum %d", n, v.MaxFieldLen)}
		}
	}
	switch req.Shape {
	case "", FreeText, StructuredJSON:
	default:
		return &ValidationError{Field: "format", Reason: fmt.Sprintf("unknown format %q", req.Shape)}
	}
	return nil
}

// ValidateFollowup applies the same bounds to a follow-up question.
func (v Validator) ValidateFollowup(req FollowupRequest) error {
	if strings.TrimSpace(req.Question) == "" {
		return &ValidationError{Field: "question", Reason: "must not be empty"}
	}
	if n := utf8.RuneCountInString(req.Question); n > v.MaxQueryLen {
		return &ValidationError{Field: "question", Reason: fmt.Sprintf("length %d exceeds maximum %d", n, v.MaxQueryLen)}
	}
	return nil
}
