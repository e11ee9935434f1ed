package advisor

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Normalize converts raw provider text into the shape the caller declared.
// FreeText passes through unchanged. StructuredJSON strips any surrounding
// code fences and parses strictly; a parse failure surfaces the raw text in
// a NormalizationError and never a partially decoded value.
func Normalize(raw string, shape ReportShape) (any, error) {
	switch shape {
	case "", FreeText:
		return raw, nil
	case StructuredJSON:
		stripped := stripCodeFence(raw)
		dec := json.NewDecoder(strings.NewReader(stripped))
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, &NormalizationError{Raw: raw, Err: fmt.Errorf("parse structured report: %w", err)}
		}
		// Trailing non-whitespace after the value means the output was not
		// a single JSON document.
		if _, err := dec.Token(); err != io.EOF {
			return nil, &NormalizationError{Raw: raw, Err: fmt.Errorf("trailing content after structured report")}
		}
		switch v.(type) {
		case map[string]any, []any:
			return v, nil
		default:
			return nil, &NormalizationError{Raw: raw, Err: fmt.Errorf("structured report is not an object or array")}
		}
	default:
		return nil, &NormalizationError{Raw: raw, Err: fmt.Errorf("unknown report shape %q", shape)}
	}
}

// stripCodeFence removes one level of markdown code-fence wrapping, with or
// without a language tag.
func stripCodeFence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```")
	if nl := strings.IndexByte(t, '\n'); nl >= 0 {
		head := strings.TrimSpace(t[:nl])
		// A short word after the fence is a language tag; anything else is
		// content that happens to start with backticks.
		if head == "" || (len(head) <= 10 && !strings.ContainsAny(head, " \t{[")) {
			t = t[nl+1:]
		}
	}
	t = strings.TrimSpace(t)
	t = strings.TrimSuffix(t, "```")
	return strings.TrimSpace(t)
}
