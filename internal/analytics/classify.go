package analytics

import "strings"

// CategoryUnspecified is the fallback when no keyword group matches. The
// classifier is best-effort pattern matching, not a parser; callers must not
// treat its output as authoritative.
const CategoryUnspecified = "unspecified"

// categoryKeywords maps a detected category to the substrings that suggest
// it. First match in iteration order wins, so the list is ordered from the
// most specific category to the most generic.
var categoryKeywords = []struct {
	category string
	words    []string
}{
	{"customer_support", []string{"customer support", "support ticket", "help desk", "helpdesk", "customer service", "chatbot"}},
	{"marketing", []string{"marketing", "social media", "seo", "campaign", "advertis", "email blast"}},
	{"sales", []string{"sales", "crm", "lead gen", "pipeline", "outreach"}},
	{"content", []string{"content", "copywriting", "blog", "newsletter", "video edit", "transcri"}},
	{"data_analysis", []string{"data", "analytics", "report", "dashboard", "forecast", "spreadsheet"}},
	{"automation", []string{"automat", "workflow", "integrat", "repetitive", "manual process"}},
	{"hiring", []string{"hiring", "recruit", "onboard", "resume", "candidate"}},
	{"finance", []string{"invoice", "bookkeep", "accounting", "expense", "payroll"}},
}

// Classify guesses a category for a free-text query by keyword matching.
func Classify(query string) string {
	q := strings.ToLower(query)
	for _, group := range categoryKeywords {
		for _, w := range group.words {
			if strings.Contains(q, w) {
				return group.category
			}
		}
	}
	return CategoryUnspecified
}

// MentionsBudget reports whether the query includes an explicit money or
// budget reference.
func MentionsBudget(query string) bool {
	q := strings.ToLower(query)
	if strings.ContainsRune(q, '$') {
		return true
	}
	for _, w := range []string{"budget", "per month", "/month", "a month", "afford", "cheap", "free tier"} {
		if strings.Contains(q, w) {
			return true
		}
	}
	return false
}
