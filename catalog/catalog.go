// Package catalog loads the static list of recommendable AI tools used as
// prompt context. The catalog is read once at startup and never mutated.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// ToolEntry is a single recommendable tool.
type ToolEntry struct {
	Name         string  `json:"name"`
	Category     string  `json:"category"`
	Description  string  `json:"description"`
	MonthlyPrice float64 `json:"pricing_monthly"`
	AnnualPrice  float64 `json:"pricing_annual"`
	Website      string  `json:"url"`
}

// Catalog is an immutable set of tool entries.
type Catalog struct {
	entries []ToolEntry
}

type catalogFile struct {
	Tools []ToolEntry `json:"tools"`
}

// Load reads the catalog JSON file. A missing or malformed catalog is a
// startup failure; the composer cannot build prompts without it.
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var f catalogFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	if len(f.Tools) == 0 {
		return nil, fmt.Errorf("catalog %s contains no tools", path)
	}
	for i, t := range f.Tools {
		if strings.TrimSpace(t.Name) == "" {
			return nil, fmt.Errorf("catalog %s: entry %d has no name", path, i)
		}
	}
	return &Catalog{entries: f.Tools}, nil
}

// Len reports the number of entries.
func (c *Catalog) Len() int { return len(c.entries) }

// Entries returns a copy of all entries.
func (c *Catalog) Entries() []ToolEntry {
	out := make([]ToolEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

// ByCategory returns the entries in the given category, name-ordered.
func (c *Catalog) ByCategory(category string) []ToolEntry {
	var out []ToolEntry
	for _, t := range c.entries {
		if strings.EqualFold(t.Category, category) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// PromptExcerpt serializes up to max entries in the line format the prompt
// composer embeds as model context.
func (c *Catalog) PromptExcerpt(max int) string {
	if max <= 0 || max > len(c.entries) {
		max = len(c.entries)
	}
	var b strings.Builder
	for _, t := range c.entries[:max] {
		fmt.Fprintf(&b, "- %s (%s): %s | $%.0f/month, $%.0f/year | %s\n",
			t.Name, t.Category, t.Description, t.MonthlyPrice, t.AnnualPrice, t.Website)
	}
	return b.String()
}
