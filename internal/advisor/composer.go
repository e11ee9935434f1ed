package advisor

import (
	"fmt"
	"os"
	"strings"
	"text/template"
	"unicode/utf8"

	"github.com/bulwise/bulwise/catalog"
	"github.com/bulwise/bulwise/config"
)

// followupExcerptLimit bounds how much of the original report is replayed
// into a follow-up prompt.
const followupExcerptLimit = 4000

// Composer renders the instruction payload sent to the provider. Output is
// deterministic given identical inputs and catalog snapshot.
type Composer struct {
	system     string
	report     *template.Template
	followup   *template.Template
	catalog    *catalog.Catalog
	maxEntries int
}

type reportData struct {
	Query          string
	Context        map[string]string
	CatalogExcerpt string
	WantJSON       bool
}

type followupData struct {
	Question string
	Report   string
}

// NewComposer parses the report and follow-up templates, preferring override
// files from config over the built-in defaults.
func NewComposer(cfg config.PromptsConfig, cat *catalog.Catalog, maxEntries int) (*Composer, error) {
	reportSrc, err := templateSource(cfg.ReportTemplateFile, defaultReportTemplate)
	if err != nil {
		return nil, err
	}
	followupSrc, err := templateSource(cfg.FollowupTemplateFile, defaultFollowupTemplate)
	if err != nil {
		return nil, err
	}
	report, err := template.New("report").Parse(reportSrc)
	if err != nil {
		return nil, fmt.Errorf("parse report template: %w", err)
	}
	followup, err := template.New("followup").Parse(followupSrc)
	if err != nil {
		return nil, fmt.Errorf("parse followup template: %w", err)
	}
	return &Composer{
		system:     defaultSystemPrompt,
		report:     report,
		followup:   followup,
		catalog:    cat,
		maxEntries: maxEntries,
	}, nil
}

func templateSource(path, fallback string) (string, error) {
	if path == "" {
		return fallback, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read prompt template %s: %w", path, err)
	}
	return string(raw), nil
}

// System returns the system prompt shared by all generation calls.
func (c *Composer) System() string { return c.system }

// Report renders the advisory prompt for a validated request.
func (c *Composer) Report(req AdvisoryRequest) (string, error) {
	ctx := make(map[string]string)
	for name, val := range req.Context.Fields() {
		if strings.TrimSpace(val) != "" {
			ctx[name] = val
		}
	}
	if len(ctx) == 0 {
		ctx = nil
	}
	data := reportData{
		Query:          req.Query,
		Context:        ctx,
		CatalogExcerpt: c.catalog.PromptExcerpt(c.maxEntries),
		WantJSON:       req.Shape == StructuredJSON,
	}
	var b strings.Builder
	if err := c.report.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render report prompt: %w", err)
	}
	return b.String(), nil
}

// Followup renders the prompt for a follow-up question, truncating the
// original report excerpt.
func (c *Composer) Followup(req FollowupRequest) (string, error) {
	excerpt := truncateRunes(req.OriginalReport, followupExcerptLimit)
	var b strings.Builder
	if err := c.followup.Execute(&b, followupData{Question: req.Question, Report: excerpt}); err != nil {
		return "", fmt.Errorf("render followup prompt: %w", err)
	}
	return b.String(), nil
}

// truncateRunes caps s at limit bytes without splitting a multi-byte rune.
func truncateRunes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
