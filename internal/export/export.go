// Package export splits a finished report into sections and hands them to
// document adapters. Rendering engines for slides and PDFs live outside this
// service; the in-tree adapter emits plain markdown.
package export

import (
	"fmt"
	"strings"
	"time"
)

// Section is one titled slice of a report. Sections are delimited by "## "
// headings, the stable marker adapters rely on to map content to slides or
// pages.
type Section struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Document is the renderable form of a report plus minimal metadata.
type Document struct {
	Title       string    `json:"title"`
	GeneratedAt time.Time `json:"generated_at"`
	SourceQuery string    `json:"source_query"`
	Sections    []Section `json:"sections"`
}

// Adapter renders a document into a binary artifact.
type Adapter interface {
	Render(doc Document) ([]byte, error)
	// ContentType is the MIME type of the rendered artifact.
	ContentType() string
	// Extension is the file extension without the dot.
	Extension() string
}

// SplitSections breaks markdown content on "## " headings. Content before
// the first heading becomes an untitled leading section.
func SplitSections(markdown string) []Section {
	var sections []Section
	var current *Section

	flush := func() {
		if current == nil {
			return
		}
		current.Body = strings.TrimSpace(current.Body)
		if current.Title != "" || current.Body != "" {
			sections = append(sections, *current)
		}
		current = nil
	}

	for _, line := range strings.Split(markdown, "\n") {
		if title, ok := strings.CutPrefix(line, "## "); ok {
			flush()
			current = &Section{Title: strings.TrimSpace(title)}
			continue
		}
		if current == nil {
			current = &Section{}
		}
		current.Body += line + "\n"
	}
	flush()
	return sections
}

// NewDocument assembles a Document from report markdown.
func NewDocument(title, sourceQuery, markdown string, generatedAt time.Time) Document {
	return Document{
		Title:       title,
		GeneratedAt: generatedAt,
		SourceQuery: sourceQuery,
		Sections:    SplitSections(markdown),
	}
}

// MarkdownAdapter renders the document back into a standalone markdown file
// with a metadata header. It is the default sink when no external renderer
// is configured.
type MarkdownAdapter struct{}

func (MarkdownAdapter) ContentType() string { return "text/markdown; charset=utf-8" }
func (MarkdownAdapter) Extension() string   { return "md" }

func (MarkdownAdapter) Render(doc Document) ([]byte, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", doc.Title)
	if !doc.GeneratedAt.IsZero() {
		fmt.Fprintf(&b, "Generated: %s\n", doc.GeneratedAt.UTC().Format("2006-01-02"))
	}
	if doc.SourceQuery != "" {
		fmt.Fprintf(&b, "Request: %s\n", doc.SourceQuery)
	}
	for _, s := range doc.Sections {
		b.WriteString("\n")
		if s.Title != "" {
			fmt.Fprintf(&b, "## %s\n\n", s.Title)
		}
		if s.Body != "" {
			b.WriteString(s.Body)
			b.WriteString("\n")
		}
	}
	return []byte(b.String()), nil
}
