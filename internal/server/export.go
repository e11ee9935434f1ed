package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/bulwise/bulwise/internal/export"
)

// ExportHandler converts finished report content into a downloadable
// document. Formats map to export.Adapter implementations.
type ExportHandler struct{}

func (h *ExportHandler) Register(g *echo.Group) {
	g.POST("/export", h.export)
}

type exportRequest struct {
	Title   string `json:"title"`
	Query   string `json:"query,omitempty"`
	Content string `json:"content"`
	Format  string `json:"format,omitempty"`
}

func (h *ExportHandler) export(c echo.Context) error {
	var req exportRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Content) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "content is required")
	}
	title := req.Title
	if title == "" {
		title = "Advisory Report"
	}

	adapter, err := adapterFor(req.Format)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	doc := export.NewDocument(title, req.Query, req.Content, time.Now())
	blob, err := adapter.Render(doc)
	if err != nil {
		return fmt.Errorf("render export: %w", err)
	}

	filename := fmt.Sprintf("report-%s.%s", time.Now().UTC().Format("2006-01-02"), adapter.Extension())
	c.Response().Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	return c.Blob(http.StatusOK, adapter.ContentType(), blob)
}

func adapterFor(format string) (export.Adapter, error) {
	switch format {
	case "", "markdown", "md":
		return export.MarkdownAdapter{}, nil
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}
