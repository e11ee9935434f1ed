package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type healthResponse struct {
	Status      string  `json:"status"`
	CatalogSize int     `json:"catalog_size"`
	MonthKey    string  `json:"month_key"`
	MonthTotal  float64 `json:"month_total"`
	BudgetCap   float64 `json:"budget_cap"`
}

func (s *Server) health(c echo.Context) error {
	snap, err := s.ledger.Snapshot(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "ledger unavailable")
	}
	return c.JSON(http.StatusOK, healthResponse{
		Status:      "ok",
		CatalogSize: s.catalog.Len(),
		MonthKey:    snap.MonthKey,
		MonthTotal:  snap.TotalCost,
		BudgetCap:   s.ledger.Cap(),
	})
}

// usage dumps the raw usage ledger for the current month.
func (s *Server) usage(c echo.Context) error {
	snap, err := s.ledger.Snapshot(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success":    true,
		"ledger":     snap,
		"budget_cap": s.ledger.Cap(),
	})
}

func (s *Server) analyticsSummary(c echo.Context) error {
	sum, err := s.analytics.Summary(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "summary": sum})
}
