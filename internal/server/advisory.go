package server

import (
	"context"
	"errors"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/bulwise/bulwise/internal/advisor"
	"github.com/bulwise/bulwise/internal/analytics"
)

// advisoryEngine is the pipeline surface the handler binds to. Satisfied by
// advisor.Engine.
type advisoryEngine interface {
	Generate(ctx context.Context, client string, req advisor.AdvisoryRequest) (*advisor.AdvisoryResponse, error)
	Followup(ctx context.Context, client string, req advisor.FollowupRequest) (*advisor.AdvisoryResponse, error)
}

// AdvisoryHandler serves report generation and follow-up questions.
type AdvisoryHandler struct {
	Engine    advisoryEngine
	Analytics *analytics.Store
}

func (h *AdvisoryHandler) Register(g *echo.Group) {
	g.POST("/generate", h.generate)
	g.POST("/followup", h.followup)
}

type generateResponse struct {
	Success  bool                  `json:"success"`
	Report   any                   `json:"report"`
	Metadata advisor.UsageMetadata `json:"metadata"`
}

func (h *AdvisoryHandler) generate(c echo.Context) error {
	var req advisor.AdvisoryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	client := clientIdentity(c)
	resp, err := h.Engine.Generate(c.Request().Context(), client, req)
	h.logAnalytics(client, req.Query, req.Context.Budget != "", req.Context.TeamSize, err)
	if err != nil {
		return err
	}
	c.Response().Header().Set("X-Request-ID", uuid.NewString())
	return c.JSON(http.StatusOK, generateResponse{Success: true, Report: resp.Report, Metadata: resp.Metadata})
}

func (h *AdvisoryHandler) followup(c echo.Context) error {
	var req advisor.FollowupRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	client := clientIdentity(c)
	resp, err := h.Engine.Followup(c.Request().Context(), client, req)
	h.logAnalytics(client, req.Question, false, "", err)
	if err != nil {
		return err
	}
	c.Response().Header().Set("X-Request-ID", uuid.NewString())
	return c.JSON(http.StatusOK, generateResponse{Success: true, Report: resp.Report, Metadata: resp.Metadata})
}

// clientIdentity resolves the rate-limit identity: the browser-generated
// token if the front end sent one, the remote IP otherwise.
func clientIdentity(c echo.Context) string {
	if tok := c.Request().Header.Get("X-Client-Token"); tok != "" {
		return tok
	}
	return c.RealIP()
}

// logAnalytics records one query (report or follow-up) to the query log.
// Runs on context.Background so a client disconnect cannot drop the row.
func (h *AdvisoryHandler) logAnalytics(client, query string, budgetGiven bool, teamSize string, pipelineErr error) {
	if h.Analytics == nil {
		return
	}
	var rerr *advisor.RateLimitError
	h.Analytics.LogQuery(context.Background(), analytics.Event{
		Timestamp:        time.Now(),
		SessionID:        client,
		DetectedCategory: analytics.Classify(query),
		TeamSize:         teamSize,
		BudgetMentioned:  budgetGiven || analytics.MentionsBudget(query),
		RateLimitHit:     errors.As(pipelineErr, &rerr),
		QueryLength:      utf8.RuneCountInString(query),
		QueryPreview:     query,
	})
}
