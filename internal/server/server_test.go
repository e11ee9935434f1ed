package server

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/bulwise/bulwise/internal/advisor"
	"github.com/bulwise/bulwise/internal/analytics"
	"github.com/bulwise/bulwise/provider"
)

// stubEngine scripts pipeline outcomes for handler tests.
type stubEngine struct {
	resp     *advisor.AdvisoryResponse
	err      error
	client   string
	followup bool
}

func (s *stubEngine) Generate(ctx context.Context, client string, req advisor.AdvisoryRequest) (*advisor.AdvisoryResponse, error) {
	s.client = client
	return s.resp, s.err
}

func (s *stubEngine) Followup(ctx context.Context, client string, req advisor.FollowupRequest) (*advisor.AdvisoryResponse, error) {
	s.client = client
	s.followup = true
	return s.resp, s.err
}

func testEcho(eng advisoryEngine) *echo.Echo {
	s := &Server{logger: log.New(io.Discard, "", 0)}
	e := echo.New()
	e.HTTPErrorHandler = s.errorHandler
	api := e.Group("/api")
	ah := &AdvisoryHandler{Engine: eng}
	ah.Register(api.Group("/advisory"))
	(&ExportHandler{}).Register(api)
	return e
}

func postJSON(t *testing.T, e *echo.Echo, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestGenerateSuccessEnvelope(t *testing.T) {
	eng := &stubEngine{resp: &advisor.AdvisoryResponse{
		Report: "## Recommended Tools\n\nChatGPT Team.",
		Metadata: advisor.UsageMetadata{
			InputTokens:   1200,
			OutputTokens:  800,
			EstimatedCost: 0.0156,
			MonthTotal:    0.0156,
			BudgetCap:     50,
		},
	}}
	e := testEcho(eng)

	rec := postJSON(t, e, "/api/advisory/generate",
		`{"query": "Automate customer support with AI", "context": {"budget": "$100-500"}}`,
		map[string]string{"X-Client-Token": "tok-123"})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var out struct {
		Success  bool                  `json:"success"`
		Report   string                `json:"report"`
		Metadata advisor.UsageMetadata `json:"metadata"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if !out.Success || out.Report == "" {
		t.Fatalf("envelope = %+v", out)
	}
	if out.Metadata.InputTokens != 1200 || out.Metadata.BudgetCap != 50 {
		t.Fatalf("metadata = %+v", out.Metadata)
	}
	if eng.client != "tok-123" {
		t.Fatalf("client identity = %q, want the X-Client-Token value", eng.client)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("missing request id header")
	}
}

func TestClientIdentityFallsBackToIP(t *testing.T) {
	eng := &stubEngine{resp: &advisor.AdvisoryResponse{Report: "r"}}
	e := testEcho(eng)
	postJSON(t, e, "/api/advisory/generate", `{"query": "q"}`, nil)
	if eng.client == "" {
		t.Fatal("no client identity resolved")
	}
}

func TestErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"validation", &advisor.ValidationError{Field: "query", Reason: "must not be empty"}, http.StatusBadRequest},
		{"rate limit", &advisor.RateLimitError{Count: 10, ResetAt: time.Now()}, http.StatusTooManyRequests},
		{"budget", &advisor.BudgetError{Total: 50, Cap: 50}, http.StatusServiceUnavailable},
		{"provider transient", &provider.ServiceError{Status: 529, Body: "overloaded"}, http.StatusBadGateway},
		{"provider fatal", &provider.FatalError{Status: 401, Body: "bad key"}, http.StatusBadGateway},
		{"provider throttled", provider.ErrRateLimited, http.StatusBadGateway},
		{"timeout", context.DeadlineExceeded, http.StatusBadGateway},
		{"normalization", &advisor.NormalizationError{Raw: "junk"}, http.StatusInternalServerError},
		{"unknown", io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := testEcho(&stubEngine{err: tc.err})
			rec := postJSON(t, e, "/api/advisory/generate", `{"query": "q"}`, nil)
			if rec.Code != tc.code {
				t.Fatalf("status = %d, want %d", rec.Code, tc.code)
			}
			var out struct {
				Success bool   `json:"success"`
				Error   string `json:"error"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
				t.Fatal(err)
			}
			if out.Success || out.Error == "" {
				t.Fatalf("failure envelope = %s", rec.Body.String())
			}
		})
	}
}

func TestNormalizationErrorHidesRawText(t *testing.T) {
	e := testEcho(&stubEngine{err: &advisor.NormalizationError{Raw: "SECRET raw provider text"}})
	rec := postJSON(t, e, "/api/advisory/generate", `{"query": "q"}`, nil)
	if strings.Contains(rec.Body.String(), "SECRET") {
		t.Fatal("raw provider text leaked into the error envelope")
	}
}

func TestFollowupEndpoint(t *testing.T) {
	eng := &stubEngine{resp: &advisor.AdvisoryResponse{Report: "Answer."}}
	e := testEcho(eng)
	rec := postJSON(t, e, "/api/advisory/followup", `{"question": "what next?"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !eng.followup {
		t.Fatal("followup path not taken")
	}
}

func TestBothHandlersLogQueries(t *testing.T) {
	store, err := analytics.Open(filepath.Join(t.TempDir(), "queries.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	s := &Server{logger: log.New(io.Discard, "", 0)}
	e := echo.New()
	e.HTTPErrorHandler = s.errorHandler
	eng := &stubEngine{resp: &advisor.AdvisoryResponse{Report: "r"}}
	ah := &AdvisoryHandler{Engine: eng, Analytics: store}
	ah.Register(e.Group("/api/advisory"))

	postJSON(t, e, "/api/advisory/generate", `{"query": "Automate customer support"}`, nil)

	eng.resp = nil
	eng.err = &advisor.RateLimitError{Count: 10, ResetAt: time.Now()}
	postJSON(t, e, "/api/advisory/followup", `{"question": "what about pricing?"}`, nil)

	sum, err := store.Summary(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if sum.TotalQueries != 2 {
		t.Fatalf("total queries = %d, want both endpoints logged", sum.TotalQueries)
	}
	if sum.RateLimitHits != 1 {
		t.Fatalf("rate limit hits = %d, want 1", sum.RateLimitHits)
	}
}

func TestExportEndpoint(t *testing.T) {
	e := testEcho(&stubEngine{})
	rec := postJSON(t, e, "/api/export",
		`{"title": "AI Plan", "content": "## Costs\n\n$25/month", "format": "markdown"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Disposition"), "attachment;") {
		t.Fatalf("disposition = %q", rec.Header().Get("Content-Disposition"))
	}
	body := rec.Body.String()
	if !strings.Contains(body, "# AI Plan") || !strings.Contains(body, "## Costs") {
		t.Fatalf("rendered export = %q", body)
	}
}

func TestExportRejectsEmptyContent(t *testing.T) {
	e := testEcho(&stubEngine{})
	rec := postJSON(t, e, "/api/export", `{"title": "x", "content": "  "}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	e := testEcho(&stubEngine{})
	rec := postJSON(t, e, "/api/export", `{"content": "x", "format": "pptx"}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}
