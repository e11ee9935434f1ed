// Package server wires the advisory pipeline behind an echo HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bulwise/bulwise/catalog"
	"github.com/bulwise/bulwise/config"
	"github.com/bulwise/bulwise/internal/advisor"
	"github.com/bulwise/bulwise/internal/analytics"
	"github.com/bulwise/bulwise/internal/ledger"
	"github.com/bulwise/bulwise/internal/ratelimit"
	"github.com/bulwise/bulwise/internal/telemetry"
	"github.com/bulwise/bulwise/provider"

	// Provider implementations register themselves with the factory.
	_ "github.com/bulwise/bulwise/provider/anthropic"
	_ "github.com/bulwise/bulwise/provider/openai"
)

// Server holds the constructed dependencies for the HTTP API. Everything is
// built once at startup and injected into handlers.
type Server struct {
	cfg       *config.Config
	catalog   *catalog.Catalog
	ledger    *ledger.Ledger
	engine    *advisor.Engine
	analytics *analytics.Store
	metrics   *telemetry.Metrics
	secret    []byte
	logger    *log.Logger
}

// New constructs the server and all pipeline dependencies from config.
func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return nil, err
	}

	var store ledger.Store
	switch cfg.Ledger.Backend {
	case "redis":
		rs, err := ledger.NewRedisStore(ctx, cfg.Ledger.Redis)
		if err != nil {
			return nil, fmt.Errorf("connect ledger redis: %w", err)
		}
		store = rs
	default:
		store = ledger.NewFileStore(cfg.Ledger.File.Path)
	}
	led := ledger.New(store, cfg.Budget.MonthlyCapUSD)

	var metrics *telemetry.Metrics
	if cfg.Telemetry.Enabled {
		metrics = telemetry.New(nil)
	}

	prov, err := provider.New(cfg.LLM)
	if err != nil {
		return nil, err
	}
	gateway := provider.NewGateway(telemetry.InstrumentProvider(prov, metrics), 3, 0)

	composer, err := advisor.NewComposer(cfg.Prompts, cat, cfg.Catalog.MaxEntries)
	if err != nil {
		return nil, err
	}

	engine := advisor.NewEngine(advisor.Params{
		Validator: advisor.Validator{
			MaxQueryLen: cfg.Limits.MaxQueryLen,
			MaxFieldLen: cfg.Limits.MaxFieldLen,
		},
		Limiter:         ratelimit.New(cfg.Limits.ClientCeiling, cfg.Limits.ClientWindow, cfg.Limits.GlobalPerHour),
		Ledger:          led,
		Composer:        composer,
		Gateway:         gateway,
		Routing:         cfg.LLM.Routing,
		ProviderTimeout: cfg.Limits.ProviderTimeout,
		Metrics:         metrics,
	})

	var analyticsStore *analytics.Store
	if cfg.Analytics.Enabled {
		analyticsStore, err = analytics.Open(cfg.Analytics.Path)
		if err != nil {
			return nil, err
		}
	}

	return &Server{
		cfg:       cfg,
		catalog:   cat,
		ledger:    led,
		engine:    engine,
		analytics: analyticsStore,
		metrics:   metrics,
		secret:    []byte(cfg.Server.JWTSecret),
		logger:    log.New(log.Writer(), "[HTTP] ", log.LstdFlags),
	}, nil
}

// Echo builds the routed echo instance.
func (s *Server) Echo() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = s.errorHandler
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "Authorization", "X-Client-Token"},
	}))

	e.GET("/healthz", s.health)
	if s.cfg.Telemetry.Enabled {
		e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}

	api := e.Group("/api")
	ah := &AdvisoryHandler{Engine: s.engine, Analytics: s.analytics}
	ah.Register(api.Group("/advisory"))

	eh := &ExportHandler{}
	eh.Register(api)

	ops := api.Group("")
	ops.Use(EchoAuthMiddleware(s.secret))
	ops.GET("/usage", s.usage)
	if s.analytics != nil {
		ops.GET("/analytics", s.analyticsSummary)
	}
	return e
}

// Run serves the API on the configured address until the listener fails.
func (s *Server) Run() error {
	e := s.Echo()
	s.logger.Printf("listening on %s (catalog entries: %d, budget cap: $%.2f)",
		s.cfg.Server.Address, s.catalog.Len(), s.ledger.Cap())
	return e.Start(s.cfg.Server.Address)
}

// Close releases held resources.
func (s *Server) Close() error {
	if s.analytics != nil {
		return s.analytics.Close()
	}
	return nil
}

// errorHandler converts typed pipeline errors into the uniform failure
// envelope. Every failure response is {"success": false, "error": ...}.
func (s *Server) errorHandler(err error, c echo.Context) {
	code, msg := statusFor(err)
	req := c.Request()
	s.logger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
	if !c.Response().Committed {
		_ = c.JSON(code, map[string]any{"success": false, "error": msg})
	}
}

// statusFor maps an error to its HTTP status and client-visible message.
func statusFor(err error) (int, string) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, fmt.Sprint(he.Message)
	}
	var verr *advisor.ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest, verr.Error()
	}
	var rerr *advisor.RateLimitError
	if errors.As(err, &rerr) {
		return http.StatusTooManyRequests, rerr.Error()
	}
	var berr *advisor.BudgetError
	if errors.As(err, &berr) {
		return http.StatusServiceUnavailable, berr.Error()
	}
	var nerr *advisor.NormalizationError
	if errors.As(err, &nerr) {
		return http.StatusInternalServerError, nerr.Error()
	}
	var serr *provider.ServiceError
	var ferr *provider.FatalError
	if errors.As(err, &serr) || errors.As(err, &ferr) || errors.Is(err, provider.ErrRateLimited) ||
		errors.Is(err, context.DeadlineExceeded) {
		return http.StatusBadGateway, "model provider unavailable"
	}
	return http.StatusInternalServerError, "internal error"
}
