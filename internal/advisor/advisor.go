package advisor

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/pkoukk/tiktoken-go"

	"github.com/bulwise/bulwise/config"
	"github.com/bulwise/bulwise/internal/ledger"
	"github.com/bulwise/bulwise/internal/ratelimit"
	"github.com/bulwise/bulwise/internal/telemetry"
	"github.com/bulwise/bulwise/provider"
)

// Generator is the provider boundary the engine calls through. Satisfied by
// provider.Gateway.
type Generator interface {
	Generate(ctx context.Context, req provider.Request) (provider.Result, error)
	ModelInfo(model string) (provider.ModelInfo, error)
}

// Params collects the engine's collaborators. Everything is constructed once
// at process start and injected; the engine holds no hidden globals.
type Params struct {
	Validator       Validator
	Limiter         *ratelimit.Limiter
	Ledger          *ledger.Ledger
	Composer        *Composer
	Gateway         Generator
	Routing         config.LLMRoutingConfig
	ProviderTimeout time.Duration
	Metrics         *telemetry.Metrics
}

// Engine runs the advisory pipeline for each request: validate, rate limit,
// budget gate, compose, invoke, normalize, account.
type Engine struct {
	validator Validator
	limiter   *ratelimit.Limiter
	ledger    *ledger.Ledger
	composer  *Composer
	gateway   Generator
	routing   config.LLMRoutingConfig
	timeout   time.Duration
	metrics   *telemetry.Metrics
	now       func() time.Time
	count     tokenCounter
	logger    *log.Logger
}

// tokenCounter counts prompt tokens for an encoding. ok is false when the
// encoding is unavailable.
type tokenCounter func(text, encoding string) (n int64, ok bool)

// Option customizes an Engine.
type Option func(*Engine)

// WithClock overrides the wall clock used for rate-limit windows, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithTokenCounter overrides the pre-flight token counter, for tests.
func WithTokenCounter(fn func(text, encoding string) (int64, bool)) Option {
	return func(e *Engine) { e.count = fn }
}

// NewEngine builds the pipeline engine.
func NewEngine(p Params, opts ...Option) *Engine {
	e := &Engine{
		validator: p.Validator,
		limiter:   p.Limiter,
		ledger:    p.Ledger,
		composer:  p.Composer,
		gateway:   p.Gateway,
		routing:   p.Routing,
		timeout:   p.ProviderTimeout,
		metrics:   p.Metrics,
		now:       time.Now,
		count:     estimateTokens,
		logger:    log.New(log.Writer(), "[ADVISOR] ", log.LstdFlags),
	}
	if e.timeout <= 0 {
		e.timeout = 90 * time.Second
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Generate runs the full pipeline for an advisory request from the given
// client identity.
func (e *Engine) Generate(ctx context.Context, client string, req AdvisoryRequest) (*AdvisoryResponse, error) {
	if err := e.validator.Validate(req); err != nil {
		e.metrics.ObserveRequest(telemetry.OutcomeValidation)
		return nil, err
	}
	return e.run(ctx, client, e.reportModel(), req.Shape, func() (string, error) {
		return e.composer.Report(req)
	})
}

// Followup answers a question about a previous report through the same
// gated pipeline. Output is always markdown.
func (e *Engine) Followup(ctx context.Context, client string, req FollowupRequest) (*AdvisoryResponse, error) {
	if err := e.validator.ValidateFollowup(req); err != nil {
		e.metrics.ObserveRequest(telemetry.OutcomeValidation)
		return nil, err
	}
	return e.run(ctx, client, e.followupModel(), FreeText, func() (string, error) {
		return e.composer.Followup(req)
	})
}

func (e *Engine) reportModel() string {
	if e.routing.Report != "" {
		return e.routing.Report
	}
	return e.routing.Fallback
}

func (e *Engine) followupModel() string {
	if e.routing.Followup != "" {
		return e.routing.Followup
	}
	return e.reportModel()
}

// run is the shared gate-invoke-account path. Policy: Check never consumes a
// rate-limit slot; Record consumes one immediately before the provider call,
// so rejected requests do not count against the client's window.
func (e *Engine) run(ctx context.Context, client, model string, shape ReportShape, compose func() (string, error)) (*AdvisoryResponse, error) {
	if d := e.limiter.Check(client, e.now()); !d.Allowed {
		e.metrics.ObserveRequest(telemetry.OutcomeRateLimited)
		return nil, &RateLimitError{Count: d.Count, ResetAt: d.ResetAt}
	}

	ok, err := e.ledger.CheckBudget(ctx)
	if err != nil {
		e.metrics.ObserveRequest(telemetry.OutcomeInternal)
		return nil, fmt.Errorf("budget check: %w", err)
	}
	if !ok {
		return nil, e.budgetExceeded(ctx)
	}

	prompt, err := compose()
	if err != nil {
		e.metrics.ObserveRequest(telemetry.OutcomeInternal)
		return nil, err
	}

	info, err := e.gateway.ModelInfo(model)
	if err != nil {
		e.metrics.ObserveRequest(telemetry.OutcomeInternal)
		return nil, fmt.Errorf("resolve model %q: %w", model, err)
	}
	rates := ledger.Rates{InputPer1K: info.CostPer1KInput, OutputPer1K: info.CostPer1KOutput}

	// Pre-flight estimate: if the worst-case cost of this call would blow
	// through the remaining monthly headroom, refuse before spending.
	if info.Encoding != "" {
		n, counted := e.count(e.composer.System()+prompt, info.Encoding)
		if !counted {
			e.logger.Printf("token estimate unavailable for encoding %q, skipping pre-flight gate", info.Encoding)
		} else {
			projected := rates.Estimate(n, int64(info.MaxTokens))
			snap, err := e.ledger.Snapshot(ctx)
			if err == nil && snap.TotalCost+projected > e.ledger.Cap() {
				e.logger.Printf("pre-flight estimate $%.4f exceeds remaining headroom (total $%.4f, cap $%.2f)", projected, snap.TotalCost, e.ledger.Cap())
				return nil, e.budgetExceeded(ctx)
			}
		}
	}

	if d := e.limiter.Record(client, e.now()); !d.Allowed {
		e.metrics.ObserveRequest(telemetry.OutcomeRateLimited)
		return nil, &RateLimitError{Count: d.Count, ResetAt: d.ResetAt}
	}

	// The provider call runs on a detached but bounded context: if the
	// client disconnects the call completes server-side and the incurred
	// cost is still recorded, since the provider already metered it.
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
	defer cancel()

	res, err := e.gateway.Generate(pctx, provider.Request{
		System:      e.composer.System(),
		Prompt:      prompt,
		Model:       model,
		MaxTokens:   info.MaxTokens,
		Temperature: info.Temperature,
	})
	if err != nil {
		e.metrics.ObserveRequest(telemetry.OutcomeProvider)
		return nil, err
	}

	cost := rates.Estimate(res.InputTokens, res.OutputTokens)
	total, recErr := e.ledger.Record(pctx, res.InputTokens, res.OutputTokens, cost)
	e.metrics.ObserveUsage(res.InputTokens, res.OutputTokens, cost)

	report, normErr := Normalize(res.Text, shape)
	if normErr != nil {
		// The spend already happened; the cost stays recorded even though
		// the caller gets an error.
		e.metrics.ObserveRequest(telemetry.OutcomeNormalize)
		return nil, normErr
	}
	if recErr != nil {
		e.metrics.ObserveRequest(telemetry.OutcomeInternal)
		return nil, fmt.Errorf("record usage: %w", recErr)
	}

	e.metrics.ObserveRequest(telemetry.OutcomeSuccess)
	e.logger.Printf("client=%s model=%s tokens=%d/%d cost=$%.4f month_total=$%.4f", client, model, res.InputTokens, res.OutputTokens, cost, total)
	return &AdvisoryResponse{
		Report: report,
		Metadata: UsageMetadata{
			InputTokens:   res.InputTokens,
			OutputTokens:  res.OutputTokens,
			EstimatedCost: cost,
			MonthTotal:    total,
			BudgetCap:     e.ledger.Cap(),
		},
	}, nil
}

func (e *Engine) budgetExceeded(ctx context.Context) error {
	e.metrics.ObserveRequest(telemetry.OutcomeBudget)
	total := 0.0
	if snap, err := e.ledger.Snapshot(ctx); err == nil {
		total = snap.TotalCost
	}
	return &BudgetError{Total: total, Cap: e.ledger.Cap()}
}

// estimateTokens counts prompt tokens with the model's tiktoken encoding.
// Counting is best effort: an unavailable encoding just skips the pre-flight
// gate.
func estimateTokens(text, encoding string) (int64, bool) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return 0, false
	}
	return int64(len(enc.Encode(text, nil, nil))), true
}
