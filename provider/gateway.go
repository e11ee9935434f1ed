package provider

import (
	"context"
	"errors"
	"log"
	"time"
)

// Gateway wraps a Provider with bounded retry for transient failures.
// Backoff is linear: attempt n waits n*backoff before retrying.
type Gateway struct {
	provider Provider
	attempts int
	backoff  time.Duration
	logger   *log.Logger
}

// NewGateway builds a gateway. attempts is the total number of calls
// permitted (default 3); backoff defaults to 2s.
func NewGateway(p Provider, attempts int, backoff time.Duration) *Gateway {
	if attempts <= 0 {
		attempts = 3
	}
	if backoff <= 0 {
		backoff = 2 * time.Second
	}
	return &Gateway{
		provider: p,
		attempts: attempts,
		backoff:  backoff,
		logger:   log.New(log.Writer(), "[GATEWAY] ", log.LstdFlags),
	}
}

// Generate submits the request, retrying transient provider failures up to
// the attempt bound. Fatal errors and context cancellation surface
// immediately.
func (g *Gateway) Generate(ctx context.Context, req Request) (Result, error) {
	var lastErr error
	for attempt := 1; attempt <= g.attempts; attempt++ {
		res, err := g.provider.Generate(ctx, req)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if !IsTransient(err) {
			return Result{}, err
		}
		if errors.Is(ctx.Err(), context.Canceled) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Result{}, ctx.Err()
		}
		if attempt < g.attempts {
			wait := time.Duration(attempt) * g.backoff
			g.logger.Printf("transient provider failure (attempt %d/%d), retrying in %s: %v", attempt, g.attempts, wait, err)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return Result{}, ctx.Err()
			}
		}
	}
	return Result{}, lastErr
}

// ModelInfo exposes the underlying provider's model registry.
func (g *Gateway) ModelInfo(model string) (ModelInfo, error) {
	return g.provider.ModelInfo(model)
}
