package provider

import (
	"context"
	"errors"
	"testing"
	"time"
)

type scriptedProvider struct {
	calls   int
	results []error
	out     Result
}

func (p *scriptedProvider) Generate(ctx context.Context, req Request) (Result, error) {
	idx := p.calls
	p.calls++
	if idx < len(p.results) && p.results[idx] != nil {
		return Result{}, p.results[idx]
	}
	return p.out, nil
}

func (p *scriptedProvider) ModelInfo(model string) (ModelInfo, error) { return ModelInfo{}, nil }
func (p *scriptedProvider) Models() []string                         { return nil }

func TestGatewayRetriesTransientThenSucceeds(t *testing.T) {
	p := &scriptedProvider{
		results: []error{
			&ServiceError{Status: 529, Body: "overloaded"},
			&ServiceError{Status: 503, Body: "unavailable"},
			nil,
		},
		out: Result{Text: "report", InputTokens: 10, OutputTokens: 20},
	}
	g := NewGateway(p, 3, time.Millisecond)

	res, err := g.Generate(context.Background(), Request{Model: "default"})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if res.Text != "report" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if p.calls != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", p.calls)
	}
}

func TestGatewayExhaustsRetries(t *testing.T) {
	p := &scriptedProvider{
		results: []error{
			&ServiceError{Status: 500, Body: "a"},
			&ServiceError{Status: 500, Body: "b"},
			&ServiceError{Status: 500, Body: "c"},
		},
	}
	g := NewGateway(p, 3, time.Millisecond)

	_, err := g.Generate(context.Background(), Request{})
	var se *ServiceError
	if !errors.As(err, &se) {
		t.Fatalf("expected ServiceError, got %v", err)
	}
	if p.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", p.calls)
	}
}

func TestGatewayDoesNotRetryFatal(t *testing.T) {
	p := &scriptedProvider{results: []error{&FatalError{Status: 401, Body: "bad key"}}}
	g := NewGateway(p, 3, time.Millisecond)

	_, err := g.Generate(context.Background(), Request{})
	var fe *FatalError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FatalError, got %v", err)
	}
	if p.calls != 1 {
		t.Fatalf("fatal errors must not be retried, got %d attempts", p.calls)
	}
}

func TestGatewayRetriesProviderRateLimit(t *testing.T) {
	p := &scriptedProvider{
		results: []error{ErrRateLimited, nil},
		out:     Result{Text: "ok"},
	}
	g := NewGateway(p, 3, time.Millisecond)

	if _, err := g.Generate(context.Background(), Request{}); err != nil {
		t.Fatalf("expected success after throttle retry, got %v", err)
	}
	if p.calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", p.calls)
	}
}

func TestGatewayStopsOnCancelledContext(t *testing.T) {
	p := &scriptedProvider{
		results: []error{
			&ServiceError{Status: 500, Body: "x"},
			&ServiceError{Status: 500, Body: "y"},
		},
	}
	g := NewGateway(p, 3, 10*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := g.Generate(ctx, Request{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if p.calls != 1 {
		t.Fatalf("expected no retry after cancellation, got %d attempts", p.calls)
	}
}

func TestIsTransient(t *testing.T) {
	if !IsTransient(ErrRateLimited) {
		t.Fatal("rate limit should be transient")
	}
	if !IsTransient(&ServiceError{Status: 503}) {
		t.Fatal("service error should be transient")
	}
	if IsTransient(&FatalError{Status: 400}) {
		t.Fatal("fatal error must not be transient")
	}
	if IsTransient(context.DeadlineExceeded) {
		t.Fatal("timeouts must not be transient")
	}
}
