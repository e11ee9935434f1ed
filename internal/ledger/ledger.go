// Package ledger tracks cumulative estimated spend for the current calendar
// month and gates requests against the configured monthly cap.
package ledger

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// RequestEntry is one recorded provider call.
type RequestEntry struct {
	Timestamp    time.Time `json:"timestamp"`
	InputTokens  int64     `json:"input_tokens"`
	OutputTokens int64     `json:"output_tokens"`
	Cost         float64   `json:"cost"`
}

// UsagePeriod is the durable record for one calendar month.
type UsagePeriod struct {
	MonthKey  string         `json:"month_key"` // e.g. "2026-08"
	TotalCost float64        `json:"total_cost"`
	Requests  []RequestEntry `json:"request_log"`
}

// Store persists the single current usage period.
type Store interface {
	// Load returns the stored period; ok is false when nothing has been
	// persisted yet.
	Load(ctx context.Context) (period UsagePeriod, ok bool, err error)
	Save(ctx context.Context, period UsagePeriod) error
}

// Rates are the fixed per-1000-token billing rates, from configuration.
type Rates struct {
	InputPer1K  float64
	OutputPer1K float64
}

// Estimate converts token counts into an estimated cost in USD.
func (r Rates) Estimate(inputTokens, outputTokens int64) float64 {
	return float64(inputTokens)/1000.0*r.InputPer1K + float64(outputTokens)/1000.0*r.OutputPer1K
}

// MonthKey formats the wall-clock month identity of a usage period.
func MonthKey(t time.Time) string { return t.UTC().Format("2006-01") }

// Ledger serializes all reads and writes of the usage period. The month
// rollover check runs on every access, not just at startup: the process may
// run across a month boundary.
type Ledger struct {
	mu     sync.Mutex
	store  Store
	capUSD float64
	now    func() time.Time
	logger *log.Logger
}

// Option customizes a Ledger.
type Option func(*Ledger)

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// New builds a ledger over the given store with the given monthly cap.
func New(store Store, capUSD float64, opts ...Option) *Ledger {
	l := &Ledger{
		store:  store,
		capUSD: capUSD,
		now:    time.Now,
		logger: log.New(log.Writer(), "[LEDGER] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Cap returns the configured monthly spend cap.
func (l *Ledger) Cap() float64 { return l.capUSD }

// current loads the period and resets it if the stored month key no longer
// matches the wall clock. The reset is persisted immediately so a crash
// cannot resurrect last month's total. Caller must hold l.mu.
func (l *Ledger) current(ctx context.Context) (UsagePeriod, error) {
	key := MonthKey(l.now())
	period, ok, err := l.store.Load(ctx)
	if err != nil {
		return UsagePeriod{}, fmt.Errorf("load usage period: %w", err)
	}
	if ok && period.MonthKey == key {
		return period, nil
	}
	if ok {
		l.logger.Printf("month rollover: %s -> %s, resetting ledger (was $%.4f)", period.MonthKey, key, period.TotalCost)
	}
	period = UsagePeriod{MonthKey: key}
	if err := l.store.Save(ctx, period); err != nil {
		return UsagePeriod{}, fmt.Errorf("persist rollover: %w", err)
	}
	return period, nil
}

// CheckBudget reports whether the current month's spend is strictly below
// the cap.
func (l *Ledger) CheckBudget(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	period, err := l.current(ctx)
	if err != nil {
		return false, err
	}
	return period.TotalCost < l.capUSD, nil
}

// Record appends a request entry, adds its cost to the monthly total,
// persists, and returns the updated total.
func (l *Ledger) Record(ctx context.Context, inputTokens, outputTokens int64, cost float64) (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	period, err := l.current(ctx)
	if err != nil {
		return 0, err
	}
	period.Requests = append(period.Requests, RequestEntry{
		Timestamp:    l.now().UTC(),
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		Cost:         cost,
	})
	period.TotalCost += cost
	if err := l.store.Save(ctx, period); err != nil {
		return 0, fmt.Errorf("persist usage period: %w", err)
	}
	return period.TotalCost, nil
}

// Snapshot returns a copy of the current period for reporting endpoints.
func (l *Ledger) Snapshot(ctx context.Context) (UsagePeriod, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	period, err := l.current(ctx)
	if err != nil {
		return UsagePeriod{}, err
	}
	out := period
	out.Requests = make([]RequestEntry, len(period.Requests))
	copy(out.Requests, period.Requests)
	return out, nil
}
