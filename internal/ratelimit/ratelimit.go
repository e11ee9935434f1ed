// Package ratelimit bounds how many advisory requests a client identity may
// issue per window, with a coarser global per-hour ceiling in front of the
// provider.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Decision is the outcome of a limiter check for one client.
type Decision struct {
	Allowed   bool
	Count     int
	Remaining int
	ResetAt   time.Time
}

type windowRecord struct {
	start time.Time
	count int
}

// Limiter tracks fixed per-client windows. Window rollover is detected by
// comparing the current time against the stored window start on every call;
// there is no background timer.
//
// Policy: only provider-invoking requests consume a slot. Check never
// increments; Record consumes and runs immediately before the provider call.
type Limiter struct {
	mu      sync.Mutex
	ceiling int
	window  time.Duration
	clients map[string]*windowRecord
	global  *rate.Limiter // nil when no global ceiling is configured
}

// New builds a limiter with the given per-client ceiling and window.
// globalPerHour <= 0 disables the global throttle.
func New(ceiling int, window time.Duration, globalPerHour int) *Limiter {
	l := &Limiter{
		ceiling: ceiling,
		window:  window,
		clients: make(map[string]*windowRecord),
	}
	if globalPerHour > 0 {
		l.global = rate.NewLimiter(rate.Limit(float64(globalPerHour)/3600.0), globalPerHour)
	}
	return l
}

// record returns the live window for the client, resetting it when expired.
// Caller must hold l.mu.
func (l *Limiter) record(client string, now time.Time) *windowRecord {
	rec, ok := l.clients[client]
	if !ok || now.Sub(rec.start) >= l.window {
		rec = &windowRecord{start: now}
		l.clients[client] = rec
		l.sweep(now)
	}
	return rec
}

// sweep drops expired windows so the map does not grow with one entry per
// client ever seen. Caller must hold l.mu.
func (l *Limiter) sweep(now time.Time) {
	if len(l.clients) < 1024 {
		return
	}
	for id, rec := range l.clients {
		if now.Sub(rec.start) >= l.window {
			delete(l.clients, id)
		}
	}
}

func (l *Limiter) decide(rec *windowRecord, now time.Time) Decision {
	remaining := l.ceiling - rec.count
	if remaining < 0 {
		remaining = 0
	}
	allowed := rec.count < l.ceiling
	if allowed && l.global != nil && l.global.TokensAt(now) < 1 {
		allowed = false
	}
	return Decision{
		Allowed:   allowed,
		Count:     rec.count,
		Remaining: remaining,
		ResetAt:   rec.start.Add(l.window),
	}
}

// Check reports whether the client has headroom without consuming a slot.
func (l *Limiter) Check(client string, now time.Time) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec := l.record(client, now)
	return l.decide(rec, now)
}

// Record consumes one slot for the client. A denied decision consumes
// nothing, so a burst cannot push the count past the ceiling.
func (l *Limiter) Record(client string, now time.Time) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec := l.record(client, now)
	d := l.decide(rec, now)
	if !d.Allowed {
		return d
	}
	if l.global != nil {
		l.global.AllowN(now, 1)
	}
	rec.count++
	d.Count = rec.count
	d.Remaining = l.ceiling - rec.count
	return d
}
