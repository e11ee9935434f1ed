package ratelimit

import (
	"testing"
	"time"
)

func TestCeilingBoundary(t *testing.T) {
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	l := New(3, 24*time.Hour, 0)

	for i := 1; i <= 3; i++ {
		d := l.Record("client-a", start)
		if !d.Allowed {
			t.Fatalf("request %d: expected allowed, got denied", i)
		}
		if d.Count != i {
			t.Fatalf("request %d: count = %d, want %d", i, d.Count, i)
		}
	}

	d := l.Record("client-a", start.Add(time.Minute))
	if d.Allowed {
		t.Fatal("4th request in window should be denied")
	}
	if d.Count != 3 {
		t.Fatalf("denied record changed count: got %d, want 3", d.Count)
	}

	// A fresh window grants new headroom.
	d = l.Record("client-a", start.Add(24*time.Hour))
	if !d.Allowed {
		t.Fatal("request after window expiry should be allowed")
	}
	if d.Count != 1 {
		t.Fatalf("post-expiry count = %d, want 1", d.Count)
	}
}

func TestCheckDoesNotConsume(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	l := New(2, time.Hour, 0)

	for i := 0; i < 10; i++ {
		d := l.Check("client-b", now)
		if !d.Allowed {
			t.Fatalf("check %d: expected allowed", i)
		}
		if d.Count != 0 {
			t.Fatalf("check consumed a slot: count = %d", d.Count)
		}
	}
	if d := l.Record("client-b", now); !d.Allowed {
		t.Fatal("record after checks should still be allowed")
	}
}

func TestClientsIsolated(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	l := New(1, time.Hour, 0)

	if d := l.Record("alpha", now); !d.Allowed {
		t.Fatal("alpha first request denied")
	}
	if d := l.Record("alpha", now); d.Allowed {
		t.Fatal("alpha second request should be denied")
	}
	if d := l.Record("beta", now); !d.Allowed {
		t.Fatal("beta should have its own window")
	}
}

func TestResetAt(t *testing.T) {
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	l := New(3, 24*time.Hour, 0)

	d := l.Record("client-c", start)
	want := start.Add(24 * time.Hour)
	if !d.ResetAt.Equal(want) {
		t.Fatalf("ResetAt = %v, want %v", d.ResetAt, want)
	}

	// Later activity in the same window keeps the original reset time.
	d = l.Record("client-c", start.Add(6*time.Hour))
	if !d.ResetAt.Equal(want) {
		t.Fatalf("ResetAt moved within window: %v, want %v", d.ResetAt, want)
	}
}

func TestGlobalCeiling(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	l := New(100, time.Hour, 2)

	if d := l.Record("a", now); !d.Allowed {
		t.Fatal("first global slot denied")
	}
	if d := l.Record("b", now); !d.Allowed {
		t.Fatal("second global slot denied")
	}
	if d := l.Record("c", now); d.Allowed {
		t.Fatal("global ceiling exhausted, request should be denied")
	}

	// Tokens refill over time at the hourly rate.
	later := now.Add(time.Hour)
	if d := l.Record("c", later); !d.Allowed {
		t.Fatal("global tokens should refill after an hour")
	}
}
