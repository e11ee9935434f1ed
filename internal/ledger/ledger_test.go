package ledger

import (
	"context"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type memStore struct {
	mu     sync.Mutex
	period UsagePeriod
	has    bool
	saves  int
}

func (s *memStore) Load(ctx context.Context) (UsagePeriod, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.period, s.has, nil
}

func (s *memStore) Save(ctx context.Context, period UsagePeriod) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.period = period
	s.has = true
	s.saves++
	return nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestRatesEstimate(t *testing.T) {
	r := Rates{InputPer1K: 0.003, OutputPer1K: 0.015}
	got := r.Estimate(2000, 1000)
	want := 0.006 + 0.015
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("Estimate = %v, want %v", got, want)
	}
	if r.Estimate(0, 0) != 0 {
		t.Fatal("zero tokens must cost zero")
	}
}

func TestMonthRolloverResetsAndPersists(t *testing.T) {
	st := &memStore{
		period: UsagePeriod{
			MonthKey:  "2025-01",
			TotalCost: 10.00,
			Requests:  []RequestEntry{{Cost: 10.00}},
		},
		has: true,
	}
	now := time.Date(2025, 2, 3, 12, 0, 0, 0, time.UTC)
	l := New(st, 25.0, WithClock(fixedClock(now)))

	snap, err := l.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.MonthKey != "2025-02" || snap.TotalCost != 0 || len(snap.Requests) != 0 {
		t.Fatalf("rollover did not reset: %+v", snap)
	}
	// The reset must be durable, not just in-memory.
	if st.period.MonthKey != "2025-02" || st.period.TotalCost != 0 {
		t.Fatalf("rollover not persisted: %+v", st.period)
	}

	// A second access in the same month must not reset again.
	saves := st.saves
	if _, err := l.Snapshot(context.Background()); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if st.saves != saves {
		t.Fatalf("idempotent read should not persist, saves went %d -> %d", saves, st.saves)
	}
}

func TestCheckBudgetBoundary(t *testing.T) {
	now := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		total float64
		want  bool
	}{
		{0, true},
		{9.9999, true},
		{10.0, false},
		{10.5, false},
	}
	for _, tc := range cases {
		st := &memStore{period: UsagePeriod{MonthKey: "2025-06", TotalCost: tc.total}, has: true}
		l := New(st, 10.0, WithClock(fixedClock(now)))
		ok, err := l.CheckBudget(context.Background())
		if err != nil {
			t.Fatalf("CheckBudget: %v", err)
		}
		if ok != tc.want {
			t.Fatalf("total %v: CheckBudget = %v, want %v", tc.total, ok, tc.want)
		}
	}
}

func TestRecordAccumulates(t *testing.T) {
	now := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	st := &memStore{}
	l := New(st, 100.0, WithClock(fixedClock(now)))

	total, err := l.Record(context.Background(), 100, 200, 0.25)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if total != 0.25 {
		t.Fatalf("total = %v, want 0.25", total)
	}
	total, err = l.Record(context.Background(), 50, 50, 0.10)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if math.Abs(total-0.35) > 1e-9 {
		t.Fatalf("total = %v, want 0.35", total)
	}
	snap, _ := l.Snapshot(context.Background())
	if len(snap.Requests) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(snap.Requests))
	}
	if snap.Requests[0].InputTokens != 100 || snap.Requests[0].OutputTokens != 200 {
		t.Fatalf("log entry mismatch: %+v", snap.Requests[0])
	}
}

func TestRecordConcurrentNoLostUpdates(t *testing.T) {
	now := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	st := &memStore{}
	l := New(st, 100.0, WithClock(fixedClock(now)))

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if _, err := l.Record(context.Background(), 1, 1, 0.01); err != nil {
				t.Errorf("Record: %v", err)
			}
		}()
	}
	wg.Wait()

	snap, err := l.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if math.Abs(snap.TotalCost-0.50) > 1e-9 {
		t.Fatalf("total = %v, want 0.50 (lost update)", snap.TotalCost)
	}
	if len(snap.Requests) != n {
		t.Fatalf("expected %d log entries, got %d", n, len(snap.Requests))
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "usage_ledger.json")
	st := NewFileStore(path)
	ctx := context.Background()

	if _, ok, err := st.Load(ctx); err != nil || ok {
		t.Fatalf("empty store: ok=%v err=%v", ok, err)
	}

	want := UsagePeriod{
		MonthKey:  "2025-06",
		TotalCost: 1.25,
		Requests:  []RequestEntry{{Timestamp: time.Now().UTC().Truncate(time.Second), InputTokens: 10, OutputTokens: 20, Cost: 1.25}},
	}
	if err := st.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, ok, err := st.Load(ctx)
	if err != nil || !ok {
		t.Fatalf("Load after save: ok=%v err=%v", ok, err)
	}
	if got.MonthKey != want.MonthKey || got.TotalCost != want.TotalCost || len(got.Requests) != 1 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestLedgerOverFileStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage_ledger.json")
	now := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

	l := New(NewFileStore(path), 50.0, WithClock(fixedClock(now)))
	if _, err := l.Record(context.Background(), 100, 100, 0.40); err != nil {
		t.Fatalf("Record: %v", err)
	}

	// A fresh ledger over the same file sees the recorded spend.
	l2 := New(NewFileStore(path), 50.0, WithClock(fixedClock(now)))
	snap, err := l2.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.TotalCost != 0.40 {
		t.Fatalf("total = %v, want 0.40", snap.TotalCost)
	}
}
