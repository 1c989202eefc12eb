package history

import (
	"context"
	"testing"
)

// openTestStore opens an in-memory SQLiteStore for use in tests.
func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func Test_History_AppendAndRecent(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	err := s.Append(ctx, Record{
		Question:    "what is a zebra?",
		Answer:      "a striped equid [1]",
		SourceCount: 1,
		LatencyMs:   42,
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	recs, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("want 1 record, got %d", len(recs))
	}
	r := recs[0]
	if r.ID == 0 {
		t.Errorf("expected assigned ID")
	}
	if r.Question != "what is a zebra?" || r.Answer != "a striped equid [1]" {
		t.Errorf("round-trip mismatch: %+v", r)
	}
	if r.SourceCount != 1 || r.LatencyMs != 42 {
		t.Errorf("counters mismatch: %+v", r)
	}
	if r.CreatedAt.IsZero() {
		t.Errorf("expected assigned CreatedAt")
	}
}

func Test_History_RecentLimitRespected(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	for range 6 {
		if err := s.Append(ctx, Record{Question: "q", Answer: "a"}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	recs, err := s.Recent(ctx, 4)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recs) != 4 {
		t.Errorf("want 4 records, got %d", len(recs))
	}
}

func Test_History_NewestFirstOrdering(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	questions := []string{"first", "second", "third"}
	for _, q := range questions {
		if err := s.Append(ctx, Record{Question: q, Answer: "a"}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	recs, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("want 3 records, got %d", len(recs))
	}
	// Same-second inserts fall back to id ordering.
	for i, want := range []string{"third", "second", "first"} {
		if recs[i].Question != want {
			t.Errorf("recs[%d]: want %q, got %q", i, want, recs[i].Question)
		}
	}
}

func Test_History_EmptyReturnsNil(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	recs, err := s.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent empty: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("want 0 records, got %d", len(recs))
	}
}
