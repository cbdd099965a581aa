package history

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	base := time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		run := Run{
			ID:         fmt.Sprintf("run-%d", i),
			StartedAt:  base.Add(time.Duration(i) * time.Hour),
			FinishedAt: base.Add(time.Duration(i)*time.Hour + time.Minute),
			State:      "done",
			Outcome:    "published",
			PartFiles:  2,
			RowsMerged: 100 + i,
			RowsKept:   50,
			Records:    10,
		}
		if err := s.Record(ctx, run); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	runs, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("Recent(2) returned %d runs", len(runs))
	}
	// Newest first
	if runs[0].ID != "run-2" || runs[1].ID != "run-1" {
		t.Errorf("Recent order = %s, %s; want run-2, run-1", runs[0].ID, runs[1].ID)
	}
	if runs[0].RowsMerged != 102 {
		t.Errorf("RowsMerged = %d, want 102", runs[0].RowsMerged)
	}
	if !runs[0].StartedAt.Equal(base.Add(2 * time.Hour)) {
		t.Errorf("StartedAt = %v, want %v", runs[0].StartedAt, base.Add(2*time.Hour))
	}
}

func TestRecord_FailedRunKeepsError(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	run := Run{
		ID:         "run-bad",
		StartedAt:  time.Now(),
		FinishedAt: time.Now(),
		State:      "failed",
		Error:      "schema mismatch in part2.csv: 23 columns, want 24",
	}
	if err := s.Record(ctx, run); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	runs, err := s.Recent(ctx, 1)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if runs[0].State != "failed" || runs[0].Error == "" {
		t.Errorf("run = %+v, want failed state with error text", runs[0])
	}
}

func TestRecent_EmptyStore(t *testing.T) {
	s := openStore(t)

	runs, err := s.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("Recent() on empty store returned %d runs", len(runs))
	}
}
