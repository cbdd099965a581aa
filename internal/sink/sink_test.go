package sink

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/luis-tiberio/packed-sp5/internal/transform"
)

// fakeDestination records every call made against it.
type fakeDestination struct {
	cleared bool
	calls   [][][]string // rows per Append call

	clearErr  error
	appendErr error
	failAt    int // fail the Nth Append call (1-based), 0 = never
}

func (f *fakeDestination) Clear(ctx context.Context) error {
	if f.clearErr != nil {
		return f.clearErr
	}
	f.cleared = true
	return nil
}

func (f *fakeDestination) Append(ctx context.Context, rows [][]string) error {
	if f.failAt > 0 && len(f.calls)+1 == f.failAt {
		return f.appendErr
	}
	f.calls = append(f.calls, rows)
	return nil
}

func makeRecords(n int) []transform.Record {
	recs := make([]transform.Record, n)
	for i := range recs {
		recs[i] = transform.Record{
			Key:        fmt.Sprintf("K%d", i),
			Attributes: [5]string{"a", "b", "c", "d", "e"},
			Quantity:   1,
		}
	}
	return recs
}

var testHeader = []string{"Chave", "A", "B", "C", "Quantidade", "D", "E"}

func TestPublish_BatchingCompleteness(t *testing.T) {
	tests := []struct {
		name        string
		records     int
		batchSize   int
		wantBatches int
	}{
		{"exact multiple", 10, 5, 2},
		{"remainder", 11, 5, 3},
		{"single short batch", 3, 5, 1},
		{"zero records", 0, 5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dest := &fakeDestination{}
			p := NewPublisher(dest, tt.batchSize, 0)

			err := p.Publish(context.Background(), testHeader, makeRecords(tt.records))
			if err != nil {
				t.Fatalf("Publish() error = %v", err)
			}

			if !dest.cleared {
				t.Error("destination was not cleared")
			}

			// First Append is the header row
			if len(dest.calls) != tt.wantBatches+1 {
				t.Fatalf("append calls = %d, want %d (header + %d batches)",
					len(dest.calls), tt.wantBatches+1, tt.wantBatches)
			}
			if len(dest.calls[0]) != 1 {
				t.Errorf("header call had %d rows, want 1", len(dest.calls[0]))
			}

			total := 0
			for _, batch := range dest.calls[1:] {
				if len(batch) > tt.batchSize {
					t.Errorf("batch of %d rows exceeds batch size %d", len(batch), tt.batchSize)
				}
				total += len(batch)
			}
			if total != tt.records {
				t.Errorf("rows transmitted = %d, want %d", total, tt.records)
			}
		})
	}
}

func TestPublish_PreservesOrder(t *testing.T) {
	dest := &fakeDestination{}
	p := NewPublisher(dest, 2, 0)

	if err := p.Publish(context.Background(), testHeader, makeRecords(5)); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	i := 0
	for _, batch := range dest.calls[1:] {
		for _, row := range batch {
			want := fmt.Sprintf("K%d", i)
			if row[0] != want {
				t.Errorf("row %d key = %q, want %q", i, row[0], want)
			}
			i++
		}
	}
}

func TestPublish_ClearFailureLeavesNothingWritten(t *testing.T) {
	dest := &fakeDestination{clearErr: errors.New("boom")}
	p := NewPublisher(dest, 5, 0)

	err := p.Publish(context.Background(), testHeader, makeRecords(3))
	var writeErr *WriteError
	if !errors.As(err, &writeErr) {
		t.Fatalf("Publish() error = %T, want *WriteError", err)
	}
	if len(dest.calls) != 0 {
		t.Errorf("append calls after clear failure = %d, want 0", len(dest.calls))
	}
}

func TestPublish_BatchFailureAbortsRemainder(t *testing.T) {
	dest := &fakeDestination{
		appendErr: errors.New("quota exceeded"),
		failAt:    3, // header + batch 1 succeed, batch 2 fails
	}
	p := NewPublisher(dest, 2, 0)

	err := p.Publish(context.Background(), testHeader, makeRecords(6))
	var writeErr *WriteError
	if !errors.As(err, &writeErr) {
		t.Fatalf("Publish() error = %T, want *WriteError", err)
	}
	if writeErr.Batch != 2 {
		t.Errorf("WriteError.Batch = %d, want 2", writeErr.Batch)
	}
	if len(dest.calls) != 2 {
		t.Errorf("append calls = %d, want 2 (header + first batch only)", len(dest.calls))
	}
}

func TestPublish_NormalizesShortRows(t *testing.T) {
	dest := &fakeDestination{}
	p := NewPublisher(dest, 5, 0)

	if err := p.Publish(context.Background(), []string{"Chave"}, nil); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	header := dest.calls[0][0]
	if len(header) != 7 {
		t.Fatalf("normalized header width = %d, want 7", len(header))
	}
	for i := 1; i < 7; i++ {
		if header[i] != "" {
			t.Errorf("padded cell %d = %q, want empty string", i, header[i])
		}
	}
}
