// Package sink publishes the final report table to the shared spreadsheet.
//
// Publication is a full overwrite: clear the worksheet, write one header
// row, then append the records in fixed-size batches with a pacing delay
// between calls so the sink's call-rate policy is respected.
package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/luis-tiberio/packed-sp5/internal/transform"
)

// Destination is one named worksheet inside one named document, already
// authorized. The two operations below are the only ones the pipeline uses.
type Destination interface {
	// Clear removes all existing content from the worksheet.
	Clear(ctx context.Context) error

	// Append adds rows after the current content. Values are written
	// literally, never formula-evaluated.
	Append(ctx context.Context, rows [][]string) error
}

// AuthError indicates the destination could not be opened: missing or
// invalid credential material, or an unknown document or worksheet name.
// Fatal; never retried.
type AuthError struct {
	Document  string
	Worksheet string
	Err       error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("sink auth: document %q worksheet %q: %v", e.Document, e.Worksheet, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// WriteError indicates a failed transmission. Batch is -1 for the clear
// call, 0 for the header row, and 1-based for data batches. Remaining
// batches are abandoned; there is no per-batch retry.
type WriteError struct {
	Batch int
	Err   error
}

func (e *WriteError) Error() string {
	switch {
	case e.Batch < 0:
		return fmt.Sprintf("sink clear: %v", e.Err)
	case e.Batch == 0:
		return fmt.Sprintf("sink header write: %v", e.Err)
	default:
		return fmt.Sprintf("sink batch %d: %v", e.Batch, e.Err)
	}
}

func (e *WriteError) Unwrap() error { return e.Err }

// DefaultBatchSize is the number of rows sent per append call.
const DefaultBatchSize = 2000

// DefaultDelay is the pacing delay after each batch call.
const DefaultDelay = 2 * time.Second

// Publisher writes a report table to a Destination in bounded batches.
type Publisher struct {
	dest      Destination
	batchSize int
	delay     time.Duration
}

// NewPublisher creates a Publisher. Non-positive batchSize or negative
// delay fall back to the defaults.
func NewPublisher(dest Destination, batchSize int, delay time.Duration) *Publisher {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if delay < 0 {
		delay = DefaultDelay
	}
	return &Publisher{dest: dest, batchSize: batchSize, delay: delay}
}

// Publish clears the destination, writes the header row, then appends the
// records in batches preserving table order. The first transmission failure
// aborts the remaining batches.
func (p *Publisher) Publish(ctx context.Context, header []string, records []transform.Record) error {
	if err := p.dest.Clear(ctx); err != nil {
		return &WriteError{Batch: -1, Err: err}
	}

	if err := p.dest.Append(ctx, [][]string{normalize(header)}); err != nil {
		return &WriteError{Batch: 0, Err: err}
	}

	batch := 0
	for start := 0; start < len(records); start += p.batchSize {
		end := start + p.batchSize
		if end > len(records) {
			end = len(records)
		}
		batch++

		rows := make([][]string, 0, end-start)
		for _, rec := range records[start:end] {
			rows = append(rows, normalize(rec.Row()))
		}

		if err := p.dest.Append(ctx, rows); err != nil {
			return &WriteError{Batch: batch, Err: err}
		}

		if err := pace(ctx, p.delay); err != nil {
			return err
		}
	}

	return nil
}

// normalize pads short rows so every transmitted cell is defined; the wire
// format has no "missing" marker, so absent values become empty strings.
func normalize(row []string) []string {
	const width = 7
	if len(row) >= width {
		return row
	}
	padded := make([]string, width)
	copy(padded, row)
	return padded
}

// pace sleeps for the configured inter-batch delay, honoring cancellation.
func pace(ctx context.Context, d time.Duration) error {
	if d == 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
