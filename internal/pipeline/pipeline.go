// Package pipeline sequences one end-to-end sync: extract the bundle, merge
// the part-files, apply the business transform, publish to the sink.
//
// A run is a disposable, stateless computation over its inputs. Stages run
// strictly in order, each stage owns the table it emits, and any stage
// failure abandons the run as a whole — there is no partial recovery. Two
// overlapping runs would race on the clear-and-rewrite of the same sheet,
// so the caller must keep at most one run in flight.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/luis-tiberio/packed-sp5/internal/bundle"
	"github.com/luis-tiberio/packed-sp5/internal/sink"
	"github.com/luis-tiberio/packed-sp5/internal/table"
	"github.com/luis-tiberio/packed-sp5/internal/transform"
)

// State is the pipeline's position in a run.
type State string

const (
	StateIdle         State = "idle"
	StateExtracting   State = "extracting"
	StateMerging      State = "merging"
	StateTransforming State = "transforming"
	StatePublishing   State = "publishing"
	StateDone         State = "done"
	StateFailed       State = "failed"
)

// Outcome describes how a run that reached Done terminated.
type Outcome string

const (
	// OutcomePublished means the report was written to the sink.
	OutcomePublished Outcome = "published"

	// OutcomeEmptyBundle means the bundle held no part-files; the sink was
	// not touched.
	OutcomeEmptyBundle Outcome = "empty_bundle"

	// OutcomeNoRows means no rows survived the transform; publishing was
	// skipped so the sheet keeps its previous content rather than being
	// cleared to blank.
	OutcomeNoRows Outcome = "no_rows"
)

// Result is the terminal report of one run.
type Result struct {
	RunID      string
	State      State
	Outcome    Outcome
	PartFiles  int
	RowsMerged int
	RowsKept   int // rows surviving the facility filter
	Records    int // deduplicated records published
	StartedAt  time.Time
	FinishedAt time.Time
	Err        error
}

// Pipeline runs the ETL sequence. Zero value is not usable; use New.
type Pipeline struct {
	transform transform.Config
	publisher *sink.Publisher
	workDir   string
	log       *slog.Logger
}

// New assembles a Pipeline. workDir is where per-run extraction directories
// are created ("" uses the system temp dir); its lifecycle is one run.
func New(cfg transform.Config, publisher *sink.Publisher, workDir string, log *slog.Logger) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if publisher == nil {
		return nil, fmt.Errorf("pipeline: publisher is required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{transform: cfg, publisher: publisher, workDir: workDir, log: log}, nil
}

// Run processes the bundle at bundlePath to completion. The returned Result
// is non-nil even on failure; err is non-nil exactly when Result.State is
// StateFailed. Empty bundles and empty transform results are clean
// short-circuits, not failures.
func (p *Pipeline) Run(ctx context.Context, bundlePath string) (*Result, error) {
	res := &Result{
		RunID:     uuid.NewString(),
		State:     StateIdle,
		StartedAt: time.Now(),
	}
	log := p.log.With("run_id", res.RunID)
	log.Info("run started", "bundle", bundlePath)

	defer func() {
		res.FinishedAt = time.Now()
		if res.State == StateDone {
			log.Info("run finished",
				"outcome", string(res.Outcome),
				"records", res.Records,
				"duration_ms", res.FinishedAt.Sub(res.StartedAt).Milliseconds(),
			)
		}
	}()

	fail := func(err error) (*Result, error) {
		log.Error("run failed", "stage", string(res.State), "error", err)
		res.State = StateFailed
		res.Err = err
		return res, err
	}

	// Extract
	res.State = StateExtracting
	extractDir, err := os.MkdirTemp(p.workDir, "packed-extract-*")
	if err != nil {
		return fail(fmt.Errorf("create extract dir: %w", err))
	}
	defer func() {
		if err := os.RemoveAll(extractDir); err != nil {
			log.Warn("extract dir cleanup failed", "dir", extractDir, "error", err)
		}
	}()

	parts, err := bundle.Extract(bundlePath, extractDir)
	if errors.Is(err, bundle.ErrEmptyBundle) {
		log.Info("bundle has no part-files, nothing to do")
		res.State = StateDone
		res.Outcome = OutcomeEmptyBundle
		return res, nil
	}
	if err != nil {
		return fail(err)
	}
	res.PartFiles = len(parts)
	log.Info("bundle extracted", "part_files", len(parts))

	// Merge
	res.State = StateMerging
	tbl, err := table.Merge(parts)
	if err != nil {
		return fail(err)
	}
	res.RowsMerged = len(tbl.Rows)
	log.Info("part-files merged", "rows", len(tbl.Rows), "columns", tbl.Columns)

	// Transform
	res.State = StateTransforming
	records, err := transform.Apply(tbl.Rows, tbl.Columns, p.transform)
	if err != nil {
		return fail(err)
	}
	for _, rec := range records {
		res.RowsKept += rec.Quantity
	}
	res.Records = len(records)
	log.Info("transform applied",
		"rows_kept", res.RowsKept,
		"records", len(records),
		"facility", p.transform.Facility,
	)

	if len(records) == 0 {
		log.Info("no records after transform, skipping publish")
		res.State = StateDone
		res.Outcome = OutcomeNoRows
		return res, nil
	}

	// Publish
	res.State = StatePublishing
	if err := p.publisher.Publish(ctx, p.transform.Header(), records); err != nil {
		return fail(err)
	}

	res.State = StateDone
	res.Outcome = OutcomePublished
	return res, nil
}
