// Package runner drives pipeline executions in daemon mode: cron-scheduled
// runs, optional drop-directory watching, and a single-flight guard.
//
// The guard exists because two concurrent runs would race on the
// clear-and-rewrite of the same destination sheet; overlapping triggers are
// skipped, not queued.
package runner

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
)

// debounceDelay coalesces the burst of fsnotify events a single bundle copy
// produces into one trigger.
const debounceDelay = 2 * time.Second

// Job executes one sync. bundlePath is empty for scheduled runs (the job
// fetches its own bundle) and set for watch-triggered runs.
type Job func(ctx context.Context, bundlePath string)

// Runner schedules and triggers Jobs.
type Runner struct {
	job Job
	log *slog.Logger

	sched   *cron.Cron
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// mu guards timers, the pending debounce windows keyed by bundle path.
	mu     sync.Mutex
	timers map[string]*time.Timer

	inFlight atomic.Bool
}

// New creates a Runner around job.
func New(job Job, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{job: job, log: log, timers: make(map[string]*time.Timer)}
}

// Trigger runs the job unless another run is already in flight, in which
// case the trigger is skipped.
func (r *Runner) Trigger(ctx context.Context, bundlePath string) {
	if !r.inFlight.CompareAndSwap(false, true) {
		r.log.Warn("run already in flight, skipping trigger", "bundle", bundlePath)
		return
	}
	defer r.inFlight.Store(false)

	r.job(ctx, bundlePath)
}

// Start begins the cron schedule (5-field spec, empty disables) and, when
// watchDir is non-empty, watches it for dropped bundle ZIPs. Returns after
// wiring everything up; runs happen on background goroutines until Stop.
func (r *Runner) Start(ctx context.Context, schedule, watchDir string) error {
	ctx, r.cancel = context.WithCancel(ctx)

	if schedule != "" {
		r.sched = cron.New()
		_, err := r.sched.AddFunc(schedule, func() {
			r.Trigger(ctx, "")
		})
		if err != nil {
			return err
		}
		r.sched.Start()
		r.log.Info("schedule active", "spec", schedule)
	}

	if watchDir != "" {
		if err := r.startWatcher(ctx, watchDir); err != nil {
			return err
		}
	}

	return nil
}

// startWatcher triggers a debounced run whenever a ZIP lands in dir.
func (r *Runner) startWatcher(ctx context.Context, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return err
	}
	r.watcher = watcher

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if !strings.EqualFold(filepath.Ext(event.Name), ".zip") {
					continue
				}
				r.debounce(ctx, event.Name)

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				r.log.Error("watcher error", "error", err)
			}
		}
	}()

	r.log.Info("watching for bundles", "dir", dir)
	return nil
}

// debounce restarts the debounce window for path; when the window elapses
// without another event, the job is triggered. The timer entry is removed
// when it fires so the map only holds pending windows.
func (r *Runner) debounce(ctx context.Context, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, exists := r.timers[path]; exists {
		t.Stop()
	}
	r.timers[path] = time.AfterFunc(debounceDelay, func() {
		r.mu.Lock()
		delete(r.timers, path)
		r.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		r.log.Info("bundle dropped, triggering run", "bundle", path)
		r.Trigger(ctx, path)
	})
}

// Stop tears down the schedule and watcher, drops pending debounce windows,
// and waits for the watch goroutine. An in-flight run finishes on its own;
// its context is cancelled.
func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	if r.sched != nil {
		r.sched.Stop()
	}
	if r.watcher != nil {
		r.watcher.Close()
	}

	r.mu.Lock()
	for path, t := range r.timers {
		t.Stop()
		delete(r.timers, path)
	}
	r.mu.Unlock()

	r.wg.Wait()
}
