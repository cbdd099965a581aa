package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/luis-tiberio/packed-sp5/internal/config"
	"github.com/luis-tiberio/packed-sp5/internal/history"
	"github.com/luis-tiberio/packed-sp5/internal/logging"
	"github.com/luis-tiberio/packed-sp5/internal/pipeline"
	"github.com/luis-tiberio/packed-sp5/internal/portal"
	"github.com/luis-tiberio/packed-sp5/internal/runner"
	"github.com/luis-tiberio/packed-sp5/internal/sink"
	"github.com/luis-tiberio/packed-sp5/internal/transform"
	"github.com/luis-tiberio/packed-sp5/internal/web"
)

func main() {
	var (
		bundlePath = flag.String("bundle", "", "process a local bundle instead of fetching from the portal")
		daemon     = flag.Bool("daemon", false, "run on the configured schedule instead of once")
	)
	flag.Parse()

	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded",
		"facility", cfg.Pipeline.Facility,
		"document", cfg.Sink.Document,
		"worksheet", cfg.Sink.Worksheet,
		"batch_size", cfg.Sink.BatchSize,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := buildApp(ctx, cfg)
	if err != nil {
		slog.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer app.close()

	if *daemon {
		if err := app.runDaemon(ctx, cfg); err != nil {
			slog.Error("daemon failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := app.runOnce(ctx, *bundlePath); err != nil {
		os.Exit(1)
	}
}

// app holds the wired-up collaborators of a running instance.
type app struct {
	pipe  *pipeline.Pipeline
	store *history.Store // nil when history is disabled
	fetch func(ctx context.Context) (string, error)
}

func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	dest, err := sink.OpenSheets(ctx,
		cfg.Sink.CredentialsFile, cfg.Sink.Document, cfg.Sink.Worksheet)
	if err != nil {
		return nil, err
	}
	publisher := sink.NewPublisher(dest, cfg.Sink.BatchSize, cfg.Sink.Delay)

	tcfg := transform.Config{
		FacilityColumn: cfg.Pipeline.FacilityColumn,
		Facility:       cfg.Pipeline.Facility,
		Columns:        cfg.Pipeline.Columns,
		AttributeNames: cfg.Pipeline.AttributeNames,
	}
	if err := os.MkdirAll(cfg.Pipeline.WorkDir, 0755); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	pipe, err := pipeline.New(tcfg, publisher, cfg.Pipeline.WorkDir, slog.Default())
	if err != nil {
		return nil, err
	}

	a := &app{pipe: pipe}

	if cfg.History.Path != "" {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			return nil, err
		}
		a.store = store
	}

	if cfg.Portal.BaseURL != "" {
		client, err := portal.New(portal.Options{
			BaseURL:      cfg.Portal.BaseURL,
			OpsID:        cfg.Portal.OpsID,
			Password:     cfg.Portal.Password,
			Report:       cfg.Portal.Report,
			PollInterval: cfg.Portal.PollInterval,
			PollTimeout:  cfg.Portal.PollTimeout,
			WorkDir:      cfg.Pipeline.WorkDir,
		})
		if err != nil {
			return nil, err
		}
		a.fetch = client.Fetch
	}

	return a, nil
}

func (a *app) close() {
	if a.store != nil {
		a.store.Close()
	}
}

// runOnce executes a single sync and records it. The bundle comes from
// localBundle when given, otherwise from the portal.
func (a *app) runOnce(ctx context.Context, localBundle string) error {
	path := localBundle
	if path == "" {
		if a.fetch == nil {
			err := errors.New("no bundle path given and no portal configured")
			slog.Error("cannot acquire bundle", "error", err)
			return err
		}
		var err error
		if path, err = a.fetch(ctx); err != nil {
			slog.Error("bundle acquisition failed", "error", err)
			return err
		}
	}

	res, err := a.pipe.Run(ctx, path)
	a.record(res)
	return err
}

// record persists the run result; history failures are logged, never fatal.
func (a *app) record(res *pipeline.Result) {
	if a.store == nil || res == nil {
		return
	}

	run := history.Run{
		ID:         res.RunID,
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
		State:      string(res.State),
		Outcome:    string(res.Outcome),
		PartFiles:  res.PartFiles,
		RowsMerged: res.RowsMerged,
		RowsKept:   res.RowsKept,
		Records:    res.Records,
	}
	if res.Err != nil {
		run.Error = res.Err.Error()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.store.Record(ctx, run); err != nil {
		slog.Warn("failed to record run history", "run_id", res.RunID, "error", err)
	}
}

// runDaemon runs on the configured schedule until interrupted. Scheduled
// runs fetch from the portal; watch-triggered runs use the dropped bundle.
func (a *app) runDaemon(ctx context.Context, cfg *config.Config) error {
	r := runner.New(func(ctx context.Context, bundlePath string) {
		if bundlePath == "" {
			if a.fetch == nil {
				slog.Error("scheduled run skipped: no portal configured")
				return
			}
			var err error
			if bundlePath, err = a.fetch(ctx); err != nil {
				slog.Error("bundle acquisition failed", "error", err)
				return
			}
		}
		res, _ := a.pipe.Run(ctx, bundlePath)
		a.record(res)
	}, slog.Default())

	if err := r.Start(ctx, cfg.Runner.Schedule, cfg.Runner.WatchDir); err != nil {
		return err
	}
	defer r.Stop()

	var srv *web.Server
	if cfg.Runner.StatusAddr != "" {
		srv = newStatusServer(a.store)
		go func() {
			if err := srv.Start(cfg.Runner.StatusAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("status server failed", "error", err)
			}
		}()
	}

	<-ctx.Done()
	slog.Info("shutting down")

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("status server shutdown", "error", err)
		}
	}
	return nil
}

// newStatusServer avoids handing the server a non-nil interface wrapping a
// nil *history.Store.
func newStatusServer(store *history.Store) *web.Server {
	if store == nil {
		return web.NewServer(nil)
	}
	return web.NewServer(store)
}
