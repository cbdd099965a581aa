// Package config provides centralized configuration management for the
// application. It loads configuration from environment variables with
// sensible defaults and validates all settings on startup to fail fast on
// misconfiguration.
package config

import "time"

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Logging  LoggingConfig
	Pipeline PipelineConfig
	Sink     SinkConfig
	Portal   PortalConfig
	History  HistoryConfig
	Runner   RunnerConfig
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// PipelineConfig holds the business transform settings.
type PipelineConfig struct {
	// Facility is the exact facility code rows must carry to be retained.
	Facility string `env:"PIPELINE_FACILITY" default:"SoC_SP_Cravinhos"`

	// FacilityColumn is the zero-based index of the facility-code column.
	FacilityColumn int `env:"PIPELINE_FACILITY_COLUMN" default:"12"`

	// Columns are the six zero-based source column indices to project,
	// comma-separated. The first is the key column.
	Columns []int `env:"PIPELINE_COLUMNS" default:"0,9,15,17,2,23"`

	// AttributeNames are the five published attribute column headers,
	// comma-separated, in projection order.
	AttributeNames []string `env:"PIPELINE_ATTRIBUTE_NAMES" default:"Coluna9,Coluna15,Coluna17,Coluna2,Coluna23"`

	// WorkDir is where bundles land and per-run extraction directories are
	// created. Empty uses the system temp dir.
	WorkDir string `env:"PIPELINE_WORK_DIR" default:"/tmp/packed-sp5"`
}

// SinkConfig holds the destination spreadsheet settings.
type SinkConfig struct {
	// CredentialsFile is the path to the service-account JSON key (required)
	CredentialsFile string `env:"SINK_CREDENTIALS_FILE" envAlt:"GOOGLE_APPLICATION_CREDENTIALS" required:"true"`

	// Document is the destination spreadsheet name (required)
	Document string `env:"SINK_DOCUMENT" required:"true"`

	// Worksheet is the destination tab name within the document (required)
	Worksheet string `env:"SINK_WORKSHEET" required:"true"`

	// BatchSize is the number of rows sent per append call (default: 2000)
	BatchSize int `env:"SINK_BATCH_SIZE" default:"2000"`

	// Delay is the pacing delay after each batch call (default: 2s)
	Delay time.Duration `env:"SINK_DELAY" default:"2s"`
}

// PortalConfig holds settings for the operations portal the bundle is
// fetched from. Only consulted when no local bundle path is given.
type PortalConfig struct {
	// BaseURL is the portal root, e.g. https://ops.example.com
	BaseURL string `env:"PORTAL_BASE_URL"`

	// OpsID is the portal login identifier.
	OpsID string `env:"PORTAL_OPS_ID"`

	// Password is the portal login password.
	Password string `env:"PORTAL_PASSWORD"`

	// Report is the export to request (default: Packed)
	Report string `env:"PORTAL_REPORT" default:"Packed"`

	// PollInterval is how often to check export readiness (default: 10s)
	PollInterval time.Duration `env:"PORTAL_POLL_INTERVAL" default:"10s"`

	// PollTimeout bounds the wait for export generation (default: 5m)
	PollTimeout time.Duration `env:"PORTAL_POLL_TIMEOUT" default:"5m"`
}

// HistoryConfig holds run-history store settings.
type HistoryConfig struct {
	// Path is the SQLite file recording pipeline runs. Empty disables the
	// history store.
	Path string `env:"HISTORY_PATH" default:"/tmp/packed-sp5/runs.db"`
}

// RunnerConfig holds daemon-mode settings.
type RunnerConfig struct {
	// Schedule is a 5-field cron expression for periodic runs
	// (default: hourly).
	Schedule string `env:"RUNNER_SCHEDULE" default:"0 * * * *"`

	// WatchDir, when set, is a directory watched for dropped bundle files;
	// a new ZIP triggers a run.
	WatchDir string `env:"RUNNER_WATCH_DIR"`

	// StatusAddr is the listen address of the status server in daemon mode
	// (default: 127.0.0.1:8090). Empty disables it.
	StatusAddr string `env:"RUNNER_STATUS_ADDR" default:"127.0.0.1:8090"`
}
