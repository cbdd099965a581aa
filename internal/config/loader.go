package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
// Returns an error if required values are missing or validation fails.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// loadStruct recursively populates struct fields from environment variables.
func loadStruct(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		// Skip unexported fields
		if !fieldVal.CanSet() {
			continue
		}

		// Recurse into nested structs
		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if err := loadStruct(fieldVal); err != nil {
				return err
			}
			continue
		}

		// Get tags
		envName := field.Tag.Get("env")
		envAlt := field.Tag.Get("envAlt")
		defaultVal := field.Tag.Get("default")
		required := field.Tag.Get("required") == "true"

		if envName == "" {
			continue
		}

		// Try primary env var, then alternate
		value := os.Getenv(envName)
		if value == "" && envAlt != "" {
			value = os.Getenv(envAlt)
		}

		// Apply default if not set
		if value == "" {
			if required {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
			value = defaultVal
		}

		if value == "" {
			continue
		}

		// Set the field value
		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		// Handle time.Duration specially
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.Set(reflect.ValueOf(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer: %w", err)
			}
			field.SetInt(i)
		}

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		switch field.Type().Elem().Kind() {
		case reflect.String:
			// Split comma-separated values, trim whitespace
			parts := strings.Split(value, ",")
			result := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					result = append(result, p)
				}
			}
			field.Set(reflect.ValueOf(result))

		case reflect.Int:
			parts := strings.Split(value, ",")
			result := make([]int, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p == "" {
					continue
				}
				n, err := strconv.Atoi(p)
				if err != nil {
					return fmt.Errorf("invalid integer list element %q: %w", p, err)
				}
				result = append(result, n)
			}
			field.Set(reflect.ValueOf(result))

		default:
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Pipeline validation
	if c.Pipeline.Facility == "" {
		errs = append(errs, "PIPELINE_FACILITY must not be empty")
	}
	if c.Pipeline.FacilityColumn < 0 {
		errs = append(errs, "PIPELINE_FACILITY_COLUMN must be non-negative")
	}
	if len(c.Pipeline.Columns) != 6 {
		errs = append(errs, fmt.Sprintf("PIPELINE_COLUMNS has %d indices, want 6", len(c.Pipeline.Columns)))
	}
	for _, idx := range c.Pipeline.Columns {
		if idx < 0 {
			errs = append(errs, fmt.Sprintf("PIPELINE_COLUMNS index %d must be non-negative", idx))
			break
		}
	}
	if len(c.Pipeline.AttributeNames) != 5 {
		errs = append(errs, fmt.Sprintf("PIPELINE_ATTRIBUTE_NAMES has %d names, want 5", len(c.Pipeline.AttributeNames)))
	}

	// Sink validation
	if c.Sink.CredentialsFile == "" {
		errs = append(errs, "SINK_CREDENTIALS_FILE is required")
	}
	if c.Sink.Document == "" {
		errs = append(errs, "SINK_DOCUMENT is required")
	}
	if c.Sink.Worksheet == "" {
		errs = append(errs, "SINK_WORKSHEET is required")
	}
	if c.Sink.BatchSize <= 0 {
		errs = append(errs, "SINK_BATCH_SIZE must be positive")
	}
	if c.Sink.Delay < 0 {
		errs = append(errs, "SINK_DELAY must be non-negative")
	}

	// Portal validation: all-or-nothing, the portal is optional
	portalSet := c.Portal.BaseURL != "" || c.Portal.OpsID != "" || c.Portal.Password != ""
	if portalSet {
		if c.Portal.BaseURL == "" {
			errs = append(errs, "PORTAL_BASE_URL is required when portal credentials are set")
		}
		if c.Portal.OpsID == "" || c.Portal.Password == "" {
			errs = append(errs, "PORTAL_OPS_ID and PORTAL_PASSWORD are required when PORTAL_BASE_URL is set")
		}
		if c.Portal.PollInterval <= 0 {
			errs = append(errs, "PORTAL_POLL_INTERVAL must be positive")
		}
		if c.Portal.PollTimeout <= 0 {
			errs = append(errs, "PORTAL_POLL_TIMEOUT must be positive")
		}
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// Credential material is masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Pipeline: {Facility: %q, Columns: %v}, ",
		c.Pipeline.Facility, c.Pipeline.Columns))
	b.WriteString(fmt.Sprintf("Sink: {CredentialsFile: [MASKED], Document: %q, Worksheet: %q, BatchSize: %d}, ",
		c.Sink.Document, c.Sink.Worksheet, c.Sink.BatchSize))
	b.WriteString(fmt.Sprintf("Portal: {BaseURL: %q, OpsID: %q, Password: [MASKED]}, ",
		c.Portal.BaseURL, c.Portal.OpsID))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}
