package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// Validate checks the configuration for required fields and valid values.
func (c *Config) Validate() error {
	var errors ValidationErrors

	// Validate source database
	if errs := c.validateDatabase("source", &c.Source); errs != nil {
		errors = append(errors, errs...)
	}

	// Validate target database
	if errs := c.validateDatabase("target", &c.Target); errs != nil {
		errors = append(errors, errs...)
	}

	// Validate tables
	if len(c.Tables) == 0 {
		errors = append(errors, ValidationError{
			Field:   "tables",
			Message: "at least one table must be configured",
		})
	}
	for name, tbl := range c.Tables {
		if errs := validateTable(name, &tbl); errs != nil {
			errors = append(errors, errs...)
		}
	}

	if errs := c.validateBatching(); errs != nil {
		errors = append(errors, errs...)
	}

	if errs := c.validateVerification(); errs != nil {
		errors = append(errors, errs...)
	}

	if errs := c.validateLogging(); errs != nil {
		errors = append(errors, errs...)
	}

	if len(errors) > 0 {
		return errors
	}
	return nil
}

func (c *Config) validateDatabase(prefix string, db *DatabaseConfig) ValidationErrors {
	var errors ValidationErrors

	if db.Host == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".host",
			Message: "host is required",
		})
	}
	if db.Port <= 0 || db.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", db.Port),
		})
	}
	if db.User == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".user",
			Message: "user is required",
		})
	}
	if db.Database == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".database",
			Message: "database is required",
		})
	}
	switch db.TLS {
	case "", "disable", "preferred", "required":
	default:
		errors = append(errors, ValidationError{
			Field:   prefix + ".tls",
			Message: fmt.Sprintf("tls must be disable, preferred, or required, got %q", db.TLS),
		})
	}

	return errors
}

func validateTable(name string, tbl *TableConfig) ValidationErrors {
	var errors ValidationErrors
	prefix := "tables." + name

	// The performance category gates batch sizing and session tuning and has
	// no safe default; its absence is a hard configuration error.
	if tbl.PerformanceCategory == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".performance_category",
			Message: "performance_category is required (tiny, small, medium, or large)",
		})
	} else if !tbl.PerformanceCategory.Valid() {
		errors = append(errors, ValidationError{
			Field:   prefix + ".performance_category",
			Message: fmt.Sprintf("unknown performance_category %q", tbl.PerformanceCategory),
		})
	}

	if tbl.ExtractionStrategy != "" && !tbl.ExtractionStrategy.Valid() {
		errors = append(errors, ValidationError{
			Field:   prefix + ".extraction_strategy",
			Message: fmt.Sprintf("unknown extraction_strategy %q", tbl.ExtractionStrategy),
		})
	}

	if tbl.PrimaryIncrementalColumn != "" {
		found := false
		for _, col := range tbl.IncrementalColumns {
			if strings.EqualFold(col, tbl.PrimaryIncrementalColumn) {
				found = true
				break
			}
		}
		if !found {
			errors = append(errors, ValidationError{
				Field:   prefix + ".primary_incremental_column",
				Message: fmt.Sprintf("%q is not listed in incremental_columns", tbl.PrimaryIncrementalColumn),
			})
		}
	}

	if tbl.BatchSize < 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".batch_size",
			Message: fmt.Sprintf("batch_size must not be negative, got %d", tbl.BatchSize),
		})
	}

	if tbl.TimeGapThresholdDays < 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".time_gap_threshold_days",
			Message: fmt.Sprintf("time_gap_threshold_days must not be negative, got %d", tbl.TimeGapThresholdDays),
		})
	}

	return errors
}

func (c *Config) validateBatching() ValidationErrors {
	var errors ValidationErrors

	if c.Batching.MinBatchSize <= 0 {
		errors = append(errors, ValidationError{
			Field:   "batching.min_batch_size",
			Message: fmt.Sprintf("min_batch_size must be positive, got %d", c.Batching.MinBatchSize),
		})
	}
	if c.Batching.MaxBatchSize < c.Batching.MinBatchSize {
		errors = append(errors, ValidationError{
			Field:   "batching.max_batch_size",
			Message: fmt.Sprintf("max_batch_size (%d) must be >= min_batch_size (%d)",
				c.Batching.MaxBatchSize, c.Batching.MinBatchSize),
		})
	}
	if c.Batching.TargetBatchSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "batching.target_batch_seconds",
			Message: fmt.Sprintf("target_batch_seconds must be positive, got %d", c.Batching.TargetBatchSeconds),
		})
	}

	return errors
}

func (c *Config) validateVerification() ValidationErrors {
	switch c.Verification.Method {
	case "", "count", "sha256":
		return nil
	}
	return ValidationErrors{{
		Field:   "verification.method",
		Message: fmt.Sprintf("method must be count or sha256, got %q", c.Verification.Method),
	}}
}

func (c *Config) validateLogging() ValidationErrors {
	var errors ValidationErrors

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("level must be debug, info, warn, or error, got %q", c.Logging.Level),
		})
	}

	switch c.Logging.Format {
	case "", "json", "text":
	default:
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("format must be json or text, got %q", c.Logging.Format),
		})
	}

	return errors
}
