// Package config provides configuration structures and loading for dentsync.
package config

import (
	"strconv"
	"strings"
)

// PerformanceCategory classifies a table by expected size for batch and
// session tuning decisions.
type PerformanceCategory string

const (
	CategoryTiny   PerformanceCategory = "tiny"
	CategorySmall  PerformanceCategory = "small"
	CategoryMedium PerformanceCategory = "medium"
	CategoryLarge  PerformanceCategory = "large"
)

// Valid reports whether the category is one of the recognized values.
func (c PerformanceCategory) Valid() bool {
	switch c {
	case CategoryTiny, CategorySmall, CategoryMedium, CategoryLarge:
		return true
	}
	return false
}

// ExtractionStrategy selects how rows are moved for a table.
type ExtractionStrategy string

const (
	StrategyFullTable          ExtractionStrategy = "full_table"
	StrategyIncremental        ExtractionStrategy = "incremental"
	StrategyIncrementalChunked ExtractionStrategy = "incremental_chunked"
)

// Valid reports whether the strategy is one of the recognized values.
func (s ExtractionStrategy) Valid() bool {
	switch s {
	case StrategyFullTable, StrategyIncremental, StrategyIncrementalChunked:
		return true
	}
	return false
}

// Config represents the complete application configuration.
type Config struct {
	Source       DatabaseConfig         `yaml:"source" mapstructure:"source"`
	Target       DatabaseConfig         `yaml:"target" mapstructure:"target"`
	LagGuard     LagGuardConfig         `yaml:"lag_guard" mapstructure:"lag_guard"`
	Tables       map[string]TableConfig `yaml:"tables" mapstructure:"tables"`
	Thresholds   ThresholdsConfig       `yaml:"thresholds" mapstructure:"thresholds"`
	Batching     BatchingConfig         `yaml:"batching" mapstructure:"batching"`
	Verification VerificationConfig     `yaml:"verification" mapstructure:"verification"`
	Logging      LoggingConfig          `yaml:"logging" mapstructure:"logging"`
}

// DatabaseConfig represents a MySQL database connection configuration.
type DatabaseConfig struct {
	Host               string `yaml:"host" mapstructure:"host"`
	Port               int    `yaml:"port" mapstructure:"port"`
	User               string `yaml:"user" mapstructure:"user"`
	Password           string `yaml:"password" mapstructure:"password"`
	Database           string `yaml:"database" mapstructure:"database"`
	TLS                string `yaml:"tls" mapstructure:"tls"` // disable, preferred, required
	MaxConnections     int    `yaml:"max_connections" mapstructure:"max_connections"`
	MaxIdleConnections int    `yaml:"max_idle_connections" mapstructure:"max_idle_connections"`
}

// LagGuardConfig controls the optional source replica lag guard. When the
// source connection points at a MySQL read replica, the guard pauses copies
// while the replica lags so watermarks are never computed against stale data.
type LagGuardConfig struct {
	Enabled              bool `yaml:"enabled" mapstructure:"enabled"`
	ThresholdSeconds     int  `yaml:"threshold_seconds" mapstructure:"threshold_seconds"`
	CheckIntervalSeconds int  `yaml:"check_interval_seconds" mapstructure:"check_interval_seconds"`
}

// TableConfig is the per-table replication configuration. It is the single
// canonical shape for table metadata; callers construct it directly.
type TableConfig struct {
	Name                     string              `yaml:"-" mapstructure:"-"`
	PerformanceCategory      PerformanceCategory `yaml:"performance_category" mapstructure:"performance_category"`
	ExtractionStrategy       ExtractionStrategy  `yaml:"extraction_strategy" mapstructure:"extraction_strategy"`
	IncrementalColumns       []string            `yaml:"incremental_columns" mapstructure:"incremental_columns"`
	PrimaryIncrementalColumn string              `yaml:"primary_incremental_column" mapstructure:"primary_incremental_column"`
	BatchSize                int                 `yaml:"batch_size" mapstructure:"batch_size"` // 0 => computed
	EstimatedRows            int64               `yaml:"estimated_rows" mapstructure:"estimated_rows"`
	EstimatedSizeMB          float64             `yaml:"estimated_size_mb" mapstructure:"estimated_size_mb"`
	TimeGapThresholdDays     int                 `yaml:"time_gap_threshold_days" mapstructure:"time_gap_threshold_days"`
	PrimaryKey               string              `yaml:"primary_key" mapstructure:"primary_key"`
	ProcessingPriority       string              `yaml:"processing_priority" mapstructure:"processing_priority"` // high|medium|low or "1".."10"
}

// ThresholdsConfig carries the staleness heuristics used by strategy
// selection. These are business tuning constants, kept configurable.
type ThresholdsConfig struct {
	FullRefreshGapDays  int     `yaml:"full_refresh_gap_days" mapstructure:"full_refresh_gap_days"`
	SmallTableGapDays   int     `yaml:"small_table_gap_days" mapstructure:"small_table_gap_days"`
	SmallTableSizeMB    float64 `yaml:"small_table_size_mb" mapstructure:"small_table_size_mb"`
	SlowIncrementalRate float64 `yaml:"slow_incremental_rate" mapstructure:"slow_incremental_rate"`
}

// BatchingConfig bounds computed batch sizes.
type BatchingConfig struct {
	MinBatchSize       int `yaml:"min_batch_size" mapstructure:"min_batch_size"`
	MaxBatchSize       int `yaml:"max_batch_size" mapstructure:"max_batch_size"`
	TargetBatchSeconds int `yaml:"target_batch_seconds" mapstructure:"target_batch_seconds"`
}

// VerificationConfig represents post-copy verification settings.
type VerificationConfig struct {
	Method           string `yaml:"method" mapstructure:"method"` // "count" or "sha256"
	SkipVerification bool   `yaml:"skip_verification" mapstructure:"skip_verification"`
}

// LoggingConfig represents logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // json or text
	Output string `yaml:"output" mapstructure:"output"` // stdout, stderr, or file path
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Source: DatabaseConfig{
			Port:               3306,
			TLS:                "preferred",
			MaxConnections:     10,
			MaxIdleConnections: 5,
		},
		Target: DatabaseConfig{
			Port:               3306,
			TLS:                "preferred",
			MaxConnections:     10,
			MaxIdleConnections: 5,
		},
		LagGuard: LagGuardConfig{
			Enabled:              false,
			ThresholdSeconds:     10,
			CheckIntervalSeconds: 5,
		},
		Thresholds: ThresholdsConfig{
			FullRefreshGapDays:  30,
			SmallTableGapDays:   7,
			SmallTableSizeMB:    100,
			SlowIncrementalRate: 100,
		},
		Batching: BatchingConfig{
			MinBatchSize:       1000,
			MaxBatchSize:       100000,
			TargetBatchSeconds: 30,
		},
		Verification: VerificationConfig{
			Method:           "count",
			SkipVerification: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// GapThresholdDays returns the per-table staleness threshold, falling back to
// the global default when the table does not override it.
func (t *TableConfig) GapThresholdDays(global ThresholdsConfig) int {
	if t.TimeGapThresholdDays > 0 {
		return t.TimeGapThresholdDays
	}
	if global.FullRefreshGapDays > 0 {
		return global.FullRefreshGapDays
	}
	return 30
}

// PrimaryKeyColumn returns the configured primary key, defaulting to "id".
func (t *TableConfig) PrimaryKeyColumn() string {
	if t.PrimaryKey != "" {
		return t.PrimaryKey
	}
	return "id"
}

// PriorityRank maps processing_priority onto a 1..10 scale where lower is
// more urgent. Recognizes "high"/"medium"/"low" and numeric strings; any
// other value sorts as medium.
func (t *TableConfig) PriorityRank() int {
	switch strings.ToLower(strings.TrimSpace(t.ProcessingPriority)) {
	case "high":
		return 1
	case "medium", "":
		return 5
	case "low":
		return 10
	}
	if n, err := strconv.Atoi(strings.TrimSpace(t.ProcessingPriority)); err == nil {
		if n < 1 {
			return 1
		}
		if n > 10 {
			return 10
		}
		return n
	}
	return 5
}
