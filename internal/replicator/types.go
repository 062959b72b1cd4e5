// Package replicator implements the table replication and incremental
// tracking engine for dentsync.
package replicator

import (
	"time"

	"github.com/BenjaminRains/dbt-dental-clinic-sub001/internal/config"
)

// CopyStatus is the persisted outcome of a copy attempt.
type CopyStatus string

const (
	StatusSuccess CopyStatus = "success"
	StatusFailed  CopyStatus = "failed"
	StatusPending CopyStatus = "pending"
)

// CopyResult describes the outcome of a single table copy.
type CopyResult struct {
	Table               string
	Strategy            config.ExtractionStrategy
	PerformanceCategory config.PerformanceCategory
	RowsCopied          int64
	BatchSize           int
	Duration            time.Duration
	Watermark           string
	WatermarkColumn     string
	FullRefreshReason   string
	Error               string
}

// CopyStatusRecord is one row of the copy-status table on the target,
// keyed by table name.
type CopyStatusRecord struct {
	TableName         string
	LastCopied        time.Time
	LastPrimaryValue  string
	PrimaryColumnName string
	RowsCopied        int64
	CopyStatus        CopyStatus
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// PerformanceSample captures the throughput of the most recent copy of a
// table within this process. It is a heuristic, not durable state; samples
// do not survive a restart.
type PerformanceSample struct {
	RecordsPerSecond float64
	Duration         time.Duration
	RowsProcessed    int64
	Strategy         config.ExtractionStrategy
	Timestamp        time.Time
}
