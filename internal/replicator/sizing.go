package replicator

import (
	"sync"
	"time"

	"github.com/BenjaminRains/dbt-dental-clinic-sub001/internal/config"
)

// Base batch sizes per performance category.
const (
	baseBatchLarge  = 100000
	baseBatchMedium = 50000
	baseBatchSmall  = 25000
	baseBatchTiny   = 10000
)

// Estimated-row thresholds used to derive a category when the configured one
// is absent (sizing only; strategy selection refuses to run without an
// explicit category).
const (
	rowsThresholdLarge  = 1000000
	rowsThresholdMedium = 100000
	rowsThresholdSmall  = 10000
)

// BatchAdvisor computes adaptive per-table batch sizes from static
// configuration and the throughput observed earlier in this process.
// The sample history is owned by the advisor instance so independent
// replicators never share tuning state.
type BatchAdvisor struct {
	batching config.BatchingConfig

	mu      sync.Mutex
	history map[string]PerformanceSample
}

// NewBatchAdvisor creates an advisor with the given batch bounds.
func NewBatchAdvisor(batching config.BatchingConfig) *BatchAdvisor {
	if batching.MinBatchSize <= 0 {
		batching.MinBatchSize = 1000
	}
	if batching.MaxBatchSize < batching.MinBatchSize {
		batching.MaxBatchSize = 100000
	}
	if batching.TargetBatchSeconds <= 0 {
		batching.TargetBatchSeconds = 30
	}
	return &BatchAdvisor{
		batching: batching,
		history:  make(map[string]PerformanceSample),
	}
}

// ComputeBatchSize returns the batch size to use for a table.
//
// Precedence: an explicit batch_size override wins verbatim; otherwise the
// performance category (or estimated rows when the category is absent) picks
// a base size; a prior performance sample then retunes toward batches that
// take roughly target_batch_seconds. The result is always clamped to the
// configured bounds and is always positive.
func (a *BatchAdvisor) ComputeBatchSize(tableName string, tbl *config.TableConfig) int {
	if tbl.BatchSize > 0 {
		return tbl.BatchSize
	}

	batch := baseBatchForCategory(categoryOrEstimate(tbl))

	if sample, ok := a.Sample(tableName); ok && sample.RecordsPerSecond > 0 {
		batch = int(sample.RecordsPerSecond * float64(a.batching.TargetBatchSeconds))
	}

	return a.Clamp(batch)
}

// Clamp bounds a batch size to [min_batch_size, max_batch_size].
func (a *BatchAdvisor) Clamp(batch int) int {
	if batch < a.batching.MinBatchSize {
		return a.batching.MinBatchSize
	}
	if batch > a.batching.MaxBatchSize {
		return a.batching.MaxBatchSize
	}
	return batch
}

// MinBatchSize returns the configured lower bound.
func (a *BatchAdvisor) MinBatchSize() int {
	return a.batching.MinBatchSize
}

// MaxBatchSize returns the configured upper bound.
func (a *BatchAdvisor) MaxBatchSize() int {
	return a.batching.MaxBatchSize
}

// RecordSample stores the throughput of a finished copy, overwriting any
// earlier sample for the table.
func (a *BatchAdvisor) RecordSample(tableName string, rows int64, duration time.Duration, strategy config.ExtractionStrategy) {
	sample := PerformanceSample{
		Duration:      duration,
		RowsProcessed: rows,
		Strategy:      strategy,
		Timestamp:     time.Now(),
	}
	if duration > 0 {
		sample.RecordsPerSecond = float64(rows) / duration.Seconds()
	}

	a.mu.Lock()
	a.history[tableName] = sample
	a.mu.Unlock()
}

// Sample returns the most recent performance sample for a table, if any.
func (a *BatchAdvisor) Sample(tableName string) (PerformanceSample, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	sample, ok := a.history[tableName]
	return sample, ok
}

// categoryOrEstimate returns the configured category, deriving one from
// estimated_rows when it is missing.
func categoryOrEstimate(tbl *config.TableConfig) config.PerformanceCategory {
	if tbl.PerformanceCategory.Valid() {
		return tbl.PerformanceCategory
	}
	switch {
	case tbl.EstimatedRows >= rowsThresholdLarge:
		return config.CategoryLarge
	case tbl.EstimatedRows >= rowsThresholdMedium:
		return config.CategoryMedium
	case tbl.EstimatedRows >= rowsThresholdSmall:
		return config.CategorySmall
	default:
		return config.CategoryTiny
	}
}

// baseBatchForCategory maps a category onto its base batch size.
func baseBatchForCategory(category config.PerformanceCategory) int {
	switch category {
	case config.CategoryLarge:
		return baseBatchLarge
	case config.CategoryMedium:
		return baseBatchMedium
	case config.CategorySmall:
		return baseBatchSmall
	default:
		return baseBatchTiny
	}
}
