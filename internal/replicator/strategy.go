package replicator

import (
	"context"
	"fmt"
	"time"

	"github.com/BenjaminRains/dbt-dental-clinic-sub001/internal/config"
	"github.com/BenjaminRains/dbt-dental-clinic-sub001/internal/errs"
	"github.com/BenjaminRains/dbt-dental-clinic-sub001/internal/logger"
)

// StrategySelector decides, per table, whether a copy should run as a full
// refresh or resume incrementally. All heuristic thresholds come from the
// thresholds config block.
type StrategySelector struct {
	thresholds config.ThresholdsConfig
	store      *TrackingStore
	advisor    *BatchAdvisor
	logger     *logger.Logger
	now        func() time.Time
}

// NewStrategySelector creates a selector. The advisor supplies prior-run
// performance samples; the store supplies last-copy times.
func NewStrategySelector(thresholds config.ThresholdsConfig, store *TrackingStore, advisor *BatchAdvisor, log *logger.Logger) *StrategySelector {
	if log == nil {
		log = logger.NewDefault()
	}
	applyThresholdDefaults(&thresholds)
	return &StrategySelector{
		thresholds: thresholds,
		store:      store,
		advisor:    advisor,
		logger:     log,
		now:        time.Now,
	}
}

func applyThresholdDefaults(t *config.ThresholdsConfig) {
	if t.FullRefreshGapDays <= 0 {
		t.FullRefreshGapDays = 30
	}
	if t.SmallTableGapDays <= 0 {
		t.SmallTableGapDays = 7
	}
	if t.SmallTableSizeMB <= 0 {
		t.SmallTableSizeMB = 100
	}
	if t.SlowIncrementalRate <= 0 {
		t.SlowIncrementalRate = 100
	}
}

// ShouldUseFullRefresh applies the staleness heuristics in order and returns
// the decision with a human-readable reason. First matching rule wins:
//
//  1. no incremental columns configured
//  2. no prior successful copy (bootstrap)
//  3. gap since last copy exceeds the per-table staleness threshold
//  4. the previous incremental run was chronically slow (missing index or
//     ballooning backlog; a full refresh resets the baseline)
//  5. small table already more than a week stale (a full scan is cheaper
//     than incremental bookkeeping)
//  6. otherwise incremental
func (s *StrategySelector) ShouldUseFullRefresh(ctx context.Context, tableName string, tbl *config.TableConfig) (bool, string) {
	if len(tbl.IncrementalColumns) == 0 {
		return true, "no incremental columns configured"
	}

	lastCopy := s.store.LastCopyTime(ctx, tableName)
	if lastCopy == nil {
		return true, "no prior successful copy"
	}

	gap := s.now().Sub(*lastCopy)
	gapDays := gap.Hours() / 24

	threshold := tbl.GapThresholdDays(s.thresholds)
	if gapDays > float64(threshold) {
		return true, fmt.Sprintf("last copy %.1f days ago exceeds %d-day threshold", gapDays, threshold)
	}

	if sample, ok := s.advisor.Sample(tableName); ok {
		if sample.Strategy == config.StrategyIncremental && sample.RecordsPerSecond < s.thresholds.SlowIncrementalRate {
			return true, fmt.Sprintf("previous incremental run was slow (%.1f rows/s < %.0f)",
				sample.RecordsPerSecond, s.thresholds.SlowIncrementalRate)
		}
	}

	if tbl.EstimatedSizeMB < s.thresholds.SmallTableSizeMB && gapDays > float64(s.thresholds.SmallTableGapDays) {
		return true, fmt.Sprintf("small table (%.0f MB) stale for %.1f days", tbl.EstimatedSizeMB, gapDays)
	}

	return false, "incremental copy viable"
}

// ExtractionStrategyFor returns the configured strategy, falling back to
// full_table with a logged warning when the configured value is not
// recognized.
func (s *StrategySelector) ExtractionStrategyFor(tableName string, tbl *config.TableConfig) config.ExtractionStrategy {
	if tbl.ExtractionStrategy.Valid() {
		return tbl.ExtractionStrategy
	}

	s.logger.Warnw("Unrecognized extraction strategy, falling back to full_table",
		"table", tableName,
		"configured", string(tbl.ExtractionStrategy),
	)
	return config.StrategyFullTable
}

// CopyMethodFor returns the table's performance category. The category gates
// batch sizing and session tuning and must be explicit; absence is a
// configuration error, never a silent default.
func (s *StrategySelector) CopyMethodFor(tableName string, tbl *config.TableConfig) (config.PerformanceCategory, error) {
	if !tbl.PerformanceCategory.Valid() {
		return "", errs.Configuration(tableName,
			"performance_category is required to derive a copy method")
	}
	return tbl.PerformanceCategory, nil
}

// SetNow overrides the clock. Used by tests.
func (s *StrategySelector) SetNow(now func() time.Time) {
	s.now = now
}
