package replicator

import (
	"context"
	"fmt"
	"time"

	"github.com/BenjaminRains/dbt-dental-clinic-sub001/internal/config"
	"github.com/BenjaminRains/dbt-dental-clinic-sub001/internal/database"
	"github.com/BenjaminRains/dbt-dental-clinic-sub001/internal/logger"
)

// Replicator ties the tracking store, batch advisor, strategy selector and
// bulk copier together and drives full replication runs. Tables are copied
// sequentially; a failed table is recorded and skipped, never fatal to the
// run.
type Replicator struct {
	cfg      *config.Config
	manager  *database.Manager
	store    *TrackingStore
	advisor  *BatchAdvisor
	selector *StrategySelector
	copier   *BulkCopier
	lagGuard *LagMonitor
	logger   *logger.Logger
}

// New wires a Replicator from an established connection manager. The manager
// must already be connected to both source and target.
func New(cfg *config.Config, manager *database.Manager, log *logger.Logger) (*Replicator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if manager == nil || manager.Source == nil || manager.Target == nil {
		return nil, fmt.Errorf("database manager is not connected")
	}
	if log == nil {
		log = logger.NewDefault()
	}

	store, err := NewTrackingStore(manager.Target, log)
	if err != nil {
		return nil, err
	}

	advisor := NewBatchAdvisor(cfg.Batching)
	selector := NewStrategySelector(cfg.Thresholds, store, advisor, log)

	copier, err := NewBulkCopier(manager.Source, manager.Target, advisor, log)
	if err != nil {
		return nil, err
	}

	lagGuard, err := NewLagMonitor(manager.Source, cfg.LagGuard, log)
	if err != nil {
		return nil, err
	}

	return &Replicator{
		cfg:      cfg,
		manager:  manager,
		store:    store,
		advisor:  advisor,
		selector: selector,
		copier:   copier,
		lagGuard: lagGuard,
		logger:   log,
	}, nil
}

// Store exposes the tracking store for status inspection commands.
func (r *Replicator) Store() *TrackingStore {
	return r.store
}

// Selector exposes the strategy selector for planning commands.
func (r *Replicator) Selector() *StrategySelector {
	return r.selector
}

// Advisor exposes the batch advisor for planning commands.
func (r *Replicator) Advisor() *BatchAdvisor {
	return r.advisor
}

// Initialize ensures the copy-status bookkeeping table exists on the target.
func (r *Replicator) Initialize(ctx context.Context) error {
	return r.store.InitializeTables(ctx)
}

// CopyTable replicates a single configured table. forceFull overrides
// strategy selection and rebuilds the table from scratch.
//
// The returned bool reports success; the CopyResult carries the details
// either way. Errors are contained here: the copy outcome is recorded in the
// tracking store and the error string lands in the result, so callers can
// keep processing other tables.
func (r *Replicator) CopyTable(ctx context.Context, tableName string, forceFull bool) (bool, CopyResult) {
	start := time.Now()
	result := CopyResult{Table: tableName}
	log := r.logger.WithTable(tableName)

	tbl, err := r.cfg.GetTable(tableName)
	if err != nil {
		result.Error = err.Error()
		log.Errorw("Unknown table", "error", err)
		return false, result
	}

	category, err := r.selector.CopyMethodFor(tableName, tbl)
	if err != nil {
		result.Error = err.Error()
		log.Errorw("Cannot determine copy method", "error", err)
		r.recordAttempt(ctx, tableName, 0, StatusFailed, "", "")
		return false, result
	}
	result.PerformanceCategory = category

	if err := r.lagGuard.WaitForLag(ctx); err != nil {
		result.Error = err.Error()
		return false, result
	}

	batchSize := r.advisor.ComputeBatchSize(tableName, tbl)
	result.BatchSize = batchSize

	fullRefresh, reason := forceFull, "forced by operator"
	if !forceFull {
		fullRefresh, reason = r.selector.ShouldUseFullRefresh(ctx, tableName, tbl)
	}

	var rows int64
	var watermark, watermarkColumn string
	var copyErr error

	if fullRefresh {
		result.Strategy = config.StrategyFullTable
		result.FullRefreshReason = reason
		log.Infow("Starting full refresh", "reason", reason, "batch_size", batchSize)

		rows, copyErr = r.copier.CopyFullTable(ctx, tbl, batchSize)
		if copyErr == nil {
			watermarkColumn, watermark = r.resolveFinalWatermark(ctx, tbl)
		}
	} else {
		strategy := r.selector.ExtractionStrategyFor(tableName, tbl)
		result.Strategy = strategy

		column, err := r.copier.ResolveIncrementalColumn(tbl)
		if err != nil {
			result.Error = err.Error()
			log.Errorw("Cannot resolve incremental column", "error", err)
			r.recordAttempt(ctx, tableName, 0, StatusFailed, "", "")
			return false, result
		}
		watermarkColumn = column

		prior := r.startingWatermark(ctx, tableName, column)

		switch strategy {
		case config.StrategyIncrementalChunked:
			rows, watermark, copyErr = r.copier.CopyIncrementalChunked(ctx, tbl, batchSize, prior)
		default:
			rows, watermark, copyErr = r.copier.CopyIncremental(ctx, tbl, batchSize, prior)
		}
		if copyErr == nil && watermark == "" {
			watermark = prior
		}
	}

	result.RowsCopied = rows
	result.Duration = time.Since(start)

	if copyErr != nil {
		result.Error = copyErr.Error()
		log.Errorw("Copy failed",
			"strategy", result.Strategy,
			"rows_copied", rows,
			"duration", result.Duration,
			"error", copyErr,
		)
		// Pages already committed stay on the target, but a failed attempt
		// records zero rows; the count would otherwise overstate a partial run.
		r.recordAttempt(ctx, tableName, 0, StatusFailed, "", "")
		return false, result
	}

	result.Watermark = watermark
	result.WatermarkColumn = watermarkColumn

	r.recordAttempt(ctx, tableName, rows, StatusSuccess, watermark, watermarkColumn)
	r.advisor.RecordSample(tableName, rows, result.Duration, result.Strategy)

	log.Infow("Copy complete",
		"strategy", result.Strategy,
		"rows_copied", rows,
		"duration", result.Duration,
		"watermark", watermark,
	)
	return true, result
}

// CopyAllTables replicates every configured table (or only the named subset)
// sequentially in priority order. Returns per-table success keyed by name.
func (r *Replicator) CopyAllTables(ctx context.Context, only []string, forceFull bool) map[string]bool {
	tables := r.cfg.TablesByPriority()
	if len(only) > 0 {
		wanted := make(map[string]bool, len(only))
		for _, name := range only {
			wanted[name] = true
		}
		filtered := tables[:0]
		for _, name := range tables {
			if wanted[name] {
				filtered = append(filtered, name)
			}
		}
		tables = filtered
	}

	return r.copyTables(ctx, tables, forceFull)
}

// CopyTablesByPriority replicates tables whose priority rank is at most
// maxRank (lower rank means more important).
func (r *Replicator) CopyTablesByPriority(ctx context.Context, maxRank int) map[string]bool {
	var tables []string
	for _, name := range r.cfg.TablesByPriority() {
		tbl := r.cfg.Tables[name]
		if tbl.PriorityRank() <= maxRank {
			tables = append(tables, name)
		}
	}
	return r.copyTables(ctx, tables, false)
}

// CopyTablesByCategory replicates only tables of the given performance
// category.
func (r *Replicator) CopyTablesByCategory(ctx context.Context, category config.PerformanceCategory) map[string]bool {
	var tables []string
	for _, name := range r.cfg.TablesByPriority() {
		if r.cfg.Tables[name].PerformanceCategory == category {
			tables = append(tables, name)
		}
	}
	return r.copyTables(ctx, tables, false)
}

func (r *Replicator) copyTables(ctx context.Context, tables []string, forceFull bool) map[string]bool {
	results := make(map[string]bool, len(tables))
	var succeeded int

	for _, name := range tables {
		if err := ctx.Err(); err != nil {
			r.logger.Warnw("Run interrupted, remaining tables skipped", "error", err)
			break
		}

		ok, _ := r.CopyTable(ctx, name, forceFull)
		results[name] = ok
		if ok {
			succeeded++
		}
	}

	r.logger.Infof("Replication run complete: %d/%d tables successful", succeeded, len(tables))
	return results
}

// startingWatermark resolves where an incremental copy resumes from: the
// last recorded successful watermark, falling back to the maximum value
// already present on the target. The target maximum is authoritative when
// bookkeeping was lost or the prior attempt failed, since it reflects rows
// actually committed.
func (r *Replicator) startingWatermark(ctx context.Context, tableName, column string) string {
	value, recordedColumn := r.store.LastWatermark(ctx, tableName)
	if value != "" && recordedColumn == column {
		return value
	}
	return r.store.TargetMaxWatermark(ctx, tableName, column)
}

// resolveFinalWatermark computes the watermark to record after a full
// refresh: the maximum incremental-column value now on the target, so later
// incremental runs continue from the refreshed state. An empty target (or
// an all-NULL column) falls back to the previously recorded watermark for
// the same column rather than resetting progress. Tables without
// incremental columns record no watermark.
func (r *Replicator) resolveFinalWatermark(ctx context.Context, tbl *config.TableConfig) (column, value string) {
	col, err := r.copier.ResolveIncrementalColumn(tbl)
	if err != nil {
		return "", ""
	}
	if max := r.store.TargetMaxWatermark(ctx, tbl.Name, col); max != "" {
		return col, max
	}
	if prior, recorded := r.store.LastWatermark(ctx, tbl.Name); prior != "" && recorded == col {
		return col, prior
	}
	return col, ""
}

// recordAttempt persists the copy outcome. Bookkeeping failures are logged
// and swallowed: a tracking write must never turn a successful copy into a
// failed run.
func (r *Replicator) recordAttempt(ctx context.Context, tableName string, rows int64, status CopyStatus, watermark, column string) {
	if err := r.store.RecordAttempt(ctx, tableName, rows, status, watermark, column); err != nil {
		r.logger.Warnw("Failed to record copy attempt",
			"table", tableName,
			"status", status,
			"error", err,
		)
	}
}
