package replicator

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/BenjaminRains/dbt-dental-clinic-sub001/internal/config"
	"github.com/BenjaminRains/dbt-dental-clinic-sub001/internal/database"
	"github.com/BenjaminRains/dbt-dental-clinic-sub001/internal/errs"
	"github.com/BenjaminRains/dbt-dental-clinic-sub001/internal/logger"
	"github.com/BenjaminRains/dbt-dental-clinic-sub001/internal/sqlutil"
	"github.com/BenjaminRains/dbt-dental-clinic-sub001/internal/types"
)

// chunkedBatchCap is the upper bound of a page in chunked-incremental mode.
const chunkedBatchCap = 5000

// maxPlaceholdersPerStatement keeps multi-row statements under the MySQL
// prepared-statement placeholder limit (65535).
const maxPlaceholdersPerStatement = 60000

// expectedRateForCategory returns the throughput (rows/s) a healthy copy of
// this category is expected to sustain; the in-flight adaptive resize for
// large tables compares achieved page rates against it.
func expectedRateForCategory(category config.PerformanceCategory) float64 {
	switch category {
	case config.CategoryLarge:
		return 10000
	case config.CategoryMedium:
		return 7500
	case config.CategorySmall:
		return 5000
	default:
		return 2500
	}
}

// BulkCopier moves rows from the source to the target for one table at a
// time, via a full-table rebuild or a cursor-based incremental copy.
type BulkCopier struct {
	source  *sql.DB
	target  *sql.DB
	advisor *BatchAdvisor
	logger  *logger.Logger
}

// NewBulkCopier creates a new bulk copy executor.
func NewBulkCopier(source, target *sql.DB, advisor *BatchAdvisor, log *logger.Logger) (*BulkCopier, error) {
	if source == nil {
		return nil, fmt.Errorf("source database is nil")
	}
	if target == nil {
		return nil, fmt.Errorf("target database is nil")
	}
	if advisor == nil {
		return nil, fmt.Errorf("batch advisor is nil")
	}
	if log == nil {
		log = logger.NewDefault()
	}

	return &BulkCopier{
		source:  source,
		target:  target,
		advisor: advisor,
		logger:  log,
	}, nil
}

// CopyFullTable rebuilds the target table from scratch: the source's
// canonical CREATE TABLE is replayed against the target (drop-then-create),
// then every row is paged across. There is no durable checkpoint within a
// full copy; an interrupted run restarts from the clean slate.
//
// Large-category tables additionally get a relaxed bulk session, primary-key
// ordered pages, plain multi-row inserts (the target is known empty), and
// in-flight batch-size adaptation.
func (c *BulkCopier) CopyFullTable(ctx context.Context, tbl *config.TableConfig, batchSize int) (int64, error) {
	table := tbl.Name
	log := c.logger.WithTable(table)
	retry := database.ProfileForCategory(tbl.PerformanceCategory)
	isLarge := tbl.PerformanceCategory == config.CategoryLarge

	if err := c.recreateTable(ctx, table); err != nil {
		return 0, errs.Loading(table, string(config.StrategyFullTable), batchSize, "", err)
	}

	var session *bulkSession
	if isLarge {
		var err error
		session, err = acquireBulkSession(ctx, c.target, log)
		if err != nil {
			return 0, errs.Connection(table, "failed to acquire bulk session", err)
		}
		defer session.Close(ctx)
	}

	totalRows := c.countRows(ctx, table, "", "")
	expectedRate := expectedRateForCategory(tbl.PerformanceCategory)

	// Pages are primary-key ordered for large tables so long copies read the
	// clustered index sequentially; smaller tables scan unordered.
	ordered := isLarge && tbl.PrimaryKeyColumn() != ""

	var copied int64
	offset := int64(0)
	pageNum := 0

	for {
		if err := ctx.Err(); err != nil {
			return copied, fmt.Errorf("full copy interrupted: %w", err)
		}

		pageStart := time.Now()

		columns, rows, err := c.fetchFullPage(ctx, retry, table, tbl.PrimaryKeyColumn(), ordered, batchSize, offset)
		if err != nil && ordered {
			// A broken or missing key must not sink the copy; fall back to an
			// unordered scan.
			log.Warnw("Ordered page fetch failed, falling back to unordered scan", "error", err)
			ordered = false
			columns, rows, err = c.fetchFullPage(ctx, retry, table, "", false, batchSize, offset)
		}
		if err != nil {
			return copied, errs.Extraction(table, string(config.StrategyFullTable), batchSize, err)
		}

		if len(rows) == 0 {
			break
		}

		if isLarge {
			// Freshly recreated target: plain inserts, no conflict handling.
			if err := c.insertPage(ctx, retry, session, table, columns, rows); err != nil {
				return copied, errs.Loading(table, string(config.StrategyFullTable), batchSize, "", err)
			}
		} else {
			if err := c.upsertPage(ctx, retry, table, tbl.PrimaryKeyColumn(), columns, rows); err != nil {
				return copied, errs.Loading(table, string(config.StrategyFullTable), batchSize, "", err)
			}
		}

		pageNum++
		copied += int64(len(rows))
		offset += int64(len(rows))

		pageDuration := time.Since(pageStart)
		rate := pageRate(len(rows), pageDuration)
		log.Infow("Copied page",
			"page", pageNum,
			"rows", len(rows),
			"duration", pageDuration,
			"rows_per_sec", fmt.Sprintf("%.0f", rate),
			"progress", progressPercent(copied, totalRows),
		)

		if isLarge {
			batchSize = c.adaptBatchSize(log, batchSize, rate, expectedRate)
		}

		if len(rows) < batchSize {
			break
		}
	}

	log.Infow("Full copy complete", "rows", copied, "pages", pageNum)
	return copied, nil
}

// CopyIncremental copies rows newer than the given watermark using a
// keyset cursor on the incremental column with the primary key as the
// tiebreak: each ASC-ordered page moves the cursor to its last row's
// (column, primary key) pair, never to a row count, so concurrent inserts
// cannot cause skips and duplicate column values spanning a page boundary
// are still drained. The run only finishes once every row at the final
// cursor value has been copied, which keeps the recorded watermark safe
// for a strict greater-than resume on the next run.
//
// Returns the rows copied and the final cursor value. Pages are committed as
// they are written; on a mid-loop error the copied pages stay committed and
// the caller skips the watermark update, so the next run re-reads (and
// idempotently re-upserts) anything after the last recorded watermark.
func (c *BulkCopier) CopyIncremental(ctx context.Context, tbl *config.TableConfig, batchSize int, watermark string) (int64, string, error) {
	table := tbl.Name
	log := c.logger.WithTable(table)
	retry := database.ProfileForCategory(tbl.PerformanceCategory)

	column, err := c.ResolveIncrementalColumn(tbl)
	if err != nil {
		return 0, "", err
	}
	pkColumn := tbl.PrimaryKeyColumn()

	// Progress reporting only; correctness never depends on this count.
	pending := c.countRows(ctx, table, column, watermark)
	log.Infow("Starting incremental copy",
		"column", column,
		"watermark", watermark,
		"pending_rows", pending,
		"batch_size", batchSize,
	)

	cursor := watermark
	var cursorPK any
	var copied int64
	pageNum := 0

	for {
		if err := ctx.Err(); err != nil {
			return copied, cursor, fmt.Errorf("incremental copy interrupted: %w", err)
		}

		pageStart := time.Now()

		columns, rows, err := c.fetchIncrementalPage(ctx, retry, table, column, pkColumn, cursor, cursorPK, batchSize)
		if err != nil {
			return copied, cursor, errs.Extraction(table, string(config.StrategyIncremental), batchSize, err)
		}

		if len(rows) == 0 {
			break
		}

		if err := c.upsertPage(ctx, retry, table, tbl.PrimaryKeyColumn(), columns, rows); err != nil {
			return copied, cursor, errs.Loading(table, string(config.StrategyIncremental), batchSize, "", err)
		}

		// Advance to the (column, primary key) pair of the last row in the
		// page; pages are ordered ASC so that is the maximum observed.
		last := rows[len(rows)-1]
		if colIdx := columnIndex(columns, column); colIdx >= 0 {
			cursor = types.FormatValue(last[colIdx])
		}
		if pkIdx := columnIndex(columns, pkColumn); pkIdx >= 0 {
			cursorPK = last[pkIdx]
		}

		pageNum++
		copied += int64(len(rows))

		log.Infow("Copied incremental page",
			"page", pageNum,
			"rows", len(rows),
			"duration", time.Since(pageStart),
			"cursor", cursor,
			"progress", progressPercent(copied, pending),
		)

		// A short page signals end of available data.
		if len(rows) < batchSize {
			break
		}
	}

	log.Infow("Incremental copy complete", "rows", copied, "pages", pageNum, "watermark", cursor)
	return copied, cursor, nil
}

// CopyIncrementalChunked runs the incremental path with a deliberately
// smaller page, trading throughput for finer-grained crash recovery and a
// smaller memory footprint on very large tables.
func (c *BulkCopier) CopyIncrementalChunked(ctx context.Context, tbl *config.TableConfig, batchSize int, watermark string) (int64, string, error) {
	return c.CopyIncremental(ctx, tbl, chunkedBatchSize(batchSize), watermark)
}

// chunkedBatchSize is min(batchSize/2, 5000), floored at 1.
func chunkedBatchSize(batchSize int) int {
	chunk := batchSize / 2
	if chunk > chunkedBatchCap {
		chunk = chunkedBatchCap
	}
	if chunk < 1 {
		chunk = 1
	}
	return chunk
}

// ResolveIncrementalColumn picks the watermark column for a table: the
// designated primary incremental column when set, otherwise the first
// configured column with a warning.
//
// TODO: define combination semantics for tables with multiple incremental
// columns and no designated primary (OR vs AND across columns); until then
// the cursor tracks a single column.
func (c *BulkCopier) ResolveIncrementalColumn(tbl *config.TableConfig) (string, error) {
	if len(tbl.IncrementalColumns) == 0 {
		return "", errs.Configuration(tbl.Name, "no incremental columns configured")
	}

	if tbl.PrimaryIncrementalColumn != "" {
		return tbl.PrimaryIncrementalColumn, nil
	}

	c.logger.Warnw("No primary incremental column designated, using first configured column",
		"table", tbl.Name,
		"column", tbl.IncrementalColumns[0],
		"incremental_columns", tbl.IncrementalColumns,
	)
	return tbl.IncrementalColumns[0], nil
}

// recreateTable replays the source's canonical CREATE TABLE definition
// against the target, dropping any previous incarnation first so no stale
// rows or drifted schema survive.
func (c *BulkCopier) recreateTable(ctx context.Context, table string) error {
	var name, ddl string
	err := c.source.QueryRowContext(ctx,
		fmt.Sprintf("SHOW CREATE TABLE %s", sqlutil.QuoteIdentifier(table)),
	).Scan(&name, &ddl)
	if err != nil {
		return fmt.Errorf("failed to read source table definition: %w", err)
	}

	if _, err := c.target.ExecContext(ctx,
		fmt.Sprintf("DROP TABLE IF EXISTS %s", sqlutil.QuoteIdentifier(table)),
	); err != nil {
		return fmt.Errorf("failed to drop target table: %w", err)
	}

	if _, err := c.target.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to recreate target table: %w", err)
	}

	c.logger.Debugw("Recreated target table structure", "table", table)
	return nil
}

// fetchFullPage reads one LIMIT/OFFSET page for a full-table copy.
func (c *BulkCopier) fetchFullPage(ctx context.Context, retry database.RetryProfile, table, pkColumn string, ordered bool, batchSize int, offset int64) ([]string, [][]any, error) {
	query := fmt.Sprintf("SELECT * FROM %s", sqlutil.QuoteIdentifier(table))
	if ordered && pkColumn != "" {
		query += fmt.Sprintf(" ORDER BY %s", sqlutil.QuoteIdentifier(pkColumn))
	}
	query += " LIMIT ? OFFSET ?"

	return c.fetchPage(ctx, retry, query, batchSize, offset)
}

// fetchIncrementalPage reads one keyset page: rows beyond the
// (column, primary key) cursor, ordered by the column with the primary key
// as the tiebreak. The first page of a run has no primary-key position yet
// and uses a strict column predicate; a recorded watermark is only written
// after all rows at its value were copied, so the strict resume is safe.
func (c *BulkCopier) fetchIncrementalPage(ctx context.Context, retry database.RetryProfile, table, column, pkColumn, cursor string, cursorPK any, batchSize int) ([]string, [][]any, error) {
	quotedCol := sqlutil.QuoteIdentifier(column)

	orderBy := fmt.Sprintf("ORDER BY %s ASC", quotedCol)
	quotedPK := ""
	if pkColumn != "" && pkColumn != column {
		quotedPK = sqlutil.QuoteIdentifier(pkColumn)
		orderBy = fmt.Sprintf("ORDER BY %s ASC, %s ASC", quotedCol, quotedPK)
	}

	switch {
	case cursor == "":
		query := fmt.Sprintf("SELECT * FROM %s %s LIMIT ?",
			sqlutil.QuoteIdentifier(table), orderBy)
		return c.fetchPage(ctx, retry, query, batchSize)
	case quotedPK == "" || cursorPK == nil:
		query := fmt.Sprintf("SELECT * FROM %s WHERE %s > ? %s LIMIT ?",
			sqlutil.QuoteIdentifier(table), quotedCol, orderBy)
		return c.fetchPage(ctx, retry, query, cursor, batchSize)
	default:
		query := fmt.Sprintf("SELECT * FROM %s WHERE %s > ? OR (%s = ? AND %s > ?) %s LIMIT ?",
			sqlutil.QuoteIdentifier(table), quotedCol, quotedCol, quotedPK, orderBy)
		return c.fetchPage(ctx, retry, query, cursor, cursor, cursorPK, batchSize)
	}
}

// fetchPage executes a page query, scans every row generically, and
// sanitizes the values. A malformed value is reduced or nulled by the
// cleaning step rather than aborting the batch.
func (c *BulkCopier) fetchPage(ctx context.Context, retry database.RetryProfile, query string, args ...any) ([]string, [][]any, error) {
	var columns []string
	var page [][]any

	err := retry.Do(ctx, func() error {
		columns = nil
		page = nil

		rows, err := c.source.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		columns, err = rows.Columns()
		if err != nil {
			return fmt.Errorf("failed to get column names: %w", err)
		}

		for rows.Next() {
			values := make([]any, len(columns))
			valuePtrs := make([]any, len(columns))
			for i := range values {
				valuePtrs[i] = &values[i]
			}

			if err := rows.Scan(valuePtrs...); err != nil {
				return fmt.Errorf("failed to scan row: %w", err)
			}

			page = append(page, types.CleanRow(values))
		}

		return rows.Err()
	})
	if err != nil {
		return nil, nil, err
	}

	return columns, page, nil
}

// insertPage writes a page with plain multi-row INSERTs on the relaxed bulk
// session, splitting oversized pages to respect the placeholder limit. Each
// page is committed so interruption keeps completed pages.
func (c *BulkCopier) insertPage(ctx context.Context, retry database.RetryProfile, session *bulkSession, table string, columns []string, rows [][]any) error {
	for _, chunk := range splitRows(rows, len(columns)) {
		query := sqlutil.BuildInsertQuery(table, columns, len(chunk))
		args := sqlutil.FlattenRows(chunk)

		if err := retry.Do(ctx, func() error {
			_, err := session.Exec(ctx, query, args...)
			return err
		}); err != nil {
			return fmt.Errorf("bulk insert failed: %w", err)
		}
	}

	return session.Commit(ctx)
}

// upsertPage writes a page with INSERT ... ON DUPLICATE KEY UPDATE so
// re-copied rows converge on the source values without duplicates. The
// primary key is excluded from the update clause.
func (c *BulkCopier) upsertPage(ctx context.Context, retry database.RetryProfile, table, primaryKey string, columns []string, rows [][]any) error {
	for _, chunk := range splitRows(rows, len(columns)) {
		query := sqlutil.BuildUpsertQuery(table, columns, primaryKey, len(chunk))
		args := sqlutil.FlattenRows(chunk)

		if err := retry.Do(ctx, func() error {
			_, err := c.target.ExecContext(ctx, query, args...)
			return err
		}); err != nil {
			return fmt.Errorf("bulk upsert failed: %w", err)
		}
	}

	return nil
}

// adaptBatchSize retunes a large table's in-flight batch size against the
// expected rate for its category: halved when the page ran at less than half
// the expected rate, grown 50% when it beat twice the expected rate. Always
// bounded by the advisor's limits.
func (c *BulkCopier) adaptBatchSize(log *logger.Logger, batchSize int, achieved, expected float64) int {
	adjusted := batchSize
	switch {
	case achieved < expected/2:
		adjusted = batchSize / 2
	case achieved > expected*2:
		adjusted = batchSize + batchSize/2
	default:
		return batchSize
	}

	adjusted = c.advisor.Clamp(adjusted)
	if adjusted != batchSize {
		log.Infow("Adjusted in-flight batch size",
			"from", batchSize,
			"to", adjusted,
			"achieved_rows_per_sec", fmt.Sprintf("%.0f", achieved),
			"expected_rows_per_sec", fmt.Sprintf("%.0f", expected),
		)
	}
	return adjusted
}

// countRows counts rows for progress reporting: all rows when cursor is
// empty, rows beyond the cursor otherwise. Errors degrade to -1 (unknown).
func (c *BulkCopier) countRows(ctx context.Context, table, column, cursor string) int64 {
	var query string
	var args []any

	switch {
	case column == "" || cursor == "":
		// No watermark yet: everything is pending.
		query = fmt.Sprintf("SELECT COUNT(*) FROM %s", sqlutil.QuoteIdentifier(table))
	default:
		query = fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s > ?",
			sqlutil.QuoteIdentifier(table), sqlutil.QuoteIdentifier(column))
		args = append(args, cursor)
	}

	var count int64
	if err := c.source.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		c.logger.Warnw("Failed to count rows for progress reporting",
			"table", table,
			"error", err,
		)
		return -1
	}
	return count
}

// splitRows partitions a page so each chunk stays under the placeholder
// limit.
func splitRows(rows [][]any, columnCount int) [][][]any {
	if columnCount <= 0 || len(rows) == 0 {
		return nil
	}

	maxRows := maxPlaceholdersPerStatement / columnCount
	if maxRows < 1 {
		maxRows = 1
	}
	if len(rows) <= maxRows {
		return [][][]any{rows}
	}

	var chunks [][][]any
	for start := 0; start < len(rows); start += maxRows {
		end := start + maxRows
		if end > len(rows) {
			end = len(rows)
		}
		chunks = append(chunks, rows[start:end])
	}
	return chunks
}

// columnIndex returns the index of name in columns, or -1.
func columnIndex(columns []string, name string) int {
	for i, c := range columns {
		if c == name {
			return i
		}
	}
	return -1
}

// pageRate computes rows/second for a page, guarding the zero-duration case.
func pageRate(rows int, d time.Duration) float64 {
	if d <= 0 {
		return float64(rows)
	}
	return float64(rows) / d.Seconds()
}

// progressPercent renders copied/total as a percentage string, or "n/a" when
// the total is unknown.
func progressPercent(copied, total int64) string {
	if total <= 0 {
		return "n/a"
	}
	pct := float64(copied) / float64(total) * 100
	if pct > 100 {
		pct = 100
	}
	return fmt.Sprintf("%.1f%%", pct)
}
