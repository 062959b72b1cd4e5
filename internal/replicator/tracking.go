package replicator

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/BenjaminRains/dbt-dental-clinic-sub001/internal/logger"
	"github.com/BenjaminRains/dbt-dental-clinic-sub001/internal/sqlutil"
	"github.com/BenjaminRains/dbt-dental-clinic-sub001/internal/types"
)

// copyStatusTable is the bookkeeping table maintained on the target database.
const copyStatusTable = "etl_copy_status"

// The earliest value a MySQL TIMESTAMP column accepts; used as the "never
// copied" sentinel instead of NULL so ordering comparisons stay simple.
const neverCopiedSentinel = "1970-01-02 00:00:01"

const createCopyStatusTableSQL = `
CREATE TABLE IF NOT EXISTS etl_copy_status (
	table_name VARCHAR(255) PRIMARY KEY,
	last_copied TIMESTAMP NOT NULL DEFAULT '1970-01-02 00:00:01',
	last_primary_value VARCHAR(255) NULL,
	primary_column_name VARCHAR(255) NULL,
	rows_copied BIGINT NOT NULL DEFAULT 0,
	copy_status VARCHAR(20) NOT NULL DEFAULT 'pending',
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
	INDEX idx_copy_status (copy_status)
) ENGINE=InnoDB;
`

// TrackingStore persists per-table copy state on the target database so
// incremental runs can resume from the last recorded watermark.
//
// Failure semantics: reads degrade to "no prior state" (forcing a safe full
// refresh), and write failures are reported to the caller who logs and
// continues - a bookkeeping failure must never abort a successful data copy.
type TrackingStore struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewTrackingStore creates a tracking store bound to the target database.
func NewTrackingStore(db *sql.DB, log *logger.Logger) (*TrackingStore, error) {
	if db == nil {
		return nil, fmt.Errorf("target database is nil")
	}
	if log == nil {
		log = logger.NewDefault()
	}

	return &TrackingStore{
		db:     db,
		logger: log,
	}, nil
}

// InitializeTables creates the copy-status table if it does not exist.
// This method is idempotent and safe to call on every startup.
func (s *TrackingStore) InitializeTables(ctx context.Context) error {
	s.logger.Debug("Initializing copy-status table")

	if _, err := s.db.ExecContext(ctx, createCopyStatusTableSQL); err != nil {
		return fmt.Errorf("failed to create %s table: %w", copyStatusTable, err)
	}

	return nil
}

// RecordAttempt upserts the status row for a table. The row is written on
// every attempt, success or failure, so repeated failures stay visible to
// operators. last_copied is always advanced to now; callers branch on
// copy_status to decide whether to trust last_primary_value.
func (s *TrackingStore) RecordAttempt(ctx context.Context, tableName string, rowsCopied int64, status CopyStatus, lastPrimaryValue, primaryColumnName string) error {
	var watermark, column any
	if lastPrimaryValue != "" {
		watermark = lastPrimaryValue
	}
	if primaryColumnName != "" {
		column = primaryColumnName
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO etl_copy_status (table_name, last_copied, last_primary_value, primary_column_name, rows_copied, copy_status)
		VALUES (?, NOW(), ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			last_copied = NOW(),
			last_primary_value = VALUES(last_primary_value),
			primary_column_name = VALUES(primary_column_name),
			rows_copied = VALUES(rows_copied),
			copy_status = VALUES(copy_status)`,
		tableName, watermark, column, rowsCopied, string(status),
	)
	if err != nil {
		s.logger.Errorw("Failed to record copy attempt",
			"table", tableName,
			"status", status,
			"error", err,
		)
		return fmt.Errorf("failed to record copy attempt for %s: %w", tableName, err)
	}

	s.logger.Debugw("Recorded copy attempt",
		"table", tableName,
		"rows", rowsCopied,
		"status", status,
		"watermark", lastPrimaryValue,
	)
	return nil
}

// LastCopyTime returns the last successful copy time for a table, or nil if
// the table was never successfully copied. Read errors degrade to nil with a
// warning so a broken status table forces a safe full refresh.
func (s *TrackingStore) LastCopyTime(ctx context.Context, tableName string) *time.Time {
	var lastCopied time.Time
	err := s.db.QueryRowContext(ctx,
		"SELECT last_copied FROM etl_copy_status WHERE table_name = ? AND copy_status = ?",
		tableName, string(StatusSuccess),
	).Scan(&lastCopied)

	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		s.logger.Warnw("Failed to read last copy time, treating as never copied",
			"table", tableName,
			"error", err,
		)
		return nil
	}

	return &lastCopied
}

// LastWatermark returns the last successfully recorded watermark value and
// its column name. Both are empty when no successful copy is recorded or the
// read fails; incremental copies then fall back to the target's own data.
func (s *TrackingStore) LastWatermark(ctx context.Context, tableName string) (value, column string) {
	var v, c sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT last_primary_value, primary_column_name FROM etl_copy_status WHERE table_name = ? AND copy_status = ?",
		tableName, string(StatusSuccess),
	).Scan(&v, &c)

	if err == sql.ErrNoRows {
		return "", ""
	}
	if err != nil {
		s.logger.Warnw("Failed to read watermark, treating as no prior state",
			"table", tableName,
			"error", err,
		)
		return "", ""
	}

	return v.String, c.String
}

// TargetMaxWatermark queries the target table directly for the maximum
// non-null value of the given column. It is the cross-check for the stored
// watermark when bookkeeping may lag the actually-copied data, e.g. after a
// crash mid-run. Returns "" when the table is empty or the query fails.
func (s *TrackingStore) TargetMaxWatermark(ctx context.Context, tableName, column string) string {
	query := fmt.Sprintf(
		"SELECT MAX(%s) FROM %s WHERE %s IS NOT NULL",
		sqlutil.QuoteIdentifier(column),
		sqlutil.QuoteIdentifier(tableName),
		sqlutil.QuoteIdentifier(column),
	)

	var max any
	err := s.db.QueryRowContext(ctx, query).Scan(&max)
	if err != nil {
		s.logger.Warnw("Failed to read max watermark from target",
			"table", tableName,
			"column", column,
			"error", err,
		)
		return ""
	}
	if max == nil {
		return ""
	}

	return types.FormatValue(max)
}

// Records returns all copy-status rows, ordered by table name. Used by the
// status command.
func (s *TrackingStore) Records(ctx context.Context) ([]CopyStatusRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT table_name, last_copied, last_primary_value, primary_column_name, rows_copied, copy_status, created_at, updated_at
		FROM etl_copy_status ORDER BY table_name ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query copy status: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.logger.Warnf("Failed to close rows: %v", err)
		}
	}()

	var records []CopyStatusRecord
	for rows.Next() {
		var rec CopyStatusRecord
		var watermark, column sql.NullString
		var status string
		if err := rows.Scan(&rec.TableName, &rec.LastCopied, &watermark, &column,
			&rec.RowsCopied, &status, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan copy status row: %w", err)
		}
		rec.LastPrimaryValue = watermark.String
		rec.PrimaryColumnName = column.String
		rec.CopyStatus = CopyStatus(status)
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating copy status rows: %w", err)
	}

	return records, nil
}

// SetLogger sets a custom logger for the tracking store.
func (s *TrackingStore) SetLogger(log *logger.Logger) {
	s.logger = log
}
