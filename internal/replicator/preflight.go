package replicator

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/BenjaminRains/dbt-dental-clinic-sub001/internal/config"
	"github.com/BenjaminRains/dbt-dental-clinic-sub001/internal/logger"
)

// PreflightError represents a preflight check failure.
type PreflightError struct {
	Check   string
	Message string
	Tables  []string
}

func (e *PreflightError) Error() string {
	if len(e.Tables) > 0 {
		return fmt.Sprintf("%s: %s (tables: %v)", e.Check, e.Message, e.Tables)
	}
	return fmt.Sprintf("%s: %s", e.Check, e.Message)
}

// PreflightChecker verifies configured tables against the live source schema
// before any rows are moved: the table must exist, the configured primary key
// and incremental columns must exist, and unindexed incremental columns are
// flagged.
type PreflightChecker struct {
	db           *sql.DB
	sourceDBName string
	logger       *logger.Logger
}

// NewPreflightChecker creates a new preflight checker against the source.
func NewPreflightChecker(db *sql.DB, sourceDBName string, log *logger.Logger) (*PreflightChecker, error) {
	if db == nil {
		return nil, fmt.Errorf("database is nil")
	}
	if sourceDBName == "" {
		return nil, fmt.Errorf("source database name is required")
	}
	if log == nil {
		log = logger.NewDefault()
	}

	return &PreflightChecker{
		db:           db,
		sourceDBName: sourceDBName,
		logger:       log,
	}, nil
}

// RunAllChecks validates every configured table. Missing tables or columns
// fail the run; an unindexed incremental column only warns, since the copy
// still works, just slowly.
func (p *PreflightChecker) RunAllChecks(ctx context.Context, tables map[string]config.TableConfig) error {
	p.logger.Info("Running preflight checks...")

	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}

	if err := p.ValidateTablesExist(ctx, names); err != nil {
		return err
	}

	if err := p.ValidateColumns(ctx, tables); err != nil {
		return err
	}

	p.WarnUnindexedIncrementalColumns(ctx, tables)

	p.logger.Info("All preflight checks PASSED")
	return nil
}

// ValidateTablesExist checks that every configured table exists in the
// source database.
func (p *PreflightChecker) ValidateTablesExist(ctx context.Context, tables []string) error {
	p.logger.Debug("Checking table existence...")

	const query = `
		SELECT TABLE_NAME
		FROM information_schema.TABLES
		WHERE TABLE_SCHEMA = ?
		AND TABLE_NAME IN (?)`

	fullQuery, args := expandInList(query, p.sourceDBName, tables)

	rows, err := p.db.QueryContext(ctx, fullQuery, args...)
	if err != nil {
		return fmt.Errorf("failed to query tables: %w", err)
	}
	defer rows.Close()

	existing := make(map[string]bool)
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return err
		}
		existing[tableName] = true
	}

	if err := rows.Err(); err != nil {
		return err
	}

	var missing []string
	for _, table := range tables {
		if !existing[table] {
			missing = append(missing, table)
		}
	}

	if len(missing) > 0 {
		return &PreflightError{
			Check:   "TABLE_EXISTENCE_CHECK",
			Message: "Tables not found in source database",
			Tables:  missing,
		}
	}

	p.logger.Debugf("Table existence check PASSED (%d tables)", len(tables))
	return nil
}

// ValidateColumns checks that each table's configured primary key and
// incremental columns exist on the source.
func (p *PreflightChecker) ValidateColumns(ctx context.Context, tables map[string]config.TableConfig) error {
	p.logger.Debug("Checking configured columns...")

	var bad []string
	for name, tbl := range tables {
		columns, err := p.tableColumns(ctx, name)
		if err != nil {
			return fmt.Errorf("failed to read columns for %s: %w", name, err)
		}

		if pk := tbl.PrimaryKeyColumn(); !columns[strings.ToLower(pk)] {
			bad = append(bad, fmt.Sprintf("%s(primary_key=%s)", name, pk))
		}
		for _, col := range tbl.IncrementalColumns {
			if !columns[strings.ToLower(col)] {
				bad = append(bad, fmt.Sprintf("%s(incremental=%s)", name, col))
			}
		}
	}

	if len(bad) > 0 {
		return &PreflightError{
			Check:   "COLUMN_EXISTENCE_CHECK",
			Message: "Configured columns not found on source tables",
			Tables:  bad,
		}
	}

	p.logger.Debug("Column existence check PASSED")
	return nil
}

// WarnUnindexedIncrementalColumns flags incremental columns without an index;
// cursor pagination on an unindexed column degrades to repeated full scans.
func (p *PreflightChecker) WarnUnindexedIncrementalColumns(ctx context.Context, tables map[string]config.TableConfig) {
	for name, tbl := range tables {
		for _, col := range tbl.IncrementalColumns {
			indexed, err := p.isColumnIndexed(ctx, name, col)
			if err != nil {
				p.logger.Warnw("Failed to check index coverage",
					"table", name,
					"column", col,
					"error", err,
				)
				continue
			}
			if !indexed {
				p.logger.Warnf("Incremental column %s.%s has no index; cursor pagination will be slow. Add one with: CREATE INDEX idx_%s ON %s(%s)",
					name, col, col, name, col)
			}
		}
	}
}

// tableColumns returns the lowercased column names of a source table.
func (p *PreflightChecker) tableColumns(ctx context.Context, table string) (map[string]bool, error) {
	const query = `
		SELECT COLUMN_NAME
		FROM information_schema.COLUMNS
		WHERE TABLE_SCHEMA = ?
		AND TABLE_NAME = ?`

	rows, err := p.db.QueryContext(ctx, query, p.sourceDBName, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		columns[strings.ToLower(name)] = true
	}

	return columns, rows.Err()
}

// isColumnIndexed checks if a column participates in any index.
func (p *PreflightChecker) isColumnIndexed(ctx context.Context, table, column string) (bool, error) {
	const query = `
		SELECT COUNT(*)
		FROM information_schema.STATISTICS
		WHERE TABLE_SCHEMA = ?
		AND TABLE_NAME = ?
		AND COLUMN_NAME = ?`

	var count int
	err := p.db.QueryRowContext(ctx, query, p.sourceDBName, table, column).Scan(&count)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// expandInList rewrites the single "(?)" marker in query into one placeholder
// per value and returns the full argument list with schema prepended.
func expandInList(query, schema string, values []string) (string, []interface{}) {
	placeholders := make([]string, len(values))
	args := make([]interface{}, len(values)+1)
	args[0] = schema
	for i, v := range values {
		placeholders[i] = "?"
		args[i+1] = v
	}
	return strings.Replace(query, "(?)", "("+strings.Join(placeholders, ",")+")", 1), args
}

// SetLogger sets a custom logger for the preflight checker.
func (p *PreflightChecker) SetLogger(log *logger.Logger) {
	p.logger = log
}
