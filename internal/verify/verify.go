// Package verify compares replicated tables between source and target.
package verify

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/BenjaminRains/dbt-dental-clinic-sub001/internal/config"
	"github.com/BenjaminRains/dbt-dental-clinic-sub001/internal/logger"
	"github.com/BenjaminRains/dbt-dental-clinic-sub001/internal/sqlutil"
)

// Method defines how to verify data integrity.
type Method string

const (
	// MethodCount compares whole-table row counts (fast).
	MethodCount Method = "count"
	// MethodSHA256 hashes every row on both sides (slower but thorough).
	MethodSHA256 Method = "sha256"
	// MethodSkip skips verification entirely.
	MethodSkip Method = "skip"
)

// Result holds verification results for a single table.
type Result struct {
	Table        string
	Method       Method
	SourceCount  int64
	TargetCount  int64
	SourceHash   string
	TargetHash   string
	Match        bool
	ErrorMessage string
}

// Stats contains overall verification statistics.
type Stats struct {
	TablesVerified int
	TablesPassed   int
	TablesFailed   int
	TotalRows      int64
	Method         Method
}

// Verifier checks that replicated tables on the target match the source.
// Unlike the copy path it reads whole tables, so sha256 mode pages through
// rows by primary key rather than loading a table at once.
type Verifier struct {
	source    *sql.DB
	target    *sql.DB
	method    Method
	chunkSize int
	logger    *logger.Logger
}

// NewVerifier creates a verifier. An empty method defaults to count.
func NewVerifier(source, target *sql.DB, method Method, log *logger.Logger) (*Verifier, error) {
	if source == nil {
		return nil, fmt.Errorf("source database is nil")
	}
	if target == nil {
		return nil, fmt.Errorf("target database is nil")
	}
	if log == nil {
		log = logger.NewDefault()
	}

	if method == "" {
		method = MethodCount
	}

	return &Verifier{
		source:    source,
		target:    target,
		method:    method,
		chunkSize: 1000,
		logger:    log,
	}, nil
}

// VerifyTables verifies each configured table in order. The first mismatch
// stops the pass with a detailed error; the stats cover everything checked
// up to that point.
func (v *Verifier) VerifyTables(ctx context.Context, tables map[string]config.TableConfig, order []string) (*Stats, error) {
	if v.method == MethodSkip {
		v.logger.Info("Verification SKIPPED (method=skip)")
		return &Stats{Method: MethodSkip}, nil
	}

	stats := &Stats{Method: v.method}
	v.logger.Infof("Starting verification (method=%s) for %d tables", v.method, len(order))

	for _, table := range order {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("verification interrupted: %w", err)
		}

		tbl, ok := tables[table]
		if !ok {
			continue
		}

		var result *Result
		var err error
		switch v.method {
		case MethodCount:
			result, err = v.verifyByCount(ctx, table)
		case MethodSHA256:
			result, err = v.verifyBySHA256(ctx, table, tbl.PrimaryKeyColumn())
		default:
			return stats, fmt.Errorf("unsupported verification method: %s", v.method)
		}

		if err != nil {
			return stats, fmt.Errorf("verification failed for table %s: %w", table, err)
		}

		stats.TablesVerified++
		stats.TotalRows += result.SourceCount

		if result.Match {
			stats.TablesPassed++
			v.logger.Debugf("Verification PASSED for table %q (%d rows)", table, result.SourceCount)
		} else {
			stats.TablesFailed++
			v.logger.Errorf("Verification FAILED for table %q: %s", table, result.ErrorMessage)
			return stats, fmt.Errorf("verification mismatch in table %s: %s", table, result.ErrorMessage)
		}
	}

	v.logger.Infof("Verification complete: %d tables verified, %d passed, %d failed, %d total rows",
		stats.TablesVerified, stats.TablesPassed, stats.TablesFailed, stats.TotalRows)

	return stats, nil
}

// verifyByCount compares whole-table row counts between source and target.
func (v *Verifier) verifyByCount(ctx context.Context, table string) (*Result, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", sqlutil.QuoteIdentifier(table))

	var sourceCount int64
	if err := v.source.QueryRowContext(ctx, query).Scan(&sourceCount); err != nil {
		return nil, fmt.Errorf("failed to count source: %w", err)
	}

	var targetCount int64
	if err := v.target.QueryRowContext(ctx, query).Scan(&targetCount); err != nil {
		return nil, fmt.Errorf("failed to count target: %w", err)
	}

	result := &Result{
		Table:       table,
		Method:      MethodCount,
		SourceCount: sourceCount,
		TargetCount: targetCount,
		Match:       sourceCount == targetCount,
	}

	if !result.Match {
		result.ErrorMessage = fmt.Sprintf("count mismatch: source=%d, target=%d", sourceCount, targetCount)
	}

	return result, nil
}

// verifyBySHA256 compares SHA256 digests of all rows between source and
// target.
func (v *Verifier) verifyBySHA256(ctx context.Context, table, pkColumn string) (*Result, error) {
	sourceHash, sourceCount, err := v.computeTableHash(ctx, v.source, table, pkColumn)
	if err != nil {
		return nil, fmt.Errorf("failed to compute source hash: %w", err)
	}

	targetHash, targetCount, err := v.computeTableHash(ctx, v.target, table, pkColumn)
	if err != nil {
		return nil, fmt.Errorf("failed to compute target hash: %w", err)
	}

	result := &Result{
		Table:       table,
		Method:      MethodSHA256,
		SourceCount: sourceCount,
		TargetCount: targetCount,
		SourceHash:  sourceHash,
		TargetHash:  targetHash,
		Match:       sourceHash == targetHash && sourceCount == targetCount,
	}

	if !result.Match {
		if sourceCount != targetCount {
			result.ErrorMessage = fmt.Sprintf("count mismatch: source=%d, target=%d", sourceCount, targetCount)
		} else {
			result.ErrorMessage = fmt.Sprintf("hash mismatch: source=%s, target=%s", sourceHash[:16], targetHash[:16])
		}
	}

	return result, nil
}

// computeTableHash streams the whole table in primary-key order and feeds a
// deterministic per-row serialization into one SHA256 digest. Pagination is
// keyset-based so memory stays bounded regardless of table size.
func (v *Verifier) computeTableHash(ctx context.Context, db *sql.DB, table, pkColumn string) (string, int64, error) {
	hasher := sha256.New()
	var totalRows int64
	var cursor interface{}

	quotedTable := sqlutil.QuoteIdentifier(table)
	quotedPK := sqlutil.QuoteIdentifier(pkColumn)

	for {
		if err := ctx.Err(); err != nil {
			return "", 0, fmt.Errorf("hash computation interrupted: %w", err)
		}

		var query string
		var args []interface{}
		if cursor == nil {
			query = fmt.Sprintf("SELECT * FROM %s ORDER BY %s LIMIT ?", quotedTable, quotedPK)
			args = []interface{}{v.chunkSize}
		} else {
			query = fmt.Sprintf("SELECT * FROM %s WHERE %s > ? ORDER BY %s LIMIT ?",
				quotedTable, quotedPK, quotedPK)
			args = []interface{}{cursor, v.chunkSize}
		}

		chunkRows, lastPK, err := v.hashChunk(ctx, db, query, args, pkColumn, hasher)
		if err != nil {
			return "", 0, err
		}

		totalRows += chunkRows
		if chunkRows < int64(v.chunkSize) {
			break
		}
		cursor = lastPK
	}

	return hex.EncodeToString(hasher.Sum(nil)), totalRows, nil
}

type rowHasher interface {
	Write(p []byte) (int, error)
}

// hashChunk reads one keyset page, hashing rows as they stream. Returns the
// row count and the last primary key value for cursor advancement.
func (v *Verifier) hashChunk(ctx context.Context, db *sql.DB, query string, args []interface{}, pkColumn string, hasher rowHasher) (int64, interface{}, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return 0, nil, fmt.Errorf("failed to get columns: %w", err)
	}

	pkIdx := -1
	for i, col := range columns {
		if strings.EqualFold(col, pkColumn) {
			pkIdx = i
			break
		}
	}
	if pkIdx < 0 {
		return 0, nil, fmt.Errorf("primary key column %q not in result set", pkColumn)
	}

	var count int64
	var lastPK interface{}

	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return count, lastPK, fmt.Errorf("failed to scan row: %w", err)
		}

		hasher.Write([]byte(serializeRow(columns, values)))
		hasher.Write([]byte("\n"))
		count++

		lastPK = values[pkIdx]
		if b, ok := lastPK.([]byte); ok {
			lastPK = string(b)
		}
	}

	return count, lastPK, rows.Err()
}

// serializeRow converts a row to a deterministic string representation for
// hashing, col=val pairs joined by null bytes so embedded separators cannot
// alias.
func serializeRow(columns []string, values []interface{}) string {
	parts := make([]string, 0, len(columns))

	for i, col := range columns {
		val := values[i]
		var valStr string

		switch v := val.(type) {
		case nil:
			valStr = "NULL"
		case []byte:
			valStr = string(v)
		case int64:
			valStr = fmt.Sprintf("%d", v)
		case float64:
			valStr = fmt.Sprintf("%f", v)
		case bool:
			valStr = fmt.Sprintf("%t", v)
		case string:
			valStr = v
		default:
			valStr = fmt.Sprintf("%v", v)
		}

		parts = append(parts, fmt.Sprintf("%s=%s", col, valStr))
	}

	return strings.Join(parts, "\x00")
}

// SetChunkSize sets the page size for chunked SHA256 verification.
func (v *Verifier) SetChunkSize(size int) {
	if size > 0 {
		v.chunkSize = size
	}
}

// GetChunkSize returns the current chunk size.
func (v *Verifier) GetChunkSize() int {
	return v.chunkSize
}

// GetMethod returns the configured verification method.
func (v *Verifier) GetMethod() Method {
	return v.method
}

// SetLogger sets a custom logger for the verifier.
func (v *Verifier) SetLogger(log *logger.Logger) {
	v.logger = log
}
