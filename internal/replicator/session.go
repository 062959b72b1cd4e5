package replicator

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/BenjaminRains/dbt-dental-clinic-sub001/internal/logger"
)

// sessionPragma is one session variable relaxed for a bulk load, with the
// statement that restores the default.
type sessionPragma struct {
	apply   string
	restore string
}

// bulkPragmas are applied for large-table full loads: referential and unique
// checking is traded for throughput, scoped to one dedicated connection.
var bulkPragmas = []sessionPragma{
	{"SET FOREIGN_KEY_CHECKS = 0", "SET FOREIGN_KEY_CHECKS = 1"},
	{"SET UNIQUE_CHECKS = 0", "SET UNIQUE_CHECKS = 1"},
	{"SET autocommit = 0", "SET autocommit = 1"},
	{"SET SESSION bulk_insert_buffer_size = 268435456", "SET SESSION bulk_insert_buffer_size = DEFAULT"},
}

// bulkSession pins a single connection with relaxed session settings for the
// duration of one bulk load. Close restores every applied setting on all exit
// paths; a privilege-denied pragma is logged as a warning and skipped, and the
// load proceeds without that optimization.
type bulkSession struct {
	conn     *sql.Conn
	restores []string
	logger   *logger.Logger
}

// acquireBulkSession takes a dedicated connection from the pool and applies
// the relaxed bulk settings.
func acquireBulkSession(ctx context.Context, db *sql.DB, log *logger.Logger) (*bulkSession, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire bulk connection: %w", err)
	}

	s := &bulkSession{conn: conn, logger: log}

	for _, p := range bulkPragmas {
		if _, err := conn.ExecContext(ctx, p.apply); err != nil {
			// Typically "Access denied; you need the SUPER privilege".
			log.Warnw("Skipping session optimization",
				"statement", p.apply,
				"error", err,
			)
			continue
		}
		s.restores = append(s.restores, p.restore)
	}

	return s, nil
}

// Exec runs a statement on the pinned connection.
func (s *bulkSession) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.conn.ExecContext(ctx, query, args...)
}

// Commit flushes pending work when autocommit is off. Called after each page
// so an interrupted load keeps its completed pages.
func (s *bulkSession) Commit(ctx context.Context) error {
	if _, err := s.conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("failed to commit bulk page: %w", err)
	}
	return nil
}

// Close restores every applied session setting and releases the connection.
// Restore failures are logged, never raised; the connection is returned to
// the pool (or dropped) regardless.
func (s *bulkSession) Close(ctx context.Context) {
	for _, restore := range s.restores {
		if _, err := s.conn.ExecContext(ctx, restore); err != nil {
			s.logger.Warnw("Failed to restore session setting",
				"statement", restore,
				"error", err,
			)
		}
	}
	if err := s.conn.Close(); err != nil {
		s.logger.Warnf("Failed to release bulk connection: %v", err)
	}
}
