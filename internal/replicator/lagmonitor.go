package replicator

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/BenjaminRains/dbt-dental-clinic-sub001/internal/config"
	"github.com/BenjaminRains/dbt-dental-clinic-sub001/internal/logger"
)

// ReplicationStatus represents the source replica's replication state.
type ReplicationStatus struct {
	SecondsBehindSource sql.NullInt64 // NULL if the replica is stopped
	IORunning           string        // "Yes", "No", "Connecting"
	SQLRunning          string        // "Yes", "No"
	LastError           string
}

// LagMonitor guards copies that read from a MySQL read replica. It queries
// SHOW REPLICA STATUS (falling back to SHOW SLAVE STATUS on older servers)
// and pauses the run while the replica lags, so watermarks are never
// computed against stale data.
type LagMonitor struct {
	db        *sql.DB
	enabled   bool
	threshold int
	interval  time.Duration
	logger    *logger.Logger
}

// NewLagMonitor creates a lag monitor over the source connection. The guard
// is opt-in; a direct-primary source leaves it disabled.
func NewLagMonitor(sourceDB *sql.DB, cfg config.LagGuardConfig, log *logger.Logger) (*LagMonitor, error) {
	if log == nil {
		log = logger.NewDefault()
	}

	if !cfg.Enabled || sourceDB == nil {
		log.Debug("Source lag guard is disabled")
		return &LagMonitor{enabled: false, logger: log}, nil
	}

	threshold := cfg.ThresholdSeconds
	if threshold <= 0 {
		threshold = 10
	}

	interval := time.Duration(cfg.CheckIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}

	log.Infof("Source lag guard ENABLED (threshold: %ds, interval: %s)", threshold, interval)

	return &LagMonitor{
		db:        sourceDB,
		enabled:   true,
		threshold: threshold,
		interval:  interval,
		logger:    log,
	}, nil
}

// GetReplicationStatus queries the source for its replica status.
func (lm *LagMonitor) GetReplicationStatus(ctx context.Context) (*ReplicationStatus, error) {
	if !lm.enabled {
		return nil, nil
	}

	rows, err := lm.db.QueryContext(ctx, "SHOW REPLICA STATUS")
	if err != nil {
		// Legacy command for pre-8.0.22 servers.
		rows, err = lm.db.QueryContext(ctx, "SHOW SLAVE STATUS")
		if err != nil {
			return nil, fmt.Errorf("failed to query replication status: %w", err)
		}
	}
	defer func() {
		if err := rows.Close(); err != nil {
			lm.logger.Warnf("Failed to close rows in lag monitor: %v", err)
		}
	}()

	if !rows.Next() {
		return nil, fmt.Errorf("replication not configured on source server")
	}

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	values := make([]interface{}, len(columns))
	valuePtrs := make([]interface{}, len(columns))
	for i := range values {
		valuePtrs[i] = &values[i]
	}

	if err := rows.Scan(valuePtrs...); err != nil {
		return nil, fmt.Errorf("failed to scan replication status: %w", err)
	}

	// The column set differs by server version; locate fields by name.
	result := make(map[string]interface{})
	for i, col := range columns {
		val := values[i]
		if b, ok := val.([]byte); ok {
			val = string(b)
		}
		result[col] = val
	}

	status := &ReplicationStatus{}

	for _, key := range []string{"Seconds_Behind_Source", "Seconds_Behind_Master"} {
		if sbm, ok := result[key]; ok && sbm != nil {
			if val, ok := sbm.(int64); ok {
				status.SecondsBehindSource = sql.NullInt64{Int64: val, Valid: true}
				break
			}
		}
	}

	for _, key := range []string{"Replica_IO_Running", "Slave_IO_Running"} {
		if v, ok := result[key].(string); ok {
			status.IORunning = v
			break
		}
	}

	for _, key := range []string{"Replica_SQL_Running", "Slave_SQL_Running"} {
		if v, ok := result[key].(string); ok {
			status.SQLRunning = v
			break
		}
	}

	if lastErr, ok := result["Last_Error"].(string); ok {
		status.LastError = lastErr
	}

	return status, nil
}

// CheckLag reports whether replication lag is within the threshold. Returns
// acceptable (always true when disabled), the current lag in seconds, and
// any error talking to the source.
func (lm *LagMonitor) CheckLag(ctx context.Context) (bool, int, error) {
	if !lm.enabled {
		return true, 0, nil
	}

	status, err := lm.GetReplicationStatus(ctx)
	if err != nil {
		lm.logger.Errorf("Failed to check replication status: %v", err)
		return false, -1, err
	}

	if status.IORunning != "Yes" || status.SQLRunning != "Yes" {
		lm.logger.Errorf("Replication is NOT running (IO: %s, SQL: %s)", status.IORunning, status.SQLRunning)
		if status.LastError != "" {
			lm.logger.Errorf("Replication error: %s", status.LastError)
		}
		return false, -1, fmt.Errorf("replication is not running")
	}

	if !status.SecondsBehindSource.Valid {
		lm.logger.Warn("Seconds_Behind_Source is NULL (replica may be stopped)")
		return false, -1, fmt.Errorf("replication lag is NULL")
	}

	lag := int(status.SecondsBehindSource.Int64)
	if lag > lm.threshold {
		lm.logger.Warnf("Replication lag is HIGH: %d seconds (threshold: %d seconds)", lag, lm.threshold)
		return false, lag, nil
	}

	lm.logger.Debugf("Replication lag OK: %d seconds (threshold: %d seconds)", lag, lm.threshold)
	return true, lag, nil
}

// WaitForLag blocks until replication lag falls below the threshold. Called
// before each table copy so no table starts against a stale replica.
func (lm *LagMonitor) WaitForLag(ctx context.Context) error {
	if !lm.enabled {
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("lag monitoring cancelled: %w", err)
		}

		ok, lag, err := lm.CheckLag(ctx)
		if err != nil {
			lm.logger.Errorf("Replication check failed: %v (retrying in %s)", err, lm.interval)
		} else if !ok {
			lm.logger.Warnf("Pausing due to high replication lag (%d seconds, threshold: %d seconds)", lag, lm.threshold)
		} else {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lm.interval):
		}
	}
}

// IsEnabled returns whether the lag guard is active.
func (lm *LagMonitor) IsEnabled() bool {
	return lm.enabled
}

// GetThreshold returns the configured lag threshold in seconds.
func (lm *LagMonitor) GetThreshold() int {
	return lm.threshold
}

// GetInterval returns the configured check interval.
func (lm *LagMonitor) GetInterval() time.Duration {
	return lm.interval
}

// SetLogger sets a custom logger for the lag monitor.
func (lm *LagMonitor) SetLogger(log *logger.Logger) {
	lm.logger = log
}
