package replicator

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BenjaminRains/dbt-dental-clinic-sub001/internal/config"
	"github.com/BenjaminRains/dbt-dental-clinic-sub001/internal/logger"
)

func TestNewLagMonitor_DisabledByDefault(t *testing.T) {
	db, _, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	lm, err := NewLagMonitor(db, config.LagGuardConfig{}, logger.NewDefault())
	require.NoError(t, err)
	assert.False(t, lm.IsEnabled())

	// Disabled monitor never blocks and never touches the database.
	ok, lag, err := lm.CheckLag(context.Background())
	assert.True(t, ok)
	assert.Zero(t, lag)
	assert.NoError(t, err)
	assert.NoError(t, lm.WaitForLag(context.Background()))
}

func TestNewLagMonitor_EnabledDefaults(t *testing.T) {
	db, _, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	lm, err := NewLagMonitor(db, config.LagGuardConfig{Enabled: true}, logger.NewDefault())
	require.NoError(t, err)
	assert.True(t, lm.IsEnabled())
	assert.Equal(t, 10, lm.GetThreshold())
	assert.Equal(t, "5s", lm.GetInterval().String())
}

func replicaStatusRows(lag int64, io, sqlRunning string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"Replica_IO_Running", "Replica_SQL_Running", "Seconds_Behind_Source", "Last_Error",
	}).AddRow(io, sqlRunning, lag, "")
}

func TestCheckLag_WithinThreshold(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	lm, _ := NewLagMonitor(db, config.LagGuardConfig{
		Enabled: true, ThresholdSeconds: 10, CheckIntervalSeconds: 1,
	}, logger.NewDefault())

	mock.ExpectQuery("SHOW REPLICA STATUS").
		WillReturnRows(replicaStatusRows(3, "Yes", "Yes"))

	ok, lag, err := lm.CheckLag(context.Background())
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, lag)
}

func TestCheckLag_ExceedsThreshold(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	lm, _ := NewLagMonitor(db, config.LagGuardConfig{
		Enabled: true, ThresholdSeconds: 10, CheckIntervalSeconds: 1,
	}, logger.NewDefault())

	mock.ExpectQuery("SHOW REPLICA STATUS").
		WillReturnRows(replicaStatusRows(45, "Yes", "Yes"))

	ok, lag, err := lm.CheckLag(context.Background())
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 45, lag)
}

func TestCheckLag_ReplicationStopped(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	lm, _ := NewLagMonitor(db, config.LagGuardConfig{
		Enabled: true, ThresholdSeconds: 10, CheckIntervalSeconds: 1,
	}, logger.NewDefault())

	mock.ExpectQuery("SHOW REPLICA STATUS").
		WillReturnRows(replicaStatusRows(0, "No", "Yes"))

	ok, _, err := lm.CheckLag(context.Background())
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestGetReplicationStatus_LegacyColumnNames(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	lm, _ := NewLagMonitor(db, config.LagGuardConfig{
		Enabled: true, ThresholdSeconds: 10, CheckIntervalSeconds: 1,
	}, logger.NewDefault())

	// Older servers report Slave_*/Seconds_Behind_Master.
	mock.ExpectQuery("SHOW REPLICA STATUS").
		WillReturnRows(sqlmock.NewRows([]string{
			"Slave_IO_Running", "Slave_SQL_Running", "Seconds_Behind_Master", "Last_Error",
		}).AddRow("Yes", "Yes", int64(7), ""))

	status, err := lm.GetReplicationStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Yes", status.IORunning)
	assert.Equal(t, "Yes", status.SQLRunning)
	require.True(t, status.SecondsBehindSource.Valid)
	assert.Equal(t, int64(7), status.SecondsBehindSource.Int64)
}
