package replicator

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BenjaminRains/dbt-dental-clinic-sub001/internal/config"
	"github.com/BenjaminRains/dbt-dental-clinic-sub001/internal/logger"
)

func planTestConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Tables = map[string]config.TableConfig{
		"patient": {
			Name:                     "patient",
			PerformanceCategory:      config.CategoryMedium,
			ExtractionStrategy:       config.StrategyIncremental,
			IncrementalColumns:       []string{"DateTStamp"},
			PrimaryIncrementalColumn: "DateTStamp",
			PrimaryKey:               "PatNum",
			ProcessingPriority:       "high",
		},
		"zipcode": {
			Name:                "zipcode",
			PerformanceCategory: config.CategoryTiny,
			PrimaryKey:          "ZipCodeNum",
			ProcessingPriority:  "low",
		},
	}
	return cfg
}

func newTestPlanner(t *testing.T) (*Planner, sqlmock.Sqlmock, sqlmock.Sqlmock) {
	t.Helper()

	r, sourceMock, targetMock := newTestReplicator(t, planTestConfig())
	planner := NewPlanner(r.manager.Source, r.cfg, r, logger.NewDefault())
	return planner, sourceMock, targetMock
}

func TestPlan_IncrementalTableWithWatermark(t *testing.T) {
	planner, sourceMock, targetMock := newTestPlanner(t)

	// patient was copied two days ago on the same column: incremental stays
	// viable and resumes from the recorded watermark.
	expectLastCopy(targetMock, "patient", time.Now().Add(-48*time.Hour))
	targetMock.ExpectQuery("SELECT last_primary_value, primary_column_name FROM etl_copy_status").
		WithArgs("patient", "success").
		WillReturnRows(sqlmock.NewRows([]string{"last_primary_value", "primary_column_name"}).
			AddRow("2024-01-10 07:59:59", "DateTStamp"))
	sourceMock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM `patient` WHERE `DateTStamp` > \\?").
		WithArgs("2024-01-10 07:59:59").
		WillReturnRows(sqlmock.NewRows([]string{"cnt"}).AddRow(int64(1200)))

	// zipcode has no incremental columns: full refresh without touching the
	// status table.
	sourceMock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM `zipcode`").
		WillReturnRows(sqlmock.NewRows([]string{"cnt"}).AddRow(int64(42000)))

	plans, err := planner.Plan(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, plans.Len())

	// Priority order: patient (high) before zipcode (low).
	assert.Equal(t, []string{"patient", "zipcode"}, plans.Keys())

	patient, ok := plans.Get("patient")
	require.True(t, ok)
	assert.False(t, patient.FullRefresh)
	assert.Equal(t, config.StrategyIncremental, patient.Strategy)
	assert.Equal(t, "DateTStamp", patient.WatermarkColumn)
	assert.Equal(t, "2024-01-10 07:59:59", patient.Watermark)
	assert.Equal(t, int64(1200), patient.PendingRows)
	assert.Equal(t, 50000, patient.BatchSize)

	zipcode, ok := plans.Get("zipcode")
	require.True(t, ok)
	assert.True(t, zipcode.FullRefresh)
	assert.Contains(t, zipcode.FullRefreshReason, "no incremental columns")
	assert.Equal(t, config.StrategyFullTable, zipcode.Strategy)
	assert.Equal(t, int64(42000), zipcode.PendingRows)

	assert.NoError(t, sourceMock.ExpectationsWereMet())
	assert.NoError(t, targetMock.ExpectationsWereMet())
}

func TestPlan_EstimateFailureDegradesToUnknown(t *testing.T) {
	planner, sourceMock, targetMock := newTestPlanner(t)

	expectLastCopy(targetMock, "patient", time.Now().Add(-48*time.Hour))
	targetMock.ExpectQuery("SELECT last_primary_value, primary_column_name FROM etl_copy_status").
		WithArgs("patient", "success").
		WillReturnRows(sqlmock.NewRows([]string{"last_primary_value", "primary_column_name"}).
			AddRow("2024-01-10 07:59:59", "DateTStamp"))
	sourceMock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM `patient` WHERE `DateTStamp` > \\?").
		WillReturnError(assert.AnError)

	sourceMock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM `zipcode`").
		WillReturnError(assert.AnError)

	plans, err := planner.Plan(context.Background())
	require.NoError(t, err)

	patient, _ := plans.Get("patient")
	assert.Equal(t, int64(-1), patient.PendingRows)
	zipcode, _ := plans.Get("zipcode")
	assert.Equal(t, int64(-1), zipcode.PendingRows)
}

func TestPlan_MismatchedWatermarkColumnFallsBackToTargetMax(t *testing.T) {
	planner, sourceMock, targetMock := newTestPlanner(t)

	// Prior bookkeeping tracked a different column, so the recorded watermark
	// is not trusted and the target's own MAX is used instead.
	expectLastCopy(targetMock, "patient", time.Now().Add(-48*time.Hour))
	targetMock.ExpectQuery("SELECT last_primary_value, primary_column_name FROM etl_copy_status").
		WithArgs("patient", "success").
		WillReturnRows(sqlmock.NewRows([]string{"last_primary_value", "primary_column_name"}).
			AddRow("2024-01-09 00:00:00", "SecDateTEdit"))
	targetMock.ExpectQuery("SELECT MAX\\(`DateTStamp`\\) FROM `patient` WHERE `DateTStamp` IS NOT NULL").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow("2024-01-08 12:00:00"))
	sourceMock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM `patient` WHERE `DateTStamp` > \\?").
		WithArgs("2024-01-08 12:00:00").
		WillReturnRows(sqlmock.NewRows([]string{"cnt"}).AddRow(int64(300)))

	sourceMock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM `zipcode`").
		WillReturnRows(sqlmock.NewRows([]string{"cnt"}).AddRow(int64(0)))

	plans, err := planner.Plan(context.Background())
	require.NoError(t, err)

	patient, _ := plans.Get("patient")
	assert.Equal(t, "2024-01-08 12:00:00", patient.Watermark)
	assert.Equal(t, int64(300), patient.PendingRows)
}
