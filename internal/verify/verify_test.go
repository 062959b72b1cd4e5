package verify

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BenjaminRains/dbt-dental-clinic-sub001/internal/config"
	"github.com/BenjaminRains/dbt-dental-clinic-sub001/internal/logger"
)

func newTestVerifier(t *testing.T, method Method) (*Verifier, sqlmock.Sqlmock, sqlmock.Sqlmock) {
	t.Helper()

	source, sourceMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = source.Close() })

	target, targetMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = target.Close() })

	v, err := NewVerifier(source, target, method, logger.NewDefault())
	require.NoError(t, err)

	return v, sourceMock, targetMock
}

func testTables() map[string]config.TableConfig {
	return map[string]config.TableConfig{
		"patient":    {Name: "patient", PrimaryKey: "PatNum"},
		"definition": {Name: "definition", PrimaryKey: "DefNum"},
	}
}

func TestNewVerifier(t *testing.T) {
	source, _, err := sqlmock.New()
	require.NoError(t, err)
	defer source.Close()
	target, _, err := sqlmock.New()
	require.NoError(t, err)
	defer target.Close()

	t.Run("nil source rejected", func(t *testing.T) {
		_, err := NewVerifier(nil, target, MethodCount, nil)
		assert.Error(t, err)
	})

	t.Run("nil target rejected", func(t *testing.T) {
		_, err := NewVerifier(source, nil, MethodCount, nil)
		assert.Error(t, err)
	})

	t.Run("empty method defaults to count", func(t *testing.T) {
		v, err := NewVerifier(source, target, "", nil)
		require.NoError(t, err)
		assert.Equal(t, MethodCount, v.GetMethod())
		assert.Equal(t, 1000, v.GetChunkSize())
	})
}

func TestVerifyTables_CountMatch(t *testing.T) {
	v, sourceMock, targetMock := newTestVerifier(t, MethodCount)

	for _, tbl := range []string{"definition", "patient"} {
		sourceMock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM `" + tbl + "`").
			WillReturnRows(sqlmock.NewRows([]string{"cnt"}).AddRow(int64(100)))
		targetMock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM `" + tbl + "`").
			WillReturnRows(sqlmock.NewRows([]string{"cnt"}).AddRow(int64(100)))
	}

	stats, err := v.VerifyTables(context.Background(), testTables(), []string{"definition", "patient"})
	require.NoError(t, err)

	assert.Equal(t, 2, stats.TablesVerified)
	assert.Equal(t, 2, stats.TablesPassed)
	assert.Equal(t, 0, stats.TablesFailed)
	assert.Equal(t, int64(200), stats.TotalRows)
	assert.NoError(t, sourceMock.ExpectationsWereMet())
	assert.NoError(t, targetMock.ExpectationsWereMet())
}

func TestVerifyTables_CountMismatchStopsPass(t *testing.T) {
	v, sourceMock, targetMock := newTestVerifier(t, MethodCount)

	sourceMock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM `definition`").
		WillReturnRows(sqlmock.NewRows([]string{"cnt"}).AddRow(int64(100)))
	targetMock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM `definition`").
		WillReturnRows(sqlmock.NewRows([]string{"cnt"}).AddRow(int64(98)))

	stats, err := v.VerifyTables(context.Background(), testTables(), []string{"definition", "patient"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "count mismatch: source=100, target=98")

	// patient is never reached.
	assert.Equal(t, 1, stats.TablesVerified)
	assert.Equal(t, 1, stats.TablesFailed)
	assert.NoError(t, sourceMock.ExpectationsWereMet())
}

func TestVerifyTables_SkipMethod(t *testing.T) {
	v, sourceMock, _ := newTestVerifier(t, MethodSkip)

	stats, err := v.VerifyTables(context.Background(), testTables(), []string{"patient"})
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TablesVerified)
	assert.Equal(t, MethodSkip, stats.Method)
	assert.NoError(t, sourceMock.ExpectationsWereMet())
}

func TestVerifyTables_UnknownTableSkipped(t *testing.T) {
	v, sourceMock, targetMock := newTestVerifier(t, MethodCount)

	stats, err := v.VerifyTables(context.Background(), testTables(), []string{"not_configured"})
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TablesVerified)
	assert.NoError(t, sourceMock.ExpectationsWereMet())
	assert.NoError(t, targetMock.ExpectationsWereMet())
}

func TestVerifyTables_QueryErrorSurfaces(t *testing.T) {
	v, sourceMock, _ := newTestVerifier(t, MethodCount)

	sourceMock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM `definition`").
		WillReturnError(assert.AnError)

	_, err := v.VerifyTables(context.Background(), testTables(), []string{"definition"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "verification failed for table definition")
}

func definitionRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"DefNum", "ItemName"}).
		AddRow(int64(1), "Adult Cleaning").
		AddRow(int64(2), "Child Cleaning")
}

func TestVerifyTables_SHA256Match(t *testing.T) {
	v, sourceMock, targetMock := newTestVerifier(t, MethodSHA256)

	// Both sides return the identical two-row page; a page shorter than the
	// chunk size ends the scan.
	sourceMock.ExpectQuery("SELECT \\* FROM `definition` ORDER BY `DefNum` LIMIT \\?").
		WithArgs(1000).
		WillReturnRows(definitionRows())
	targetMock.ExpectQuery("SELECT \\* FROM `definition` ORDER BY `DefNum` LIMIT \\?").
		WithArgs(1000).
		WillReturnRows(definitionRows())

	stats, err := v.VerifyTables(context.Background(), testTables(), []string{"definition"})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TablesPassed)
	assert.Equal(t, int64(2), stats.TotalRows)
	assert.NoError(t, sourceMock.ExpectationsWereMet())
	assert.NoError(t, targetMock.ExpectationsWereMet())
}

func TestVerifyTables_SHA256ContentMismatch(t *testing.T) {
	v, sourceMock, targetMock := newTestVerifier(t, MethodSHA256)

	sourceMock.ExpectQuery("SELECT \\* FROM `definition` ORDER BY `DefNum` LIMIT \\?").
		WillReturnRows(definitionRows())
	targetMock.ExpectQuery("SELECT \\* FROM `definition` ORDER BY `DefNum` LIMIT \\?").
		WillReturnRows(sqlmock.NewRows([]string{"DefNum", "ItemName"}).
			AddRow(int64(1), "Adult Cleaning").
			AddRow(int64(2), "CHILD CLEANING"))

	_, err := v.VerifyTables(context.Background(), testTables(), []string{"definition"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hash mismatch")
}

func TestVerifyTables_SHA256KeysetPagination(t *testing.T) {
	v, sourceMock, targetMock := newTestVerifier(t, MethodSHA256)
	v.SetChunkSize(2)

	// Source pages: a full page of 2 advances the cursor, the short second
	// page ends the scan.
	sourceMock.ExpectQuery("SELECT \\* FROM `definition` ORDER BY `DefNum` LIMIT \\?").
		WithArgs(2).
		WillReturnRows(definitionRows())
	sourceMock.ExpectQuery("SELECT \\* FROM `definition` WHERE `DefNum` > \\? ORDER BY `DefNum` LIMIT \\?").
		WithArgs(int64(2), 2).
		WillReturnRows(sqlmock.NewRows([]string{"DefNum", "ItemName"}).
			AddRow(int64(3), "Exam"))

	targetMock.ExpectQuery("SELECT \\* FROM `definition` ORDER BY `DefNum` LIMIT \\?").
		WithArgs(2).
		WillReturnRows(definitionRows())
	targetMock.ExpectQuery("SELECT \\* FROM `definition` WHERE `DefNum` > \\? ORDER BY `DefNum` LIMIT \\?").
		WithArgs(int64(2), 2).
		WillReturnRows(sqlmock.NewRows([]string{"DefNum", "ItemName"}).
			AddRow(int64(3), "Exam"))

	stats, err := v.VerifyTables(context.Background(), testTables(), []string{"definition"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalRows)
	assert.NoError(t, sourceMock.ExpectationsWereMet())
	assert.NoError(t, targetMock.ExpectationsWereMet())
}

func TestVerifyTables_SHA256CountMismatch(t *testing.T) {
	v, sourceMock, targetMock := newTestVerifier(t, MethodSHA256)

	sourceMock.ExpectQuery("SELECT \\* FROM `definition` ORDER BY `DefNum` LIMIT \\?").
		WillReturnRows(definitionRows())
	targetMock.ExpectQuery("SELECT \\* FROM `definition` ORDER BY `DefNum` LIMIT \\?").
		WillReturnRows(sqlmock.NewRows([]string{"DefNum", "ItemName"}).
			AddRow(int64(1), "Adult Cleaning"))

	_, err := v.VerifyTables(context.Background(), testTables(), []string{"definition"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "count mismatch: source=2, target=1")
}

func TestSerializeRow(t *testing.T) {
	cols := []string{"id", "name", "note"}
	got := serializeRow(cols, []interface{}{int64(1), []byte("Ann"), nil})
	assert.Equal(t, "id=1\x00name=Ann\x00note=NULL", got)
}

func TestSetChunkSize_IgnoresNonPositive(t *testing.T) {
	v, _, _ := newTestVerifier(t, MethodSHA256)
	v.SetChunkSize(0)
	assert.Equal(t, 1000, v.GetChunkSize())
	v.SetChunkSize(-5)
	assert.Equal(t, 1000, v.GetChunkSize())
}
