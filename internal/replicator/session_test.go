package replicator

import (
	"context"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BenjaminRains/dbt-dental-clinic-sub001/internal/logger"
)

func TestAcquireBulkSession_AppliesAndRestoresPragmas(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec("SET FOREIGN_KEY_CHECKS = 0").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("SET UNIQUE_CHECKS = 0").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("SET autocommit = 0").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("SET SESSION bulk_insert_buffer_size = 268435456").WillReturnResult(sqlmock.NewResult(0, 0))

	ctx := context.Background()
	session, err := acquireBulkSession(ctx, db, logger.NewDefault())
	require.NoError(t, err)
	require.Len(t, session.restores, 4)

	mock.ExpectExec("SET FOREIGN_KEY_CHECKS = 1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("SET UNIQUE_CHECKS = 1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("SET autocommit = 1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("SET SESSION bulk_insert_buffer_size = DEFAULT").WillReturnResult(sqlmock.NewResult(0, 0))

	session.Close(ctx)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAcquireBulkSession_DeniedPragmaIsSkipped(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec("SET FOREIGN_KEY_CHECKS = 0").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("SET UNIQUE_CHECKS = 0").
		WillReturnError(fmt.Errorf("access denied; you need the SUPER privilege"))
	mock.ExpectExec("SET autocommit = 0").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("SET SESSION bulk_insert_buffer_size = 268435456").WillReturnResult(sqlmock.NewResult(0, 0))

	ctx := context.Background()
	session, err := acquireBulkSession(ctx, db, logger.NewDefault())
	require.NoError(t, err)

	// Only the settings that actually applied get restored.
	assert.Len(t, session.restores, 3)
	assert.NotContains(t, session.restores, "SET UNIQUE_CHECKS = 1")

	mock.ExpectExec("SET FOREIGN_KEY_CHECKS = 1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("SET autocommit = 1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("SET SESSION bulk_insert_buffer_size = DEFAULT").WillReturnResult(sqlmock.NewResult(0, 0))
	session.Close(ctx)
}

func TestBulkSession_CommitFlushesPage(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	for _, p := range bulkPragmas {
		mock.ExpectExec(p.apply).WillReturnResult(sqlmock.NewResult(0, 0))
	}

	ctx := context.Background()
	session, err := acquireBulkSession(ctx, db, logger.NewDefault())
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO `patient`").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("COMMIT").WillReturnResult(sqlmock.NewResult(0, 0))

	_, err = session.Exec(ctx, "INSERT INTO `patient` (`PatNum`) VALUES (?), (?)", 1, 2)
	require.NoError(t, err)
	require.NoError(t, session.Commit(ctx))
}
