package sqldb

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payapp-engine/aia"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, Postgres), mock
}

// =============================================================================
// PLACEHOLDER TESTS
// =============================================================================

func TestRebind(t *testing.T) {
	pg := &Store{dialect: Postgres}
	lite := &Store{dialect: SQLite}

	query := `UPDATE applications SET status = ? WHERE id = ? AND version = ?`

	assert.Equal(t, `UPDATE applications SET status = $1 WHERE id = $2 AND version = $3`, pg.rebind(query))
	assert.Equal(t, query, lite.rebind(query))
	assert.Equal(t, "postgres", Postgres.String())
	assert.Equal(t, "sqlite", SQLite.String())
}

// =============================================================================
// POSTGRES QUERY TESTS
// =============================================================================

func TestPostgres_NextApplicationNumber(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT COALESCE\(MAX\(application_number\), 0\) \+ 1 FROM applications WHERE project_id = \$1`).
		WithArgs("harbor-view").
		WillReturnRows(sqlmock.NewRows([]string{"next"}).AddRow(4))

	next, err := store.NextApplicationNumber(context.Background(), "harbor-view")

	require.NoError(t, err)
	assert.Equal(t, 4, next)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Commit_StaleVersion(t *testing.T) {
	// GIVEN: The version predicate matches no row
	// WHEN: Committing
	// THEN: The stored version is read back and reported; the tx rolls back

	store, mock := newMockStore(t)
	app := newTestApplication(t, "app-1", 1)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE applications SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT version FROM applications WHERE id = \$1`).
		WithArgs("app-1").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(7))
	mock.ExpectRollback()

	_, err := store.Commit(context.Background(), app, 5)

	var stale *aia.StaleWriteError
	require.ErrorAs(t, err, &stale)
	assert.Equal(t, aia.Version(5), stale.Expected)
	assert.Equal(t, aia.Version(7), stale.Actual)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Commit_NotFound(t *testing.T) {
	store, mock := newMockStore(t)
	app := newTestApplication(t, "app-1", 1)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE applications SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT version FROM applications WHERE id = \$1`).
		WithArgs("app-1").
		WillReturnRows(sqlmock.NewRows([]string{"version"}))
	mock.ExpectRollback()

	_, err := store.Commit(context.Background(), app, 1)

	assert.ErrorIs(t, err, aia.ErrApplicationNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Create_UniqueViolation(t *testing.T) {
	store, mock := newMockStore(t)
	app := newTestApplication(t, "app-1", 1)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO applications`).
		WillReturnError(errors.New(`ERROR: duplicate key value violates unique constraint "applications_project_id_application_number_key" (SQLSTATE 23505)`))
	mock.ExpectRollback()

	_, err := store.Create(context.Background(), app)

	assert.ErrorIs(t, err, aia.ErrDuplicateApplication)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Commit_WritesInOneTransaction(t *testing.T) {
	store, mock := newMockStore(t)
	app := newTestApplication(t, "app-1", 1)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE applications SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM line_items WHERE application_id = \$1`).
		WithArgs("app-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`INSERT INTO line_items`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO line_items`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT COALESCE\(MAX\(seq\), 0\) FROM status_history WHERE application_id = \$1`).
		WithArgs("app-1").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(0))
	mock.ExpectCommit()

	version, err := store.Commit(context.Background(), app, 1)

	require.NoError(t, err)
	assert.Equal(t, aia.Version(2), version)
	assert.NoError(t, mock.ExpectationsWereMet())
}
