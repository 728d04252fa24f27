package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gme-scheduler/core/internal/models"
)

func newScheduleRunRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestScheduleRunRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newScheduleRunRepoMock(t)
	defer cleanup()
	repo := NewScheduleRunRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schedule_runs")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), string(models.AlgorithmHybrid), string(models.RunStatusInProgress), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	run := &models.ScheduleRun{
		RangeStart: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		RangeEnd:   time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC),
		Algorithm:  models.AlgorithmHybrid,
	}
	err := repo.Create(context.Background(), nil, run)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRunRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newScheduleRunRepoMock(t)
	defer cleanup()
	repo := NewScheduleRunRepository(db)

	rows := sqlmock.NewRows([]string{"id", "range_start", "range_end", "algorithm", "status", "solver_stats", "validation_report", "created_at", "finished_at"}).
		AddRow("run-1", time.Now(), time.Now(), string(models.AlgorithmGreedy), string(models.RunStatusSuccess), []byte(`{}`), []byte(`{}`), time.Now(), nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, range_start, range_end, algorithm, status, solver_stats, validation_report, created_at, finished_at FROM schedule_runs WHERE id = $1")).
		WithArgs("run-1").
		WillReturnRows(rows)

	run, err := repo.FindByID(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusSuccess, run.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRunRepositoryFinish(t *testing.T) {
	db, mock, cleanup := newScheduleRunRepoMock(t)
	defer cleanup()
	repo := NewScheduleRunRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE schedule_runs SET status = $1, solver_stats = $2, validation_report = $3, finished_at = $4 WHERE id = $5")).
		WithArgs(string(models.RunStatusSuccess), []byte(`{"branches":3}`), []byte(`{"hardViolations":[]}`), sqlmock.AnyArg(), "run-1").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Finish(context.Background(), nil, "run-1", models.RunStatusSuccess, []byte(`{"branches":3}`), []byte(`{"hardViolations":[]}`))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRunRepositoryFinishNotFound(t *testing.T) {
	db, mock, cleanup := newScheduleRunRepoMock(t)
	defer cleanup()
	repo := NewScheduleRunRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE schedule_runs SET status = $1, solver_stats = $2, validation_report = $3, finished_at = $4 WHERE id = $5")).
		WithArgs(string(models.RunStatusFailed), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "run-missing").
		WillReturnResult(sqlmock.NewResult(1, 0))

	err := repo.Finish(context.Background(), nil, "run-missing", models.RunStatusFailed, nil, nil)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
