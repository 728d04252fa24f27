package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gme-scheduler/core/internal/models"
)

func newHolidayRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestHolidayRepositoryDatesInRange(t *testing.T) {
	db, mock, cleanup := newHolidayRepoMock(t)
	defer cleanup()
	repo := NewHolidayRepository(db)

	start := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"date"}).AddRow(time.Date(2026, 7, 4, 0, 0, 0, 0, time.UTC))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT date FROM holidays WHERE date >= $1 AND date <= $2")).
		WithArgs(start, end).
		WillReturnRows(rows)

	dates, err := repo.DatesInRange(context.Background(), start, end)
	require.NoError(t, err)
	assert.True(t, dates["2026-07-04"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHolidayRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newHolidayRepoMock(t)
	defer cleanup()
	repo := NewHolidayRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO holidays")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "Independence Day", "2026-2027", "admin-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	holiday := &models.Holiday{
		Date:         time.Date(2026, 7, 4, 0, 0, 0, 0, time.UTC),
		Name:         "Independence Day",
		AcademicYear: "2026-2027",
		CreatedBy:    "admin-1",
	}
	require.NoError(t, repo.Create(context.Background(), holiday))
	assert.NotEmpty(t, holiday.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
