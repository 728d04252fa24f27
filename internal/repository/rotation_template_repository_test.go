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

func newRotationTemplateMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestRotationTemplateRepositoryUpsertAndGetByCode(t *testing.T) {
	db, mock, cleanup := newRotationTemplateMock(t)
	defer cleanup()
	repo := NewRotationTemplateRepository(db)

	mock.ExpectExec("INSERT INTO rotation_templates").
		WithArgs(sqlmock.AnyArg(), "OUTPT", "Continuity Clinic", string(models.RotationTypeOutpatient), string(models.CalendarModeBlockHalf), true, true, sqlmock.AnyArg(), 3, 5, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Upsert(context.Background(), &models.RotationTemplate{
		Code:                 "OUTPT",
		Name:                 "Continuity Clinic",
		RotationType:         models.RotationTypeOutpatient,
		CalendarMode:         models.CalendarModeBlockHalf,
		IsSolverEligible:     true,
		IsBlockHalfRotation:  true,
		MinActivitiesPerWeek: 3,
		MaxActivitiesPerWeek: 5,
	})
	require.NoError(t, err)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "code", "name", "rotation_type", "calendar_mode", "is_solver_eligible", "is_block_half_rotation", "week_structure", "min_activities_per_week", "max_activities_per_week", "created_at", "updated_at"}).
		AddRow("tmpl-1", "OUTPT", "Continuity Clinic", string(models.RotationTypeOutpatient), string(models.CalendarModeBlockHalf), true, true, nil, 3, 5, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, code, name, rotation_type, calendar_mode, is_solver_eligible, is_block_half_rotation, week_structure, min_activities_per_week, max_activities_per_week, created_at, updated_at FROM rotation_templates WHERE code = $1")).
		WithArgs("OUTPT").
		WillReturnRows(rows)

	tmpl, err := repo.GetByCode(context.Background(), "OUTPT")
	require.NoError(t, err)
	assert.Equal(t, "tmpl-1", tmpl.ID)
	assert.True(t, tmpl.IsSolverEligible)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRotationTemplateRepositoryListSolverEligible(t *testing.T) {
	db, mock, cleanup := newRotationTemplateMock(t)
	defer cleanup()
	repo := NewRotationTemplateRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "code", "name", "rotation_type", "calendar_mode", "is_solver_eligible", "is_block_half_rotation", "week_structure", "min_activities_per_week", "max_activities_per_week", "created_at", "updated_at"}).
		AddRow("tmpl-1", "OUTPT", "Continuity Clinic", string(models.RotationTypeOutpatient), string(models.CalendarModeBlockHalf), true, true, nil, 3, 5, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, code, name, rotation_type, calendar_mode, is_solver_eligible, is_block_half_rotation, week_structure, min_activities_per_week, max_activities_per_week, created_at, updated_at FROM rotation_templates WHERE is_solver_eligible = true ORDER BY code ASC")).
		WillReturnRows(rows)

	templates, err := repo.ListSolverEligible(context.Background())
	require.NoError(t, err)
	assert.Len(t, templates, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}
