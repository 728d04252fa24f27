package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/gme-scheduler/core/internal/models"
)

func newOverrideRequestRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestOverrideRequestRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newOverrideRequestRepoMock(t)
	defer cleanup()

	repo := NewOverrideRequestRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO override_requests")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	override := &models.OverrideRequest{
		Type:            models.OverrideTypeAssignment,
		Entity:          "assignment",
		EntityID:        "assign-1",
		Reason:          "resident called in sick",
		RequestedBy:     "chief-1",
		RequestedChange: []byte(`{"activityCode":"OFF"}`),
		CurrentSnapshot: []byte(`{"activityCode":"CLINIC"}`),
	}
	require.NoError(t, repo.Create(context.Background(), override))

	rows := sqlmock.NewRows([]string{"id", "type", "entity", "entity_id", "current_snapshot", "requested_change", "status", "reason", "requested_by", "reviewed_by", "requested_at", "reviewed_at", "note"}).
		AddRow(override.ID, "ASSIGNMENT", "assignment", "assign-1", `{"activityCode":"CLINIC"}`, `{"activityCode":"OFF"}`, "PENDING", "resident called in sick", "chief-1", nil, time.Now(), nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, type, entity, entity_id")).
		WithArgs(override.ID).
		WillReturnRows(rows)

	found, err := repo.GetByID(context.Background(), override.ID)
	require.NoError(t, err)
	require.Equal(t, override.ID, found.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOverrideRequestRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newOverrideRequestRepoMock(t)
	defer cleanup()

	repo := NewOverrideRequestRepository(db)
	rows := sqlmock.NewRows([]string{"id", "type", "entity", "entity_id", "current_snapshot", "requested_change", "status", "reason", "requested_by", "reviewed_by", "requested_at", "reviewed_at", "note"}).
		AddRow("ovr-1", "RESILIENCE_GATE", "resilience", "gate", `{}`, `{}`, "PENDING", "override RED block", "pd-1", nil, time.Now(), nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, type, entity, entity_id")).
		WithArgs("PENDING", "resilience").
		WillReturnRows(rows)

	list, err := repo.List(context.Background(), models.OverrideFilter{
		Status: []models.OverrideStatus{models.OverrideStatusPending},
		Entity: "resilience",
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "ovr-1", list[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOverrideRequestRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newOverrideRequestRepoMock(t)
	defer cleanup()

	repo := NewOverrideRequestRepository(db)
	now := time.Now()
	note := "approved by PD"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE override_requests SET")).WillReturnResult(sqlmock.NewResult(0, 1))
	err := repo.UpdateStatusAndSnapshot(context.Background(), UpdateOverrideParams{
		ID:         "ovr-1",
		Status:     models.OverrideStatusApplied,
		ReviewedBy: "pd-1",
		ReviewedAt: now,
		Note:       &note,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	mock.ExpectExec(regexp.QuoteMeta("UPDATE override_requests SET")).WillReturnResult(sqlmock.NewResult(0, 0))
	err = repo.UpdateStatusAndSnapshot(context.Background(), UpdateOverrideParams{
		ID:         "ovr-1",
		Status:     models.OverrideStatusApplied,
		ReviewedBy: "pd-1",
		ReviewedAt: now,
	})
	require.Error(t, err)
}
