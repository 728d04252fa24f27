package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/gme-scheduler/core/internal/models"
)

type assignmentOverrideRepoStub struct {
	assignment *models.Assignment
	upserted   []models.Assignment
}

func (s *assignmentOverrideRepoStub) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	copy := *s.assignment
	return &copy, nil
}

func (s *assignmentOverrideRepoStub) UpsertBatch(ctx context.Context, exec sqlx.ExtContext, assignments []models.Assignment) error {
	s.upserted = assignments
	return nil
}

func TestAssignmentOverrideApplierApply(t *testing.T) {
	repo := &assignmentOverrideRepoStub{
		assignment: &models.Assignment{
			ID:           "assign-1",
			PersonID:     "person-1",
			Date:         time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC),
			Period:       models.PeriodAM,
			ActivityCode: "CLINIC",
			Source:       models.SourceTemplate,
			Role:         models.AssignmentRolePrimary,
		},
	}
	applier := NewAssignmentOverrideApplier(repo, nil)
	payload, err := json.Marshal(map[string]string{"activityCode": "OFF"})
	require.NoError(t, err)

	snapshot, err := applier.Apply(context.Background(), &models.OverrideRequest{
		EntityID:        "assign-1",
		RequestedChange: payload,
		RequestedBy:     "pd-1",
		Reason:          "resident called in sick",
	})
	require.NoError(t, err)
	require.Len(t, repo.upserted, 1)
	require.Equal(t, "OFF", repo.upserted[0].ActivityCode)
	require.Equal(t, models.SourceManual, repo.upserted[0].Source)
	require.Contains(t, string(snapshot), "OFF")
}

func TestAssignmentOverrideApplierRejectsEmptyPayload(t *testing.T) {
	repo := &assignmentOverrideRepoStub{
		assignment: &models.Assignment{ID: "assign-1", PersonID: "person-1"},
	}
	applier := NewAssignmentOverrideApplier(repo, nil)
	_, err := applier.Apply(context.Background(), &models.OverrideRequest{
		EntityID:        "assign-1",
		RequestedChange: []byte(`{}`),
	})
	require.Error(t, err)
}

type callAssignmentOverrideRepoStub struct {
	upserted []models.CallAssignment
}

func (s *callAssignmentOverrideRepoStub) UpsertBatch(ctx context.Context, exec sqlx.ExtContext, assignments []models.CallAssignment) error {
	s.upserted = assignments
	return nil
}

func TestCallAssignmentOverrideApplierApply(t *testing.T) {
	repo := &callAssignmentOverrideRepoStub{}
	applier := NewCallAssignmentOverrideApplier(repo, nil)
	payload, err := json.Marshal(map[string]string{
		"date":     "2026-08-03",
		"personId": "person-2",
		"callType": string(models.CallTypeOvernight),
	})
	require.NoError(t, err)

	snapshot, err := applier.Apply(context.Background(), &models.OverrideRequest{
		RequestedChange: payload,
	})
	require.NoError(t, err)
	require.Len(t, repo.upserted, 1)
	require.Equal(t, "person-2", repo.upserted[0].PersonID)
	require.Equal(t, models.SourceManual, repo.upserted[0].Source)
	require.Contains(t, string(snapshot), "person-2")
}
