package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gme-scheduler/core/internal/dto"
	"github.com/gme-scheduler/core/internal/models"
	"github.com/gme-scheduler/core/internal/repository"
)

type overrideRepoStub struct {
	overrides map[string]*models.OverrideRequest
	filter    models.OverrideFilter
}

func newOverrideRepoStub() *overrideRepoStub {
	return &overrideRepoStub{overrides: make(map[string]*models.OverrideRequest)}
}

func (m *overrideRepoStub) Create(ctx context.Context, override *models.OverrideRequest) error {
	m.overrides[override.ID] = override
	return nil
}

func (m *overrideRepoStub) GetByID(ctx context.Context, id string) (*models.OverrideRequest, error) {
	if ovr, ok := m.overrides[id]; ok {
		copy := *ovr
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *overrideRepoStub) List(ctx context.Context, filter models.OverrideFilter) ([]models.OverrideRequest, error) {
	m.filter = filter
	result := make([]models.OverrideRequest, 0, len(m.overrides))
	for _, ovr := range m.overrides {
		result = append(result, *ovr)
	}
	return result, nil
}

func (m *overrideRepoStub) UpdateStatusAndSnapshot(ctx context.Context, params repository.UpdateOverrideParams) error {
	ovr, ok := m.overrides[params.ID]
	if !ok {
		return sql.ErrNoRows
	}
	ovr.Status = params.Status
	ovr.ReviewedBy = &params.ReviewedBy
	ovr.ReviewedAt = &params.ReviewedAt
	if params.Note != nil {
		ovr.Note = params.Note
	}
	if len(params.CurrentSnapshot) > 0 {
		ovr.CurrentSnapshot = params.CurrentSnapshot
	}
	return nil
}

type auditStub struct {
	logs []*models.AuditLog
}

func (a *auditStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func TestMutationServiceRequestChange(t *testing.T) {
	repo := newOverrideRepoStub()
	audit := &auditStub{}
	snapshot := OverrideSnapshotProviderFunc(func(ctx context.Context, entity, entityID string) ([]byte, error) {
		return []byte(`{"before":true}`), nil
	})
	svc := NewMutationService(repo, audit, nil, WithOverrideSnapshotProvider(snapshot))

	req := dto.CreateOverrideRequest{
		Type:            models.OverrideTypeAssignment,
		Entity:          "assignment",
		EntityID:        "assign-1",
		Reason:          "resident called in sick",
		RequestedChange: []byte(`{"activityCode":"OFF"}`),
	}
	override, err := svc.RequestChange(context.Background(), req, "chief-1")
	require.NoError(t, err)
	require.Equal(t, models.OverrideStatusPending, override.Status)
	require.Len(t, audit.logs, 1)
}

func TestMutationServiceReviewApprove(t *testing.T) {
	repo := newOverrideRepoStub()
	audit := &auditStub{}
	override := &models.OverrideRequest{
		ID:              "ovr-1",
		Type:            models.OverrideTypeAssignment,
		Entity:          "assignment",
		EntityID:        "assign-1",
		Status:          models.OverrideStatusPending,
		RequestedChange: []byte(`{"activityCode":"OFF"}`),
		CurrentSnapshot: []byte(`{"activityCode":"CLINIC"}`),
		RequestedBy:     "chief-1",
	}
	repo.overrides[override.ID] = override
	appliers := map[string]OverrideApplier{
		"assignment": OverrideApplierFunc(func(ctx context.Context, ovr *models.OverrideRequest) ([]byte, error) {
			return []byte(`{"activityCode":"OFF"}`), nil
		}),
	}
	svc := NewMutationService(repo, audit, nil, WithOverrideAppliers(appliers))

	result, err := svc.Review(context.Background(), override.ID, dto.ReviewOverrideRequest{
		Status: models.OverrideStatusApplied,
		Note:   "approved by PD",
	}, "pd-1")
	require.NoError(t, err)
	require.Equal(t, models.OverrideStatusApplied, result.Status)
	require.Len(t, audit.logs, 1)
}

func TestMutationServiceListNonPDFilters(t *testing.T) {
	repo := newOverrideRepoStub()
	audit := &auditStub{}
	repo.overrides["ovr-1"] = &models.OverrideRequest{ID: "ovr-1", RequestedBy: "chief-1"}
	repo.overrides["ovr-2"] = &models.OverrideRequest{ID: "ovr-2", RequestedBy: "chief-2"}

	svc := NewMutationService(repo, audit, nil)
	claims := &models.OverrideClaims{ActorID: "chief-1", Role: models.RoleResidentPGY3, Scope: models.OverrideScopeAssignment}

	_, err := svc.List(context.Background(), dto.OverrideQuery{}, claims)
	require.NoError(t, err)
	require.Equal(t, "chief-1", repo.filter.RequestedBy)
}
