package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gme-scheduler/core/internal/dto"
	"github.com/gme-scheduler/core/internal/models"
	"github.com/gme-scheduler/core/internal/repository"
	appErrors "github.com/gme-scheduler/core/pkg/errors"
)

type overrideStore interface {
	Create(ctx context.Context, override *models.OverrideRequest) error
	GetByID(ctx context.Context, id string) (*models.OverrideRequest, error)
	List(ctx context.Context, filter models.OverrideFilter) ([]models.OverrideRequest, error)
	UpdateStatusAndSnapshot(ctx context.Context, params repository.UpdateOverrideParams) error
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// OverrideSnapshotProvider resolves the latest entity snapshot for audit trails.
type OverrideSnapshotProvider interface {
	Snapshot(ctx context.Context, entity, entityID string) ([]byte, error)
}

// OverrideApplier applies changes for a particular entity when approved.
type OverrideApplier interface {
	Apply(ctx context.Context, override *models.OverrideRequest) ([]byte, error)
}

// OverrideApplierFunc allows using plain functions.
type OverrideApplierFunc func(ctx context.Context, override *models.OverrideRequest) ([]byte, error)

// Apply implements OverrideApplier.
func (f OverrideApplierFunc) Apply(ctx context.Context, override *models.OverrideRequest) ([]byte, error) {
	return f(ctx, override)
}

// MutationService orchestrates manual override requests and reviews.
// Approving one writes through Source=manual, which outranks solver and
// template writes but not a preload (spec.md §3 priority ordering).
type MutationService struct {
	repo      overrideStore
	audit     auditLogger
	snapshot  OverrideSnapshotProvider
	appliers  map[string]OverrideApplier
	logger    *zap.Logger
	validator overrideValidator
}

type overrideValidator interface {
	ValidateRequest(req dto.CreateOverrideRequest) error
}

// MutationServiceOption configures the service.
type MutationServiceOption func(*MutationService)

// WithOverrideAppliers sets the applier map keyed by entity.
func WithOverrideAppliers(appliers map[string]OverrideApplier) MutationServiceOption {
	return func(s *MutationService) {
		if s.appliers == nil {
			s.appliers = make(map[string]OverrideApplier)
		}
		for k, v := range appliers {
			s.appliers[k] = v
		}
	}
}

// WithOverrideSnapshotProvider overrides the snapshot provider.
func WithOverrideSnapshotProvider(provider OverrideSnapshotProvider) MutationServiceOption {
	return func(s *MutationService) {
		if provider != nil {
			s.snapshot = provider
		}
	}
}

// NewMutationService constructs the service with defaults.
func NewMutationService(repo overrideStore, audit auditLogger, logger *zap.Logger, opts ...MutationServiceOption) *MutationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &MutationService{
		repo:     repo,
		audit:    audit,
		logger:   logger,
		appliers: make(map[string]OverrideApplier),
		snapshot: OverrideSnapshotProviderFunc(func(context.Context, string, string) ([]byte, error) {
			return []byte("{}"), nil
		}),
		validator: &defaultOverrideValidator{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// RequestChange stores a new override request after validating payloads.
func (s *MutationService) RequestChange(ctx context.Context, req dto.CreateOverrideRequest, actorID string) (*models.OverrideRequest, error) {
	if err := s.validator.ValidateRequest(req); err != nil {
		return nil, err
	}
	entity := strings.ToLower(strings.TrimSpace(req.Entity))
	if entity == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "entity is required")
	}
	snapshot, err := s.snapshot.Snapshot(ctx, req.Entity, req.EntityID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to capture current snapshot")
	}
	if len(snapshot) == 0 {
		snapshot = []byte("{}")
	}
	override := &models.OverrideRequest{
		Type:            models.OverrideType(strings.ToUpper(string(req.Type))),
		Entity:          entity,
		EntityID:        req.EntityID,
		Reason:          req.Reason,
		RequestedChange: append([]byte(nil), req.RequestedChange...),
		CurrentSnapshot: append([]byte(nil), snapshot...),
		Status:          models.OverrideStatusPending,
		RequestedBy:     actorID,
	}
	if err := s.repo.Create(ctx, override); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create override request")
	}
	s.emitAudit(ctx, &models.AuditLog{
		ActorID:    &actorID,
		Action:     models.AuditActionManualOverride,
		Resource:   override.Entity,
		ResourceID: &override.EntityID,
		NewValues:  override.RequestedChange,
	})
	return override, nil
}

// List returns accessible override requests respecting actor role.
func (s *MutationService) List(ctx context.Context, query dto.OverrideQuery, actor *models.OverrideClaims) ([]models.OverrideRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	filter := models.OverrideFilter{
		Status: query.Status,
		Entity: strings.ToLower(strings.TrimSpace(query.Entity)),
		Type:   query.Type,
	}
	switch actor.Role {
	case models.RoleFacultyPD, models.RoleFacultyAPD, models.RoleFacultyDeptChief:
		// full access, no extra filters
	default:
		filter.RequestedBy = actor.ActorID
	}
	overrides, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list override requests")
	}
	return overrides, nil
}

// Get returns an override request enforcing scope constraints.
func (s *MutationService) Get(ctx context.Context, id string, actor *models.OverrideClaims) (*models.OverrideRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	override, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load override request")
	}
	switch actor.Role {
	case models.RoleFacultyPD, models.RoleFacultyAPD, models.RoleFacultyDeptChief:
	default:
		if override.RequestedBy != actor.ActorID {
			return nil, appErrors.ErrForbidden
		}
	}
	return override, nil
}

// Review applies reviewer decision and records audit trail.
func (s *MutationService) Review(ctx context.Context, id string, req dto.ReviewOverrideRequest, reviewerID string) (*models.OverrideRequest, error) {
	override, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load override request")
	}
	oldSnapshot := append([]byte(nil), override.CurrentSnapshot...)
	if override.Status != models.OverrideStatusPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "override request already reviewed")
	}
	if req.Status != models.OverrideStatusApplied && req.Status != models.OverrideStatusRejected {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be APPLIED or REJECTED")
	}

	var newSnapshot []byte
	if req.Status == models.OverrideStatusApplied {
		applier := s.appliers[override.Entity]
		if applier == nil {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("unsupported override entity: %s", override.Entity))
		}
		newSnapshot, err = applier.Apply(ctx, override)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply override")
		}
	}
	now := time.Now().UTC()
	params := repository.UpdateOverrideParams{
		ID:         override.ID,
		Status:     req.Status,
		ReviewedBy: reviewerID,
		ReviewedAt: now,
		Note:       optionalString(req.Note),
	}
	if len(newSnapshot) > 0 {
		params.CurrentSnapshot = newSnapshot
	}
	if err := s.repo.UpdateStatusAndSnapshot(ctx, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "override request already processed")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update override request")
	}
	override.Status = req.Status
	override.ReviewedBy = &reviewerID
	override.ReviewedAt = &now
	if req.Note != "" {
		override.Note = &req.Note
	}
	if len(newSnapshot) > 0 {
		override.CurrentSnapshot = newSnapshot
	}
	s.emitAudit(ctx, &models.AuditLog{
		ActorID:    &reviewerID,
		Action:     models.AuditActionManualOverride,
		Resource:   override.Entity,
		ResourceID: &override.EntityID,
		NewValues:  override.RequestedChange,
		OldValues:  oldSnapshot,
	})
	return override, nil
}

func (s *MutationService) emitAudit(ctx context.Context, log *models.AuditLog) {
	if s.audit == nil || log == nil {
		return
	}
	log.IPAddress = "system"
	log.UserAgent = "mutation-service"
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}

func optionalString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	v := strings.TrimSpace(value)
	return &v
}

// defaultOverrideValidator enforces basic payload checks.
type defaultOverrideValidator struct{}

func (v *defaultOverrideValidator) ValidateRequest(req dto.CreateOverrideRequest) error {
	if req.Type == "" || req.Entity == "" || req.EntityID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "type, entity, and entityId are required")
	}
	if strings.TrimSpace(req.Reason) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "reason is required")
	}
	if len(req.RequestedChange) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "requestedChange is required")
	}
	if !json.Valid(req.RequestedChange) {
		return appErrors.Clone(appErrors.ErrValidation, "requestedChange must be valid JSON")
	}
	switch models.OverrideType(strings.ToUpper(string(req.Type))) {
	case models.OverrideTypeAssignment, models.OverrideTypeCallAssignment, models.OverrideTypeResilience:
	default:
		return appErrors.Clone(appErrors.ErrValidation, "unsupported override type")
	}
	return nil
}

// OverrideSnapshotProviderFunc helper to use functions as providers.
type OverrideSnapshotProviderFunc func(ctx context.Context, entity, entityID string) ([]byte, error)

// Snapshot implements provider interface.
func (f OverrideSnapshotProviderFunc) Snapshot(ctx context.Context, entity, entityID string) ([]byte, error) {
	return f(ctx, entity, entityID)
}
