package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/gme-scheduler/core/internal/models"
	appErrors "github.com/gme-scheduler/core/pkg/errors"
)

type assignmentOverrideRepository interface {
	FindByID(ctx context.Context, id string) (*models.Assignment, error)
	UpsertBatch(ctx context.Context, exec sqlx.ExtContext, assignments []models.Assignment) error
}

// AssignmentOverrideApplier mutates a committed Assignment when a manual
// override request on entity "assignment" is approved. The write always
// lands with Source=manual and the requester recorded as override actor,
// so it outranks solver and template writes but not a preload.
type AssignmentOverrideApplier struct {
	repo   assignmentOverrideRepository
	logger *zap.Logger
}

// NewAssignmentOverrideApplier constructs an applier backed by the assignment repository.
func NewAssignmentOverrideApplier(repo assignmentOverrideRepository, logger *zap.Logger) *AssignmentOverrideApplier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentOverrideApplier{repo: repo, logger: logger}
}

// Apply updates the activity code and/or role on the target assignment
// and returns the refreshed snapshot.
func (a *AssignmentOverrideApplier) Apply(ctx context.Context, override *models.OverrideRequest) ([]byte, error) {
	if a.repo == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "assignment repository not configured")
	}
	assignment, err := a.repo.FindByID(ctx, override.EntityID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(override.RequestedChange, &payload); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid assignment override payload")
	}
	changes := 0

	if str, ok, err := readString(payload, "activityCode"); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "activityCode must be a string")
	} else if ok {
		assignment.ActivityCode = *str
		changes++
	}
	if str, ok, err := readString(payload, "role"); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "role must be a string")
	} else if ok {
		assignment.Role = models.AssignmentRole(*str)
		changes++
	}

	if changes == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no supported assignment fields provided")
	}

	reviewer := override.RequestedBy
	assignment.Source = models.SourceManual
	assignment.OverrideActor = &reviewer
	assignment.OverrideReason = &override.Reason

	if err := a.repo.UpsertBatch(ctx, nil, []models.Assignment{*assignment}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply assignment override")
	}
	snapshot, err := json.Marshal(assignment)
	if err != nil {
		a.logger.Warn("failed to marshal assignment snapshot", zap.Error(err))
		return []byte("{}"), nil
	}
	return snapshot, nil
}

type callAssignmentOverrideRepository interface {
	UpsertBatch(ctx context.Context, exec sqlx.ExtContext, assignments []models.CallAssignment) error
}

// CallAssignmentOverrideApplier mutates a committed call assignment when
// a manual override on entity "call_assignment" is approved.
type CallAssignmentOverrideApplier struct {
	repo   callAssignmentOverrideRepository
	logger *zap.Logger
}

// NewCallAssignmentOverrideApplier constructs an applier backed by the call assignment repository.
func NewCallAssignmentOverrideApplier(repo callAssignmentOverrideRepository, logger *zap.Logger) *CallAssignmentOverrideApplier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CallAssignmentOverrideApplier{repo: repo, logger: logger}
}

// Apply reassigns who is on call for the (date, call_type) named by the
// override and returns the refreshed snapshot.
func (a *CallAssignmentOverrideApplier) Apply(ctx context.Context, override *models.OverrideRequest) ([]byte, error) {
	if a.repo == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "call assignment repository not configured")
	}
	var payload struct {
		Date     string `json:"date"`
		PersonID string `json:"personId"`
		CallType string `json:"callType"`
	}
	if err := json.Unmarshal(override.RequestedChange, &payload); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid call assignment override payload")
	}
	if strings.TrimSpace(payload.PersonID) == "" || strings.TrimSpace(payload.CallType) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "personId and callType are required")
	}
	date, err := time.Parse("2006-01-02", payload.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD")
	}

	call := models.CallAssignment{
		Date:     date,
		PersonID: payload.PersonID,
		CallType: models.CallType(payload.CallType),
		Source:   models.SourceManual,
	}
	if err := a.repo.UpsertBatch(ctx, nil, []models.CallAssignment{call}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply call assignment override")
	}
	snapshot, err := json.Marshal(call)
	if err != nil {
		a.logger.Warn("failed to marshal call assignment snapshot", zap.Error(err))
		return []byte("{}"), nil
	}
	return snapshot, nil
}

func readString(payload map[string]json.RawMessage, keys ...string) (*string, bool, error) {
	for _, key := range keys {
		if raw, ok := payload[key]; ok {
			var val string
			if err := json.Unmarshal(raw, &val); err != nil {
				return nil, false, err
			}
			val = strings.TrimSpace(val)
			return &val, true, nil
		}
	}
	return nil, false, nil
}
