package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/gme-scheduler/core/internal/models"
)

// OverrideRequestRepository persists the manual-override workflow used
// by service.MutationService (and through it OverrideRequestHandler).
type OverrideRequestRepository struct {
	db *sqlx.DB
}

// NewOverrideRequestRepository constructs the repository.
func NewOverrideRequestRepository(db *sqlx.DB) *OverrideRequestRepository {
	return &OverrideRequestRepository{db: db}
}

// Create inserts a new override request row.
func (r *OverrideRequestRepository) Create(ctx context.Context, override *models.OverrideRequest) error {
	if override.ID == "" {
		override.ID = uuid.NewString()
	}
	if override.Status == "" {
		override.Status = models.OverrideStatusPending
	}
	if override.RequestedAt.IsZero() {
		override.RequestedAt = time.Now().UTC()
	}
	const query = `INSERT INTO override_requests
	(id, type, entity, entity_id, current_snapshot, requested_change, status, reason, requested_by, reviewed_by, requested_at, reviewed_at, note)
	VALUES (:id, :type, :entity, :entity_id, :current_snapshot, :requested_change, :status, :reason, :requested_by, :reviewed_by, :requested_at, :reviewed_at, :note)`
	if _, err := r.db.NamedExecContext(ctx, query, override); err != nil {
		return fmt.Errorf("create override request: %w", err)
	}
	return nil
}

// GetByID fetches an override request by identifier.
func (r *OverrideRequestRepository) GetByID(ctx context.Context, id string) (*models.OverrideRequest, error) {
	const query = `SELECT id, type, entity, entity_id, current_snapshot, requested_change, status, reason,
       requested_by, reviewed_by, requested_at, reviewed_at, note
	FROM override_requests WHERE id = $1`
	var override models.OverrideRequest
	if err := r.db.GetContext(ctx, &override, query, id); err != nil {
		return nil, err
	}
	return &override, nil
}

// List returns override requests matching the filter (sorted latest first).
func (r *OverrideRequestRepository) List(ctx context.Context, filter models.OverrideFilter) ([]models.OverrideRequest, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 6)
	builder.WriteString(`SELECT id, type, entity, entity_id, current_snapshot, requested_change, status, reason,
       requested_by, reviewed_by, requested_at, reviewed_at, note FROM override_requests`)

	conditions := make([]string, 0, 4)
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Entity != "" {
		args = append(args, filter.Entity)
		conditions = append(conditions, fmt.Sprintf("entity = $%d", len(args)))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)))
	}
	if filter.EntityID != "" {
		args = append(args, filter.EntityID)
		conditions = append(conditions, fmt.Sprintf("entity_id = $%d", len(args)))
	}
	if filter.RequestedBy != "" {
		args = append(args, filter.RequestedBy)
		conditions = append(conditions, fmt.Sprintf("requested_by = $%d", len(args)))
	}
	if filter.ReviewerID != "" {
		args = append(args, filter.ReviewerID)
		conditions = append(conditions, fmt.Sprintf("reviewed_by = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY requested_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var overrides []models.OverrideRequest
	if err := r.db.SelectContext(ctx, &overrides, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list override requests: %w", err)
	}
	return overrides, nil
}

// UpdateOverrideParams groups mutable columns for review operations.
type UpdateOverrideParams struct {
	ID              string
	Status          models.OverrideStatus
	ReviewedBy      string
	ReviewedAt      time.Time
	Note            *string
	CurrentSnapshot []byte
}

// UpdateStatusAndSnapshot persists the review outcome, refusing to touch
// a request that has already left the pending state.
func (r *OverrideRequestRepository) UpdateStatusAndSnapshot(ctx context.Context, params UpdateOverrideParams) error {
	setParts := []string{
		"status = :status",
		"reviewed_by = :reviewed_by",
		"reviewed_at = :reviewed_at",
	}
	if params.Note != nil {
		setParts = append(setParts, "note = :note")
	}
	if len(params.CurrentSnapshot) > 0 {
		setParts = append(setParts, "current_snapshot = :current_snapshot")
	}
	query := fmt.Sprintf("UPDATE override_requests SET %s WHERE id = :id AND status = '%s'",
		strings.Join(setParts, ", "),
		models.OverrideStatusPending,
	)
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":               params.ID,
		"status":           params.Status,
		"reviewed_by":      params.ReviewedBy,
		"reviewed_at":      params.ReviewedAt,
		"note":             params.Note,
		"current_snapshot": params.CurrentSnapshot,
	})
	if err != nil {
		return fmt.Errorf("update override request status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check override request update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
