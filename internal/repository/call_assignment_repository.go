package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/gme-scheduler/core/internal/models"
)

// CallAssignmentRepository manages overnight/weekend/backup call
// assignments, persisted alongside but independently of half-day
// Assignment rows.
type CallAssignmentRepository struct {
	db *sqlx.DB
}

// NewCallAssignmentRepository builds the repository.
func NewCallAssignmentRepository(db *sqlx.DB) *CallAssignmentRepository {
	return &CallAssignmentRepository{db: db}
}

func (r *CallAssignmentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// UpsertBatch inserts or updates call assignments, unique on
// (date, person_id, call_type).
func (r *CallAssignmentRepository) UpsertBatch(ctx context.Context, exec sqlx.ExtContext, calls []models.CallAssignment) error {
	if len(calls) == 0 {
		return nil
	}
	target := r.exec(exec)
	now := time.Now().UTC()

	const query = `
INSERT INTO call_assignments (id, date, person_id, call_type, source, created_at)
VALUES (:id, :date, :person_id, :call_type, :source, :created_at)
ON CONFLICT (date, person_id, call_type) DO UPDATE
SET source = EXCLUDED.source`

	for i := range calls {
		call := &calls[i]
		if call.ID == "" {
			call.ID = uuid.NewString()
		}
		if call.CreatedAt.IsZero() {
			call.CreatedAt = now
		}
		if _, err := sqlx.NamedExecContext(ctx, target, query, call); err != nil {
			return fmt.Errorf("upsert call assignment: %w", err)
		}
	}
	return nil
}

// ListByRange returns call assignments ordered by date for a range,
// optionally filtered by call type.
func (r *CallAssignmentRepository) ListByRange(ctx context.Context, filter models.CallAssignmentFilter) ([]models.CallAssignment, error) {
	query := `SELECT id, date, person_id, call_type, source, created_at FROM call_assignments WHERE 1=1`
	var args []interface{}
	if filter.PersonID != "" {
		args = append(args, filter.PersonID)
		query += fmt.Sprintf(" AND person_id = $%d", len(args))
	}
	if filter.StartDate != nil {
		args = append(args, *filter.StartDate)
		query += fmt.Sprintf(" AND date >= $%d", len(args))
	}
	if filter.EndDate != nil {
		args = append(args, *filter.EndDate)
		query += fmt.Sprintf(" AND date <= $%d", len(args))
	}
	if filter.CallType != "" {
		args = append(args, filter.CallType)
		query += fmt.Sprintf(" AND call_type = $%d", len(args))
	}
	query += " ORDER BY date ASC"

	var calls []models.CallAssignment
	if err := r.db.SelectContext(ctx, &calls, query, args...); err != nil {
		return nil, fmt.Errorf("list call assignments: %w", err)
	}
	return calls, nil
}
