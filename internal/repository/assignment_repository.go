package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/gme-scheduler/core/internal/models"
)

// AssignmentRepository provides persistence for committed half-day
// assignments. Uniqueness is (person_id, date, period); writes land
// through the reconciler, which enforces Source.Outranks before calling
// UpsertBatch, or through an approved manual override
// (service.AssignmentOverrideApplier), which does not.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository creates a new assignment repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

func (r *AssignmentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// List returns assignments with optional filtering and pagination.
func (r *AssignmentRepository) List(ctx context.Context, filter models.AssignmentFilter) ([]models.Assignment, int, error) {
	base := "FROM assignments WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.PersonID != "" {
		conditions = append(conditions, fmt.Sprintf("person_id = $%d", len(args)+1))
		args = append(args, filter.PersonID)
	}
	if filter.StartDate != nil {
		conditions = append(conditions, fmt.Sprintf("date >= $%d", len(args)+1))
		args = append(args, *filter.StartDate)
	}
	if filter.EndDate != nil {
		conditions = append(conditions, fmt.Sprintf("date <= $%d", len(args)+1))
		args = append(args, *filter.EndDate)
	}
	if filter.ScheduleRunID != "" {
		conditions = append(conditions, fmt.Sprintf("schedule_run_id = $%d", len(args)+1))
		args = append(args, filter.ScheduleRunID)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 500 {
		size = 100
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT id, person_id, date, period, activity_code, source, role, schedule_run_id, override_actor, override_reason, created_at, updated_at %s ORDER BY date ASC, period ASC LIMIT %d OFFSET %d`, base, size, offset)
	var assignments []models.Assignment
	if err := r.db.SelectContext(ctx, &assignments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list assignments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count assignments: %w", err)
	}

	return assignments, total, nil
}

// FindByID loads an assignment by id.
func (r *AssignmentRepository) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	const query = `SELECT id, person_id, date, period, activity_code, source, role, schedule_run_id, override_actor, override_reason, created_at, updated_at FROM assignments WHERE id = $1`
	var assignment models.Assignment
	if err := r.db.GetContext(ctx, &assignment, query, id); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// FindExisting loads every currently-committed assignment whose
// (person, date, period) falls in range, keyed for O(1) source-priority
// comparison by the reconciler.
func (r *AssignmentRepository) FindExisting(ctx context.Context, start, end time.Time) (map[models.AssignmentKey]models.Assignment, error) {
	const query = `SELECT id, person_id, date, period, activity_code, source, role, schedule_run_id, override_actor, override_reason, created_at, updated_at
FROM assignments WHERE date >= $1 AND date <= $2`
	var rows []models.Assignment
	if err := r.db.SelectContext(ctx, &rows, query, start, end); err != nil {
		return nil, fmt.Errorf("find existing assignments: %w", err)
	}
	out := make(map[models.AssignmentKey]models.Assignment, len(rows))
	for _, a := range rows {
		out[a.Key()] = a
	}
	return out, nil
}

// ListByPerson returns assignments for a person ordered by date/period.
func (r *AssignmentRepository) ListByPerson(ctx context.Context, personID string, start, end time.Time) ([]models.Assignment, error) {
	const query = `SELECT id, person_id, date, period, activity_code, source, role, schedule_run_id, override_actor, override_reason, created_at, updated_at
FROM assignments WHERE person_id = $1 AND date >= $2 AND date <= $3 ORDER BY date ASC, period ASC`
	var assignments []models.Assignment
	if err := r.db.SelectContext(ctx, &assignments, query, personID, start, end); err != nil {
		return nil, fmt.Errorf("list assignments by person: %w", err)
	}
	return assignments, nil
}

// UpsertBatch inserts or overwrites assignments within the provided
// transaction (or the pool if exec is nil). The caller is responsible for
// having already decided each write outranks what it replaces.
func (r *AssignmentRepository) UpsertBatch(ctx context.Context, exec sqlx.ExtContext, assignments []models.Assignment) error {
	if len(assignments) == 0 {
		return nil
	}
	target := r.exec(exec)
	now := time.Now().UTC()

	const query = `
INSERT INTO assignments (id, person_id, date, period, activity_code, source, role, schedule_run_id, override_actor, override_reason, created_at, updated_at)
VALUES (:id, :person_id, :date, :period, :activity_code, :source, :role, :schedule_run_id, :override_actor, :override_reason, :created_at, :updated_at)
ON CONFLICT (person_id, date, period) DO UPDATE
SET activity_code = EXCLUDED.activity_code,
    source = EXCLUDED.source,
    role = EXCLUDED.role,
    schedule_run_id = EXCLUDED.schedule_run_id,
    override_actor = EXCLUDED.override_actor,
    override_reason = EXCLUDED.override_reason,
    updated_at = EXCLUDED.updated_at`

	for i := range assignments {
		a := &assignments[i]
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		a.UpdatedAt = now
		if _, err := sqlx.NamedExecContext(ctx, target, query, a); err != nil {
			return fmt.Errorf("upsert assignment: %w", err)
		}
	}
	return nil
}

// DeleteByScheduleRun removes every assignment written by the given run.
func (r *AssignmentRepository) DeleteByScheduleRun(ctx context.Context, exec sqlx.ExtContext, runID string) error {
	target := r.exec(exec)
	if _, err := target.ExecContext(ctx, `DELETE FROM assignments WHERE schedule_run_id = $1`, runID); err != nil {
		return fmt.Errorf("delete assignments by run: %w", err)
	}
	return nil
}

// DeleteStaleSolver removes solver-sourced assignments in [start, end]
// left over from a prior run that the current reconciliation no longer
// produced, per the reconciler's atomicity contract: new writes land
// first, then anything solver-sourced outside the preserve set is
// dropped so a re-generated range never keeps two generations' worth of
// solver output. keep lists the (person, date, period) triples the
// current run just wrote and must not be touched. A nil or empty keep
// clears every solver-sourced row in range.
func (r *AssignmentRepository) DeleteStaleSolver(ctx context.Context, exec sqlx.ExtContext, start, end time.Time, keep []models.AssignmentKey) error {
	target := r.exec(exec)

	if len(keep) == 0 {
		_, err := target.ExecContext(ctx, `DELETE FROM assignments WHERE source = $1 AND date >= $2 AND date <= $3`, string(models.SourceSolver), start, end)
		if err != nil {
			return fmt.Errorf("delete stale solver assignments: %w", err)
		}
		return nil
	}

	query := `DELETE FROM assignments WHERE source = $1 AND date >= $2 AND date <= $3 AND (person_id, date, period) NOT IN (`
	args := []interface{}{string(models.SourceSolver), start, end}
	for i, k := range keep {
		if i > 0 {
			query += ", "
		}
		query += fmt.Sprintf("($%d, $%d, $%d)", len(args)+1, len(args)+2, len(args)+3)
		args = append(args, k.PersonID, k.Date, string(k.Period))
	}
	query += ")"

	if _, err := target.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete stale solver assignments: %w", err)
	}
	return nil
}
