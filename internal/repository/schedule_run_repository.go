package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/gme-scheduler/core/internal/models"
)

// ScheduleRunRepository persists one row per generation attempt. A run
// moves in_progress -> {success, partial, failed} and is never mutated
// again once terminal.
type ScheduleRunRepository struct {
	db *sqlx.DB
}

// NewScheduleRunRepository constructs the repository.
func NewScheduleRunRepository(db *sqlx.DB) *ScheduleRunRepository {
	return &ScheduleRunRepository{db: db}
}

func (r *ScheduleRunRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a new in-progress run row.
func (r *ScheduleRunRepository) Create(ctx context.Context, exec sqlx.ExtContext, run *models.ScheduleRun) error {
	if run == nil {
		return fmt.Errorf("schedule run payload is nil")
	}
	if run.RangeStart.IsZero() || run.RangeEnd.IsZero() {
		return fmt.Errorf("range_start and range_end are required")
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Status == "" {
		run.Status = models.RunStatusInProgress
	}
	now := time.Now().UTC()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}

	target := r.exec(exec)
	const insertQuery = `
INSERT INTO schedule_runs (id, range_start, range_end, algorithm, status, solver_stats, validation_report, created_at, finished_at)
VALUES (:id, :range_start, :range_end, :algorithm, :status, :solver_stats, :validation_report, :created_at, :finished_at)`
	if _, err := sqlx.NamedExecContext(ctx, target, insertQuery, run); err != nil {
		return fmt.Errorf("insert schedule run: %w", err)
	}
	return nil
}

// FindByID loads a run by its identifier.
func (r *ScheduleRunRepository) FindByID(ctx context.Context, id string) (*models.ScheduleRun, error) {
	const query = `SELECT id, range_start, range_end, algorithm, status, solver_stats, validation_report, created_at, finished_at FROM schedule_runs WHERE id = $1`
	var run models.ScheduleRun
	if err := r.db.GetContext(ctx, &run, query, id); err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRecent returns the most recent runs, newest first.
func (r *ScheduleRunRepository) ListRecent(ctx context.Context, limit int) ([]models.ScheduleRun, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	const query = `SELECT id, range_start, range_end, algorithm, status, solver_stats, validation_report, created_at, finished_at
FROM schedule_runs ORDER BY created_at DESC LIMIT $1`
	var runs []models.ScheduleRun
	if err := r.db.SelectContext(ctx, &runs, query, limit); err != nil {
		return nil, fmt.Errorf("list schedule runs: %w", err)
	}
	return runs, nil
}

// Finish records a terminal status along with solver stats and the
// validation report, used at the end of the engine's pipeline whether
// it committed, partially committed, or failed outright.
func (r *ScheduleRunRepository) Finish(ctx context.Context, exec sqlx.ExtContext, id string, status models.RunStatus, solverStats, validationReport []byte) error {
	target := r.exec(exec)
	now := time.Now().UTC()
	const query = `UPDATE schedule_runs SET status = $1, solver_stats = $2, validation_report = $3, finished_at = $4 WHERE id = $5`
	result, err := target.ExecContext(ctx, query, status, solverStats, validationReport, now, id)
	if err != nil {
		return fmt.Errorf("finish schedule run: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("schedule run finish rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
