package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/gme-scheduler/core/internal/models"
)

// RotationTemplateRepository persists the rotation template catalog
// C3's preload phases and C6's solver both read from.
type RotationTemplateRepository struct {
	db *sqlx.DB
}

// NewRotationTemplateRepository constructs the repository.
func NewRotationTemplateRepository(db *sqlx.DB) *RotationTemplateRepository {
	return &RotationTemplateRepository{db: db}
}

// GetByCode returns a template by its catalog code.
func (r *RotationTemplateRepository) GetByCode(ctx context.Context, code string) (*models.RotationTemplate, error) {
	const query = `SELECT id, code, name, rotation_type, calendar_mode, is_solver_eligible, is_block_half_rotation, week_structure, min_activities_per_week, max_activities_per_week, created_at, updated_at FROM rotation_templates WHERE code = $1`
	var tmpl models.RotationTemplate
	if err := r.db.GetContext(ctx, &tmpl, query, code); err != nil {
		return nil, err
	}
	hydrateWeekStructure(&tmpl)
	return &tmpl, nil
}

// ListAll returns the full catalog, ordered by code.
func (r *RotationTemplateRepository) ListAll(ctx context.Context) ([]models.RotationTemplate, error) {
	const query = `SELECT id, code, name, rotation_type, calendar_mode, is_solver_eligible, is_block_half_rotation, week_structure, min_activities_per_week, max_activities_per_week, created_at, updated_at FROM rotation_templates ORDER BY code ASC`
	var templates []models.RotationTemplate
	if err := r.db.SelectContext(ctx, &templates, query); err != nil {
		return nil, fmt.Errorf("list rotation templates: %w", err)
	}
	for i := range templates {
		hydrateWeekStructure(&templates[i])
	}
	return templates, nil
}

// ListSolverEligible returns only outpatient, solver-eligible templates.
func (r *RotationTemplateRepository) ListSolverEligible(ctx context.Context) ([]models.RotationTemplate, error) {
	const query = `SELECT id, code, name, rotation_type, calendar_mode, is_solver_eligible, is_block_half_rotation, week_structure, min_activities_per_week, max_activities_per_week, created_at, updated_at FROM rotation_templates WHERE is_solver_eligible = true ORDER BY code ASC`
	var templates []models.RotationTemplate
	if err := r.db.SelectContext(ctx, &templates, query); err != nil {
		return nil, fmt.Errorf("list solver-eligible rotation templates: %w", err)
	}
	for i := range templates {
		hydrateWeekStructure(&templates[i])
	}
	return templates, nil
}

// Upsert creates or updates a rotation template keyed on code.
func (r *RotationTemplateRepository) Upsert(ctx context.Context, tmpl *models.RotationTemplate) error {
	if tmpl.ID == "" {
		tmpl.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if tmpl.CreatedAt.IsZero() {
		tmpl.CreatedAt = now
	}
	tmpl.UpdatedAt = now
	if tmpl.WeekStructure != nil {
		encoded, err := json.Marshal(tmpl.WeekStructure)
		if err != nil {
			return fmt.Errorf("encode week structure: %w", err)
		}
		tmpl.WeekStructureJSON = encoded
	} else {
		tmpl.WeekStructureJSON = nil
	}

	const query = `INSERT INTO rotation_templates (id, code, name, rotation_type, calendar_mode, is_solver_eligible, is_block_half_rotation, week_structure, min_activities_per_week, max_activities_per_week, created_at, updated_at)
		VALUES (:id, :code, :name, :rotation_type, :calendar_mode, :is_solver_eligible, :is_block_half_rotation, :week_structure, :min_activities_per_week, :max_activities_per_week, :created_at, :updated_at)
		ON CONFLICT (code) DO UPDATE
		SET name = EXCLUDED.name,
		    rotation_type = EXCLUDED.rotation_type,
		    calendar_mode = EXCLUDED.calendar_mode,
		    is_solver_eligible = EXCLUDED.is_solver_eligible,
		    is_block_half_rotation = EXCLUDED.is_block_half_rotation,
		    week_structure = EXCLUDED.week_structure,
		    min_activities_per_week = EXCLUDED.min_activities_per_week,
		    max_activities_per_week = EXCLUDED.max_activities_per_week,
		    updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, tmpl); err != nil {
		return fmt.Errorf("upsert rotation template: %w", err)
	}
	return nil
}

func hydrateWeekStructure(tmpl *models.RotationTemplate) {
	if len(tmpl.WeekStructureJSON) == 0 {
		return
	}
	var ws models.WeekStructure
	if err := json.Unmarshal(tmpl.WeekStructureJSON, &ws); err == nil {
		tmpl.WeekStructure = &ws
	}
}
