package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/gme-scheduler/core/internal/models"
)

// ResidentBlockRotationRepository persists which template a resident is
// assigned to for a given academic block (or block-half).
type ResidentBlockRotationRepository struct {
	db *sqlx.DB
}

// NewResidentBlockRotationRepository constructs the repository.
func NewResidentBlockRotationRepository(db *sqlx.DB) *ResidentBlockRotationRepository {
	return &ResidentBlockRotationRepository{db: db}
}

// ListByPerson returns a resident's block rotations for an academic year.
func (r *ResidentBlockRotationRepository) ListByPerson(ctx context.Context, personID, academicYear string) ([]models.ResidentBlockRotation, error) {
	const query = `
SELECT id, person_id, block_number, academic_year, block_half, template_id
FROM resident_block_rotations
WHERE person_id = $1 AND academic_year = $2
ORDER BY block_number ASC, block_half ASC NULLS FIRST`
	var rotations []models.ResidentBlockRotation
	if err := r.db.SelectContext(ctx, &rotations, query, personID, academicYear); err != nil {
		return nil, fmt.Errorf("list resident block rotations: %w", err)
	}
	return rotations, nil
}

// ListByBlock returns every resident's rotation for a specific block
// (and optional block-half), the shape C3/C5 consume when building an
// availability matrix for one block at a time.
func (r *ResidentBlockRotationRepository) ListByBlock(ctx context.Context, academicYear string, blockNumber int) ([]models.ResidentBlockRotation, error) {
	const query = `
SELECT id, person_id, block_number, academic_year, block_half, template_id
FROM resident_block_rotations
WHERE academic_year = $1 AND block_number = $2
ORDER BY person_id ASC`
	var rotations []models.ResidentBlockRotation
	if err := r.db.SelectContext(ctx, &rotations, query, academicYear, blockNumber); err != nil {
		return nil, fmt.Errorf("list resident block rotations by block: %w", err)
	}
	return rotations, nil
}

// Exists checks whether a rotation already occupies the given key.
func (r *ResidentBlockRotationRepository) Exists(ctx context.Context, key models.ResidentBlockRotationKey) (bool, error) {
	const query = `SELECT 1 FROM resident_block_rotations WHERE person_id = $1 AND block_number = $2 AND academic_year = $3 AND COALESCE(block_half, 0) = $4 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, key.PersonID, key.BlockNumber, key.AcademicYear, key.BlockHalf); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check resident block rotation: %w", err)
	}
	return true, nil
}

// Create inserts a new rotation assignment.
func (r *ResidentBlockRotationRepository) Create(ctx context.Context, rotation *models.ResidentBlockRotation) error {
	if rotation.ID == "" {
		rotation.ID = uuid.NewString()
	}
	const query = `INSERT INTO resident_block_rotations (id, person_id, block_number, academic_year, block_half, template_id)
		VALUES (:id, :person_id, :block_number, :academic_year, :block_half, :template_id)`
	if _, err := r.db.NamedExecContext(ctx, query, rotation); err != nil {
		return fmt.Errorf("create resident block rotation: %w", err)
	}
	return nil
}

// Delete removes a rotation assignment verifying ownership.
func (r *ResidentBlockRotationRepository) Delete(ctx context.Context, personID, rotationID string) error {
	const query = `DELETE FROM resident_block_rotations WHERE id = $1 AND person_id = $2`
	result, err := r.db.ExecContext(ctx, query, rotationID, personID)
	if err != nil {
		return fmt.Errorf("delete resident block rotation: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check deleted rotation rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountByPersonAndYear returns number of rotations recorded for a
// resident in an academic year.
func (r *ResidentBlockRotationRepository) CountByPersonAndYear(ctx context.Context, personID, academicYear string) (int, error) {
	const query = `SELECT COUNT(*) FROM resident_block_rotations WHERE person_id = $1 AND academic_year = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, personID, academicYear); err != nil {
		return 0, fmt.Errorf("count resident block rotations: %w", err)
	}
	return count, nil
}
