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

// HolidayRepository persists the institutional holiday calendar C1
// consults when stamping Slot.IsHoliday and the preload pipeline
// consults when generating absence-phase off-service days.
type HolidayRepository struct {
	db *sqlx.DB
}

// NewHolidayRepository constructs a holiday repository.
func NewHolidayRepository(db *sqlx.DB) *HolidayRepository {
	return &HolidayRepository{db: db}
}

// List returns holidays matching filters.
func (r *HolidayRepository) List(ctx context.Context, filter models.HolidayFilter) ([]models.Holiday, int, error) {
	base := "FROM holidays"
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.StartDate != nil {
		where = append(where, fmt.Sprintf("date >= $%d", len(args)+1))
		args = append(args, *filter.StartDate)
	}
	if filter.EndDate != nil {
		where = append(where, fmt.Sprintf("date <= $%d", len(args)+1))
		args = append(args, *filter.EndDate)
	}
	if filter.AcademicYear != "" {
		where = append(where, fmt.Sprintf("academic_year = $%d", len(args)+1))
		args = append(args, filter.AcademicYear)
	}
	whereClause := strings.Join(where, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 500 {
		size = 200
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT id, date, name, academic_year, created_by, created_at, updated_at
%s WHERE %s ORDER BY date ASC LIMIT %d OFFSET %d`, base, whereClause, size, offset)
	var holidays []models.Holiday
	if err := r.db.SelectContext(ctx, &holidays, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list holidays: %w", err)
	}
	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count holidays: %w", err)
	}
	return holidays, total, nil
}

// DatesInRange returns the set of holiday dates (formatted 2006-01-02)
// between start and end inclusive, for cheap membership checks inside C1.
func (r *HolidayRepository) DatesInRange(ctx context.Context, start, end time.Time) (map[string]bool, error) {
	const query = `SELECT date FROM holidays WHERE date >= $1 AND date <= $2`
	var dates []time.Time
	if err := r.db.SelectContext(ctx, &dates, query, start, end); err != nil {
		return nil, fmt.Errorf("list holiday dates: %w", err)
	}
	out := make(map[string]bool, len(dates))
	for _, d := range dates {
		out[d.Format("2006-01-02")] = true
	}
	return out, nil
}

// GetByID fetches a holiday.
func (r *HolidayRepository) GetByID(ctx context.Context, id string) (*models.Holiday, error) {
	const query = `SELECT id, date, name, academic_year, created_by, created_at, updated_at FROM holidays WHERE id = $1`
	var holiday models.Holiday
	if err := r.db.GetContext(ctx, &holiday, query, id); err != nil {
		return nil, err
	}
	return &holiday, nil
}

// Create inserts a holiday.
func (r *HolidayRepository) Create(ctx context.Context, holiday *models.Holiday) error {
	if holiday.ID == "" {
		holiday.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if holiday.CreatedAt.IsZero() {
		holiday.CreatedAt = now
	}
	holiday.UpdatedAt = now
	query := `INSERT INTO holidays (id, date, name, academic_year, created_by, created_at, updated_at)
VALUES (:id, :date, :name, :academic_year, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, holiday); err != nil {
		return fmt.Errorf("create holiday: %w", err)
	}
	return nil
}

// Delete removes a holiday.
func (r *HolidayRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM holidays WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete holiday: %w", err)
	}
	return nil
}
