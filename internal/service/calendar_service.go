package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/gme-scheduler/core/internal/models"
	appErrors "github.com/gme-scheduler/core/pkg/errors"
)

type holidayRepository interface {
	List(ctx context.Context, filter models.HolidayFilter) ([]models.Holiday, int, error)
	DatesInRange(ctx context.Context, start, end time.Time) (map[string]bool, error)
	GetByID(ctx context.Context, id string) (*models.Holiday, error)
	Create(ctx context.Context, holiday *models.Holiday) error
	Delete(ctx context.Context, id string) error
}

// HolidayService manages the institutional holiday calendar that C1
// and the preload pipeline's absence phase consult when stamping dates.
type HolidayService struct {
	repo      holidayRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewHolidayService constructs the service.
func NewHolidayService(repo holidayRepository, validate *validator.Validate, logger *zap.Logger) *HolidayService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HolidayService{repo: repo, validator: validate, logger: logger}
}

// HolidayListRequest describes filters for listing holidays.
type HolidayListRequest struct {
	StartDate    *time.Time `json:"startDate"`
	EndDate      *time.Time `json:"endDate"`
	AcademicYear string     `json:"academicYear"`
	Page         int        `json:"page"`
	PageSize     int        `json:"pageSize"`
}

// CreateHolidayRequest describes the create payload.
type CreateHolidayRequest struct {
	Date         time.Time `json:"date" validate:"required"`
	Name         string    `json:"name" validate:"required"`
	AcademicYear string    `json:"academicYear" validate:"required"`
	CreatedBy    string    `json:"createdBy" validate:"required"`
}

// List returns holidays matching the filter.
func (s *HolidayService) List(ctx context.Context, req HolidayListRequest) ([]models.Holiday, *models.Pagination, error) {
	filter := models.HolidayFilter{
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		AcademicYear: req.AcademicYear,
		Page:         req.Page,
		PageSize:     req.PageSize,
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 200
	}
	holidays, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list holidays")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return holidays, pagination, nil
}

// DatesInRange delegates to the repository's cheap membership-check form,
// used by the calendar package when stamping IsHoliday on a Slot.
func (s *HolidayService) DatesInRange(ctx context.Context, start, end time.Time) (map[string]bool, error) {
	dates, err := s.repo.DatesInRange(ctx, start, end)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load holiday dates")
	}
	return dates, nil
}

// Get returns a holiday by id.
func (s *HolidayService) Get(ctx context.Context, id string) (*models.Holiday, error) {
	holiday, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "holiday not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to get holiday")
	}
	return holiday, nil
}

// Create registers a new holiday.
func (s *HolidayService) Create(ctx context.Context, req CreateHolidayRequest) (*models.Holiday, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	holiday := &models.Holiday{
		Date:         req.Date,
		Name:         req.Name,
		AcademicYear: req.AcademicYear,
		CreatedBy:    req.CreatedBy,
	}
	if err := s.repo.Create(ctx, holiday); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create holiday")
	}
	return holiday, nil
}

// Delete removes a holiday.
func (s *HolidayService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete holiday")
	}
	return nil
}
