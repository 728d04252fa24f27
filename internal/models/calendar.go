package models

import "time"

// Holiday marks a single calendar date as a block-0/institutional
// holiday. C1 consults these when stamping Slot.IsHoliday; the preload
// pipeline's absence phase reads them when generating off-service days.
type Holiday struct {
	ID          string    `db:"id" json:"id"`
	Date        time.Time `db:"date" json:"date"`
	Name        string    `db:"name" json:"name"`
	AcademicYear string   `db:"academic_year" json:"academicYear"`
	CreatedBy   string    `db:"created_by" json:"createdBy"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// HolidayFilter narrows down holiday lookups.
type HolidayFilter struct {
	StartDate    *time.Time
	EndDate      *time.Time
	AcademicYear string
	Page         int
	PageSize     int
}
