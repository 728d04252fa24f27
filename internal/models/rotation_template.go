package models

import "time"

// RotationType classifies what a rotation template actually is.
type RotationType string

const (
	RotationTypeOutpatient RotationType = "outpatient"
	RotationTypeInpatient  RotationType = "inpatient"
	RotationTypeOff        RotationType = "off"
	RotationTypeEducation  RotationType = "education"
	RotationTypeAbsence    RotationType = "absence"
	RotationTypeRecovery   RotationType = "recovery"
)

// CalendarMode is the canonical set resolving the two overlapping enums
// noted as an Open Question in spec.md §9: academic_block, block_half,
// fmit_week and daily are the only modes any consumer needs; a
// gregorian_month mode was referenced in source material but has no
// consumer in this core and is intentionally omitted here.
type CalendarMode string

const (
	CalendarModeAcademicBlock CalendarMode = "academic_block"
	CalendarModeBlockHalf     CalendarMode = "block_half"
	CalendarModeFMITWeek      CalendarMode = "fmit_week"
	CalendarModeDaily         CalendarMode = "daily"
)

// WeekStructure describes a rotation whose week does not run Mon-Sun,
// e.g. the FMIT Friday-Thursday week.
type WeekStructure struct {
	StartWeekday int `json:"startWeekday"` // time.Weekday value
}

// RotationTemplate is the catalog entry the preload pipeline and solver
// both consume. Only outpatient rotations are solver-eligible
// (invariant, spec.md §3); everything else is preloaded.
type RotationTemplate struct {
	ID                   string        `db:"id" json:"id"`
	Code                 string        `db:"code" json:"code"`
	Name                 string        `db:"name" json:"name"`
	RotationType         RotationType  `db:"rotation_type" json:"rotationType"`
	CalendarMode         CalendarMode  `db:"calendar_mode" json:"calendarMode"`
	IsSolverEligible     bool          `db:"is_solver_eligible" json:"isSolverEligible"`
	IsBlockHalfRotation  bool          `db:"is_block_half_rotation" json:"isBlockHalfRotation"`
	WeekStructure        *WeekStructure `db:"-" json:"weekStructure,omitempty"`
	WeekStructureJSON    []byte        `db:"week_structure" json:"-"`
	MinActivitiesPerWeek int           `db:"min_activities_per_week" json:"minActivitiesPerWeek"`
	MaxActivitiesPerWeek int           `db:"max_activities_per_week" json:"maxActivitiesPerWeek"`
	CreatedAt            time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt            time.Time     `db:"updated_at" json:"updatedAt"`
}

// ResidentBlockRotation assigns a person to a template for a whole
// academic block (or block-half). Uniqueness is on the full key
// (person, block_number, academic_year, block_half).
type ResidentBlockRotation struct {
	ID             string `db:"id" json:"id"`
	PersonID       string `db:"person_id" json:"personId"`
	BlockNumber    int    `db:"block_number" json:"blockNumber"`
	AcademicYear   string `db:"academic_year" json:"academicYear"`
	BlockHalf      *int   `db:"block_half" json:"blockHalf,omitempty"`
	TemplateID     string `db:"template_id" json:"templateId"`
}

// Key is the uniqueness identity for a ResidentBlockRotation.
func (r ResidentBlockRotation) Key() ResidentBlockRotationKey {
	half := 0
	if r.BlockHalf != nil {
		half = *r.BlockHalf
	}
	return ResidentBlockRotationKey{
		PersonID:     r.PersonID,
		BlockNumber:  r.BlockNumber,
		AcademicYear: r.AcademicYear,
		BlockHalf:    half,
	}
}

// ResidentBlockRotationKey is the comparable uniqueness key.
type ResidentBlockRotationKey struct {
	PersonID     string
	BlockNumber  int
	AcademicYear string
	BlockHalf    int
}
