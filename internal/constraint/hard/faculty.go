package hard

import (
	"fmt"

	"github.com/gme-scheduler/core/internal/constraint"
	"github.com/gme-scheduler/core/internal/models"
	"github.com/gme-scheduler/core/internal/schedcontext"
)

// FacultyWeeklyClinicBounds enforces each person's (min_c, max_c) in
// each calendar week; min_c may be globally overridden to 0. Only weeks
// in which the person has at least one clinic half-day are checked, so
// a week with no clinic at all is never flagged against min_c.
type FacultyWeeklyClinicBounds struct {
	ClinicCodes   map[string]bool
	OverrideMinZero bool
}

// NewFacultyWeeklyClinicBounds constructs the constraint.
func NewFacultyWeeklyClinicBounds(clinicCodes []string, overrideMinZero bool) *FacultyWeeklyClinicBounds {
	codes := make(map[string]bool, len(clinicCodes))
	for _, c := range clinicCodes {
		codes[c] = true
	}
	return &FacultyWeeklyClinicBounds{ClinicCodes: codes, OverrideMinZero: overrideMinZero}
}

func (c *FacultyWeeklyClinicBounds) Name() string               { return "FacultyWeeklyClinicBounds" }
func (c *FacultyWeeklyClinicBounds) Kind() models.ConstraintKind { return models.ConstraintKindHard }
func (c *FacultyWeeklyClinicBounds) Priority() models.Priority   { return models.PriorityCritical }
func (c *FacultyWeeklyClinicBounds) Weight() float64             { return 0 }
func (c *FacultyWeeklyClinicBounds) EncodeCP(constraint.CPModel, *schedcontext.Context) {}
func (c *FacultyWeeklyClinicBounds) EncodeLP(constraint.LPModel, *schedcontext.Context) {}

func (c *FacultyWeeklyClinicBounds) Validate(schedule []models.Assignment, ctx *schedcontext.Context) []models.Violation {
	boundsByPerson := make(map[string]models.ClinicBounds, len(ctx.People))
	for _, p := range ctx.People {
		boundsByPerson[p.ID] = p.Clinic
	}
	counts := make(map[string]map[string]int) // personID -> isoYearWeek -> count
	for _, a := range schedule {
		if !c.ClinicCodes[a.ActivityCode] {
			continue
		}
		year, week := a.Date.ISOWeek()
		weekKey := fmt.Sprintf("%d-W%02d", year, week)
		if counts[a.PersonID] == nil {
			counts[a.PersonID] = make(map[string]int)
		}
		counts[a.PersonID][weekKey]++
	}
	var violations []models.Violation
	for personID, weeks := range counts {
		bounds := boundsByPerson[personID]
		min := bounds.Min
		if c.OverrideMinZero {
			min = 0
		}
		for weekKey, n := range weeks {
			if n < min || (bounds.Max > 0 && n > bounds.Max) {
				violations = append(violations, models.Violation{
					ConstraintName: c.Name(), Kind: c.Kind(), PersonID: personID,
					Message: fmt.Sprintf("%s: %d clinic half-days in %s outside [%d,%d]", personID, n, weekKey, min, bounds.Max),
				})
			}
		}
	}
	return violations
}

// FacultyDayAvailability forbids assigning clinic on a weekday for
// which the faculty's availability flag is false.
type FacultyDayAvailability struct {
	ClinicCodes map[string]bool
}

// NewFacultyDayAvailability constructs the constraint.
func NewFacultyDayAvailability(clinicCodes []string) *FacultyDayAvailability {
	codes := make(map[string]bool, len(clinicCodes))
	for _, c := range clinicCodes {
		codes[c] = true
	}
	return &FacultyDayAvailability{ClinicCodes: codes}
}

func (c *FacultyDayAvailability) Name() string               { return "FacultyDayAvailability" }
func (c *FacultyDayAvailability) Kind() models.ConstraintKind { return models.ConstraintKindHard }
func (c *FacultyDayAvailability) Priority() models.Priority   { return models.PriorityCritical }
func (c *FacultyDayAvailability) Weight() float64             { return 0 }
func (c *FacultyDayAvailability) EncodeCP(constraint.CPModel, *schedcontext.Context) {}
func (c *FacultyDayAvailability) EncodeLP(constraint.LPModel, *schedcontext.Context) {}

func (c *FacultyDayAvailability) Validate(schedule []models.Assignment, ctx *schedcontext.Context) []models.Violation {
	weekdayByPerson := make(map[string]models.WeekdayAvailability, len(ctx.People))
	for _, p := range ctx.People {
		weekdayByPerson[p.ID] = p.Weekday
	}
	var violations []models.Violation
	for _, a := range schedule {
		if !c.ClinicCodes[a.ActivityCode] {
			continue
		}
		if weekdayByPerson[a.PersonID].OnWeekday(int(a.Date.Weekday())) {
			continue
		}
		violations = append(violations, models.Violation{
			ConstraintName: c.Name(), Kind: c.Kind(), PersonID: a.PersonID,
			Message: fmt.Sprintf("%s assigned clinic on an unavailable weekday (%s)", a.PersonID, a.Date.Weekday()),
		})
	}
	return violations
}

// CallAvailability enforces Blocked => no call; subsumes FMIT-week and
// night-float faculty exclusions since those are encoded as Blocked
// entries in the availability matrix.
type CallAvailability struct{}

// NewCallAvailability constructs the constraint.
func NewCallAvailability() *CallAvailability { return &CallAvailability{} }

func (c *CallAvailability) Name() string               { return "CallAvailability" }
func (c *CallAvailability) Kind() models.ConstraintKind { return models.ConstraintKindHard }
func (c *CallAvailability) Priority() models.Priority   { return models.PriorityCritical }
func (c *CallAvailability) Weight() float64             { return 0 }
func (c *CallAvailability) EncodeCP(constraint.CPModel, *schedcontext.Context) {}
func (c *CallAvailability) EncodeLP(constraint.LPModel, *schedcontext.Context) {}

func (c *CallAvailability) Validate(schedule []models.Assignment, ctx *schedcontext.Context) []models.Violation {
	var violations []models.Violation
	for _, a := range schedule {
		if a.ActivityCode != "call" {
			continue
		}
		key := models.SlotKey{Date: a.Date.Format("2006-01-02"), Period: models.PeriodPM}
		if ctx.Availability.CanAssign(a.PersonID, key) {
			continue
		}
		violations = append(violations, models.Violation{
			ConstraintName: c.Name(), Kind: c.Kind(), PersonID: a.PersonID, SlotKey: &key,
			Message: fmt.Sprintf("%s assigned call while blocked on %s", a.PersonID, key.Date),
		})
	}
	return violations
}

// SMResidentFacultyAlignment enforces that a resident on the SM
// rotation shares every SM clinic half-day with an SM faculty; if the
// SM faculty is on FMIT that week, SM clinic is cancelled for the week
// rather than checked here (that cancellation happens in the preload
// pipeline).
type SMResidentFacultyAlignment struct {
	SMClinicCode  string
	SMFacultyRole models.Role
}

// NewSMResidentFacultyAlignment constructs the constraint.
func NewSMResidentFacultyAlignment(smClinicCode string) *SMResidentFacultyAlignment {
	return &SMResidentFacultyAlignment{SMClinicCode: smClinicCode, SMFacultyRole: models.RoleFacultySportsMed}
}

func (c *SMResidentFacultyAlignment) Name() string               { return "SMResidentFacultyAlignment" }
func (c *SMResidentFacultyAlignment) Kind() models.ConstraintKind { return models.ConstraintKindHard }
func (c *SMResidentFacultyAlignment) Priority() models.Priority   { return models.PriorityCritical }
func (c *SMResidentFacultyAlignment) Weight() float64             { return 0 }
func (c *SMResidentFacultyAlignment) EncodeCP(constraint.CPModel, *schedcontext.Context) {}
func (c *SMResidentFacultyAlignment) EncodeLP(constraint.LPModel, *schedcontext.Context) {}

func (c *SMResidentFacultyAlignment) Validate(schedule []models.Assignment, ctx *schedcontext.Context) []models.Violation {
	roleByPerson := make(map[string]models.Role, len(ctx.People))
	for _, p := range ctx.People {
		roleByPerson[p.ID] = p.Role
	}
	smFacultyOnSlot := make(map[models.SlotKey]bool)
	residentOnSlot := make(map[models.SlotKey][]string)
	for _, a := range schedule {
		if a.ActivityCode != c.SMClinicCode {
			continue
		}
		key := models.SlotKey{Date: a.Date.Format("2006-01-02"), Period: a.Period}
		if roleByPerson[a.PersonID] == c.SMFacultyRole {
			smFacultyOnSlot[key] = true
		} else if roleByPerson[a.PersonID].IsResident() {
			residentOnSlot[key] = append(residentOnSlot[key], a.PersonID)
		}
	}
	var violations []models.Violation
	for key, residents := range residentOnSlot {
		if smFacultyOnSlot[key] {
			continue
		}
		k := key
		for _, personID := range residents {
			violations = append(violations, models.Violation{
				ConstraintName: c.Name(), Kind: c.Kind(), PersonID: personID, SlotKey: &k,
				Message: fmt.Sprintf("%s in SM clinic without SM faculty on %s %s", personID, key.Date, key.Period),
			})
		}
	}
	return violations
}
