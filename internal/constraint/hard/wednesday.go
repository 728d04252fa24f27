package hard

import (
	"fmt"
	"time"

	"github.com/gme-scheduler/core/internal/constraint"
	"github.com/gme-scheduler/core/internal/models"
	"github.com/gme-scheduler/core/internal/schedcontext"
)

// WednesdayAMInternOnly forbids non-PGY1 clinic on Wed AM, except for
// a configured, narrowly-scoped exception list of person ids.
type WednesdayAMInternOnly struct {
	ClinicCodes map[string]bool
	Exceptions  map[string]bool
}

// NewWednesdayAMInternOnly constructs the constraint.
func NewWednesdayAMInternOnly(clinicCodes, exceptions []string) *WednesdayAMInternOnly {
	codes := make(map[string]bool, len(clinicCodes))
	for _, c := range clinicCodes {
		codes[c] = true
	}
	exc := make(map[string]bool, len(exceptions))
	for _, e := range exceptions {
		exc[e] = true
	}
	return &WednesdayAMInternOnly{ClinicCodes: codes, Exceptions: exc}
}

func (c *WednesdayAMInternOnly) Name() string               { return "WednesdayAMInternOnly" }
func (c *WednesdayAMInternOnly) Kind() models.ConstraintKind { return models.ConstraintKindHard }
func (c *WednesdayAMInternOnly) Priority() models.Priority   { return models.PriorityCritical }
func (c *WednesdayAMInternOnly) Weight() float64             { return 0 }
func (c *WednesdayAMInternOnly) EncodeCP(constraint.CPModel, *schedcontext.Context) {}
func (c *WednesdayAMInternOnly) EncodeLP(constraint.LPModel, *schedcontext.Context) {}

func (c *WednesdayAMInternOnly) Validate(schedule []models.Assignment, ctx *schedcontext.Context) []models.Violation {
	roleByPerson := make(map[string]models.Role, len(ctx.People))
	for _, p := range ctx.People {
		roleByPerson[p.ID] = p.Role
	}
	var violations []models.Violation
	for _, a := range schedule {
		if a.Period != models.PeriodAM || a.Date.Weekday() != time.Wednesday || !c.ClinicCodes[a.ActivityCode] {
			continue
		}
		if c.Exceptions[a.PersonID] || roleByPerson[a.PersonID] == models.RoleResidentPGY1 {
			continue
		}
		violations = append(violations, models.Violation{
			ConstraintName: c.Name(), Kind: c.Kind(), PersonID: a.PersonID,
			Message: fmt.Sprintf("%s in Wed AM clinic but is not PGY1", a.PersonID),
		})
	}
	return violations
}

// WednesdayPMSingleFaculty enforces exactly one faculty covers Wed PM
// clinic; all other faculty are expected in lecture.
type WednesdayPMSingleFaculty struct {
	ClinicCodes map[string]bool
}

// NewWednesdayPMSingleFaculty constructs the constraint.
func NewWednesdayPMSingleFaculty(clinicCodes []string) *WednesdayPMSingleFaculty {
	codes := make(map[string]bool, len(clinicCodes))
	for _, c := range clinicCodes {
		codes[c] = true
	}
	return &WednesdayPMSingleFaculty{ClinicCodes: codes}
}

func (c *WednesdayPMSingleFaculty) Name() string               { return "WednesdayPMSingleFaculty" }
func (c *WednesdayPMSingleFaculty) Kind() models.ConstraintKind { return models.ConstraintKindHard }
func (c *WednesdayPMSingleFaculty) Priority() models.Priority   { return models.PriorityCritical }
func (c *WednesdayPMSingleFaculty) Weight() float64             { return 0 }
func (c *WednesdayPMSingleFaculty) EncodeCP(constraint.CPModel, *schedcontext.Context) {}
func (c *WednesdayPMSingleFaculty) EncodeLP(constraint.LPModel, *schedcontext.Context) {}

func (c *WednesdayPMSingleFaculty) Validate(schedule []models.Assignment, ctx *schedcontext.Context) []models.Violation {
	roleByPerson := make(map[string]models.Role, len(ctx.People))
	for _, p := range ctx.People {
		roleByPerson[p.ID] = p.Role
	}
	countByDate := make(map[string]int)
	for _, s := range ctx.Slots {
		if s.Period == models.PeriodPM && s.Date.Weekday() == time.Wednesday && !s.IsHoliday {
			countByDate[s.Date.Format("2006-01-02")] = 0
		}
	}
	for _, a := range schedule {
		if a.Period != models.PeriodPM || a.Date.Weekday() != time.Wednesday || !c.ClinicCodes[a.ActivityCode] {
			continue
		}
		if !roleByPerson[a.PersonID].IsFaculty() {
			continue
		}
		countByDate[a.Date.Format("2006-01-02")]++
	}
	var violations []models.Violation
	for dateKey, n := range countByDate {
		if n == 1 {
			continue
		}
		violations = append(violations, models.Violation{
			ConstraintName: c.Name(), Kind: c.Kind(),
			Message: fmt.Sprintf("%s: %d faculty in Wed PM clinic, expected exactly 1", dateKey, n),
		})
	}
	return violations
}

// ProtectedSlots marks Wed PM lecture and the 4th-Wed-PM advising slot
// immutable: the solver may never reassign them once preloaded.
type ProtectedSlots struct {
	LectureCode  string
	AdvisingCode string
}

// NewProtectedSlots constructs the constraint.
func NewProtectedSlots(lectureCode, advisingCode string) *ProtectedSlots {
	return &ProtectedSlots{LectureCode: lectureCode, AdvisingCode: advisingCode}
}

func (c *ProtectedSlots) Name() string               { return "ProtectedSlots" }
func (c *ProtectedSlots) Kind() models.ConstraintKind { return models.ConstraintKindHard }
func (c *ProtectedSlots) Priority() models.Priority   { return models.PriorityCritical }
func (c *ProtectedSlots) Weight() float64             { return 0 }
func (c *ProtectedSlots) EncodeCP(constraint.CPModel, *schedcontext.Context) {}
func (c *ProtectedSlots) EncodeLP(constraint.LPModel, *schedcontext.Context) {}

func (c *ProtectedSlots) Validate(schedule []models.Assignment, ctx *schedcontext.Context) []models.Violation {
	preloadedProtected := make(map[models.AssignmentKey]models.Assignment)
	for _, pre := range ctx.Preloads {
		if pre.ActivityCode == c.LectureCode || pre.ActivityCode == c.AdvisingCode {
			preloadedProtected[pre.Key()] = pre
		}
	}
	var violations []models.Violation
	for _, a := range schedule {
		pre, wasProtected := preloadedProtected[a.Key()]
		if !wasProtected {
			continue
		}
		if a.ActivityCode != pre.ActivityCode || a.PersonID != pre.PersonID {
			slotKey := models.SlotKey{Date: a.Date.Format("2006-01-02"), Period: a.Period}
			violations = append(violations, models.Violation{
				ConstraintName: c.Name(), Kind: c.Kind(), PersonID: a.PersonID, SlotKey: &slotKey,
				Message: fmt.Sprintf("protected slot %s %s overwritten", slotKey.Date, slotKey.Period),
			})
		}
	}
	return violations
}
