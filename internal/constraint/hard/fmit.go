package hard

import (
	"fmt"
	"time"

	"github.com/gme-scheduler/core/internal/calendar"
	"github.com/gme-scheduler/core/internal/constraint"
	"github.com/gme-scheduler/core/internal/models"
	"github.com/gme-scheduler/core/internal/schedcontext"
)

// FMITMandatoryCall enforces that the FMIT attending for a given week
// takes call on both that week's Friday and Saturday nights.
type FMITMandatoryCall struct{}

// NewFMITMandatoryCall constructs the constraint.
func NewFMITMandatoryCall() *FMITMandatoryCall { return &FMITMandatoryCall{} }

func (c *FMITMandatoryCall) Name() string               { return "FMITMandatoryCall" }
func (c *FMITMandatoryCall) Kind() models.ConstraintKind { return models.ConstraintKindHard }
func (c *FMITMandatoryCall) Priority() models.Priority   { return models.PriorityCritical }
func (c *FMITMandatoryCall) Weight() float64             { return 0 }
func (c *FMITMandatoryCall) EncodeCP(constraint.CPModel, *schedcontext.Context) {}
func (c *FMITMandatoryCall) EncodeLP(constraint.LPModel, *schedcontext.Context) {}

func (c *FMITMandatoryCall) Validate(schedule []models.Assignment, ctx *schedcontext.Context) []models.Violation {
	fmitByWeekPerson := make(map[string]string) // weekID -> personID
	for _, a := range schedule {
		if a.ActivityCode != "FMIT" {
			continue
		}
		friday, _ := calendar.FMITWeekOf(a.Date)
		fmitByWeekPerson[friday.Format("2006-01-02")] = a.PersonID
	}
	callOn := make(map[string]map[string]bool) // personID -> date -> true
	for _, a := range schedule {
		if a.ActivityCode != "call" {
			continue
		}
		if callOn[a.PersonID] == nil {
			callOn[a.PersonID] = make(map[string]bool)
		}
		callOn[a.PersonID][a.Date.Format("2006-01-02")] = true
	}
	var violations []models.Violation
	for weekKey, personID := range fmitByWeekPerson {
		friday, _ := calendar.FMITWeekOf(mustParseDate(weekKey))
		saturday := friday.AddDate(0, 0, 1)
		if !callOn[personID][friday.Format("2006-01-02")] {
			violations = append(violations, models.Violation{
				ConstraintName: c.Name(), Kind: c.Kind(), PersonID: personID,
				Message: fmt.Sprintf("%s missing mandatory FMIT Friday call %s", personID, friday.Format("2006-01-02")),
			})
		}
		if !callOn[personID][saturday.Format("2006-01-02")] {
			violations = append(violations, models.Violation{
				ConstraintName: c.Name(), Kind: c.Kind(), PersonID: personID,
				Message: fmt.Sprintf("%s missing mandatory FMIT Saturday call %s", personID, saturday.Format("2006-01-02")),
			})
		}
	}
	return violations
}

// PostFMITRecovery enforces that the Friday after a faculty's FMIT
// week carries no assignments for that faculty.
type PostFMITRecovery struct{}

// NewPostFMITRecovery constructs the constraint.
func NewPostFMITRecovery() *PostFMITRecovery { return &PostFMITRecovery{} }

func (c *PostFMITRecovery) Name() string               { return "PostFMITRecovery" }
func (c *PostFMITRecovery) Kind() models.ConstraintKind { return models.ConstraintKindHard }
func (c *PostFMITRecovery) Priority() models.Priority   { return models.PriorityCritical }
func (c *PostFMITRecovery) Weight() float64             { return 0 }
func (c *PostFMITRecovery) EncodeCP(constraint.CPModel, *schedcontext.Context) {}
func (c *PostFMITRecovery) EncodeLP(constraint.LPModel, *schedcontext.Context) {}

func (c *PostFMITRecovery) Validate(schedule []models.Assignment, ctx *schedcontext.Context) []models.Violation {
	fmitWeeksByPerson := make(map[string]map[string]bool)
	for _, a := range schedule {
		if a.ActivityCode != "FMIT" {
			continue
		}
		friday, _ := calendar.FMITWeekOf(a.Date)
		if fmitWeeksByPerson[a.PersonID] == nil {
			fmitWeeksByPerson[a.PersonID] = make(map[string]bool)
		}
		fmitWeeksByPerson[a.PersonID][friday.Format("2006-01-02")] = true
	}
	assignedOn := make(map[string]map[string]bool)
	for _, a := range schedule {
		dateKey := a.Date.Format("2006-01-02")
		if assignedOn[a.PersonID] == nil {
			assignedOn[a.PersonID] = make(map[string]bool)
		}
		assignedOn[a.PersonID][dateKey] = true
	}
	var violations []models.Violation
	for personID, weeks := range fmitWeeksByPerson {
		for weekKey := range weeks {
			friday := mustParseDate(weekKey)
			postFriday := calendar.PostFMITFriday(friday)
			if assignedOn[personID][postFriday.Format("2006-01-02")] {
				violations = append(violations, models.Violation{
					ConstraintName: c.Name(), Kind: c.Kind(), PersonID: personID,
					Message: fmt.Sprintf("%s has an assignment on post-FMIT recovery Friday %s", personID, postFriday.Format("2006-01-02")),
				})
			}
		}
	}
	return violations
}

// PostFMITSundayBlock enforces that the Sunday following an FMIT week
// excludes that week's faculty from overnight call.
type PostFMITSundayBlock struct{}

// NewPostFMITSundayBlock constructs the constraint.
func NewPostFMITSundayBlock() *PostFMITSundayBlock { return &PostFMITSundayBlock{} }

func (c *PostFMITSundayBlock) Name() string               { return "PostFMITSundayBlock" }
func (c *PostFMITSundayBlock) Kind() models.ConstraintKind { return models.ConstraintKindHard }
func (c *PostFMITSundayBlock) Priority() models.Priority   { return models.PriorityCritical }
func (c *PostFMITSundayBlock) Weight() float64             { return 0 }
func (c *PostFMITSundayBlock) EncodeCP(constraint.CPModel, *schedcontext.Context) {}
func (c *PostFMITSundayBlock) EncodeLP(constraint.LPModel, *schedcontext.Context) {}

func (c *PostFMITSundayBlock) Validate(schedule []models.Assignment, ctx *schedcontext.Context) []models.Violation {
	fmitWeeksByPerson := make(map[string]map[string]bool)
	for _, a := range schedule {
		if a.ActivityCode != "FMIT" {
			continue
		}
		friday, _ := calendar.FMITWeekOf(a.Date)
		if fmitWeeksByPerson[a.PersonID] == nil {
			fmitWeeksByPerson[a.PersonID] = make(map[string]bool)
		}
		fmitWeeksByPerson[a.PersonID][friday.Format("2006-01-02")] = true
	}
	var violations []models.Violation
	for _, a := range schedule {
		if a.ActivityCode != "call" {
			continue
		}
		for weekKey := range fmitWeeksByPerson[a.PersonID] {
			friday := mustParseDate(weekKey)
			excludedSunday := calendar.PostFMITSunday(friday)
			if a.Date.Format("2006-01-02") == excludedSunday.Format("2006-01-02") {
				violations = append(violations, models.Violation{
					ConstraintName: c.Name(), Kind: c.Kind(), PersonID: a.PersonID,
					Message: fmt.Sprintf("%s assigned call on excluded post-FMIT Sunday %s", a.PersonID, excludedSunday.Format("2006-01-02")),
				})
			}
		}
	}
	return violations
}

// FMITStaffingFloor forbids an FMIT assignment if it would drop
// available faculty below MinFaculty, or push simultaneous FMIT
// assignments above MaxFraction of total faculty.
type FMITStaffingFloor struct {
	MinFaculty  int
	MaxFraction float64
}

// NewFMITStaffingFloor constructs the constraint with spec defaults
// (minFaculty=5, maxFraction=0.20) when given non-positive values.
func NewFMITStaffingFloor(minFaculty int, maxFraction float64) *FMITStaffingFloor {
	if minFaculty <= 0 {
		minFaculty = 5
	}
	if maxFraction <= 0 {
		maxFraction = 0.20
	}
	return &FMITStaffingFloor{MinFaculty: minFaculty, MaxFraction: maxFraction}
}

func (c *FMITStaffingFloor) Name() string               { return "FMITStaffingFloor" }
func (c *FMITStaffingFloor) Kind() models.ConstraintKind { return models.ConstraintKindHard }
func (c *FMITStaffingFloor) Priority() models.Priority   { return models.PriorityCritical }
func (c *FMITStaffingFloor) Weight() float64             { return 0 }
func (c *FMITStaffingFloor) EncodeCP(constraint.CPModel, *schedcontext.Context) {}
func (c *FMITStaffingFloor) EncodeLP(constraint.LPModel, *schedcontext.Context) {}

func (c *FMITStaffingFloor) Validate(schedule []models.Assignment, ctx *schedcontext.Context) []models.Violation {
	totalFaculty := 0
	for _, p := range ctx.People {
		if p.Role.IsFaculty() {
			totalFaculty++
		}
	}
	if totalFaculty == 0 {
		return nil
	}
	onFMITByDate := make(map[string]int)
	for _, a := range schedule {
		if a.ActivityCode != "FMIT" {
			continue
		}
		onFMITByDate[a.Date.Format("2006-01-02")]++
	}
	var violations []models.Violation
	for dateKey, n := range onFMITByDate {
		available := totalFaculty - n
		if available < c.MinFaculty {
			violations = append(violations, models.Violation{
				ConstraintName: c.Name(), Kind: c.Kind(),
				Message: fmt.Sprintf("%s: only %d faculty available, below floor %d", dateKey, available, c.MinFaculty),
			})
		}
		if float64(n)/float64(totalFaculty) > c.MaxFraction {
			violations = append(violations, models.Violation{
				ConstraintName: c.Name(), Kind: c.Kind(),
				Message: fmt.Sprintf("%s: %d/%d faculty on FMIT exceeds %.0f%% cap", dateKey, n, totalFaculty, c.MaxFraction*100),
			})
		}
	}
	return violations
}

func mustParseDate(s string) (t time.Time) {
	t, _ = time.Parse("2006-01-02", s)
	return t
}
