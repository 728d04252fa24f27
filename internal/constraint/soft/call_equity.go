package soft

import (
	"fmt"
	"time"

	"github.com/gme-scheduler/core/internal/calendar"
	"github.com/gme-scheduler/core/internal/constraint"
	"github.com/gme-scheduler/core/internal/models"
	"github.com/gme-scheduler/core/internal/schedcontext"
)

// SundayEquity caps Sunday call at 1 per faculty per academic block,
// penalizing overruns.
type SundayEquity struct {
	weight float64
}

// NewSundayEquity constructs the constraint with spec.md's default
// weight (10) when weight <= 0.
func NewSundayEquity(weight float64) *SundayEquity {
	if weight <= 0 {
		weight = WeightSundayEquity
	}
	return &SundayEquity{weight: weight}
}

func (c *SundayEquity) Name() string               { return "CallSundayEquity" }
func (c *SundayEquity) Kind() models.ConstraintKind { return models.ConstraintKindSoft }
func (c *SundayEquity) Priority() models.Priority   { return models.PriorityMedium }
func (c *SundayEquity) Weight() float64             { return c.weight }
func (c *SundayEquity) EncodeCP(constraint.CPModel, *schedcontext.Context) {}

func (c *SundayEquity) EncodeLP(model constraint.LPModel, ctx *schedcontext.Context) {
	for _, p := range ctx.FacultyCallEligible() {
		model.AddObjectiveTerm(fmt.Sprintf("sunday_overrun_%s", p.ID), -c.weight)
	}
}

func (c *SundayEquity) Validate(schedule []models.Assignment, ctx *schedcontext.Context) []models.Violation {
	cal := calendar.NewService(calendar.Block0Policy{})
	type key struct {
		person string
		block  int
		ay     string
	}
	counts := make(map[key]int)
	for _, a := range schedule {
		if a.ActivityCode != "call" || a.Date.Weekday() != time.Sunday {
			continue
		}
		ayStart := calendar.AcademicYearStart(a.Date)
		counts[key{a.PersonID, cal.BlockOf(a.Date), ayStart.Format("2006-01-02")}]++
	}
	var violations []models.Violation
	for k, n := range counts {
		if n <= 1 {
			continue
		}
		violations = append(violations, models.Violation{
			ConstraintName: c.Name(), Kind: c.Kind(), PersonID: k.person,
			Weight:  c.weight * float64(n-1),
			Message: fmt.Sprintf("%s has %d Sunday calls in block %d, cap is 1", k.person, n, k.block),
		})
	}
	return violations
}

// WeekdayEquity equalizes Mon-Thu call counts across call-eligible
// faculty.
type WeekdayEquity struct {
	weight float64
}

// NewWeekdayEquity constructs the constraint with spec.md's default
// weight (5) when weight <= 0.
func NewWeekdayEquity(weight float64) *WeekdayEquity {
	if weight <= 0 {
		weight = WeightWeekdayEquity
	}
	return &WeekdayEquity{weight: weight}
}

func (c *WeekdayEquity) Name() string               { return "CallWeekdayEquity" }
func (c *WeekdayEquity) Kind() models.ConstraintKind { return models.ConstraintKindSoft }
func (c *WeekdayEquity) Priority() models.Priority   { return models.PriorityLow }
func (c *WeekdayEquity) Weight() float64             { return c.weight }
func (c *WeekdayEquity) EncodeCP(constraint.CPModel, *schedcontext.Context) {}

func (c *WeekdayEquity) EncodeLP(model constraint.LPModel, ctx *schedcontext.Context) {
	for _, p := range ctx.FacultyCallEligible() {
		model.AddObjectiveTerm(fmt.Sprintf("weekday_deviation_%s", p.ID), -c.weight)
	}
}

func (c *WeekdayEquity) Validate(schedule []models.Assignment, ctx *schedcontext.Context) []models.Violation {
	isMonThu := func(d time.Weekday) bool {
		return d >= time.Monday && d <= time.Thursday
	}
	counts := make(map[string]int)
	eligible := ctx.FacultyCallEligible()
	for _, a := range schedule {
		if a.ActivityCode != "call" || !isMonThu(a.Date.Weekday()) {
			continue
		}
		counts[a.PersonID]++
	}
	if len(eligible) == 0 {
		return nil
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	mean := float64(total) / float64(len(eligible))
	var violations []models.Violation
	for _, p := range eligible {
		deviation := float64(counts[p.ID]) - mean
		if deviation < 0 {
			deviation = -deviation
		}
		if deviation <= 1 {
			continue
		}
		violations = append(violations, models.Violation{
			ConstraintName: c.Name(), Kind: c.Kind(), PersonID: p.ID,
			Weight:  c.weight * (deviation - 1),
			Message: fmt.Sprintf("%s has %d Mon-Thu calls, %.1f off the %0.1f mean", p.ID, counts[p.ID], deviation, mean),
		})
	}
	return violations
}

// CallSpacing penalizes back-to-back eligible-night calls for the same
// person.
type CallSpacing struct {
	weight  float64
	minGap  int // minimum calendar days required between two calls
}

// NewCallSpacing constructs the constraint with spec.md's default
// weight (8) and a minimum gap of 2 days when given non-positive
// values.
func NewCallSpacing(weight float64, minGapDays int) *CallSpacing {
	if weight <= 0 {
		weight = WeightCallSpacing
	}
	if minGapDays <= 0 {
		minGapDays = 2
	}
	return &CallSpacing{weight: weight, minGap: minGapDays}
}

func (c *CallSpacing) Name() string               { return "CallSpacing" }
func (c *CallSpacing) Kind() models.ConstraintKind { return models.ConstraintKindSoft }
func (c *CallSpacing) Priority() models.Priority   { return models.PriorityMedium }
func (c *CallSpacing) Weight() float64             { return c.weight }
func (c *CallSpacing) EncodeCP(constraint.CPModel, *schedcontext.Context) {}

func (c *CallSpacing) EncodeLP(model constraint.LPModel, ctx *schedcontext.Context) {
	for _, p := range ctx.FacultyCallEligible() {
		model.AddObjectiveTerm(fmt.Sprintf("call_backtoback_%s", p.ID), -c.weight)
	}
}

func (c *CallSpacing) Validate(schedule []models.Assignment, ctx *schedcontext.Context) []models.Violation {
	byPerson := make(map[string][]time.Time)
	for _, a := range schedule {
		if a.ActivityCode != "call" {
			continue
		}
		byPerson[a.PersonID] = append(byPerson[a.PersonID], a.Date)
	}
	var violations []models.Violation
	for personID, dates := range byPerson {
		sortTimes(dates)
		for i := 1; i < len(dates); i++ {
			gap := dates[i].Sub(dates[i-1]).Hours() / 24
			if gap >= float64(c.minGap) {
				continue
			}
			violations = append(violations, models.Violation{
				ConstraintName: c.Name(), Kind: c.Kind(), PersonID: personID,
				Weight:  c.weight,
				Message: fmt.Sprintf("%s has calls %s and %s only %.0f day(s) apart", personID, dates[i-1].Format("2006-01-02"), dates[i].Format("2006-01-02"), gap),
			})
		}
	}
	return violations
}

func sortTimes(t []time.Time) {
	for i := 1; i < len(t); i++ {
		for j := i; j > 0 && t[j].Before(t[j-1]); j-- {
			t[j], t[j-1] = t[j-1], t[j]
		}
	}
}

// TuesdayPreference honors a per-person PreferTuesdayCall flag: reward
// Tuesday call for people who opted in, penalize it for those who
// opted out.
type TuesdayPreference struct {
	weight float64
}

// NewTuesdayPreference constructs the constraint with spec.md's
// default weight (2) when weight <= 0.
func NewTuesdayPreference(weight float64) *TuesdayPreference {
	if weight <= 0 {
		weight = WeightTuesdayPreference
	}
	return &TuesdayPreference{weight: weight}
}

func (c *TuesdayPreference) Name() string               { return "CallTuesdayPreference" }
func (c *TuesdayPreference) Kind() models.ConstraintKind { return models.ConstraintKindSoft }
func (c *TuesdayPreference) Priority() models.Priority   { return models.PriorityLow }
func (c *TuesdayPreference) Weight() float64             { return c.weight }
func (c *TuesdayPreference) EncodeCP(constraint.CPModel, *schedcontext.Context) {}

func (c *TuesdayPreference) EncodeLP(model constraint.LPModel, ctx *schedcontext.Context) {
	for _, p := range ctx.FacultyCallEligible() {
		if p.PreferTuesdayCall == nil {
			continue
		}
		weight := c.weight
		if !*p.PreferTuesdayCall {
			weight = -c.weight
		}
		model.AddObjectiveTerm(fmt.Sprintf("tuesday_call_%s", p.ID), weight)
	}
}

func (c *TuesdayPreference) Validate(schedule []models.Assignment, ctx *schedcontext.Context) []models.Violation {
	prefByPerson := make(map[string]*bool, len(ctx.People))
	for _, p := range ctx.People {
		prefByPerson[p.ID] = p.PreferTuesdayCall
	}
	var violations []models.Violation
	for _, a := range schedule {
		if a.ActivityCode != "call" || a.Date.Weekday() != time.Tuesday {
			continue
		}
		pref := prefByPerson[a.PersonID]
		if pref == nil || *pref {
			continue
		}
		violations = append(violations, models.Violation{
			ConstraintName: c.Name(), Kind: c.Kind(), PersonID: a.PersonID,
			Weight:  c.weight,
			Message: fmt.Sprintf("%s assigned Tuesday call despite opting out", a.PersonID),
		})
	}
	return violations
}

// DeptChiefWedPreference prefers Wednesday call for the department
// chief over other nights.
type DeptChiefWedPreference struct {
	weight float64
}

// NewDeptChiefWedPreference constructs the constraint with a small
// tunable default weight (spec.md §4.4 marks this "low").
func NewDeptChiefWedPreference(weight float64) *DeptChiefWedPreference {
	if weight <= 0 {
		weight = WeightDeptChiefWedPref
	}
	return &DeptChiefWedPreference{weight: weight}
}

func (c *DeptChiefWedPreference) Name() string               { return "DeptChiefWednesdayPreference" }
func (c *DeptChiefWedPreference) Kind() models.ConstraintKind { return models.ConstraintKindSoft }
func (c *DeptChiefWedPreference) Priority() models.Priority   { return models.PriorityLow }
func (c *DeptChiefWedPreference) Weight() float64             { return c.weight }
func (c *DeptChiefWedPreference) EncodeCP(constraint.CPModel, *schedcontext.Context) {}

func (c *DeptChiefWedPreference) EncodeLP(model constraint.LPModel, ctx *schedcontext.Context) {
	for _, p := range ctx.People {
		if p.Role != models.RoleFacultyDeptChief {
			continue
		}
		model.AddObjectiveTerm(fmt.Sprintf("deptchief_wed_%s", p.ID), c.weight)
	}
}

func (c *DeptChiefWedPreference) Validate(schedule []models.Assignment, ctx *schedcontext.Context) []models.Violation {
	roleByPerson := make(map[string]models.Role, len(ctx.People))
	for _, p := range ctx.People {
		roleByPerson[p.ID] = p.Role
	}
	byPersonWeek := make(map[string]bool) // personID+weekKey -> has Wed call
	callsByPersonWeek := make(map[string][]models.Assignment)
	for _, a := range schedule {
		if a.ActivityCode != "call" || roleByPerson[a.PersonID] != models.RoleFacultyDeptChief {
			continue
		}
		year, week := a.Date.ISOWeek()
		weekKey := fmt.Sprintf("%s-%d-W%02d", a.PersonID, year, week)
		callsByPersonWeek[weekKey] = append(callsByPersonWeek[weekKey], a)
		if a.Date.Weekday() == time.Wednesday {
			byPersonWeek[weekKey] = true
		}
	}
	var violations []models.Violation
	for weekKey, calls := range callsByPersonWeek {
		if byPersonWeek[weekKey] || len(calls) == 0 {
			continue
		}
		violations = append(violations, models.Violation{
			ConstraintName: c.Name(), Kind: c.Kind(), PersonID: calls[0].PersonID,
			Weight:  c.weight,
			Message: fmt.Sprintf("dept chief %s's call week had no Wednesday call", calls[0].PersonID),
		})
	}
	return violations
}
