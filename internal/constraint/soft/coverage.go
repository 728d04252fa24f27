// Package soft holds the weighted soft constraints of the catalog
// (spec.md §4.4 soft table): rules a schedule should satisfy but may
// trade off against one another in the solver's objective, and whose
// Validate pass reports a deviation rather than a hard failure.
package soft

import (
	"fmt"

	"github.com/gme-scheduler/core/internal/constraint"
	"github.com/gme-scheduler/core/internal/models"
	"github.com/gme-scheduler/core/internal/schedcontext"
)

// DefaultWeight mirrors each soft constraint's default from spec.md
// §4.4's table; callers may override per-deployment.
const (
	WeightCoverage           = 1000
	WeightHubProtection      = 15
	WeightUtilizationBuffer  = 20
	WeightSundayEquity       = 10
	WeightWeekdayEquity      = 5
	WeightCallSpacing        = 8
	WeightTuesdayPreference  = 2
	WeightDeptChiefWedPref   = 3 // "low", left as a small tunable default
	WeightFacultyClinicEquity = 15
	WeightTemplateBalance    = 5
	WeightContinuity         = 6 // "tunable", left as a small default
)

// Coverage maximizes assigned solver-eligible half-days: every slot a
// solver-eligible template could fill that ends up with no assignment
// at all is penalized.
type Coverage struct {
	weight float64
}

// NewCoverage constructs the constraint with spec.md's default weight
// (1000) when weight <= 0.
func NewCoverage(weight float64) *Coverage {
	if weight <= 0 {
		weight = WeightCoverage
	}
	return &Coverage{weight: weight}
}

func (c *Coverage) Name() string               { return "Coverage" }
func (c *Coverage) Kind() models.ConstraintKind { return models.ConstraintKindSoft }
func (c *Coverage) Priority() models.Priority   { return models.PriorityHigh }
func (c *Coverage) Weight() float64             { return c.weight }

func (c *Coverage) EncodeCP(model constraint.CPModel, ctx *schedcontext.Context) {
	for _, p := range ctx.People {
		for _, s := range ctx.Slots {
			if !ctx.Availability.CanAssign(p.ID, s.Key()) {
				continue
			}
			model.AddPenaltyVar(fmt.Sprintf("uncovered_%s_%s", p.ID, s.Key().Date), c.weight)
		}
	}
}

func (c *Coverage) EncodeLP(model constraint.LPModel, ctx *schedcontext.Context) {
	for _, t := range ctx.SolverEligibleTemplates() {
		model.AddObjectiveTerm(fmt.Sprintf("coverage_%s", t.ID), c.weight)
	}
}

func (c *Coverage) Validate(schedule []models.Assignment, ctx *schedcontext.Context) []models.Violation {
	assignedSlots := make(map[models.AssignmentKey]bool, len(schedule))
	for _, a := range schedule {
		assignedSlots[a.Key()] = true
	}
	var violations []models.Violation
	for _, p := range ctx.People {
		if !p.Role.IsResident() {
			continue
		}
		for _, s := range ctx.Slots {
			key := s.Key()
			if !ctx.Availability.CanAssign(p.ID, key) {
				continue
			}
			assignmentKey := models.AssignmentKey{PersonID: p.ID, Date: key.Date, Period: key.Period}
			if assignedSlots[assignmentKey] {
				continue
			}
			k := key
			violations = append(violations, models.Violation{
				ConstraintName: c.Name(), Kind: c.Kind(), PersonID: p.ID, SlotKey: &k,
				Weight:  c.weight,
				Message: fmt.Sprintf("%s has no assignment on available slot %s %s", p.ID, key.Date, key.Period),
			})
		}
	}
	return violations
}

// TemplateBalance penalizes concentration of a person's assignments in
// a single template relative to an even split across their eligible
// templates.
type TemplateBalance struct {
	weight float64
}

// NewTemplateBalance constructs the constraint with spec.md's default
// weight (5) when weight <= 0.
func NewTemplateBalance(weight float64) *TemplateBalance {
	if weight <= 0 {
		weight = WeightTemplateBalance
	}
	return &TemplateBalance{weight: weight}
}

func (c *TemplateBalance) Name() string               { return "TemplateBalance" }
func (c *TemplateBalance) Kind() models.ConstraintKind { return models.ConstraintKindSoft }
func (c *TemplateBalance) Priority() models.Priority   { return models.PriorityLow }
func (c *TemplateBalance) Weight() float64             { return c.weight }

func (c *TemplateBalance) EncodeCP(constraint.CPModel, *schedcontext.Context) {}

func (c *TemplateBalance) EncodeLP(model constraint.LPModel, ctx *schedcontext.Context) {
	for _, p := range ctx.People {
		for _, t := range ctx.SolverEligibleTemplates() {
			model.AddObjectiveTerm(fmt.Sprintf("balance_%s_%s", p.ID, t.ID), -c.weight)
		}
	}
}

func (c *TemplateBalance) Validate(schedule []models.Assignment, ctx *schedcontext.Context) []models.Violation {
	type personTemplate struct{ person, activity string }
	counts := make(map[personTemplate]int)
	totals := make(map[string]int)
	for _, a := range schedule {
		counts[personTemplate{a.PersonID, a.ActivityCode}]++
		totals[a.PersonID]++
	}
	var violations []models.Violation
	for pt, n := range counts {
		total := totals[pt.person]
		if total == 0 {
			continue
		}
		share := float64(n) / float64(total)
		if share <= 0.75 {
			continue
		}
		violations = append(violations, models.Violation{
			ConstraintName: c.Name(), Kind: c.Kind(), PersonID: pt.person,
			Weight:  c.weight * (share - 0.75),
			Message: fmt.Sprintf("%s concentrated %.0f%% of assignments in %s", pt.person, share*100, pt.activity),
		})
	}
	return violations
}

// Continuity rewards consecutive calendar-day assignments to the same
// person/activity (e.g. an inpatient block) by penalizing single-day
// interruptions within an otherwise unbroken run.
type Continuity struct {
	weight float64
}

// NewContinuity constructs the constraint with a small tunable default
// weight when weight <= 0 (spec.md §4.4 marks this "tunable").
func NewContinuity(weight float64) *Continuity {
	if weight <= 0 {
		weight = WeightContinuity
	}
	return &Continuity{weight: weight}
}

func (c *Continuity) Name() string               { return "Continuity" }
func (c *Continuity) Kind() models.ConstraintKind { return models.ConstraintKindSoft }
func (c *Continuity) Priority() models.Priority   { return models.PriorityLow }
func (c *Continuity) Weight() float64             { return c.weight }

func (c *Continuity) EncodeCP(constraint.CPModel, *schedcontext.Context) {}
func (c *Continuity) EncodeLP(model constraint.LPModel, ctx *schedcontext.Context) {
	for _, p := range ctx.People {
		model.AddObjectiveTerm(fmt.Sprintf("continuity_%s", p.ID), c.weight)
	}
}

func (c *Continuity) Validate(schedule []models.Assignment, ctx *schedcontext.Context) []models.Violation {
	byPerson := make(map[string][]models.Assignment)
	for _, a := range schedule {
		byPerson[a.PersonID] = append(byPerson[a.PersonID], a)
	}
	var violations []models.Violation
	for personID, assignments := range byPerson {
		byActivity := make(map[string][]models.Assignment)
		for _, a := range assignments {
			byActivity[a.ActivityCode] = append(byActivity[a.ActivityCode], a)
		}
		for activity, runs := range byActivity {
			if len(runs) < 2 {
				continue
			}
			sortAssignmentsByDate(runs)
			for i := 1; i < len(runs); i++ {
				gap := runs[i].Date.Sub(runs[i-1].Date).Hours() / 24
				if gap <= 1 {
					continue
				}
				violations = append(violations, models.Violation{
					ConstraintName: c.Name(), Kind: c.Kind(), PersonID: personID,
					Weight:  c.weight * (gap - 1),
					Message: fmt.Sprintf("%s's %s continuity broken between %s and %s", personID, activity, runs[i-1].Date.Format("2006-01-02"), runs[i].Date.Format("2006-01-02")),
				})
			}
		}
	}
	return violations
}

func sortAssignmentsByDate(a []models.Assignment) {
	for i := 1; i < len(a); i++ {
		for j := i; j > 0 && a[j].Date.Before(a[j-1].Date); j-- {
			a[j], a[j-1] = a[j-1], a[j]
		}
	}
}
