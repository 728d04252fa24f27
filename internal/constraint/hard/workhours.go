package hard

import (
	"fmt"
	"sort"

	"github.com/gme-scheduler/core/internal/constraint"
	"github.com/gme-scheduler/core/internal/models"
	"github.com/gme-scheduler/core/internal/schedcontext"
)

const hoursPerHalfDay = 6

// EightyHourRule enforces that for every person and every rolling
// 28-day window, assigned half-days * 6 <= 320 hours (spec.md §4.4,
// implemented as sum(x) <= 53 half-days per window).
type EightyHourRule struct{}

// NewEightyHourRule constructs the constraint.
func NewEightyHourRule() *EightyHourRule { return &EightyHourRule{} }

func (c *EightyHourRule) Name() string               { return "EightyHourRule" }
func (c *EightyHourRule) Kind() models.ConstraintKind { return models.ConstraintKindHard }
func (c *EightyHourRule) Priority() models.Priority   { return models.PriorityCritical }
func (c *EightyHourRule) Weight() float64             { return 0 }

// EncodeCP is a no-op: the rolling 28-day window is only checked
// post-hoc by Validate against the committed schedule, matching the
// validator's own 80-hour pass in spec.md §4.8.
func (c *EightyHourRule) EncodeCP(constraint.CPModel, *schedcontext.Context) {}

// EncodeLP expresses each person's rolling window as a linear
// inequality: sum of that window's half-day variables <= 53.
func (c *EightyHourRule) EncodeLP(model constraint.LPModel, ctx *schedcontext.Context) {
	for _, p := range ctx.People {
		windows := rollingWindows(ctx.Slots, 28)
		for _, window := range windows {
			coeffs := make(map[string]float64)
			for _, s := range window {
				for _, t := range ctx.SolverEligibleTemplates() {
					coeffs[fmt.Sprintf("x_%s_%s_%s", p.ID, s.Key().Date, t.ID)] = 1
				}
			}
			if len(coeffs) > 0 {
				model.AddLinearLE(coeffs, 53)
			}
		}
	}
}

func (c *EightyHourRule) Validate(schedule []models.Assignment, ctx *schedcontext.Context) []models.Violation {
	byPerson := groupByPerson(schedule)
	var violations []models.Violation
	for personID, assignments := range byPerson {
		sort.Slice(assignments, func(i, j int) bool { return assignments[i].Date.Before(assignments[j].Date) })
		for _, window := range rollingAssignmentWindows(assignments, 28) {
			sum := len(window.assignments) * hoursPerHalfDay
			if sum <= 320 {
				continue
			}
			violations = append(violations, models.Violation{
				ConstraintName: c.Name(),
				Kind:           c.Kind(),
				PersonID:       personID,
				Message:        fmt.Sprintf("window starting %s: %d hours exceeds 320 (excess %d)", window.start.Format("2006-01-02"), sum, sum-320),
			})
		}
	}
	return violations
}

// OneInSevenRule enforces that no person has 7 consecutive calendar
// days without at least one fully unassigned day.
type OneInSevenRule struct{}

// NewOneInSevenRule constructs the constraint.
func NewOneInSevenRule() *OneInSevenRule { return &OneInSevenRule{} }

func (c *OneInSevenRule) Name() string               { return "OneInSevenRule" }
func (c *OneInSevenRule) Kind() models.ConstraintKind { return models.ConstraintKindHard }
func (c *OneInSevenRule) Priority() models.Priority   { return models.PriorityCritical }
func (c *OneInSevenRule) Weight() float64             { return 0 }

func (c *OneInSevenRule) EncodeCP(constraint.CPModel, *schedcontext.Context) {}

// EncodeLP is also left unencoded: the validator is the system of
// record for this rule since an "off day" spans both periods and does
// not linearize cleanly against the per-slot decision variables.
func (c *OneInSevenRule) EncodeLP(constraint.LPModel, *schedcontext.Context) {}

func (c *OneInSevenRule) Validate(schedule []models.Assignment, ctx *schedcontext.Context) []models.Violation {
	byPerson := groupByPerson(schedule)
	var violations []models.Violation
	for personID, assignments := range byPerson {
		occupiedDays := make(map[string]bool)
		for _, a := range assignments {
			occupiedDays[a.Date.Format("2006-01-02")] = true
		}
		dates := sortedDates(ctx.Slots)
		for i := 0; i+7 <= len(dates); i++ {
			window := dates[i : i+7]
			hasOffDay := false
			for _, d := range window {
				if !occupiedDays[d.Format("2006-01-02")] {
					hasOffDay = true
					break
				}
			}
			if !hasOffDay {
				violations = append(violations, models.Violation{
					ConstraintName: c.Name(),
					Kind:           c.Kind(),
					PersonID:       personID,
					Message:        fmt.Sprintf("no off day in window starting %s", window[0].Format("2006-01-02")),
				})
			}
		}
	}
	return violations
}
