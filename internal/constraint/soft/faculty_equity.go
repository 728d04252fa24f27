package soft

import (
	"fmt"

	"github.com/gme-scheduler/core/internal/constraint"
	"github.com/gme-scheduler/core/internal/models"
	"github.com/gme-scheduler/core/internal/schedcontext"
)

// FacultyClinicEquity pushes each faculty's weekly clinic half-day
// count toward (min_c+max_c)/2, linearly penalizing the deviation.
// Per spec.md §9's open design note, the threshold at which this
// switches from a linear penalty to a lexicographic one is left as a
// configurable parameter (LexicographicAbove); the linear form is
// always applied below it.
type FacultyClinicEquity struct {
	weight            float64
	ClinicCodes       map[string]bool
	LexicographicAbove float64
}

// NewFacultyClinicEquity constructs the constraint with spec.md's
// default weight (15) when weight <= 0. lexicographicAbove <= 0
// disables the lexicographic escalation entirely (pure linear).
func NewFacultyClinicEquity(weight float64, clinicCodes []string, lexicographicAbove float64) *FacultyClinicEquity {
	if weight <= 0 {
		weight = WeightFacultyClinicEquity
	}
	codes := make(map[string]bool, len(clinicCodes))
	for _, c := range clinicCodes {
		codes[c] = true
	}
	return &FacultyClinicEquity{weight: weight, ClinicCodes: codes, LexicographicAbove: lexicographicAbove}
}

func (c *FacultyClinicEquity) Name() string               { return "FacultyClinicEquity" }
func (c *FacultyClinicEquity) Kind() models.ConstraintKind { return models.ConstraintKindSoft }
func (c *FacultyClinicEquity) Priority() models.Priority   { return models.PriorityMedium }
func (c *FacultyClinicEquity) Weight() float64             { return c.weight }
func (c *FacultyClinicEquity) EncodeCP(constraint.CPModel, *schedcontext.Context) {}

func (c *FacultyClinicEquity) EncodeLP(model constraint.LPModel, ctx *schedcontext.Context) {
	for _, p := range ctx.People {
		if !p.Role.IsFaculty() {
			continue
		}
		model.AddObjectiveTerm(fmt.Sprintf("clinic_deviation_%s", p.ID), -c.weight)
	}
}

func (c *FacultyClinicEquity) Validate(schedule []models.Assignment, ctx *schedcontext.Context) []models.Violation {
	target := make(map[string]float64, len(ctx.People))
	for _, p := range ctx.People {
		if !p.Role.IsFaculty() {
			continue
		}
		target[p.ID] = float64(p.Clinic.Min+p.Clinic.Max) / 2
	}
	counts := make(map[string]map[string]int) // personID -> weekKey -> count
	for _, a := range schedule {
		if !c.ClinicCodes[a.ActivityCode] {
			continue
		}
		if _, isFaculty := target[a.PersonID]; !isFaculty {
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
		t := target[personID]
		for weekKey, n := range weeks {
			deviation := float64(n) - t
			if deviation < 0 {
				deviation = -deviation
			}
			if deviation == 0 {
				continue
			}
			weight := c.weight * deviation
			if c.LexicographicAbove > 0 && deviation > c.LexicographicAbove {
				weight = c.weight * deviation * deviation
			}
			violations = append(violations, models.Violation{
				ConstraintName: c.Name(), Kind: c.Kind(), PersonID: personID,
				Weight:  weight,
				Message: fmt.Sprintf("%s had %d clinic half-days in %s, target %.1f", personID, n, weekKey, t),
			})
		}
	}
	return violations
}
