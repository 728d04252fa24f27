package hard

import (
	"fmt"

	"github.com/gme-scheduler/core/internal/constraint"
	"github.com/gme-scheduler/core/internal/models"
	"github.com/gme-scheduler/core/internal/schedcontext"
)

// CapacityPerSlot enforces sum_t x_{p,s,t} <= 1: a person may hold at
// most one activity in any half-day slot.
type CapacityPerSlot struct{}

// NewCapacityPerSlot constructs the constraint.
func NewCapacityPerSlot() *CapacityPerSlot { return &CapacityPerSlot{} }

func (c *CapacityPerSlot) Name() string               { return "CapacityPerSlot" }
func (c *CapacityPerSlot) Kind() models.ConstraintKind { return models.ConstraintKindHard }
func (c *CapacityPerSlot) Priority() models.Priority   { return models.PriorityCritical }
func (c *CapacityPerSlot) Weight() float64             { return 0 }

func (c *CapacityPerSlot) EncodeCP(model constraint.CPModel, ctx *schedcontext.Context) {
	for _, p := range ctx.People {
		for _, s := range ctx.Slots {
			literals := make([]string, 0, len(ctx.Templates))
			for _, t := range ctx.SolverEligibleTemplates() {
				literals = append(literals, fmt.Sprintf("x_%s_%s_%s", p.ID, s.Key().Date, t.ID))
			}
			model.AddAtMostOne(literals...)
		}
	}
}

func (c *CapacityPerSlot) EncodeLP(model constraint.LPModel, ctx *schedcontext.Context) {
	for _, p := range ctx.People {
		for _, s := range ctx.Slots {
			coeffs := make(map[string]float64)
			for _, t := range ctx.SolverEligibleTemplates() {
				coeffs[fmt.Sprintf("x_%s_%s_%s", p.ID, s.Key().Date, t.ID)] = 1
			}
			if len(coeffs) > 0 {
				model.AddLinearLE(coeffs, 1)
			}
		}
	}
}

func (c *CapacityPerSlot) Validate(schedule []models.Assignment, ctx *schedcontext.Context) []models.Violation {
	counts := make(map[models.AssignmentKey]int)
	for _, a := range schedule {
		counts[a.Key()]++
	}
	var violations []models.Violation
	for key, n := range counts {
		if n <= 1 {
			continue
		}
		slotKey := models.SlotKey{Date: key.Date, Period: key.Period}
		violations = append(violations, models.Violation{
			ConstraintName: c.Name(),
			Kind:           c.Kind(),
			PersonID:       key.PersonID,
			SlotKey:        &slotKey,
			Message:        fmt.Sprintf("%s holds %d assignments in one slot", key.PersonID, n),
		})
	}
	return violations
}

// ClinicHeadcountCap enforces that every clinic-eligible slot holds at
// most maxClinic (default 6) persons with a clinic-type activity.
type ClinicHeadcountCap struct {
	MaxClinic    int
	ClinicCodes  map[string]bool
}

// NewClinicHeadcountCap constructs the constraint; maxClinic defaults
// to 6 when <= 0.
func NewClinicHeadcountCap(maxClinic int, clinicCodes []string) *ClinicHeadcountCap {
	if maxClinic <= 0 {
		maxClinic = 6
	}
	codes := make(map[string]bool, len(clinicCodes))
	for _, code := range clinicCodes {
		codes[code] = true
	}
	return &ClinicHeadcountCap{MaxClinic: maxClinic, ClinicCodes: codes}
}

func (c *ClinicHeadcountCap) Name() string               { return "ClinicHeadcountCap" }
func (c *ClinicHeadcountCap) Kind() models.ConstraintKind { return models.ConstraintKindHard }
func (c *ClinicHeadcountCap) Priority() models.Priority   { return models.PriorityCritical }
func (c *ClinicHeadcountCap) Weight() float64             { return 0 }

func (c *ClinicHeadcountCap) EncodeCP(model constraint.CPModel, ctx *schedcontext.Context) {
	for _, s := range ctx.Slots {
		coeffs := make(map[string]int)
		for _, p := range ctx.People {
			for _, t := range ctx.Templates {
				if !c.ClinicCodes[t.Code] {
					continue
				}
				coeffs[fmt.Sprintf("x_%s_%s_%s", p.ID, s.Key().Date, t.ID)] = 1
			}
		}
		if len(coeffs) > 0 {
			model.AddLinearLE(coeffs, c.MaxClinic)
		}
	}
}

func (c *ClinicHeadcountCap) EncodeLP(model constraint.LPModel, ctx *schedcontext.Context) {
	for _, s := range ctx.Slots {
		coeffs := make(map[string]float64)
		for _, p := range ctx.People {
			for _, t := range ctx.Templates {
				if !c.ClinicCodes[t.Code] {
					continue
				}
				coeffs[fmt.Sprintf("x_%s_%s_%s", p.ID, s.Key().Date, t.ID)] = 1
			}
		}
		if len(coeffs) > 0 {
			model.AddLinearLE(coeffs, float64(c.MaxClinic))
		}
	}
}

func (c *ClinicHeadcountCap) Validate(schedule []models.Assignment, ctx *schedcontext.Context) []models.Violation {
	counts := make(map[models.SlotKey]int)
	for _, a := range schedule {
		if !c.ClinicCodes[a.ActivityCode] {
			continue
		}
		counts[models.SlotKey{Date: a.Date.Format("2006-01-02"), Period: a.Period}]++
	}
	var violations []models.Violation
	for key, n := range counts {
		if n <= c.MaxClinic {
			continue
		}
		k := key
		violations = append(violations, models.Violation{
			ConstraintName: c.Name(),
			Kind:           c.Kind(),
			SlotKey:        &k,
			Message:        fmt.Sprintf("clinic headcount %d exceeds cap %d on %s %s", n, c.MaxClinic, key.Date, key.Period),
		})
	}
	return violations
}
