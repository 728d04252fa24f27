package hard

import (
	"fmt"

	"github.com/gme-scheduler/core/internal/constraint"
	"github.com/gme-scheduler/core/internal/models"
	"github.com/gme-scheduler/core/internal/schedcontext"
)

// Availability enforces Blocked(person,slot) => x_{p,s,*} = 0: the
// solver may never place an assignment where the availability matrix
// says the person is unavailable.
type Availability struct {
	name     string
	kind     models.ConstraintKind
	priority models.Priority
}

// NewAvailability constructs the Availability constraint.
func NewAvailability() *Availability {
	return &Availability{name: "Availability", kind: models.ConstraintKindHard, priority: models.PriorityCritical}
}

func (c *Availability) Name() string               { return c.name }
func (c *Availability) Kind() models.ConstraintKind { return c.kind }
func (c *Availability) Priority() models.Priority   { return c.priority }
func (c *Availability) Weight() float64             { return 0 }

// EncodeCP forbids the literal for every (person, slot, template)
// variable where the matrix reports Unavailable; the CP model is
// expected to expose a zero/forbid primitive through AddBoolOr with a
// single negated literal.
func (c *Availability) EncodeCP(model constraint.CPModel, ctx *schedcontext.Context) {
	for _, p := range ctx.People {
		for _, s := range ctx.Slots {
			if ctx.Availability.CanAssign(p.ID, s.Key()) {
				continue
			}
			for _, t := range ctx.SolverEligibleTemplates() {
				model.AddBoolOr(fmt.Sprintf("!x_%s_%s_%s", p.ID, s.Key().Date, t.ID))
			}
		}
	}
}

// EncodeLP mirrors EncodeCP with an upper-bound-zero linear constraint.
func (c *Availability) EncodeLP(model constraint.LPModel, ctx *schedcontext.Context) {
	for _, p := range ctx.People {
		for _, s := range ctx.Slots {
			if ctx.Availability.CanAssign(p.ID, s.Key()) {
				continue
			}
			for _, t := range ctx.SolverEligibleTemplates() {
				varName := fmt.Sprintf("x_%s_%s_%s", p.ID, s.Key().Date, t.ID)
				model.AddLinearLE(map[string]float64{varName: 1}, 0)
			}
		}
	}
}

// Validate checks every candidate assignment against the availability
// matrix, reporting a violation for any placed on a blocked slot.
func (c *Availability) Validate(schedule []models.Assignment, ctx *schedcontext.Context) []models.Violation {
	var violations []models.Violation
	for _, a := range schedule {
		slot := a.Key()
		key := models.SlotKey{Date: slot.Date, Period: slot.Period}
		if ctx.Availability.CanAssign(a.PersonID, key) {
			continue
		}
		violations = append(violations, models.Violation{
			ConstraintName: c.name,
			Kind:           c.kind,
			PersonID:       a.PersonID,
			SlotKey:        &key,
			Message:        fmt.Sprintf("%s assigned %s while blocked", a.PersonID, a.ActivityCode),
		})
	}
	return violations
}
