package hard

import (
	"fmt"
	"math"

	"github.com/gme-scheduler/core/internal/constraint"
	"github.com/gme-scheduler/core/internal/models"
	"github.com/gme-scheduler/core/internal/schedcontext"
)

// SupervisionRatios enforces that for each clinic half-day with AT
// (attending) faculty duty, ceil(n_PGY1/2) + ceil(n_PGY2/4) +
// ceil(n_PGY3/4) <= available AT faculty.
type SupervisionRatios struct {
	ClinicCodes map[string]bool
	ATCode      string
}

// NewSupervisionRatios constructs the constraint; atCode names the
// activity marking attending clinic duty (e.g. "at").
func NewSupervisionRatios(clinicCodes []string, atCode string) *SupervisionRatios {
	codes := make(map[string]bool, len(clinicCodes))
	for _, code := range clinicCodes {
		codes[code] = true
	}
	return &SupervisionRatios{ClinicCodes: codes, ATCode: atCode}
}

func (c *SupervisionRatios) Name() string               { return "SupervisionRatios" }
func (c *SupervisionRatios) Kind() models.ConstraintKind { return models.ConstraintKindHard }
func (c *SupervisionRatios) Priority() models.Priority   { return models.PriorityCritical }
func (c *SupervisionRatios) Weight() float64             { return 0 }

func (c *SupervisionRatios) EncodeCP(constraint.CPModel, *schedcontext.Context) {}
func (c *SupervisionRatios) EncodeLP(constraint.LPModel, *schedcontext.Context) {}

func (c *SupervisionRatios) Validate(schedule []models.Assignment, ctx *schedcontext.Context) []models.Violation {
	type bucket struct {
		pgy1, pgy2, pgy3, at int
	}
	buckets := make(map[models.SlotKey]*bucket)
	roleByPerson := make(map[string]models.Role, len(ctx.People))
	for _, p := range ctx.People {
		roleByPerson[p.ID] = p.Role
	}

	for _, a := range schedule {
		isClinic := c.ClinicCodes[a.ActivityCode]
		isAT := a.ActivityCode == c.ATCode
		if !isClinic && !isAT {
			continue
		}
		key := models.SlotKey{Date: a.Date.Format("2006-01-02"), Period: a.Period}
		b, ok := buckets[key]
		if !ok {
			b = &bucket{}
			buckets[key] = b
		}
		if isAT {
			b.at++
			continue
		}
		switch roleByPerson[a.PersonID] {
		case models.RoleResidentPGY1:
			b.pgy1++
		case models.RoleResidentPGY2:
			b.pgy2++
		case models.RoleResidentPGY3:
			b.pgy3++
		}
	}

	var violations []models.Violation
	for key, b := range buckets {
		required := int(math.Ceil(float64(b.pgy1)/2)) + int(math.Ceil(float64(b.pgy2)/4)) + int(math.Ceil(float64(b.pgy3)/4))
		if required <= b.at {
			continue
		}
		k := key
		violations = append(violations, models.Violation{
			ConstraintName: c.Name(),
			Kind:           c.Kind(),
			SlotKey:        &k,
			Message:        fmt.Sprintf("requires %d attendings, %d available on %s %s", required, b.at, key.Date, key.Period),
		})
	}
	return violations
}
