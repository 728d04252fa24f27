package hard

import (
	"fmt"

	"github.com/gme-scheduler/core/internal/calendar"
	"github.com/gme-scheduler/core/internal/constraint"
	"github.com/gme-scheduler/core/internal/models"
	"github.com/gme-scheduler/core/internal/schedcontext"
)

// OvernightCallCoverage enforces that for every Sun-Thu overnight in
// range, exactly one call-eligible faculty is assigned call.
type OvernightCallCoverage struct{}

// NewOvernightCallCoverage constructs the constraint.
func NewOvernightCallCoverage() *OvernightCallCoverage { return &OvernightCallCoverage{} }

func (c *OvernightCallCoverage) Name() string               { return "OvernightCallCoverage" }
func (c *OvernightCallCoverage) Kind() models.ConstraintKind { return models.ConstraintKindHard }
func (c *OvernightCallCoverage) Priority() models.Priority   { return models.PriorityCritical }
func (c *OvernightCallCoverage) Weight() float64             { return 0 }

func (c *OvernightCallCoverage) EncodeCP(model constraint.CPModel, ctx *schedcontext.Context) {
	for _, d := range sortedDates(ctx.Slots) {
		if !calendar.OvernightCallDay(d) {
			continue
		}
		literals := make([]string, 0, len(ctx.People))
		for _, p := range ctx.FacultyCallEligible() {
			literals = append(literals, fmt.Sprintf("c_%s_%s", p.ID, d.Format("2006-01-02")))
		}
		model.AddAtMostOne(literals...)
	}
}

func (c *OvernightCallCoverage) EncodeLP(constraint.LPModel, *schedcontext.Context) {}

func (c *OvernightCallCoverage) Validate(schedule []models.Assignment, ctx *schedcontext.Context) []models.Violation {
	eligible := make(map[string]bool)
	for _, p := range ctx.FacultyCallEligible() {
		eligible[p.ID] = true
	}
	callsByDate := make(map[string]int)
	for _, a := range schedule {
		if a.ActivityCode != "call" || !eligible[a.PersonID] {
			continue
		}
		callsByDate[a.Date.Format("2006-01-02")]++
	}
	var violations []models.Violation
	for _, d := range sortedDates(ctx.Slots) {
		if !calendar.OvernightCallDay(d) {
			continue
		}
		n := callsByDate[d.Format("2006-01-02")]
		if n == 1 {
			continue
		}
		violations = append(violations, models.Violation{
			ConstraintName: c.Name(),
			Kind:           c.Kind(),
			Message:        fmt.Sprintf("%s has %d call assignments, expected exactly 1", d.Format("2006-01-02"), n),
		})
	}
	return violations
}

// AdjunctCallExclusion enforces faculty_role = adjunct => call = 0.
type AdjunctCallExclusion struct{}

// NewAdjunctCallExclusion constructs the constraint.
func NewAdjunctCallExclusion() *AdjunctCallExclusion { return &AdjunctCallExclusion{} }

func (c *AdjunctCallExclusion) Name() string               { return "AdjunctCallExclusion" }
func (c *AdjunctCallExclusion) Kind() models.ConstraintKind { return models.ConstraintKindHard }
func (c *AdjunctCallExclusion) Priority() models.Priority   { return models.PriorityCritical }
func (c *AdjunctCallExclusion) Weight() float64             { return 0 }

func (c *AdjunctCallExclusion) EncodeCP(model constraint.CPModel, ctx *schedcontext.Context) {
	for _, p := range ctx.People {
		if p.CallEligible() {
			continue
		}
		for _, d := range sortedDates(ctx.Slots) {
			model.AddBoolOr(fmt.Sprintf("!c_%s_%s", p.ID, d.Format("2006-01-02")))
		}
	}
}

func (c *AdjunctCallExclusion) EncodeLP(constraint.LPModel, *schedcontext.Context) {}

func (c *AdjunctCallExclusion) Validate(schedule []models.Assignment, ctx *schedcontext.Context) []models.Violation {
	eligible := make(map[string]bool, len(ctx.People))
	for _, p := range ctx.People {
		eligible[p.ID] = p.CallEligible() || p.Role.IsResident()
	}
	var violations []models.Violation
	for _, a := range schedule {
		if a.ActivityCode != "call" || eligible[a.PersonID] {
			continue
		}
		violations = append(violations, models.Violation{
			ConstraintName: c.Name(),
			Kind:           c.Kind(),
			PersonID:       a.PersonID,
			Message:        fmt.Sprintf("%s is adjunct/non-call-eligible but assigned call", a.PersonID),
		})
	}
	return violations
}

// PostCallPCATDO enforces that after a Sun-Thu overnight call, the
// next calendar day's AM is PCAT and PM is DO for the calling faculty
// member, regardless of block boundary. Resident calls are not checked:
// the preload pipeline gives residents a day off after call instead.
type PostCallPCATDO struct{}

// NewPostCallPCATDO constructs the constraint.
func NewPostCallPCATDO() *PostCallPCATDO { return &PostCallPCATDO{} }

func (c *PostCallPCATDO) Name() string               { return "PostCallPCATDO" }
func (c *PostCallPCATDO) Kind() models.ConstraintKind { return models.ConstraintKindHard }
func (c *PostCallPCATDO) Priority() models.Priority   { return models.PriorityCritical }
func (c *PostCallPCATDO) Weight() float64             { return 0 }
func (c *PostCallPCATDO) EncodeCP(constraint.CPModel, *schedcontext.Context) {}
func (c *PostCallPCATDO) EncodeLP(constraint.LPModel, *schedcontext.Context) {}

func (c *PostCallPCATDO) Validate(schedule []models.Assignment, ctx *schedcontext.Context) []models.Violation {
	byPersonDate := make(map[string]map[string]models.Assignment)
	for _, a := range schedule {
		dateKey := a.Date.Format("2006-01-02")
		if byPersonDate[a.PersonID] == nil {
			byPersonDate[a.PersonID] = make(map[string]models.Assignment)
		}
		byPersonDate[a.PersonID][dateKey+string(a.Period)] = a
	}
	resident := make(map[string]bool, len(ctx.People))
	for _, p := range ctx.People {
		resident[p.ID] = p.Role.IsResident()
	}
	var violations []models.Violation
	for _, a := range schedule {
		if a.ActivityCode != "call" || !calendar.OvernightCallDay(a.Date) || resident[a.PersonID] {
			continue
		}
		next := calendar.NextCalendarDay(a.Date)
		nextKey := next.Format("2006-01-02")
		perPerson := byPersonDate[a.PersonID]
		am, hasAM := perPerson[nextKey+string(models.PeriodAM)]
		pm, hasPM := perPerson[nextKey+string(models.PeriodPM)]
		if !hasAM || am.ActivityCode != "pcat" {
			slotKey := models.SlotKey{Date: nextKey, Period: models.PeriodAM}
			violations = append(violations, models.Violation{
				ConstraintName: "PostCallPCATDO", Kind: models.ConstraintKindHard,
				PersonID: a.PersonID, SlotKey: &slotKey,
				Message: fmt.Sprintf("%s missing PCAT the morning after %s call", a.PersonID, a.Date.Format("2006-01-02")),
			})
		}
		if !hasPM || pm.ActivityCode != "do" {
			slotKey := models.SlotKey{Date: nextKey, Period: models.PeriodPM}
			violations = append(violations, models.Violation{
				ConstraintName: "PostCallPCATDO", Kind: models.ConstraintKindHard,
				PersonID: a.PersonID, SlotKey: &slotKey,
				Message: fmt.Sprintf("%s missing DO the afternoon after %s call", a.PersonID, a.Date.Format("2006-01-02")),
			})
		}
	}
	return violations
}
