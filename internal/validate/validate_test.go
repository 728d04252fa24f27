package validate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gme-scheduler/core/internal/availability"
	"github.com/gme-scheduler/core/internal/constraint"
	"github.com/gme-scheduler/core/internal/models"
	"github.com/gme-scheduler/core/internal/schedcontext"
)

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return d
}

func slotsFor(t *testing.T, dates ...string) []models.Slot {
	t.Helper()
	var slots []models.Slot
	for _, d := range dates {
		date := mustDate(t, d)
		slots = append(slots, models.Slot{Date: date, Period: models.PeriodAM}, models.Slot{Date: date, Period: models.PeriodPM})
	}
	return slots
}

func TestValidateDelegatesToRegistry(t *testing.T) {
	registry := constraint.NewRegistry()
	ctx := schedcontext.New([]models.Person{{ID: "res1", Role: models.RoleResidentPGY1}}, slotsFor(t, "2026-08-03"), nil, nil, availability.NewMatrix(), schedcontext.ResilienceInputs{})
	v := New(registry, "NF")
	report := v.Validate(nil, ctx)
	assert.True(t, report.Passed())
}

func TestNFToPostCallAuditFlagsWorkingNextDay(t *testing.T) {
	ctx := schedcontext.New(
		[]models.Person{{ID: "res1", Role: models.RoleResidentPGY2}},
		slotsFor(t, "2026-08-03", "2026-08-04", "2026-08-05"),
		nil, nil, availability.NewMatrix(), schedcontext.ResilienceInputs{},
	)
	schedule := []models.Assignment{
		{PersonID: "res1", Date: mustDate(t, "2026-08-03"), Period: models.PeriodAM, ActivityCode: "NF"},
		{PersonID: "res1", Date: mustDate(t, "2026-08-03"), Period: models.PeriodPM, ActivityCode: "NF"},
		{PersonID: "res1", Date: mustDate(t, "2026-08-04"), Period: models.PeriodAM, ActivityCode: "fm_clinic"},
	}
	v := New(constraint.NewRegistry(), "NF")
	audits := v.NFToPostCallAudit(schedule, ctx)
	require.Len(t, audits, 1)
	assert.Equal(t, "res1", audits[0].PersonID)
	assert.Equal(t, "2026-08-03", audits[0].NFBlockEndsOn)
	assert.False(t, audits[0].NextDayIsOff)
}

func TestNFToPostCallAuditPassesWhenNextDayFullyOff(t *testing.T) {
	ctx := schedcontext.New(
		[]models.Person{{ID: "res1", Role: models.RoleResidentPGY2}},
		slotsFor(t, "2026-08-03", "2026-08-04", "2026-08-05"),
		nil, nil, availability.NewMatrix(), schedcontext.ResilienceInputs{},
	)
	schedule := []models.Assignment{
		{PersonID: "res1", Date: mustDate(t, "2026-08-03"), Period: models.PeriodAM, ActivityCode: "NF"},
		{PersonID: "res1", Date: mustDate(t, "2026-08-03"), Period: models.PeriodPM, ActivityCode: "NF"},
	}
	v := New(constraint.NewRegistry(), "NF")
	audits := v.NFToPostCallAudit(schedule, ctx)
	require.Len(t, audits, 1)
	assert.True(t, audits[0].NextDayIsOff)
}
