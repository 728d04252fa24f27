package soft

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gme-scheduler/core/internal/availability"
	"github.com/gme-scheduler/core/internal/models"
	"github.com/gme-scheduler/core/internal/schedcontext"
)

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return d
}

func newCtx(t *testing.T, people []models.Person, slots []models.Slot, resilience schedcontext.ResilienceInputs) *schedcontext.Context {
	t.Helper()
	return schedcontext.New(people, slots, nil, nil, availability.NewMatrix(), resilience)
}

func TestCoverageFlagsUnassignedAvailableSlot(t *testing.T) {
	people := []models.Person{{ID: "res1", Role: models.RoleResidentPGY1}}
	date := mustDate(t, "2026-08-05")
	slots := []models.Slot{{Date: date, Period: models.PeriodAM}}
	ctx := newCtx(t, people, slots, schedcontext.ResilienceInputs{})
	v := NewCoverage(0).Validate(nil, ctx)
	require.Len(t, v, 1)
	assert.Equal(t, float64(WeightCoverage), v[0].Weight)
}

func TestHubProtectionFlagsOverload(t *testing.T) {
	people := []models.Person{{ID: "f1", Role: models.RoleFacultyCore}}
	resilience := schedcontext.ResilienceInputs{HubScores: map[string]float64{"f1": 0.9}}
	ctx := newCtx(t, people, nil, resilience)
	date := mustDate(t, "2026-08-05")
	schedule := []models.Assignment{{PersonID: "f1", Date: date, Period: models.PeriodPM, ActivityCode: "call"}}
	v := NewHubProtection(0, 0, 0).Validate(schedule, ctx)
	require.Len(t, v, 1)
}

func TestUtilizationBufferFlagsOverThreshold(t *testing.T) {
	ctx := newCtx(t, nil, nil, schedcontext.ResilienceInputs{CurrentUtilization: 0.92})
	v := NewUtilizationBuffer(0, 0).Validate(nil, ctx)
	require.Len(t, v, 1)
}

func TestSundayEquityFlagsMultipleSundaysInBlock(t *testing.T) {
	ctx := newCtx(t, []models.Person{{ID: "f1", Role: models.RoleFacultyCore}}, nil, schedcontext.ResilienceInputs{})
	sunday1 := mustDate(t, "2025-07-13")
	sunday2 := mustDate(t, "2025-07-20")
	schedule := []models.Assignment{
		{PersonID: "f1", Date: sunday1, Period: models.PeriodPM, ActivityCode: "call"},
		{PersonID: "f1", Date: sunday2, Period: models.PeriodPM, ActivityCode: "call"},
	}
	v := NewSundayEquity(0).Validate(schedule, ctx)
	require.Len(t, v, 1)
}

func TestCallSpacingFlagsBackToBack(t *testing.T) {
	ctx := newCtx(t, []models.Person{{ID: "f1", Role: models.RoleFacultyCore}}, nil, schedcontext.ResilienceInputs{})
	d1 := mustDate(t, "2026-08-03")
	d2 := mustDate(t, "2026-08-04")
	schedule := []models.Assignment{
		{PersonID: "f1", Date: d1, Period: models.PeriodPM, ActivityCode: "call"},
		{PersonID: "f1", Date: d2, Period: models.PeriodPM, ActivityCode: "call"},
	}
	v := NewCallSpacing(0, 0).Validate(schedule, ctx)
	require.Len(t, v, 1)
}

func TestTuesdayPreferenceFlagsOptOutAssignment(t *testing.T) {
	no := false
	people := []models.Person{{ID: "f1", Role: models.RoleFacultyCore, PreferTuesdayCall: &no}}
	ctx := newCtx(t, people, nil, schedcontext.ResilienceInputs{})
	tuesday := mustDate(t, "2026-08-04")
	schedule := []models.Assignment{{PersonID: "f1", Date: tuesday, Period: models.PeriodPM, ActivityCode: "call"}}
	v := NewTuesdayPreference(0).Validate(schedule, ctx)
	require.Len(t, v, 1)
}

func TestDeptChiefWedPreferenceFlagsMissingWednesday(t *testing.T) {
	people := []models.Person{{ID: "chief1", Role: models.RoleFacultyDeptChief}}
	ctx := newCtx(t, people, nil, schedcontext.ResilienceInputs{})
	thursday := mustDate(t, "2026-08-06")
	schedule := []models.Assignment{{PersonID: "chief1", Date: thursday, Period: models.PeriodPM, ActivityCode: "call"}}
	v := NewDeptChiefWedPreference(0).Validate(schedule, ctx)
	require.Len(t, v, 1)
}

func TestFacultyClinicEquityFlagsDeviationFromTarget(t *testing.T) {
	people := []models.Person{{ID: "f1", Role: models.RoleFacultyCore, Clinic: models.ClinicBounds{Min: 0, Max: 4}}}
	ctx := newCtx(t, people, nil, schedcontext.ResilienceInputs{})
	monday := mustDate(t, "2026-08-03")
	schedule := []models.Assignment{{PersonID: "f1", Date: monday, Period: models.PeriodAM, ActivityCode: "clinic"}}
	v := NewFacultyClinicEquity(0, []string{"clinic"}, 0).Validate(schedule, ctx)
	require.Len(t, v, 1)
	assert.InDelta(t, WeightFacultyClinicEquity*1, v[0].Weight, 0.01)
}

func TestTemplateBalanceFlagsConcentration(t *testing.T) {
	ctx := newCtx(t, []models.Person{{ID: "res1"}}, nil, schedcontext.ResilienceInputs{})
	d1 := mustDate(t, "2026-08-03")
	d2 := mustDate(t, "2026-08-04")
	d3 := mustDate(t, "2026-08-05")
	d4 := mustDate(t, "2026-08-06")
	d5 := mustDate(t, "2026-08-07")
	schedule := []models.Assignment{
		{PersonID: "res1", Date: d1, Period: models.PeriodAM, ActivityCode: "clinic"},
		{PersonID: "res1", Date: d2, Period: models.PeriodAM, ActivityCode: "clinic"},
		{PersonID: "res1", Date: d3, Period: models.PeriodAM, ActivityCode: "clinic"},
		{PersonID: "res1", Date: d4, Period: models.PeriodAM, ActivityCode: "clinic"},
		{PersonID: "res1", Date: d5, Period: models.PeriodAM, ActivityCode: "do"},
	}
	v := NewTemplateBalance(0).Validate(schedule, ctx)
	require.Len(t, v, 1)
	assert.Equal(t, "res1", v[0].PersonID)
}

func TestContinuityFlagsInterruptedRun(t *testing.T) {
	ctx := newCtx(t, []models.Person{{ID: "res1"}}, nil, schedcontext.ResilienceInputs{})
	d1 := mustDate(t, "2026-08-03")
	d2 := mustDate(t, "2026-08-04")
	d3 := mustDate(t, "2026-08-10")
	schedule := []models.Assignment{
		{PersonID: "res1", Date: d1, Period: models.PeriodAM, ActivityCode: "inpatient"},
		{PersonID: "res1", Date: d2, Period: models.PeriodAM, ActivityCode: "inpatient"},
		{PersonID: "res1", Date: d3, Period: models.PeriodAM, ActivityCode: "inpatient"},
	}
	v := NewContinuity(0).Validate(schedule, ctx)
	require.Len(t, v, 1)
}
