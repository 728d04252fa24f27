package hard

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

func newCtx(t *testing.T, people []models.Person, slots []models.Slot, preloads []models.Assignment, avail *availability.Matrix) *schedcontext.Context {
	t.Helper()
	if avail == nil {
		avail = availability.NewMatrix()
	}
	return schedcontext.New(people, slots, nil, preloads, avail, schedcontext.ResilienceInputs{})
}

func TestAvailabilityValidateFlagsBlockedAssignment(t *testing.T) {
	avail := availability.NewMatrix()
	slot := models.SlotKey{Date: "2026-08-05", Period: models.PeriodAM}
	avail.Block("res1", slot, "vacation")

	ctx := newCtx(t, []models.Person{{ID: "res1", Role: models.RoleResidentPGY1}}, nil, nil, avail)
	schedule := []models.Assignment{{PersonID: "res1", Date: mustDate(t, "2026-08-05"), Period: models.PeriodAM, ActivityCode: "clinic"}}

	v := NewAvailability().Validate(schedule, ctx)
	require.Len(t, v, 1)
	assert.Equal(t, "res1", v[0].PersonID)
}

func TestCapacityPerSlotFlagsDoubleBooking(t *testing.T) {
	ctx := newCtx(t, []models.Person{{ID: "res1"}}, nil, nil, nil)
	date := mustDate(t, "2026-08-05")
	schedule := []models.Assignment{
		{PersonID: "res1", Date: date, Period: models.PeriodAM, ActivityCode: "clinic"},
		{PersonID: "res1", Date: date, Period: models.PeriodAM, ActivityCode: "call"},
	}
	v := (&CapacityPerSlot{}).Validate(schedule, ctx)
	require.Len(t, v, 1)
}

func TestClinicHeadcountCapFlagsOverflow(t *testing.T) {
	ctx := newCtx(t, nil, nil, nil, nil)
	date := mustDate(t, "2026-08-05")
	c := NewClinicHeadcountCap(1, []string{"clinic"})
	schedule := []models.Assignment{
		{PersonID: "a", Date: date, Period: models.PeriodAM, ActivityCode: "clinic"},
		{PersonID: "b", Date: date, Period: models.PeriodAM, ActivityCode: "clinic"},
	}
	v := c.Validate(schedule, ctx)
	require.Len(t, v, 1)
}

func TestOneInSevenRuleFlagsNoRestDay(t *testing.T) {
	people := []models.Person{{ID: "res1"}}
	var slots []models.Slot
	var schedule []models.Assignment
	start := mustDate(t, "2026-08-03")
	for i := 0; i < 7; i++ {
		d := start.AddDate(0, 0, i)
		slots = append(slots, models.Slot{Date: d, Period: models.PeriodAM}, models.Slot{Date: d, Period: models.PeriodPM})
		schedule = append(schedule,
			models.Assignment{PersonID: "res1", Date: d, Period: models.PeriodAM, ActivityCode: "clinic"},
			models.Assignment{PersonID: "res1", Date: d, Period: models.PeriodPM, ActivityCode: "clinic"},
		)
	}
	ctx := newCtx(t, people, slots, nil, nil)
	v := (&OneInSevenRule{}).Validate(schedule, ctx)
	assert.NotEmpty(t, v)
}

func TestSupervisionRatiosFlagsShortage(t *testing.T) {
	c := NewSupervisionRatios([]string{"clinic"}, "at")
	people := []models.Person{
		{ID: "i1", Role: models.RoleResidentPGY1},
		{ID: "i2", Role: models.RoleResidentPGY1},
		{ID: "i3", Role: models.RoleResidentPGY1},
	}
	ctx := newCtx(t, people, nil, nil, nil)
	date := mustDate(t, "2026-08-05")
	schedule := []models.Assignment{
		{PersonID: "i1", Date: date, Period: models.PeriodAM, ActivityCode: "clinic"},
		{PersonID: "i2", Date: date, Period: models.PeriodAM, ActivityCode: "clinic"},
		{PersonID: "i3", Date: date, Period: models.PeriodAM, ActivityCode: "clinic"},
	}
	v := c.Validate(schedule, ctx)
	require.Len(t, v, 1)
}

func TestOvernightCallCoverageFlagsMissingCall(t *testing.T) {
	wed := mustDate(t, "2026-08-05")
	slots := []models.Slot{{Date: wed, Period: models.PeriodAM}, {Date: wed, Period: models.PeriodPM}}
	ctx := newCtx(t, []models.Person{{ID: "f1", Role: models.RoleFacultyCore}}, slots, nil, nil)
	v := (&OvernightCallCoverage{}).Validate(nil, ctx)
	require.Len(t, v, 1)
}

func TestAdjunctCallExclusionFlagsAdjunctOnCall(t *testing.T) {
	people := []models.Person{{ID: "adj1", Role: models.RoleFacultyAdjunct}}
	ctx := newCtx(t, people, nil, nil, nil)
	schedule := []models.Assignment{{PersonID: "adj1", Date: mustDate(t, "2026-08-05"), Period: models.PeriodPM, ActivityCode: "call"}}
	v := (&AdjunctCallExclusion{}).Validate(schedule, ctx)
	require.Len(t, v, 1)
}

func TestPostCallPCATDOFlagsMissingRecovery(t *testing.T) {
	ctx := newCtx(t, []models.Person{{ID: "f1"}}, nil, nil, nil)
	sunday := mustDate(t, "2026-08-02")
	schedule := []models.Assignment{{PersonID: "f1", Date: sunday, Period: models.PeriodPM, ActivityCode: "call"}}
	v := (&PostCallPCATDO{}).Validate(schedule, ctx)
	assert.Len(t, v, 2)
}

func TestFMITMandatoryCallFlagsMissingSaturday(t *testing.T) {
	ctx := newCtx(t, []models.Person{{ID: "f1"}}, nil, nil, nil)
	friday := mustDate(t, "2026-08-07")
	schedule := []models.Assignment{
		{PersonID: "f1", Date: friday, Period: models.PeriodAM, ActivityCode: "FMIT"},
		{PersonID: "f1", Date: friday, Period: models.PeriodPM, ActivityCode: "call"},
	}
	v := (&FMITMandatoryCall{}).Validate(schedule, ctx)
	require.Len(t, v, 1)
}

func TestWednesdayAMInternOnlyFlagsNonIntern(t *testing.T) {
	c := NewWednesdayAMInternOnly([]string{"clinic"}, nil)
	ctx := newCtx(t, []models.Person{{ID: "f1", Role: models.RoleFacultyCore}}, nil, nil, nil)
	wed := mustDate(t, "2026-08-05")
	schedule := []models.Assignment{{PersonID: "f1", Date: wed, Period: models.PeriodAM, ActivityCode: "clinic"}}
	v := c.Validate(schedule, ctx)
	require.Len(t, v, 1)
}

func TestWednesdayPMSingleFacultyFlagsZeroOrMultiple(t *testing.T) {
	c := NewWednesdayPMSingleFaculty([]string{"clinic"})
	ctx := newCtx(t, []models.Person{{ID: "f1", Role: models.RoleFacultyCore}, {ID: "f2", Role: models.RoleFacultyCore}}, nil, nil, nil)
	wed := mustDate(t, "2026-08-05")
	schedule := []models.Assignment{
		{PersonID: "f1", Date: wed, Period: models.PeriodPM, ActivityCode: "clinic"},
		{PersonID: "f2", Date: wed, Period: models.PeriodPM, ActivityCode: "clinic"},
	}
	v := c.Validate(schedule, ctx)
	require.Len(t, v, 1)
}

func TestProtectedSlotsFlagsOverwrite(t *testing.T) {
	c := NewProtectedSlots("lecture", "advising")
	wed := mustDate(t, "2026-08-05")
	preloads := []models.Assignment{{PersonID: "f1", Date: wed, Period: models.PeriodPM, ActivityCode: "lecture"}}
	ctx := newCtx(t, []models.Person{{ID: "f1"}}, nil, preloads, nil)
	schedule := []models.Assignment{{PersonID: "f1", Date: wed, Period: models.PeriodPM, ActivityCode: "clinic"}}
	v := c.Validate(schedule, ctx)
	require.Len(t, v, 1)
}

func TestFacultyWeeklyClinicBoundsFlagsOverMax(t *testing.T) {
	c := NewFacultyWeeklyClinicBounds([]string{"clinic"}, false)
	people := []models.Person{{ID: "f1", Clinic: models.ClinicBounds{Min: 0, Max: 1}}}
	ctx := newCtx(t, people, nil, nil, nil)
	monday := mustDate(t, "2026-08-03")
	tuesday := mustDate(t, "2026-08-04")
	schedule := []models.Assignment{
		{PersonID: "f1", Date: monday, Period: models.PeriodAM, ActivityCode: "clinic"},
		{PersonID: "f1", Date: tuesday, Period: models.PeriodAM, ActivityCode: "clinic"},
	}
	v := c.Validate(schedule, ctx)
	require.Len(t, v, 1)
}

func TestFacultyDayAvailabilityFlagsUnavailableWeekday(t *testing.T) {
	c := NewFacultyDayAvailability([]string{"clinic"})
	people := []models.Person{{ID: "f1", Weekday: models.WeekdayAvailability{Monday: false, Tuesday: true}}}
	ctx := newCtx(t, people, nil, nil, nil)
	monday := mustDate(t, "2026-08-03")
	schedule := []models.Assignment{{PersonID: "f1", Date: monday, Period: models.PeriodAM, ActivityCode: "clinic"}}
	v := c.Validate(schedule, ctx)
	require.Len(t, v, 1)
}

func TestCallAvailabilityFlagsBlockedCall(t *testing.T) {
	avail := availability.NewMatrix()
	slot := models.SlotKey{Date: "2026-08-05", Period: models.PeriodPM}
	avail.Block("f1", slot, "FMIT-week exclusion")
	ctx := newCtx(t, []models.Person{{ID: "f1"}}, nil, nil, avail)
	schedule := []models.Assignment{{PersonID: "f1", Date: mustDate(t, "2026-08-05"), Period: models.PeriodPM, ActivityCode: "call"}}
	v := (&CallAvailability{}).Validate(schedule, ctx)
	require.Len(t, v, 1)
}

func TestSMResidentFacultyAlignmentFlagsMissingFaculty(t *testing.T) {
	c := NewSMResidentFacultyAlignment("sm_clinic")
	people := []models.Person{
		{ID: "res1", Role: models.RoleResidentPGY2},
		{ID: "smfac", Role: models.RoleFacultySportsMed},
	}
	ctx := newCtx(t, people, nil, nil, nil)
	date := mustDate(t, "2026-08-05")
	schedule := []models.Assignment{{PersonID: "res1", Date: date, Period: models.PeriodAM, ActivityCode: "sm_clinic"}}
	v := c.Validate(schedule, ctx)
	require.Len(t, v, 1)
}
