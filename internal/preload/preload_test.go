package preload

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gme-scheduler/core/internal/availability"
	"github.com/gme-scheduler/core/internal/calendar"
	"github.com/gme-scheduler/core/internal/models"
)

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return d
}

func newPipeline() *Pipeline {
	return New(calendar.NewService(calendar.Block0Policy{}))
}

func TestRunAbsencePhaseProducesLeaveActivities(t *testing.T) {
	p := newPipeline()
	day := mustDate(t, "2026-08-05")
	input := Input{
		AcademicYearStart: calendar.AcademicYearStart(day),
		RangeStart:        day,
		RangeEnd:          day,
		People:             []models.Person{{ID: "res1", Role: models.RoleResidentPGY1}},
		TemplatesByID:      map[string]models.RotationTemplate{},
		Absences: []availability.Absence{
			{
				PersonID: "res1",
				Start:    models.Slot{Date: day, Period: models.PeriodAM},
				End:      models.Slot{Date: day, Period: models.PeriodPM},
				Kind:     availability.AbsenceKindBlocking,
				Type:     "vacation",
			},
		},
	}
	result, err := p.Run(input)
	require.NoError(t, err)
	require.Len(t, result.Assignments, 2)
	codes := map[string]bool{}
	for _, a := range result.Assignments {
		codes[a.ActivityCode] = true
		assert.Equal(t, models.SourcePreload, a.Source)
	}
	assert.True(t, codes[ActivityLeaveAM])
	assert.True(t, codes[ActivityLeavePM])
}

func TestRunDetectsConflictBetweenPhases(t *testing.T) {
	p := newPipeline()
	day := mustDate(t, "2026-08-05")
	input := Input{
		AcademicYearStart: calendar.AcademicYearStart(day),
		RangeStart:        day,
		RangeEnd:          day,
		People:            []models.Person{{ID: "res1", Role: models.RoleResidentPGY1}},
		TemplatesByID:     map[string]models.RotationTemplate{},
		Absences: []availability.Absence{
			{PersonID: "res1", Start: models.Slot{Date: day, Period: models.PeriodPM}, End: models.Slot{Date: day, Period: models.PeriodPM}, Kind: availability.AbsenceKindBlocking, Type: "vacation"},
		},
		ResidentCallPreloads: []ResidentCallPreload{
			{PersonID: "res1", Date: day},
		},
	}
	_, err := p.Run(input)
	require.Error(t, err)
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
}

func TestRunFMITCallAndPostCallDerivation(t *testing.T) {
	p := newPipeline()
	friday := mustDate(t, "2025-07-11") // a Friday
	ayStart := calendar.AcademicYearStart(friday)
	input := Input{
		AcademicYearStart: ayStart,
		RangeStart:        friday,
		RangeEnd:          friday.AddDate(0, 0, 10),
		People:            []models.Person{{ID: "fac1", Role: models.RoleFacultyCore}},
		TemplatesByID: map[string]models.RotationTemplate{
			"tmpl-fmit": {ID: "tmpl-fmit", Code: "FMIT", RotationType: models.RotationTypeInpatient},
		},
		BlockRotations: []models.ResidentBlockRotation{
			{PersonID: "fac1", BlockNumber: 1, AcademicYear: ayStart.Format("2006-01-02"), TemplateID: "tmpl-fmit"},
		},
	}
	result, err := p.Run(input)
	require.NoError(t, err)

	var sawFridayCall, sawSaturdayCall, sawPCAT bool
	for _, a := range result.Assignments {
		if a.PersonID != "fac1" {
			continue
		}
		if a.ActivityCode == ActivityCall && a.Date.Weekday() == time.Friday {
			sawFridayCall = true
		}
		if a.ActivityCode == ActivityCall && a.Date.Weekday() == time.Saturday {
			sawSaturdayCall = true
		}
		if a.ActivityCode == ActivityPCAT {
			sawPCAT = true
		}
	}
	assert.True(t, sawFridayCall, "expected Friday overnight call for FMIT faculty")
	assert.True(t, sawSaturdayCall, "expected Saturday overnight call for FMIT faculty")
	assert.False(t, sawPCAT, "Friday/Saturday nights are not Sun-Thu overnight call days, so no PCAT/DO should follow")
}

func TestRunIsDeterministicAcrossCalls(t *testing.T) {
	p := newPipeline()
	day := mustDate(t, "2026-08-03")
	input := Input{
		AcademicYearStart: calendar.AcademicYearStart(day),
		RangeStart:        day,
		RangeEnd:          day.AddDate(0, 0, 3),
		People:            []models.Person{{ID: "res1", Role: models.RoleResidentPGY2}},
		TemplatesByID:     map[string]models.RotationTemplate{},
		ResidentCallPreloads: []ResidentCallPreload{
			{PersonID: "res1", Date: day},
		},
	}
	first, err := p.Run(input)
	require.NoError(t, err)
	second, err := p.Run(input)
	require.NoError(t, err)
	assert.Equal(t, len(first.Assignments), len(second.Assignments))
}
