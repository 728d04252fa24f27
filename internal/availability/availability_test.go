package availability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gme-scheduler/core/internal/models"
)

func key(date string, period models.Period) models.SlotKey {
	return models.SlotKey{Date: date, Period: period}
}

func TestMatrixDefaultsToFree(t *testing.T) {
	m := NewMatrix()
	entry := m.Get("p1", key("2026-01-05", models.PeriodAM))
	require.Equal(t, models.AvailabilityStateFree, entry.State)
	require.True(t, m.CanAssign("p1", key("2026-01-05", models.PeriodAM)))
}

func TestBlockWinsOverLaterPartial(t *testing.T) {
	m := NewMatrix()
	k := key("2026-01-05", models.PeriodAM)
	m.Block("p1", k, "fmit")
	m.Partial("p1", k, "lec", "conference")

	entry := m.Get("p1", k)
	require.Equal(t, models.AvailabilityStateUnavailable, entry.State)
	require.False(t, m.CanAssign("p1", k))
}

func TestPartialAllowsReplacementAssignment(t *testing.T) {
	m := NewMatrix()
	k := key("2026-01-05", models.PeriodPM)
	m.Partial("p1", k, "lec", "conference")

	entry := m.Get("p1", k)
	require.Equal(t, models.AvailabilityStatePartial, entry.State)
	require.Equal(t, "lec", entry.ReplacementActivity)
	require.True(t, m.CanAssign("p1", k))
}

func TestReserveAndRelease(t *testing.T) {
	m := NewMatrix()
	k := key("2026-01-06", models.PeriodAM)
	m.Reserve("p2", k, "preload")
	require.False(t, m.CanAssign("p2", k))

	m.Release("p2", k)
	require.True(t, m.CanAssign("p2", k))
}

func TestLoadAbsencesExpandsRange(t *testing.T) {
	m := NewMatrix()
	start := models.Slot{Date: mustDate("2026-01-05"), Period: models.PeriodAM}
	end := models.Slot{Date: mustDate("2026-01-06"), Period: models.PeriodPM}

	slotsInRange := func(s, e models.Slot) []models.Slot {
		out := []models.Slot{}
		for d := s.Date; !d.After(e.Date); d = d.AddDate(0, 0, 1) {
			out = append(out, models.Slot{Date: d, Period: models.PeriodAM})
			out = append(out, models.Slot{Date: d, Period: models.PeriodPM})
		}
		return out
	}

	m.LoadAbsences([]Absence{
		{PersonID: "p3", Start: start, End: end, Kind: AbsenceKindBlocking, Type: "deployment"},
	}, slotsInRange)

	require.False(t, m.CanAssign("p3", key("2026-01-05", models.PeriodAM)))
	require.False(t, m.CanAssign("p3", key("2026-01-06", models.PeriodPM)))
}

func mustDate(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}
