package schedcontext

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gme-scheduler/core/internal/availability"
	"github.com/gme-scheduler/core/internal/models"
)

func TestNewBuildsStableIndices(t *testing.T) {
	people := []models.Person{
		{ID: "p2", Role: models.RoleResidentPGY2},
		{ID: "p1", Role: models.RoleResidentPGY1},
	}
	slots := []models.Slot{
		{Date: mustDate("2026-01-02"), Period: models.PeriodAM},
		{Date: mustDate("2026-01-01"), Period: models.PeriodPM},
		{Date: mustDate("2026-01-01"), Period: models.PeriodAM},
	}
	templates := []models.RotationTemplate{
		{ID: "t2", IsSolverEligible: true},
		{ID: "t1", IsSolverEligible: false},
	}

	ctx := New(people, slots, templates, nil, availability.NewMatrix(), ResilienceInputs{})

	require.Equal(t, "p1", ctx.People[0].ID)
	require.Equal(t, 0, ctx.PersonIndex("p1"))
	require.Equal(t, 1, ctx.PersonIndex("p2"))
	require.Equal(t, -1, ctx.PersonIndex("missing"))

	require.Equal(t, models.PeriodAM, ctx.Slots[0].Period)
	require.True(t, ctx.Slots[0].Date.Equal(mustDate("2026-01-01")))

	eligible := ctx.SolverEligibleTemplates()
	require.Len(t, eligible, 1)
	require.Equal(t, "t2", eligible[0].ID)
}

func TestPreloadAt(t *testing.T) {
	preloads := []models.Assignment{
		{PersonID: "p1", Date: mustDate("2026-01-01"), Period: models.PeriodAM, Source: models.SourcePreload, ActivityCode: "FMIT"},
	}
	ctx := New(nil, nil, nil, preloads, availability.NewMatrix(), ResilienceInputs{})

	a, ok := ctx.PreloadAt("p1", models.SlotKey{Date: "2026-01-01", Period: models.PeriodAM})
	require.True(t, ok)
	require.Equal(t, "FMIT", a.ActivityCode)

	_, ok = ctx.PreloadAt("p1", models.SlotKey{Date: "2026-01-02", Period: models.PeriodAM})
	require.False(t, ok)
}

func mustDate(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}
