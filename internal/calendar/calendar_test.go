package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gme-scheduler/core/internal/models"
)

func mustDate(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestAcademicYearStart(t *testing.T) {
	require.Equal(t, mustDate("2025-07-01"), AcademicYearStart(mustDate("2025-07-01")))
	require.Equal(t, mustDate("2025-07-01"), AcademicYearStart(mustDate("2026-06-30")))
	require.Equal(t, mustDate("2024-07-01"), AcademicYearStart(mustDate("2025-06-30")))
}

func TestBlockOfAndRangeRoundTrip(t *testing.T) {
	svc := NewService(Block0Policy{})
	for b := 1; b <= 13; b++ {
		start, _ := svc.BlockRange(b, mustDate("2025-07-01"))
		got := svc.BlockOf(start)
		require.Equal(t, b, got, "block %d start %s", b, start)
	}
}

func TestBlock13AbsorbsRemainder(t *testing.T) {
	svc := NewService(Block0Policy{})
	start, end := svc.BlockRange(13, mustDate("2025-07-01"))
	require.Equal(t, mustDate("2026-06-30"), end)
	length := int(end.Sub(start).Hours()/24) + 1
	require.GreaterOrEqual(t, length, 28)
	require.LessOrEqual(t, length, 35)
}

func TestBlock0RollForward(t *testing.T) {
	svc := NewService(Block0Policy{Enabled: true, Block1StartDayOffset: 3})
	require.Equal(t, 0, svc.BlockOf(mustDate("2025-07-01")))
	require.Equal(t, 0, svc.BlockOf(mustDate("2025-07-03")))
	require.Equal(t, 1, svc.BlockOf(mustDate("2025-07-04")))

	start, end := svc.BlockRange(0, mustDate("2025-07-01"))
	require.Equal(t, mustDate("2025-07-01"), start)
	require.Equal(t, mustDate("2025-07-03"), end)
}

func TestFMITWeekRoundTrip(t *testing.T) {
	for _, d := range []time.Time{
		mustDate("2026-04-03"), mustDate("2026-04-05"), mustDate("2026-04-09"),
	} {
		friday, thursday := FMITWeekOf(d)
		require.Equal(t, time.Friday, friday.Weekday())
		require.Equal(t, time.Thursday, thursday.Weekday())
		require.False(t, d.Before(friday))
		require.False(t, d.After(thursday))

		friday2, thursday2 := FMITWeekOf(friday)
		require.Equal(t, friday, friday2)
		require.Equal(t, thursday, thursday2)
	}
}

func TestOvernightCallDay(t *testing.T) {
	require.True(t, OvernightCallDay(mustDate("2026-04-05")))  // Sunday
	require.True(t, OvernightCallDay(mustDate("2026-04-09")))  // Thursday
	require.False(t, OvernightCallDay(mustDate("2026-04-10"))) // Friday
	require.False(t, OvernightCallDay(mustDate("2026-04-11"))) // Saturday
}

func TestPostFMITFridayAndSunday(t *testing.T) {
	friday := mustDate("2026-04-03")
	require.Equal(t, mustDate("2026-04-10"), PostFMITFriday(friday))
	require.Equal(t, mustDate("2026-04-12"), PostFMITSunday(friday))
}

func TestSlotForStampsDerivedFields(t *testing.T) {
	svc := NewService(Block0Policy{})
	holidays := holidaySet{"2025-12-25": true}
	slot := svc.SlotFor(mustDate("2025-12-25"), models.PeriodAM, holidays)
	require.True(t, slot.IsHoliday)
	require.Equal(t, models.PeriodAM, slot.Period)
}

func TestSlotsForRangeProducesTwoPerDay(t *testing.T) {
	svc := NewService(Block0Policy{})
	slots := svc.SlotsForRange(mustDate("2025-07-01"), mustDate("2025-07-03"), holidaySet{})
	require.Len(t, slots, 6)
	require.Equal(t, models.PeriodAM, slots[0].Period)
	require.Equal(t, models.PeriodPM, slots[1].Period)
}
