package calendar

import (
	"time"

	"github.com/gme-scheduler/core/internal/models"
)

// holidaySet is the minimal surface SlotFor needs to stamp Slot.IsHoliday;
// satisfied by service.HolidayService.DatesInRange.
type holidaySet map[string]bool

// SlotFor builds the fully-derived Slot for (date, period): block
// number, block half, FMIT week id, weekend and holiday flags. Every
// calendar day produces exactly two slots, one per period.
func (s *Service) SlotFor(date time.Time, period models.Period, holidays holidaySet) models.Slot {
	date = date.UTC().Truncate(24 * time.Hour)
	weekday := date.Weekday()
	return models.Slot{
		Date:        date,
		Period:      period,
		BlockNumber: s.BlockOf(date),
		BlockHalf:   s.BlockHalf(date),
		FMITWeekID:  FMITWeekID(date),
		IsWeekend:   weekday == time.Saturday || weekday == time.Sunday,
		IsHoliday:   holidays[date.Format("2006-01-02")],
	}
}

// SlotsForRange builds both half-day slots for every calendar day in
// [start, end] inclusive.
func (s *Service) SlotsForRange(start, end time.Time, holidays holidaySet) []models.Slot {
	start = start.UTC().Truncate(24 * time.Hour)
	end = end.UTC().Truncate(24 * time.Hour)
	slots := make([]models.Slot, 0, int(end.Sub(start).Hours()/24+1)*2)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		slots = append(slots, s.SlotFor(d, models.PeriodAM, holidays))
		slots = append(slots, s.SlotFor(d, models.PeriodPM, holidays))
	}
	return slots
}
