package hard

import (
	"sort"
	"time"

	"github.com/gme-scheduler/core/internal/models"
)

func groupByPerson(schedule []models.Assignment) map[string][]models.Assignment {
	byPerson := make(map[string][]models.Assignment)
	for _, a := range schedule {
		byPerson[a.PersonID] = append(byPerson[a.PersonID], a)
	}
	return byPerson
}

func sortedDates(slots []models.Slot) []time.Time {
	seen := make(map[string]time.Time)
	for _, s := range slots {
		seen[s.Date.Format("2006-01-02")] = s.Date
	}
	dates := make([]time.Time, 0, len(seen))
	for _, d := range seen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// rollingWindows partitions a slot set's distinct dates into every
// size-day rolling window, returning the slots belonging to each.
func rollingWindows(slots []models.Slot, sizeDays int) [][]models.Slot {
	dates := sortedDates(slots)
	if len(dates) < sizeDays {
		return nil
	}
	byDate := make(map[string][]models.Slot)
	for _, s := range slots {
		key := s.Date.Format("2006-01-02")
		byDate[key] = append(byDate[key], s)
	}
	var windows [][]models.Slot
	for i := 0; i+sizeDays <= len(dates); i++ {
		var window []models.Slot
		for _, d := range dates[i : i+sizeDays] {
			window = append(window, byDate[d.Format("2006-01-02")]...)
		}
		windows = append(windows, window)
	}
	return windows
}

type assignmentWindow struct {
	start       time.Time
	assignments []models.Assignment
}

// rollingAssignmentWindows partitions one person's sorted assignments
// into every size-day rolling window anchored at each assignment's own
// date range, for the 80-hour validator pass.
func rollingAssignmentWindows(assignments []models.Assignment, sizeDays int) []assignmentWindow {
	if len(assignments) == 0 {
		return nil
	}
	var windows []assignmentWindow
	for _, anchor := range assignments {
		start := anchor.Date
		end := start.AddDate(0, 0, sizeDays-1)
		var inWindow []models.Assignment
		for _, a := range assignments {
			if !a.Date.Before(start) && !a.Date.After(end) {
				inWindow = append(inWindow, a)
			}
		}
		windows = append(windows, assignmentWindow{start: start, assignments: inWindow})
	}
	return windows
}
