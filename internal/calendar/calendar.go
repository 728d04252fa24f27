// Package calendar maps civil dates onto the academic-block and
// FMIT-week structures the rest of the scheduling core reasons in.
// Every function here is pure: no I/O, no shared state. Inter-block
// effects (post-call, post-FMIT, NF recovery) are deliberately computed
// from absolute dates rather than block arithmetic, per the block-
// boundary discipline called out in the design notes.
package calendar

import "time"

// blockLengthDays is the fixed length of blocks 1-12. Block 13 absorbs
// whatever remains of the academic year (28-35 days).
const blockLengthDays = 28

// Block0Policy resolves the open question of how the gap between
// July 1 and the first block-1 start day is handled. Decided
// roll-forward: Block 0, when active, runs from July 1 up to (but not
// including) the configured block-1 start, and its rotations are
// orientation-only. See DESIGN.md for the rationale.
type Block0Policy struct {
	// Enabled activates Block 0. When false, Block 1 starts July 1.
	Enabled bool
	// Block1StartDayOffset is the number of days after July 1 that
	// Block 1 begins (1-6 inclusive when Enabled).
	Block1StartDayOffset int
}

// Service computes block numbers, block ranges and FMIT weeks for a
// single configured Block 0 policy. It is stateless aside from that
// configuration and safe for concurrent use.
type Service struct {
	block0 Block0Policy
}

// NewService constructs a calendar Service bound to a Block-0 policy.
func NewService(block0 Block0Policy) *Service {
	return &Service{block0: block0}
}

// AcademicYearStart returns July 1 of the academic year that date d
// falls within. An academic year runs July 1 - June 30.
func AcademicYearStart(d time.Time) time.Time {
	d = d.UTC()
	year := d.Year()
	if d.Month() < time.July {
		year--
	}
	return time.Date(year, time.July, 1, 0, 0, 0, 0, time.UTC)
}

// BlockOf returns the block number (0-13) that date d falls within.
// Block 0 only exists when the configured policy enables it.
func (s *Service) BlockOf(d time.Time) int {
	ayStart := AcademicYearStart(d)
	offset := int(d.UTC().Sub(ayStart).Hours() / 24)

	block1Offset := 0
	if s.block0.Enabled {
		block1Offset = s.block0.Block1StartDayOffset
	}
	if offset < block1Offset {
		return 0
	}
	sinceBlock1 := offset - block1Offset
	block := sinceBlock1/blockLengthDays + 1
	if block > 13 {
		block = 13
	}
	return block
}

// BlockRange returns the inclusive [start, end] civil-date range for
// blockNumber within the academic year beginning at ayStart (which must
// be a July-1 date, as returned by AcademicYearStart). Block 13 absorbs
// the remainder of the year (28-35 days); Block 0, when active, runs
// from ayStart to the configured Block-1 start.
func (s *Service) BlockRange(blockNumber int, ayStart time.Time) (time.Time, time.Time) {
	ayStart = ayStart.UTC()
	ayEnd := ayStart.AddDate(1, 0, -1)

	block1Offset := 0
	if s.block0.Enabled {
		block1Offset = s.block0.Block1StartDayOffset
	}
	block1Start := ayStart.AddDate(0, 0, block1Offset)

	if blockNumber == 0 {
		if !s.block0.Enabled || block1Offset == 0 {
			return ayStart, ayStart.AddDate(0, 0, -1)
		}
		return ayStart, block1Start.AddDate(0, 0, -1)
	}
	if blockNumber == 13 {
		start := block1Start.AddDate(0, 0, (blockNumber-1)*blockLengthDays)
		return start, ayEnd
	}
	start := block1Start.AddDate(0, 0, (blockNumber-1)*blockLengthDays)
	end := start.AddDate(0, 0, blockLengthDays-1)
	return start, end
}

// BlockHalf returns 1 or 2 depending on which half of its block the
// date falls in, used by block-half rotation templates.
func (s *Service) BlockHalf(d time.Time) int {
	block := s.BlockOf(d)
	ayStart := AcademicYearStart(d)
	start, end := s.BlockRange(block, ayStart)
	length := int(end.Sub(start).Hours()/24) + 1
	offset := int(d.UTC().Sub(start).Hours() / 24)
	if offset < length/2 {
		return 1
	}
	return 2
}

// FMITWeekOf returns the Friday-Thursday week containing date d,
// independent of block boundaries. Round-trips: for any d within the
// returned range, FMITWeekOf(d) returns the same pair.
func FMITWeekOf(d time.Time) (friday, thursday time.Time) {
	d = d.UTC()
	// daysSinceFriday: Friday=0 ... Thursday=6
	daysSinceFriday := (int(d.Weekday()) - int(time.Friday) + 7) % 7
	fri := d.AddDate(0, 0, -daysSinceFriday)
	thu := fri.AddDate(0, 0, 6)
	return fri, thu
}

// FMITWeekID returns a stable identity string for the FMIT week
// containing d, suitable for grouping.
func FMITWeekID(d time.Time) string {
	friday, _ := FMITWeekOf(d)
	return friday.Format("2006-01-02")
}

// OvernightCallDay reports whether d is eligible to carry a Sun-Thu
// overnight call assignment.
func OvernightCallDay(d time.Time) bool {
	switch d.UTC().Weekday() {
	case time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday:
		return true
	default:
		return false
	}
}

// PostFMITFriday returns the Friday following the FMIT week that began
// on fmitFriday -- the day that week's faculty is entirely blocked.
func PostFMITFriday(fmitFriday time.Time) time.Time {
	return fmitFriday.AddDate(0, 0, 7)
}

// PostFMITSunday returns the Sunday on which the post-FMIT call
// exclusion applies: the first Sunday after the FMIT week ends.
func PostFMITSunday(fmitFriday time.Time) time.Time {
	_, thursday := FMITWeekOf(fmitFriday)
	return thursday.AddDate(0, 0, 3)
}

// NextCalendarDay is a readability wrapper around AddDate(0,0,1) used
// by the post-call and NF-recovery phases, which must reason in
// absolute dates rather than block offsets.
func NextCalendarDay(d time.Time) time.Time {
	return d.UTC().AddDate(0, 0, 1)
}
