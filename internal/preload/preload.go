// Package preload implements the Preload Pipeline (C3): seven ordered
// phases that turn source-of-truth roster/absence/rotation data into
// source=preload Assignments before the solver ever runs. Every phase
// reads from its own inputs and writes through a shared conflict
// ledger so that two phases targeting the same (person, slot) surface
// as a hard error rather than a silent overwrite (spec.md §4.3).
package preload

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gme-scheduler/core/internal/availability"
	"github.com/gme-scheduler/core/internal/calendar"
	"github.com/gme-scheduler/core/internal/models"
)

// Activity codes the pipeline itself is responsible for writing.
// Clinic/rotation activity codes beyond these come from the
// RotationTemplate catalog (Input.Templates) and are opaque to this
// package.
const (
	ActivityLeaveAM       = "LV-AM"
	ActivityLeavePM       = "LV-PM"
	ActivityCall          = "call"
	ActivityPostCallOff   = "off"
	ActivityPCAT          = "pcat"
	ActivityDO            = "do"
	ActivityContinuity    = "fm_clinic"
	ActivitySportsMedicine = "sm_clinic"
)

// inpatient rotation codes recognized by phase 2/3 (spec.md §4.3.2).
var inpatientCodes = map[string]bool{
	"FMIT": true, "NF": true, "PedW": true, "PedNF": true,
	"KAP": true, "IM": true, "LDNF": true,
}

// Input bundles everything the pipeline reads. All fields are supplied
// by the caller (the engine, C10); preload never queries a database
// itself.
type Input struct {
	AcademicYearStart time.Time
	RangeStart        time.Time
	RangeEnd          time.Time
	Holidays          map[string]bool // "2006-01-02" -> true

	People         []models.Person
	TemplatesByID  map[string]models.RotationTemplate
	BlockRotations []models.ResidentBlockRotation // resident inpatient/outpatient block placements
	Absences       []availability.Absence

	// ResidentCallPreloads are explicit pre-assigned overnight calls for
	// residents (e.g. L&D, night-float coverage) that cannot be derived
	// from block rotations alone.
	ResidentCallPreloads []ResidentCallPreload

	// SportsMedicineFacultyID is the faculty member currently on the SM
	// rotation, if any, for Wed AM sm_clinic (phase 7).
	SportsMedicineFacultyID string
}

// ResidentCallPreload is one explicit resident overnight call
// assignment fed into phase 5.
type ResidentCallPreload struct {
	PersonID string
	Date     time.Time
}

// Result is the pipeline's output: every preload-sourced Assignment it
// produced, grouped by the phase that produced it for observability.
type Result struct {
	Assignments []models.Assignment
	ByPhase     map[string][]models.Assignment
}

// ConflictError reports that two phases targeted the same
// (person, slot), which spec.md §4.3 treats as a hard pipeline error.
type ConflictError struct {
	Key         models.AssignmentKey
	FirstPhase  string
	SecondPhase string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("preload conflict on %s %s %s: %s then %s", e.Key.PersonID, e.Key.Date, e.Key.Period, e.FirstPhase, e.SecondPhase)
}

// Pipeline runs the seven ordered preload phases against a calendar
// service. It is stateless and safe for concurrent use across distinct
// Run calls.
type Pipeline struct {
	cal *calendar.Service
}

// New constructs a Pipeline bound to a calendar Service.
func New(cal *calendar.Service) *Pipeline {
	return &Pipeline{cal: cal}
}

// ledger tracks which phase first wrote each (person, slot) so later
// phases can detect a conflicting write deterministically.
type ledger struct {
	owner map[models.AssignmentKey]string
	out   []models.Assignment
	byPhase map[string][]models.Assignment
}

func newLedger() *ledger {
	return &ledger{owner: make(map[models.AssignmentKey]string), byPhase: make(map[string][]models.Assignment)}
}

func (l *ledger) add(phase string, a models.Assignment) error {
	key := a.Key()
	if owner, exists := l.owner[key]; exists {
		return &ConflictError{Key: key, FirstPhase: owner, SecondPhase: phase}
	}
	l.owner[key] = phase
	a.ID = uuid.NewString()
	a.Source = models.SourcePreload
	a.Role = models.AssignmentRolePrimary
	l.out = append(l.out, a)
	l.byPhase[phase] = append(l.byPhase[phase], a)
	return nil
}

// Run executes all seven phases in spec order and returns the
// aggregated, deterministic, idempotent preload set. A conflicting
// write between phases aborts the run and returns a *ConflictError.
func (p *Pipeline) Run(input Input) (Result, error) {
	l := newLedger()

	absenceAssignments, err := p.phaseAbsences(input)
	if err != nil {
		return Result{}, err
	}
	if err := commit(l, "absences", absenceAssignments); err != nil {
		return Result{}, err
	}

	inpatientAssignments, err := p.phaseInpatientRotations(input)
	if err != nil {
		return Result{}, err
	}
	if err := commit(l, "inpatient_rotations", inpatientAssignments); err != nil {
		return Result{}, err
	}

	fmitCallAssignments := p.phaseFMITCall(input, inpatientAssignments)
	if err := commit(l, "fmit_call", fmitCallAssignments); err != nil {
		return Result{}, err
	}

	continuityAssignments := p.phaseContinuityClinic(input, inpatientAssignments)
	if err := commit(l, "continuity_clinic", continuityAssignments); err != nil {
		return Result{}, err
	}

	residentCallAssignments := p.phaseResidentCall(input)
	if err := commit(l, "resident_call", residentCallAssignments); err != nil {
		return Result{}, err
	}

	allCallSoFar := append(append([]models.Assignment(nil), fmitCallAssignments...), residentCallAssignments...)
	facultyPostCallAssignments := p.phaseFacultyPostCall(input, allCallSoFar)
	if err := commit(l, "faculty_post_call", facultyPostCallAssignments); err != nil {
		return Result{}, err
	}

	smAssignments := p.phaseSportsMedicine(input, inpatientAssignments)
	if err := commit(l, "sports_medicine", smAssignments); err != nil {
		return Result{}, err
	}

	return Result{Assignments: l.out, ByPhase: l.byPhase}, nil
}

func commit(l *ledger, phase string, assignments []models.Assignment) error {
	for _, a := range assignments {
		if err := l.add(phase, a); err != nil {
			return err
		}
	}
	return nil
}

// phaseAbsences (phase 1) converts blocking absences into LV-AM/LV-PM
// activity assignments for every slot the absence spans.
func (p *Pipeline) phaseAbsences(input Input) ([]models.Assignment, error) {
	var out []models.Assignment
	for _, abs := range input.Absences {
		if abs.Kind != availability.AbsenceKindBlocking {
			continue
		}
		for _, s := range p.slotsBetween(abs.Start.Date, abs.End.Date, input.Holidays) {
			activity := ActivityLeaveAM
			if s.Period == models.PeriodPM {
				activity = ActivityLeavePM
			}
			out = append(out, models.Assignment{
				PersonID: abs.PersonID, Date: s.Date, Period: s.Period, ActivityCode: activity,
			})
		}
	}
	return out, nil
}

// phaseInpatientRotations (phase 2) expands each person's block-level
// inpatient rotation placement into a per-slot activity assignment
// over the rotation's block (or block-half) range.
func (p *Pipeline) phaseInpatientRotations(input Input) ([]models.Assignment, error) {
	var out []models.Assignment
	for _, rotation := range input.BlockRotations {
		tmpl, ok := input.TemplatesByID[rotation.TemplateID]
		if !ok || tmpl.RotationType != models.RotationTypeInpatient || !inpatientCodes[tmpl.Code] {
			continue
		}
		start, end := p.cal.BlockRange(rotation.BlockNumber, input.AcademicYearStart)
		if rotation.BlockHalf != nil {
			start, end = p.blockHalfRange(start, end, *rotation.BlockHalf)
		}
		for _, s := range p.slotsBetween(start, end, input.Holidays) {
			// Phase 3 owns the Friday/Saturday PM slots of an FMIT
			// rotation: the overnight call derived there replaces the
			// generic inpatient activity for that half-day only.
			if tmpl.Code == "FMIT" && s.Period == models.PeriodPM &&
				(s.Date.Weekday() == time.Friday || s.Date.Weekday() == time.Saturday) {
				continue
			}
			out = append(out, models.Assignment{
				PersonID: rotation.PersonID, Date: s.Date, Period: s.Period, ActivityCode: tmpl.Code,
			})
		}
	}
	return out, nil
}

// phaseFMITCall (phase 3) assigns the faculty on FMIT that week
// overnight call on the week's Friday and Saturday nights.
func (p *Pipeline) phaseFMITCall(input Input, inpatient []models.Assignment) []models.Assignment {
	fmitWeeks := make(map[string]map[string]bool) // weekID -> personID -> true
	for _, a := range inpatient {
		if a.ActivityCode != "FMIT" {
			continue
		}
		weekID := calendar.FMITWeekID(a.Date)
		if fmitWeeks[weekID] == nil {
			fmitWeeks[weekID] = make(map[string]bool)
		}
		fmitWeeks[weekID][a.PersonID] = true
	}
	var out []models.Assignment
	for weekID, people := range fmitWeeks {
		friday, _ := calendar.FMITWeekOf(mustParse(weekID))
		saturday := friday.AddDate(0, 0, 1)
		for personID := range people {
			out = append(out,
				models.Assignment{PersonID: personID, Date: friday, Period: models.PeriodPM, ActivityCode: ActivityCall},
				models.Assignment{PersonID: personID, Date: saturday, Period: models.PeriodPM, ActivityCode: ActivityCall},
			)
		}
	}
	return out
}

// phaseContinuityClinic (phase 4) seats PGY1/PGY2/PGY3 residents in
// their inpatient continuity clinic half-day during every week the
// inpatient team is running FMIT.
func (p *Pipeline) phaseContinuityClinic(input Input, inpatient []models.Assignment) []models.Assignment {
	weekIDs := make(map[string]time.Time)
	for _, a := range inpatient {
		if a.ActivityCode != "FMIT" {
			continue
		}
		friday, _ := calendar.FMITWeekOf(a.Date)
		weekIDs[calendar.FMITWeekID(a.Date)] = friday
	}
	var out []models.Assignment
	for _, friday := range weekIDs {
		monday := friday.AddDate(0, 0, 3)
		tuesday := friday.AddDate(0, 0, 4)
		wednesday := friday.AddDate(0, 0, 5)
		for _, person := range input.People {
			switch person.Role {
			case models.RoleResidentPGY1:
				out = append(out, models.Assignment{PersonID: person.ID, Date: wednesday, Period: models.PeriodAM, ActivityCode: ActivityContinuity})
			case models.RoleResidentPGY2:
				out = append(out, models.Assignment{PersonID: person.ID, Date: tuesday, Period: models.PeriodPM, ActivityCode: ActivityContinuity})
			case models.RoleResidentPGY3:
				out = append(out, models.Assignment{PersonID: person.ID, Date: monday, Period: models.PeriodPM, ActivityCode: ActivityContinuity})
			}
		}
	}
	return out
}

// phaseResidentCall (phase 5) preloads explicit resident overnight
// call assignments and their automatic post-call recovery day.
func (p *Pipeline) phaseResidentCall(input Input) []models.Assignment {
	var out []models.Assignment
	for _, preload := range input.ResidentCallPreloads {
		out = append(out, models.Assignment{PersonID: preload.PersonID, Date: preload.Date, Period: models.PeriodPM, ActivityCode: ActivityCall})
		recoveryDay := calendar.NextCalendarDay(preload.Date)
		out = append(out,
			models.Assignment{PersonID: preload.PersonID, Date: recoveryDay, Period: models.PeriodAM, ActivityCode: ActivityPostCallOff},
			models.Assignment{PersonID: preload.PersonID, Date: recoveryDay, Period: models.PeriodPM, ActivityCode: ActivityPostCallOff},
		)
	}
	return out
}

// phaseFacultyPostCall (phase 6) preloads PCAT/DO the calendar day
// after every Sun-Thu overnight call already committed by phases 3 and
// 5, crossing block boundaries by date rather than block offset.
// Resident calls are skipped: phase 5 already gave them a recovery day.
func (p *Pipeline) phaseFacultyPostCall(input Input, callAssignments []models.Assignment) []models.Assignment {
	residents := make(map[string]bool)
	for _, person := range input.People {
		if person.Role.IsResident() {
			residents[person.ID] = true
		}
	}
	var out []models.Assignment
	for _, a := range callAssignments {
		if a.ActivityCode != ActivityCall || residents[a.PersonID] || !calendar.OvernightCallDay(a.Date) {
			continue
		}
		next := calendar.NextCalendarDay(a.Date)
		out = append(out,
			models.Assignment{PersonID: a.PersonID, Date: next, Period: models.PeriodAM, ActivityCode: ActivityPCAT},
			models.Assignment{PersonID: a.PersonID, Date: next, Period: models.PeriodPM, ActivityCode: ActivityDO},
		)
	}
	return out
}

// phaseSportsMedicine (phase 7) seats the SM-rotation faculty in Wed
// AM sm_clinic for every week in range, except weeks where that
// faculty is on FMIT (SM clinic is cancelled for the week, per
// spec.md §4.4's SM resident/faculty alignment rule).
func (p *Pipeline) phaseSportsMedicine(input Input, inpatient []models.Assignment) []models.Assignment {
	if input.SportsMedicineFacultyID == "" {
		return nil
	}
	fmitWeeksForFaculty := make(map[string]bool)
	for _, a := range inpatient {
		if a.ActivityCode != "FMIT" || a.PersonID != input.SportsMedicineFacultyID {
			continue
		}
		fmitWeeksForFaculty[calendar.FMITWeekID(a.Date)] = true
	}
	var out []models.Assignment
	for _, s := range p.slotsBetween(input.RangeStart, input.RangeEnd, input.Holidays) {
		if s.Date.Weekday() != time.Wednesday || s.Period != models.PeriodAM {
			continue
		}
		if fmitWeeksForFaculty[calendar.FMITWeekID(s.Date)] {
			continue
		}
		out = append(out, models.Assignment{PersonID: input.SportsMedicineFacultyID, Date: s.Date, Period: models.PeriodAM, ActivityCode: ActivitySportsMedicine})
	}
	return out
}

func (p *Pipeline) slotsBetween(start, end time.Time, holidays map[string]bool) []models.Slot {
	return p.cal.SlotsForRange(start, end, holidays)
}

func (p *Pipeline) blockHalfRange(blockStart, blockEnd time.Time, half int) (time.Time, time.Time) {
	length := int(blockEnd.Sub(blockStart).Hours()/24) + 1
	mid := blockStart.AddDate(0, 0, length/2)
	if half == 1 {
		return blockStart, mid.AddDate(0, 0, -1)
	}
	return mid, blockEnd
}

func mustParse(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}
