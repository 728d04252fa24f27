// Package availability builds the per-run (person, slot) tri-state
// matrix the solver and preload pipeline consult before placing any
// assignment. The builder pattern (Block/CanAssign/Reserve/Release) is
// the same one the scheduling service used for per-day teacher load
// tracking, generalized here to the Slot/Assignment domain and to the
// three-state Available/Partial/Blocked outcome the spec requires.
package availability

import (
	"github.com/gme-scheduler/core/internal/models"
)

// AbsenceKind distinguishes absence records that zero out a slot
// entirely from ones that merely narrow it to a replacement activity.
type AbsenceKind string

const (
	AbsenceKindBlocking AbsenceKind = "blocking" // deployment, TDY, extended medical, FMIT, NF, offsite rotation
	AbsenceKindPartial  AbsenceKind = "partial"   // vacation, conference, meeting
)

// Absence is one (person, date-range) unavailability record. FMIT and
// rotation-based unavailability are derived elsewhere and never appear
// here as stored absences.
type Absence struct {
	PersonID  string
	Start     models.Slot
	End       models.Slot
	Kind      AbsenceKind
	Type      string // deployment | tdy | extended_medical | vacation | conference | meeting | ...
	Reason    string
	Replace   string // replacement activity code, only meaningful when Kind == Partial
}

// Matrix is the built (person, slot) availability lookup. Once built it
// is read-only and safe for concurrent reads from solver backends; the
// Reserve/Release methods exist for the preload pipeline's own
// bookkeeping while it is still constructing its output and must not be
// called once the matrix is handed to a solver.
type Matrix struct {
	entries map[string]map[models.SlotKey]models.AvailabilityEntry
}

// NewMatrix builds an empty matrix covering no one; use Block/Partial to
// populate it from absence records, then Reserve as preload phases run.
func NewMatrix() *Matrix {
	return &Matrix{entries: make(map[string]map[models.SlotKey]models.AvailabilityEntry)}
}

func (m *Matrix) ensure(personID string) map[models.SlotKey]models.AvailabilityEntry {
	if m.entries[personID] == nil {
		m.entries[personID] = make(map[models.SlotKey]models.AvailabilityEntry)
	}
	return m.entries[personID]
}

// Block marks (person, slot) entirely unavailable. Any slot already
// preloaded with a blocking activity must be blocked here too
// (spec.md §4.2 invariant).
func (m *Matrix) Block(personID string, slot models.SlotKey, reason string) {
	entries := m.ensure(personID)
	entries[slot] = models.AvailabilityEntry{
		PersonID: personID,
		SlotKey:  slot,
		State:    models.AvailabilityStateUnavailable,
		Reason:   reason,
	}
}

// Partial marks (person, slot) narrowed to a replacement activity
// rather than fully blocked.
func (m *Matrix) Partial(personID string, slot models.SlotKey, replacement, reason string) {
	entries := m.ensure(personID)
	// A prior Block always wins: partial absences never reopen a
	// slot a blocking absence or preload already closed.
	if existing, ok := entries[slot]; ok && existing.State == models.AvailabilityStateUnavailable {
		return
	}
	entries[slot] = models.AvailabilityEntry{
		PersonID:            personID,
		SlotKey:             slot,
		State:               models.AvailabilityStatePartial,
		ReplacementActivity: replacement,
		Reason:              reason,
	}
}

// LoadAbsences applies a batch of absence records, expanding each
// record's slot range via the slots argument (every slot between
// Start and End inclusive, both periods).
func (m *Matrix) LoadAbsences(absences []Absence, slotsInRange func(start, end models.Slot) []models.Slot) {
	for _, a := range absences {
		for _, slot := range slotsInRange(a.Start, a.End) {
			key := slot.Key()
			switch a.Kind {
			case AbsenceKindBlocking:
				m.Block(a.PersonID, key, a.Type)
			case AbsenceKindPartial:
				m.Partial(a.PersonID, key, a.Replace, a.Type)
			}
		}
	}
}

// Get returns the entry for (person, slot), defaulting to Available
// (Free, no replacement) when the pair was never touched -- the matrix
// only stores deviations from full availability.
func (m *Matrix) Get(personID string, slot models.SlotKey) models.AvailabilityEntry {
	if entries, ok := m.entries[personID]; ok {
		if entry, ok := entries[slot]; ok {
			return entry
		}
	}
	return models.AvailabilityEntry{PersonID: personID, SlotKey: slot, State: models.AvailabilityStateFree}
}

// CanAssign reports whether the solver may place any activity at
// (person, slot): true for Free and Partial, false for Unavailable.
func (m *Matrix) CanAssign(personID string, slot models.SlotKey) bool {
	return m.Get(personID, slot).Available()
}

// Reserve stamps (person, slot) unavailable, used by preload phases to
// claim a slot for one phase before a later phase runs -- e.g. the
// absence phase reserving before the inpatient-rotation phase sees the
// same person.
func (m *Matrix) Reserve(personID string, slot models.SlotKey, reason string) {
	m.Block(personID, slot, reason)
}

// Release reverts a Reserve, restoring the slot to Free. Used only by
// preload-phase backtracking; never called once a matrix is frozen and
// handed to the solver.
func (m *Matrix) Release(personID string, slot models.SlotKey) {
	if entries, ok := m.entries[personID]; ok {
		delete(entries, slot)
	}
}
