// Package schedcontext builds the immutable SchedulingContext (C5):
// the single read-only bundle every solver backend, constraint and the
// validator address instead of threading half a dozen slices through
// every call. It is built once per run and never mutated afterward --
// solver backends address decision variables through the integer
// indices it exposes rather than hashing ids on every lookup.
package schedcontext

import (
	"sort"

	"github.com/gme-scheduler/core/internal/availability"
	"github.com/gme-scheduler/core/internal/models"
)

// ResilienceInputs carries the three scalars C9 computes before
// generation, injected here so constraints (hub protection, utilization
// buffer) can consume them without a back-reference to the gate.
type ResilienceInputs struct {
	HubScores          map[string]float64 // personID -> centrality score
	CurrentUtilization float64            // 0.0-1.0 over trailing 28 days
	N1Vulnerable       map[string]bool    // personID -> true if their removal leaves a slot uncovered
}

// Context is the immutable bundle passed to solver backends and the
// validator. Every exported slice is built once by New and must never
// be mutated by a caller; callers needing a working copy should copy
// the slice themselves.
type Context struct {
	People    []models.Person
	Slots     []models.Slot
	Templates []models.RotationTemplate
	Preloads  []models.Assignment

	Availability *availability.Matrix
	Resilience   ResilienceInputs

	personIndex   map[string]int
	slotIndex     map[models.SlotKey]int
	templateIndex map[string]int

	preloadBySlot map[models.AssignmentKey]models.Assignment
}

// New builds a Context, computing the integer indices and occupancy
// fingerprints solver backends need. people, slots and templates are
// sorted into a stable order (by id/date) so that index assignment is
// deterministic across runs -- required for the CP/LP tie-break seeding
// invariant in spec.md §8.
func New(people []models.Person, slots []models.Slot, templates []models.RotationTemplate, preloads []models.Assignment, avail *availability.Matrix, resilience ResilienceInputs) *Context {
	people = append([]models.Person(nil), people...)
	sort.Slice(people, func(i, j int) bool { return people[i].ID < people[j].ID })

	slots = append([]models.Slot(nil), slots...)
	sort.Slice(slots, func(i, j int) bool {
		if !slots[i].Date.Equal(slots[j].Date) {
			return slots[i].Date.Before(slots[j].Date)
		}
		return slots[i].Period < slots[j].Period
	})

	templates = append([]models.RotationTemplate(nil), templates...)
	sort.Slice(templates, func(i, j int) bool { return templates[i].ID < templates[j].ID })

	c := &Context{
		People:        people,
		Slots:         slots,
		Templates:     templates,
		Preloads:      append([]models.Assignment(nil), preloads...),
		Availability:  avail,
		Resilience:    resilience,
		personIndex:   make(map[string]int, len(people)),
		slotIndex:     make(map[models.SlotKey]int, len(slots)),
		templateIndex: make(map[string]int, len(templates)),
		preloadBySlot: make(map[models.AssignmentKey]models.Assignment, len(preloads)),
	}
	for i, p := range people {
		c.personIndex[p.ID] = i
	}
	for i, s := range slots {
		c.slotIndex[s.Key()] = i
	}
	for i, tmpl := range templates {
		c.templateIndex[tmpl.ID] = i
	}
	for _, a := range preloads {
		c.preloadBySlot[a.Key()] = a
	}
	return c
}

// PersonIndex returns the integer index of a person id, or -1 if unknown.
func (c *Context) PersonIndex(personID string) int {
	if i, ok := c.personIndex[personID]; ok {
		return i
	}
	return -1
}

// SlotIndex returns the integer index of a slot key, or -1 if unknown.
func (c *Context) SlotIndex(key models.SlotKey) int {
	if i, ok := c.slotIndex[key]; ok {
		return i
	}
	return -1
}

// TemplateIndex returns the integer index of a template id, or -1 if unknown.
func (c *Context) TemplateIndex(templateID string) int {
	if i, ok := c.templateIndex[templateID]; ok {
		return i
	}
	return -1
}

// PreloadAt returns the preload occupying (person, slot), if any.
func (c *Context) PreloadAt(personID string, slot models.SlotKey) (models.Assignment, bool) {
	a, ok := c.preloadBySlot[models.AssignmentKey{PersonID: personID, Date: slot.Date, Period: slot.Period}]
	return a, ok
}

// SolverEligibleTemplates returns only the templates the solver is
// permitted to place (spec.md §3: only outpatient rotations).
func (c *Context) SolverEligibleTemplates() []models.RotationTemplate {
	out := make([]models.RotationTemplate, 0, len(c.Templates))
	for _, t := range c.Templates {
		if t.IsSolverEligible {
			out = append(out, t)
		}
	}
	return out
}

// FacultyCallEligible returns every person eligible to carry overnight
// call (non-adjunct faculty).
func (c *Context) FacultyCallEligible() []models.Person {
	out := make([]models.Person, 0)
	for _, p := range c.People {
		if p.CallEligible() {
			out = append(out, p)
		}
	}
	return out
}
