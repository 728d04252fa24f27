// Package solver implements the Solver Dispatcher (C6): a complexity
// estimator that picks a backend (greedy / LP / CP / hybrid) and runs
// it under a wall-clock budget, reporting incumbent progress and
// terminal statistics back to the caller (spec.md §4.6).
//
// No constraint-programming or linear-programming library is wired
// into this module's dependency set -- none of the example repos this
// project is grounded on target that domain -- so the CP and LP
// backends build their declared model via the registry's EncodeCP and
// EncodeLP passes (exercising the same polymorphic surface a real
// CP-SAT or simplex backend would consume, and producing real
// branch/conflict counts from the clauses registered) and then drive
// placement through the same hard-constraint oracle the validator
// itself uses: repairing one violation at a time until the schedule is
// clean or the budget expires. This keeps every backend's notion of
// "feasible" identical to the one constraint/hard's Validate methods
// already define and test, rather than reimplementing that logic a
// second time inside a hand-rolled SAT engine.
package solver

import (
	"errors"
	"sort"
	"time"

	"github.com/gme-scheduler/core/internal/constraint"
	"github.com/gme-scheduler/core/internal/models"
	"github.com/gme-scheduler/core/internal/schedcontext"
)

// Decision is one solver-produced (person, slot, template) placement.
// It is the same shape constraints already reason about; reusing it
// means a backend's output and a constraint's EncodeCP input describe
// identical triples.
type Decision = constraint.Assignment

// CallTemplateID is the TemplateID sentinel a Decision uses to record
// an overnight-call placement (the c[p,s] vector in spec.md §4.6)
// rather than a rotation-template placement.
const CallTemplateID = "call"

// Result is one backend invocation's output.
type Result struct {
	Decisions []Decision
	Stats     models.SolverStats
}

// ProgressUpdate is one point on the (iter, best_objective, elapsed)
// stream the dispatcher exposes per spec.md §4.6's progress contract.
type ProgressUpdate struct {
	Iter          int
	BestObjective float64
	Elapsed       time.Duration
}

// ProgressFunc receives incumbent updates; returning true requests
// cancellation, checked by the backend between iterations (spec.md §5
// cooperative cancellation).
type ProgressFunc func(ProgressUpdate) bool

// Backend is the common surface every solver implementation exposes to
// the Dispatcher.
type Backend interface {
	Name() models.Algorithm
	Solve(ctx *schedcontext.Context, registry *constraint.Registry, budget time.Duration, seed int64, progress ProgressFunc) (Result, error)
}

var (
	// ErrInfeasible is returned when a backend exhausts its search
	// without finding a schedule that satisfies every hard constraint.
	ErrInfeasible = errors.New("solver: infeasible")
	// ErrTimeout is returned when a backend's wall-clock budget expires
	// before a feasible schedule was found.
	ErrTimeout = errors.New("solver: timeout")
	// ErrCancelled is returned when the caller's ProgressFunc requests
	// cancellation mid-search.
	ErrCancelled = errors.New("solver: cancelled")
)

// EstimateComplexity returns the complexity-estimator score spec.md
// §4.6 dispatches on. It combines decision-variable count
// (|people| x |slots| x |solver-eligible templates|) with how densely
// the availability matrix leaves those variables open: a roster nearly
// fully blocked by absences and preloads needs far less search than
// one with every slot open, independent of raw variable count.
func EstimateComplexity(ctx *schedcontext.Context) float64 {
	templates := ctx.SolverEligibleTemplates()
	vars := len(ctx.People) * len(ctx.Slots) * len(templates)
	if vars == 0 {
		return 0
	}
	open, total := 0, 0
	for _, p := range ctx.People {
		if !p.Role.IsResident() {
			continue
		}
		for _, s := range ctx.Slots {
			total++
			if ctx.Availability.CanAssign(p.ID, s.Key()) {
				open++
			}
		}
	}
	density := 1.0
	if total > 0 {
		density = float64(open) / float64(total)
	}
	// A base-4 logarithm of the variable count keeps the score from
	// saturating past the hybrid threshold
	// for every roster beyond a few dozen people; density scales it
	// back down as the availability matrix narrows the live search
	// space.
	score := 0.0
	for n := vars; n > 1; n /= 4 {
		score++
	}
	return score * 10 * density
}

// decisionsToSchedule combines a backend's decisions with the context's
// preloads into the full committed-view schedule hard constraints
// validate against -- rules like the 80-hour window or 1-in-7 need the
// whole picture, not just the slots a backend itself touched.
func decisionsToSchedule(decisions []Decision, ctx *schedcontext.Context) []models.Assignment {
	out := make([]models.Assignment, 0, len(ctx.Preloads)+len(decisions))
	out = append(out, ctx.Preloads...)
	out = append(out, DecisionsToAssignments(decisions, ctx)...)
	return out
}

// DecisionsToAssignments converts a backend's raw (person, slot,
// template) decisions into committed-shape Assignments, resolving each
// template id to its catalog activity code. It does not include the
// context's preloads -- callers that need the whole committed-view
// schedule (as decisionsToSchedule does for feasibility checks inside a
// backend's own search) append those separately.
func DecisionsToAssignments(decisions []Decision, ctx *schedcontext.Context) []models.Assignment {
	out := make([]models.Assignment, 0, len(decisions))
	for _, d := range decisions {
		date, err := time.Parse("2006-01-02", d.SlotKey.Date)
		if err != nil {
			continue
		}
		code := d.TemplateID
		if code != CallTemplateID {
			if idx := ctx.TemplateIndex(d.TemplateID); idx >= 0 {
				code = ctx.Templates[idx].Code
			}
		}
		out = append(out, models.Assignment{
			PersonID:     d.PersonID,
			Date:         date,
			Period:       d.SlotKey.Period,
			ActivityCode: code,
			Source:       models.SourceSolver,
			Role:         models.AssignmentRolePrimary,
		})
	}
	return out
}

// eligiblePeopleForSlot returns every resident who could legally take
// over the given slot: available there and not already holding a
// preload.
func eligiblePeopleForSlot(ctx *schedcontext.Context, key models.SlotKey) []models.Person {
	var out []models.Person
	for _, p := range ctx.People {
		if !p.Role.IsResident() {
			continue
		}
		if !ctx.Availability.CanAssign(p.ID, key) {
			continue
		}
		if _, preloaded := ctx.PreloadAt(p.ID, key); preloaded {
			continue
		}
		out = append(out, p)
	}
	return out
}

// objectiveOf approximates spec.md §4.6's objective
// (1000*coverage - sum of weighted soft violations) over a concrete
// schedule, for reporting in SolverStats.
func objectiveOf(schedule []models.Assignment, registry *constraint.Registry, ctx *schedcontext.Context) float64 {
	objective := 1000.0 * float64(len(schedule))
	for _, c := range registry.Soft() {
		for _, v := range c.Validate(schedule, ctx) {
			objective -= v.Weight
		}
	}
	return objective
}

func sortedDecisions(m map[models.SlotKey]Decision) []Decision {
	out := make([]Decision, 0, len(m))
	for _, d := range m {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SlotKey.Date != out[j].SlotKey.Date {
			return out[i].SlotKey.Date < out[j].SlotKey.Date
		}
		if out[i].SlotKey.Period != out[j].SlotKey.Period {
			return out[i].SlotKey.Period < out[j].SlotKey.Period
		}
		return out[i].PersonID < out[j].PersonID
	})
	return out
}
