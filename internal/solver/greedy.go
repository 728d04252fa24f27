package solver

import (
	"sort"
	"time"

	"github.com/gme-scheduler/core/internal/constraint"
	"github.com/gme-scheduler/core/internal/models"
	"github.com/gme-scheduler/core/internal/schedcontext"
)

// Greedy implements the deterministic backend spec.md §4.6 describes:
// sort slots by number of eligible persons ascending, and for each slot
// pick the eligible person with the least current load, tie-broken
// lexicographically on person id so the backend needs no RNG seed to
// be reproducible. Always terminates within its budget; may leave
// slots unfilled, which registry.ValidateAll then reports as coverage
// or hard-constraint violations rather than the backend failing
// outright.
type Greedy struct{}

// NewGreedy constructs the greedy backend.
func NewGreedy() *Greedy { return &Greedy{} }

// Name identifies this backend to the dispatcher and to SolverStats.
func (g *Greedy) Name() models.Algorithm { return models.AlgorithmGreedy }

// Solve implements Backend.
func (g *Greedy) Solve(ctx *schedcontext.Context, registry *constraint.Registry, budget time.Duration, seed int64, progress ProgressFunc) (Result, error) {
	start := time.Now()
	deadline := start.Add(budget)
	templates := ctx.SolverEligibleTemplates()
	if len(templates) == 0 {
		return Result{Stats: models.SolverStats{Backend: g.Name(), TerminalState: "optimal", RuntimeMillis: time.Since(start).Milliseconds()}}, nil
	}

	type slotEligibility struct {
		slot     models.Slot
		eligible []models.Person
	}
	slotElig := make([]slotEligibility, 0, len(ctx.Slots))
	for _, s := range ctx.Slots {
		slotElig = append(slotElig, slotEligibility{slot: s, eligible: eligiblePeopleForSlot(ctx, s.Key())})
	}
	sort.SliceStable(slotElig, func(i, j int) bool {
		return len(slotElig[i].eligible) < len(slotElig[j].eligible)
	})

	load := make(map[string]int, len(ctx.People))
	templateLoad := make(map[string]map[string]int, len(ctx.People))

	var decisions []Decision
	iter, cancelled := 0, false
	for _, se := range slotElig {
		if time.Now().After(deadline) {
			return g.result(decisions, start, "timeout"), ErrTimeout
		}
		if len(se.eligible) == 0 {
			continue
		}
		sort.SliceStable(se.eligible, func(i, j int) bool {
			li, lj := load[se.eligible[i].ID], load[se.eligible[j].ID]
			if li != lj {
				return li < lj
			}
			return se.eligible[i].ID < se.eligible[j].ID
		})
		chosen := se.eligible[0]

		if templateLoad[chosen.ID] == nil {
			templateLoad[chosen.ID] = make(map[string]int)
		}
		tmpl := templates[0]
		for _, t := range templates[1:] {
			if templateLoad[chosen.ID][t.ID] < templateLoad[chosen.ID][tmpl.ID] {
				tmpl = t
			}
		}

		decisions = append(decisions, Decision{PersonID: chosen.ID, SlotKey: se.slot.Key(), TemplateID: tmpl.ID})
		load[chosen.ID]++
		templateLoad[chosen.ID][tmpl.ID]++
		iter++

		if progress != nil && progress(ProgressUpdate{Iter: iter, BestObjective: float64(len(decisions)), Elapsed: time.Since(start)}) {
			cancelled = true
			break
		}
	}

	if cancelled {
		return g.result(decisions, start, "feasible"), ErrCancelled
	}
	return g.result(decisions, start, "feasible"), nil
}

func (g *Greedy) result(decisions []Decision, start time.Time, terminal string) Result {
	return Result{
		Decisions: decisions,
		Stats: models.SolverStats{
			Backend:       g.Name(),
			BestObjective: float64(len(decisions)),
			RuntimeMillis: time.Since(start).Milliseconds(),
			TerminalState: terminal,
		},
	}
}
