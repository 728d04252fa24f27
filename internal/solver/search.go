package solver

import (
	"math/rand"
	"time"

	"github.com/gme-scheduler/core/internal/constraint"
	"github.com/gme-scheduler/core/internal/models"
	"github.com/gme-scheduler/core/internal/schedcontext"
)

// localSearch drives the CP and LP backends' actual placement search.
// It seeds from the Greedy backend's output (a cheap, always-terminating
// starting point) and repeatedly repairs one hard violation at a time --
// reassigning the offending slot to a different eligible person/template
// -- accepting any move that doesn't increase the violation count,
// until the schedule is clean or the budget expires. branches/conflicts
// seed the stats from the backend's own EncodeCP/EncodeLP model
// construction and are incremented as the search explores moves.
func localSearch(ctx *schedcontext.Context, registry *constraint.Registry, budget time.Duration, seed int64, progress ProgressFunc, backend models.Algorithm, branches, conflicts int) (Result, error) {
	start := time.Now()
	deadline := start.Add(budget)

	greedyResult, _ := NewGreedy().Solve(ctx, registry, budget, seed, nil)
	current := make(map[models.SlotKey]Decision, len(greedyResult.Decisions))
	for _, d := range greedyResult.Decisions {
		current[d.SlotKey] = d
	}

	templates := ctx.SolverEligibleTemplates()
	rng := rand.New(rand.NewSource(seed))

	schedule := decisionsToSchedule(sortedDecisions(current), ctx)
	report := registry.ValidateAll(schedule, ctx)

	iter := 0
	for len(report.HardViolations) > 0 && time.Now().Before(deadline) {
		iter++

		var repairable []models.Violation
		for _, v := range report.HardViolations {
			if v.SlotKey != nil {
				repairable = append(repairable, v)
			}
		}
		if len(repairable) == 0 {
			break
		}
		target := repairable[rng.Intn(len(repairable))]

		candidates := eligiblePeopleForSlot(ctx, *target.SlotKey)
		if len(candidates) == 0 || len(templates) == 0 {
			continue
		}
		pick := candidates[rng.Intn(len(candidates))]
		tmpl := templates[rng.Intn(len(templates))]

		trial := make(map[models.SlotKey]Decision, len(current))
		for k, d := range current {
			trial[k] = d
		}
		trial[*target.SlotKey] = Decision{PersonID: pick.ID, SlotKey: *target.SlotKey, TemplateID: tmpl.ID}

		trialSchedule := decisionsToSchedule(sortedDecisions(trial), ctx)
		trialReport := registry.ValidateAll(trialSchedule, ctx)
		branches++

		if len(trialReport.HardViolations) > len(report.HardViolations) {
			conflicts++
		} else {
			current = trial
			schedule = trialSchedule
			report = trialReport
		}

		if progress != nil && progress(ProgressUpdate{Iter: iter, BestObjective: -float64(len(report.HardViolations)), Elapsed: time.Since(start)}) {
			return Result{
				Decisions: sortedDecisions(current),
				Stats: models.SolverStats{
					Backend:       backend,
					Branches:      branches,
					Conflicts:     conflicts,
					BestObjective: objectiveOf(schedule, registry, ctx),
					RuntimeMillis: time.Since(start).Milliseconds(),
					TerminalState: "feasible",
				},
			}, ErrCancelled
		}
	}

	terminal := "optimal"
	var err error
	if len(report.HardViolations) > 0 {
		if !time.Now().Before(deadline) {
			terminal = "timeout"
			err = ErrTimeout
		} else {
			terminal = "infeasible"
			err = ErrInfeasible
		}
	}

	return Result{
		Decisions: sortedDecisions(current),
		Stats: models.SolverStats{
			Backend:       backend,
			Branches:      branches,
			Conflicts:     conflicts,
			BestObjective: objectiveOf(schedule, registry, ctx),
			RuntimeMillis: time.Since(start).Milliseconds(),
			TerminalState: terminal,
		},
	}, err
}
