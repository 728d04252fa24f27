package solver

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/gme-scheduler/core/internal/constraint"
	"github.com/gme-scheduler/core/internal/models"
	"github.com/gme-scheduler/core/internal/schedcontext"
	"github.com/gme-scheduler/core/pkg/breaker"
)

// Budgets carries the per-backend wall-clock budgets spec.md §4.6/§5
// name as defaults (CP=60s, LP=30s, hybrid total=120s).
type Budgets struct {
	CP     time.Duration
	LP     time.Duration
	Hybrid time.Duration
}

// Thresholds carries the complexity-estimator cutoffs spec.md §4.6
// names: score<20 greedy, <50 LP, <75 CP, else hybrid.
type Thresholds struct {
	Greedy float64
	LP     float64
	CP     float64
}

// Dispatcher selects a backend from EstimateComplexity and runs it
// under its circuit breaker and wall-clock budget, falling back once
// from CP to LP per the hybrid policy when the estimator lands in the
// hybrid band.
type Dispatcher struct {
	greedy     Backend
	lp         Backend
	cp         Backend
	budgets    Budgets
	thresholds Thresholds
	breakers   *breaker.Registry
	rngSeed    int64
	logger     *zap.Logger
}

// NewDispatcher builds a Dispatcher with the default Greedy/LP/CP
// backends wired. breakers may be nil to disable circuit breaking
// (e.g. in tests); logger may be nil to disable dispatch logging.
func NewDispatcher(budgets Budgets, thresholds Thresholds, breakers *breaker.Registry, rngSeed int64, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		greedy:     NewGreedy(),
		lp:         NewLP(),
		cp:         NewCP(),
		budgets:    budgets,
		thresholds: thresholds,
		breakers:   breakers,
		rngSeed:    rngSeed,
		logger:     logger,
	}
}

// Choose maps a complexity score to the backend algorithm spec.md
// §4.6 prescribes.
func (d *Dispatcher) Choose(score float64) models.Algorithm {
	switch {
	case score < d.thresholds.Greedy:
		return models.AlgorithmGreedy
	case score < d.thresholds.LP:
		return models.AlgorithmLP
	case score < d.thresholds.CP:
		return models.AlgorithmCP
	default:
		return models.AlgorithmHybrid
	}
}

// Dispatch estimates complexity, chooses a backend, and executes it
// (or the CP->LP hybrid chain), returning the first feasible/optimal
// result it finds.
func (d *Dispatcher) Dispatch(ctx *schedcontext.Context, registry *constraint.Registry, progress ProgressFunc) (Result, error) {
	score := EstimateComplexity(ctx)
	algo := d.Choose(score)
	if d.logger != nil {
		d.logger.Info("solver dispatch",
			zap.Float64("complexity_score", score),
			zap.String("algorithm", string(algo)),
		)
	}

	switch algo {
	case models.AlgorithmGreedy:
		return d.run(d.greedy, "greedy", ctx, registry, d.budgets.CP, progress)
	case models.AlgorithmLP:
		return d.run(d.lp, "lp", ctx, registry, d.budgets.LP, progress)
	case models.AlgorithmCP:
		return d.run(d.cp, "cp", ctx, registry, d.budgets.CP, progress)
	default:
		return d.hybrid(ctx, registry, progress)
	}
}

// DispatchWith runs the caller-forced backend instead of estimating
// complexity, used when generate() is called with an explicit algorithm
// override (spec.md §6). An empty algo falls back to Dispatch's own
// estimate.
func (d *Dispatcher) DispatchWith(algo models.Algorithm, ctx *schedcontext.Context, registry *constraint.Registry, progress ProgressFunc) (Result, error) {
	switch algo {
	case models.AlgorithmGreedy:
		return d.run(d.greedy, "greedy", ctx, registry, d.budgets.CP, progress)
	case models.AlgorithmLP:
		return d.run(d.lp, "lp", ctx, registry, d.budgets.LP, progress)
	case models.AlgorithmCP:
		return d.run(d.cp, "cp", ctx, registry, d.budgets.CP, progress)
	case models.AlgorithmHybrid:
		return d.hybrid(ctx, registry, progress)
	default:
		return d.Dispatch(ctx, registry, progress)
	}
}

// WithBudgets returns a shallow copy of the Dispatcher using b instead of
// its configured budgets, letting one generate() call override the
// default wall-clock budget without reconstructing the backends.
func (d *Dispatcher) WithBudgets(b Budgets) *Dispatcher {
	clone := *d
	clone.budgets = b
	return &clone
}

func (d *Dispatcher) hybrid(ctx *schedcontext.Context, registry *constraint.Registry, progress ProgressFunc) (Result, error) {
	cpBudget, lpBudget := d.budgets.CP, d.budgets.LP
	if cpBudget+lpBudget > d.budgets.Hybrid {
		cpBudget = d.budgets.Hybrid * 2 / 3
		lpBudget = d.budgets.Hybrid - cpBudget
	}

	result, err := d.run(d.cp, "cp", ctx, registry, cpBudget, progress)
	if err == nil || errors.Is(err, ErrCancelled) {
		result.Stats.Backend = models.AlgorithmHybrid
		return result, err
	}
	if d.logger != nil {
		d.logger.Warn("hybrid CP stage did not reach a feasible schedule, falling back to LP", zap.Error(err))
	}

	result, err = d.run(d.lp, "lp", ctx, registry, lpBudget, progress)
	result.Stats.Backend = models.AlgorithmHybrid
	return result, err
}

func (d *Dispatcher) run(backend Backend, breakerName string, ctx *schedcontext.Context, registry *constraint.Registry, budget time.Duration, progress ProgressFunc) (Result, error) {
	var result Result
	fn := func() (any, error) {
		var err error
		result, err = backend.Solve(ctx, registry, budget, d.rngSeed, progress)
		return nil, err
	}

	var err error
	if d.breakers != nil {
		_, err = d.breakers.Execute(breakerName, fn)
	} else {
		_, err = fn()
	}
	if result.Stats.Backend == "" {
		result.Stats.Backend = backend.Name()
	}
	return result, err
}
