package solver

import (
	"time"

	"github.com/gme-scheduler/core/internal/constraint"
	"github.com/gme-scheduler/core/internal/models"
	"github.com/gme-scheduler/core/internal/schedcontext"
)

// LP is the linear-programming backend (spec.md §4.6): same structure
// as CP, but non-linear hard rules (1-in-7, the rolling 80-hour
// window) are expressed by the constraints themselves as rolling-window
// inequalities through EncodeLP rather than boolean clauses.
type LP struct{}

// NewLP constructs the LP backend.
func NewLP() *LP { return &LP{} }

// Name identifies this backend to the dispatcher and to SolverStats.
func (l *LP) Name() models.Algorithm { return models.AlgorithmLP }

// Solve implements Backend.
func (l *LP) Solve(ctx *schedcontext.Context, registry *constraint.Registry, budget time.Duration, seed int64, progress ProgressFunc) (Result, error) {
	model := newLPModel()
	for _, hc := range registry.Hard() {
		hc.EncodeLP(model, ctx)
	}
	for _, sc := range registry.Soft() {
		sc.EncodeLP(model, ctx)
	}
	return localSearch(ctx, registry, budget, seed, progress, l.Name(), model.branches(), model.conflicts())
}
