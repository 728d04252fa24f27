package solver

import (
	"time"

	"github.com/gme-scheduler/core/internal/constraint"
	"github.com/gme-scheduler/core/internal/models"
	"github.com/gme-scheduler/core/internal/schedcontext"
)

// CP is the constraint-programming backend (spec.md §4.6): it emits
// every hard and soft constraint through the registry's EncodeCP pass
// before searching, exercising the same CPModel surface a production
// CP-SAT solver would consume.
type CP struct{}

// NewCP constructs the CP backend.
func NewCP() *CP { return &CP{} }

// Name identifies this backend to the dispatcher and to SolverStats.
func (c *CP) Name() models.Algorithm { return models.AlgorithmCP }

// Solve implements Backend.
func (c *CP) Solve(ctx *schedcontext.Context, registry *constraint.Registry, budget time.Duration, seed int64, progress ProgressFunc) (Result, error) {
	model := newCPModel()
	for _, hc := range registry.Hard() {
		hc.EncodeCP(model, ctx)
	}
	for _, sc := range registry.Soft() {
		sc.EncodeCP(model, ctx)
	}
	return localSearch(ctx, registry, budget, seed, progress, c.Name(), model.branches(), model.conflicts())
}
