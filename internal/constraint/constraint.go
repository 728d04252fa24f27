// Package constraint holds the typed constraint catalog (C4): every
// hard and soft rule the solver backends and the validator must honor,
// expressed as a tagged variant held in an ordered Registry rather than
// through dynamic dispatch. Adding a rule means adding a value to the
// registry, never touching a solver backend (spec.md §4.4, design
// note on polymorphic constraints).
package constraint

import (
	"github.com/gme-scheduler/core/internal/models"
	"github.com/gme-scheduler/core/internal/schedcontext"
)

// Assignment is the minimal decision a constraint reasons about: person
// p placed on template t at slot s. Solver backends build these from
// their own internal variable representation before calling Validate
// or an encode method.
type Assignment struct {
	PersonID   string
	SlotKey    models.SlotKey
	TemplateID string
}

// CPModel is the narrow surface a CP backend exposes to encode_cp.
// Concrete backends (internal/solver/cp) implement this against
// whatever third-party CP library they wrap.
type CPModel interface {
	AddBoolOr(literals ...string)
	AddAtMostOne(literals ...string)
	AddLinearLE(coeffs map[string]int, bound int)
	AddPenaltyVar(name string, weight float64) string
}

// LPModel is the analogous surface for an LP backend; non-linear hard
// rules (1-in-7, rolling 80-hour windows) are expressed as rolling-
// window inequalities here rather than as boolean clauses.
type LPModel interface {
	AddLinearLE(coeffs map[string]float64, bound float64)
	AddLinearGE(coeffs map[string]float64, bound float64)
	AddObjectiveTerm(varName string, weight float64)
}

// Constraint is the interface every hard and soft rule implements.
// EncodeCP and EncodeLP are optional: a constraint not meaningfully
// expressible to a given backend (or only checkable post-hoc) may
// no-op there and rely entirely on Validate.
type Constraint interface {
	Name() string
	Kind() models.ConstraintKind
	Priority() models.Priority
	Weight() float64 // meaningful only for soft constraints; 0 for hard

	EncodeCP(model CPModel, ctx *schedcontext.Context)
	EncodeLP(model LPModel, ctx *schedcontext.Context)
	Validate(schedule []models.Assignment, ctx *schedcontext.Context) []models.Violation
}

// Registry holds the ordered constraint catalog. Iteration order is
// insertion order, which backends use to iterate and dispatch by kind
// without a solver ever knowing a concrete constraint's type.
type Registry struct {
	constraints []Constraint
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends a constraint to the catalog.
func (r *Registry) Register(c Constraint) {
	r.constraints = append(r.constraints, c)
}

// All returns every registered constraint, in registration order.
func (r *Registry) All() []Constraint {
	return r.constraints
}

// Hard returns only the hard constraints.
func (r *Registry) Hard() []Constraint {
	return r.filter(models.ConstraintKindHard)
}

// Soft returns only the soft constraints.
func (r *Registry) Soft() []Constraint {
	return r.filter(models.ConstraintKindSoft)
}

func (r *Registry) filter(kind models.ConstraintKind) []Constraint {
	out := make([]Constraint, 0, len(r.constraints))
	for _, c := range r.constraints {
		if c.Kind() == kind {
			out = append(out, c)
		}
	}
	return out
}

// ValidateAll runs every registered constraint's Validate against a
// concrete schedule and aggregates the result into a ValidationReport,
// splitting hard from soft violations so callers can fail fast on hard
// ones while still surfacing soft ones for review.
func (r *Registry) ValidateAll(schedule []models.Assignment, ctx *schedcontext.Context) models.ValidationReport {
	report := models.ValidationReport{}
	for _, c := range r.constraints {
		violations := c.Validate(schedule, ctx)
		if len(violations) == 0 {
			continue
		}
		switch c.Kind() {
		case models.ConstraintKindHard:
			report.HardViolations = append(report.HardViolations, violations...)
		case models.ConstraintKindSoft:
			report.SoftViolations = append(report.SoftViolations, violations...)
		}
	}
	return report
}

// base provides the common Name/Kind/Priority/Weight bookkeeping so
// concrete constraints only need to implement EncodeCP/EncodeLP/Validate.
type base struct {
	name     string
	kind     models.ConstraintKind
	priority models.Priority
	weight   float64
}

func (b base) Name() string                 { return b.name }
func (b base) Kind() models.ConstraintKind   { return b.kind }
func (b base) Priority() models.Priority     { return b.priority }
func (b base) Weight() float64               { return b.weight }

// noopEncode supplies empty EncodeCP/EncodeLP methods for a constraint
// with no meaningful CP/LP encoding. No constraint in hard/ or soft/
// embeds it; each writes its own empty encoders.
type noopEncode struct{}

func (noopEncode) EncodeCP(CPModel, *schedcontext.Context) {}
func (noopEncode) EncodeLP(LPModel, *schedcontext.Context) {}
