package soft

import (
	"fmt"

	"github.com/gme-scheduler/core/internal/constraint"
	"github.com/gme-scheduler/core/internal/models"
	"github.com/gme-scheduler/core/internal/schedcontext"
)

// HubProtection penalizes assigning hub-score-high people (from the
// resilience gate's centrality computation, C9) beyond a target load
// share of their own call assignments.
type HubProtection struct {
	weight     float64
	hubScore   float64 // threshold above which a person is "hub-high"
	targetLoad float64 // maximum acceptable share of total call for a hub person
}

// NewHubProtection constructs the constraint with spec.md's default
// weight (15) when weight <= 0, a hub-score threshold (default 0.7)
// and target load share (default 0.15).
func NewHubProtection(weight, hubScoreThreshold, targetLoad float64) *HubProtection {
	if weight <= 0 {
		weight = WeightHubProtection
	}
	if hubScoreThreshold <= 0 {
		hubScoreThreshold = 0.7
	}
	if targetLoad <= 0 {
		targetLoad = 0.15
	}
	return &HubProtection{weight: weight, hubScore: hubScoreThreshold, targetLoad: targetLoad}
}

func (c *HubProtection) Name() string               { return "ResilienceHubProtection" }
func (c *HubProtection) Kind() models.ConstraintKind { return models.ConstraintKindSoft }
func (c *HubProtection) Priority() models.Priority   { return models.PriorityMedium }
func (c *HubProtection) Weight() float64             { return c.weight }

func (c *HubProtection) EncodeCP(model constraint.CPModel, ctx *schedcontext.Context) {
	for personID, score := range ctx.Resilience.HubScores {
		if score < c.hubScore {
			continue
		}
		model.AddPenaltyVar(fmt.Sprintf("hub_overload_%s", personID), c.weight)
	}
}

func (c *HubProtection) EncodeLP(model constraint.LPModel, ctx *schedcontext.Context) {
	for personID, score := range ctx.Resilience.HubScores {
		if score < c.hubScore {
			continue
		}
		model.AddObjectiveTerm(fmt.Sprintf("hub_overload_%s", personID), -c.weight)
	}
}

func (c *HubProtection) Validate(schedule []models.Assignment, ctx *schedcontext.Context) []models.Violation {
	callCounts := make(map[string]int)
	total := 0
	for _, a := range schedule {
		if a.ActivityCode != "call" {
			continue
		}
		callCounts[a.PersonID]++
		total++
	}
	if total == 0 {
		return nil
	}
	var violations []models.Violation
	for personID, score := range ctx.Resilience.HubScores {
		if score < c.hubScore {
			continue
		}
		share := float64(callCounts[personID]) / float64(total)
		if share <= c.targetLoad {
			continue
		}
		violations = append(violations, models.Violation{
			ConstraintName: c.Name(), Kind: c.Kind(), PersonID: personID,
			Weight:  c.weight * (share - c.targetLoad),
			Message: fmt.Sprintf("hub-high %s carries %.0f%% of call load, above target %.0f%%", personID, share*100, c.targetLoad*100),
		})
	}
	return violations
}

// UtilizationBuffer penalizes overall system utilization exceeding 80%
// (spec.md §4.4, §4.8).
type UtilizationBuffer struct {
	weight    float64
	threshold float64
}

// NewUtilizationBuffer constructs the constraint with spec.md's
// default weight (20) and threshold (0.80) when given non-positive
// values.
func NewUtilizationBuffer(weight, threshold float64) *UtilizationBuffer {
	if weight <= 0 {
		weight = WeightUtilizationBuffer
	}
	if threshold <= 0 {
		threshold = 0.80
	}
	return &UtilizationBuffer{weight: weight, threshold: threshold}
}

func (c *UtilizationBuffer) Name() string               { return "ResilienceUtilizationBuffer" }
func (c *UtilizationBuffer) Kind() models.ConstraintKind { return models.ConstraintKindSoft }
func (c *UtilizationBuffer) Priority() models.Priority   { return models.PriorityMedium }
func (c *UtilizationBuffer) Weight() float64             { return c.weight }

func (c *UtilizationBuffer) EncodeCP(model constraint.CPModel, ctx *schedcontext.Context) {
	if ctx.Resilience.CurrentUtilization <= c.threshold {
		return
	}
	model.AddPenaltyVar("utilization_over_buffer", c.weight)
}

func (c *UtilizationBuffer) EncodeLP(model constraint.LPModel, ctx *schedcontext.Context) {
	if ctx.Resilience.CurrentUtilization <= c.threshold {
		return
	}
	model.AddObjectiveTerm("utilization_over_buffer", -c.weight)
}

func (c *UtilizationBuffer) Validate(schedule []models.Assignment, ctx *schedcontext.Context) []models.Violation {
	if ctx.Resilience.CurrentUtilization <= c.threshold {
		return nil
	}
	return []models.Violation{{
		ConstraintName: c.Name(), Kind: c.Kind(),
		Weight:  c.weight * (ctx.Resilience.CurrentUtilization - c.threshold),
		Message: fmt.Sprintf("system utilization %.0f%% exceeds %.0f%% buffer", ctx.Resilience.CurrentUtilization*100, c.threshold*100),
	}}
}
