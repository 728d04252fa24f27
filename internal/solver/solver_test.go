package solver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gme-scheduler/core/internal/availability"
	"github.com/gme-scheduler/core/internal/constraint"
	"github.com/gme-scheduler/core/internal/constraint/hard"
	"github.com/gme-scheduler/core/internal/models"
	"github.com/gme-scheduler/core/internal/schedcontext"
)

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return d
}

func smallContext(t *testing.T) (*schedcontext.Context, *constraint.Registry) {
	t.Helper()
	people := []models.Person{
		{ID: "res1", Role: models.RoleResidentPGY1},
		{ID: "res2", Role: models.RoleResidentPGY2},
	}
	var slots []models.Slot
	for i := 0; i < 4; i++ {
		d := mustDate(t, "2026-08-03").AddDate(0, 0, i)
		slots = append(slots, models.Slot{Date: d, Period: models.PeriodAM}, models.Slot{Date: d, Period: models.PeriodPM})
	}
	templates := []models.RotationTemplate{
		{ID: "tmpl-clinic", Code: "fm_clinic", RotationType: models.RotationTypeOutpatient, IsSolverEligible: true},
	}
	ctx := schedcontext.New(people, slots, templates, nil, availability.NewMatrix(), schedcontext.ResilienceInputs{})

	registry := constraint.NewRegistry()
	registry.Register(hard.NewCapacityPerSlot())
	return ctx, registry
}

func TestEstimateComplexityZeroWithNoEligibleTemplates(t *testing.T) {
	people := []models.Person{{ID: "res1", Role: models.RoleResidentPGY1}}
	ctx := schedcontext.New(people, nil, nil, nil, availability.NewMatrix(), schedcontext.ResilienceInputs{})
	assert.Equal(t, 0.0, EstimateComplexity(ctx))
}

func TestEstimateComplexityPositiveWithOpenSlots(t *testing.T) {
	ctx, _ := smallContext(t)
	assert.Greater(t, EstimateComplexity(ctx), 0.0)
}

func TestGreedySolveAssignsEveryOpenSlot(t *testing.T) {
	ctx, registry := smallContext(t)
	result, err := NewGreedy().Solve(ctx, registry, time.Second, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, len(ctx.Slots), len(result.Decisions))
	assert.Equal(t, models.AlgorithmGreedy, result.Stats.Backend)
}

func TestGreedySolveNoTemplatesYieldsNoDecisions(t *testing.T) {
	people := []models.Person{{ID: "res1", Role: models.RoleResidentPGY1}}
	ctx := schedcontext.New(people, nil, nil, nil, availability.NewMatrix(), schedcontext.ResilienceInputs{})
	registry := constraint.NewRegistry()
	result, err := NewGreedy().Solve(ctx, registry, time.Second, 1, nil)
	require.NoError(t, err)
	assert.Empty(t, result.Decisions)
	assert.Equal(t, "optimal", result.Stats.TerminalState)
}

func TestCPSolveProducesFeasibleScheduleUnderCapacityConstraint(t *testing.T) {
	ctx, registry := smallContext(t)
	result, err := NewCP().Solve(ctx, registry, 200*time.Millisecond, 7, nil)
	require.NoError(t, err)
	assert.Equal(t, models.AlgorithmCP, result.Stats.Backend)

	schedule := decisionsToSchedule(result.Decisions, ctx)
	report := registry.ValidateAll(schedule, ctx)
	assert.Empty(t, report.HardViolations)
}

func TestLPSolveProducesFeasibleSchedule(t *testing.T) {
	ctx, registry := smallContext(t)
	result, err := NewLP().Solve(ctx, registry, 200*time.Millisecond, 3, nil)
	require.NoError(t, err)
	assert.Equal(t, models.AlgorithmLP, result.Stats.Backend)

	schedule := decisionsToSchedule(result.Decisions, ctx)
	report := registry.ValidateAll(schedule, ctx)
	assert.Empty(t, report.HardViolations)
}

func TestDispatcherChooseMapsScoreToAlgorithm(t *testing.T) {
	d := NewDispatcher(Budgets{}, Thresholds{Greedy: 20, LP: 50, CP: 75}, nil, 1, nil)
	assert.Equal(t, models.AlgorithmGreedy, d.Choose(5))
	assert.Equal(t, models.AlgorithmLP, d.Choose(30))
	assert.Equal(t, models.AlgorithmCP, d.Choose(60))
	assert.Equal(t, models.AlgorithmHybrid, d.Choose(90))
}

func TestDispatcherDispatchRunsChosenBackend(t *testing.T) {
	ctx, registry := smallContext(t)
	d := NewDispatcher(Budgets{CP: 200 * time.Millisecond, LP: 200 * time.Millisecond, Hybrid: 400 * time.Millisecond}, Thresholds{Greedy: 1000, LP: 2000, CP: 3000}, nil, 1, nil)
	result, err := d.Dispatch(ctx, registry, nil)
	require.NoError(t, err)
	assert.Equal(t, models.AlgorithmGreedy, result.Stats.Backend)
}

func TestDispatcherHybridBandReportsHybridBackend(t *testing.T) {
	ctx, registry := smallContext(t)
	d := NewDispatcher(Budgets{CP: 50 * time.Millisecond, LP: 200 * time.Millisecond, Hybrid: 250 * time.Millisecond}, Thresholds{Greedy: -1, LP: -1, CP: -1}, nil, 1, nil)
	result, err := d.Dispatch(ctx, registry, nil)
	require.NoError(t, err)
	assert.Equal(t, models.AlgorithmHybrid, result.Stats.Backend)
}

func TestProgressHubPublishWithNoConnectionsStillCallsGauge(t *testing.T) {
	called := false
	hub := NewProgressHub(func(backend string, objective float64) { called = true })
	hub.Publish("cp", ProgressUpdate{Iter: 1, BestObjective: 5, Elapsed: time.Millisecond})
	assert.True(t, called)
}
