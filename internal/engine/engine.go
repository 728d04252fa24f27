// Package engine implements the Generation Engine (C10): the single
// orchestration entrypoint that turns a date range and caller-supplied
// roster data into a committed schedule. It strings together every
// other module in the order spec.md §4.10 lays out -- lock, calendar,
// availability, preload, resilience gate, context, solver dispatch,
// reconciliation, validation -- and is the only place that decides
// whether a run ends in success, partial, or failed.
//
// The engine never loads roster, absence or rotation data itself: per
// models.Person's own contract, this core has no opinion on where that
// data lives. GenerateInput bundles everything a run needs; callers
// (the HTTP generation handler, a cron job, a CLI) are responsible for
// fetching it from wherever it is stored.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/gme-scheduler/core/internal/availability"
	"github.com/gme-scheduler/core/internal/calendar"
	"github.com/gme-scheduler/core/internal/constraint"
	"github.com/gme-scheduler/core/internal/models"
	"github.com/gme-scheduler/core/internal/preload"
	"github.com/gme-scheduler/core/internal/reconcile"
	"github.com/gme-scheduler/core/internal/resilience"
	"github.com/gme-scheduler/core/internal/schedcontext"
	"github.com/gme-scheduler/core/internal/solver"
	"github.com/gme-scheduler/core/internal/validate"
	"github.com/gme-scheduler/core/pkg/breaker"
	appErrors "github.com/gme-scheduler/core/pkg/errors"
	"github.com/gme-scheduler/core/pkg/lock"
)

// holidaySource is the narrow surface the engine needs from
// service.HolidayService.
type holidaySource interface {
	DatesInRange(ctx context.Context, start, end time.Time) (map[string]bool, error)
}

// runRepository is the narrow surface the engine needs from
// repository.ScheduleRunRepository.
type runRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, run *models.ScheduleRun) error
	Finish(ctx context.Context, exec sqlx.ExtContext, id string, status models.RunStatus, solverStats, validationReport []byte) error
}

// releaser is the narrow surface of *lock.Lease the engine needs.
type releaser interface {
	Release(ctx context.Context) error
}

// locker is the narrow surface of *lock.Manager the engine needs, kept
// as an interface so tests can exercise Generate end to end without a
// real Redis instance behind the lease.
type locker interface {
	Acquire(ctx context.Context, start, end time.Time) (releaser, error)
}

// lockManagerAdapter satisfies locker with a real *lock.Manager; Go does
// not let *lock.Manager.Acquire (which returns *lock.Lease) satisfy
// locker directly since interface satisfaction isn't covariant on
// return types.
type lockManagerAdapter struct{ m *lock.Manager }

func (a lockManagerAdapter) Acquire(ctx context.Context, start, end time.Time) (releaser, error) {
	return a.m.Acquire(ctx, start, end)
}

// GenerateInput bundles a generate() call's date range, caller-supplied
// roster/absence/rotation data, and options (spec.md §6).
type GenerateInput struct {
	RangeStart        time.Time
	RangeEnd          time.Time
	AcademicYearStart time.Time

	People                  []models.Person
	Templates               []models.RotationTemplate
	BlockRotations          []models.ResidentBlockRotation
	Absences                []availability.Absence
	ResidentCallPreloads    []preload.ResidentCallPreload
	SportsMedicineFacultyID string

	// Algorithm forces a backend, bypassing the complexity estimator.
	// Empty means auto-select (spec.md §4.6).
	Algorithm models.Algorithm
	// TimeBudget overrides every backend's configured wall-clock budget
	// when positive.
	TimeBudget time.Duration
	// CheckResilience gates the run on the current resilience level
	// (spec.md §4.9). The request-level default of true lives in the
	// caller, not here: a zero GenerateInput asks for no gating.
	CheckResilience bool
	// RejectPreloadOverride must be false; this implementation's
	// reconciler always preserves preload-sourced assignments
	// (spec.md §6's preserve_preload defaults to true, and nothing here
	// offers a way to relax it). Set true only to get an explicit
	// validation error instead of a silently-ignored request.
	RejectPreloadOverride bool
	OverrideToken         string

	// Progress streams incumbent solver updates to the caller. Returning
	// true from it requests cancellation, same as ctx cancellation.
	Progress solver.ProgressFunc
}

// Engine orchestrates one generate() run end to end.
type Engine struct {
	cal        *calendar.Service
	holidays   holidaySource
	pipeline   *preload.Pipeline
	gate       *resilience.Gate
	registry   *constraint.Registry
	budgets    solver.Budgets
	thresholds solver.Thresholds
	breakers   *breaker.Registry
	rngSeed    int64
	reconciler *reconcile.Reconciler
	validator  *validate.Validator
	locks      locker
	runs       runRepository
	logger     *zap.Logger
}

// New builds an Engine. budgets/thresholds/breakers/rngSeed mirror
// solver.NewDispatcher's own parameters; the engine builds a fresh
// Dispatcher per run so a GenerateInput.TimeBudget override never
// mutates shared state.
func New(
	cal *calendar.Service,
	holidays holidaySource,
	pipeline *preload.Pipeline,
	gate *resilience.Gate,
	registry *constraint.Registry,
	budgets solver.Budgets,
	thresholds solver.Thresholds,
	breakers *breaker.Registry,
	rngSeed int64,
	reconciler *reconcile.Reconciler,
	validator *validate.Validator,
	locks *lock.Manager,
	runs runRepository,
	logger *zap.Logger,
) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cal: cal, holidays: holidays, pipeline: pipeline, gate: gate,
		registry: registry, budgets: budgets, thresholds: thresholds, breakers: breakers,
		rngSeed: rngSeed, reconciler: reconciler, validator: validator, locks: lockManagerAdapter{m: locks},
		runs: runs, logger: logger,
	}
}

// Generate runs the full §4.10 pipeline: lock, build inputs, gate,
// dispatch, reconcile, validate, commit. It makes no writes at all on
// infeasibility, timeout, resilience refusal, data-consistency failure
// or cancellation (spec.md §7); on a validation failure it still commits,
// reporting Status "partial".
func (e *Engine) Generate(ctx context.Context, input GenerateInput) (models.RunReport, error) {
	if input.RejectPreloadOverride {
		return models.RunReport{}, appErrors.Clone(appErrors.ErrValidation, "this engine always preserves preload-sourced assignments")
	}
	if !input.RangeEnd.After(input.RangeStart) && !input.RangeEnd.Equal(input.RangeStart) {
		return models.RunReport{}, appErrors.Clone(appErrors.ErrValidation, "range_end must not precede range_start")
	}

	lease, err := e.locks.Acquire(ctx, input.RangeStart, input.RangeEnd)
	if err != nil {
		return models.RunReport{}, fmt.Errorf("acquire schedule lock: %w", err)
	}
	defer func() {
		if releaseErr := lease.Release(context.Background()); releaseErr != nil {
			e.logger.Warn("release schedule lock failed", zap.Error(releaseErr))
		}
	}()

	now := time.Now().UTC()
	run := &models.ScheduleRun{
		ID:         uuid.NewString(),
		RangeStart: input.RangeStart,
		RangeEnd:   input.RangeEnd,
		Status:     models.RunStatusInProgress,
		CreatedAt:  now,
	}
	if input.Algorithm != "" {
		run.Algorithm = input.Algorithm
	}
	if err := e.runs.Create(ctx, nil, run); err != nil {
		return models.RunReport{}, fmt.Errorf("create schedule run: %w", err)
	}

	report, genErr := e.run(ctx, input, run)

	status := report.Status
	if genErr != nil && status == "" {
		status = models.RunStatusFailed
	}
	solverStatsJSON, _ := json.Marshal(report.Solver)
	validationJSON, _ := json.Marshal(report.Validation)
	if finishErr := e.runs.Finish(ctx, nil, run.ID, status, solverStatsJSON, validationJSON); finishErr != nil {
		e.logger.Error("finish schedule run failed", zap.Error(finishErr), zap.String("run_id", run.ID))
	}
	report.RunID = run.ID
	report.Status = status
	return report, genErr
}

// run performs every pipeline step after the lock and run row exist. A
// returned error with report.Status == "" means nothing was committed;
// the reconciler's own transaction is the only write in this whole
// method, so any earlier failure leaves the schedule untouched.
func (e *Engine) run(ctx context.Context, input GenerateInput, run *models.ScheduleRun) (models.RunReport, error) {
	holidays, err := e.holidays.DatesInRange(ctx, input.RangeStart, input.RangeEnd)
	if err != nil {
		return models.RunReport{}, fmt.Errorf("load holidays: %w", err)
	}

	slots := e.cal.SlotsForRange(input.RangeStart, input.RangeEnd, holidays)

	avail := availability.NewMatrix()
	avail.LoadAbsences(input.Absences, func(start, end models.Slot) []models.Slot {
		return e.cal.SlotsForRange(start.Date, end.Date, holidays)
	})

	templatesByID := make(map[string]models.RotationTemplate, len(input.Templates))
	for _, t := range input.Templates {
		templatesByID[t.ID] = t
	}

	preloadResult, err := e.pipeline.Run(preload.Input{
		AcademicYearStart:       input.AcademicYearStart,
		RangeStart:              input.RangeStart,
		RangeEnd:                input.RangeEnd,
		Holidays:                holidays,
		People:                  input.People,
		TemplatesByID:           templatesByID,
		BlockRotations:          input.BlockRotations,
		Absences:                input.Absences,
		ResidentCallPreloads:    input.ResidentCallPreloads,
		SportsMedicineFacultyID: input.SportsMedicineFacultyID,
	})
	if err != nil {
		return models.RunReport{}, appErrors.Wrap(err, appErrors.ErrDataConsistency.Code, appErrors.ErrDataConsistency.Status, "preload pipeline rejected the roster data")
	}
	for _, a := range preloadResult.Assignments {
		key := models.SlotKey{Date: a.Date.Format("2006-01-02"), Period: a.Period}
		avail.Reserve(a.PersonID, key, a.ActivityCode)
	}

	var resiliencePre models.ResilienceSnapshot
	if input.CheckResilience {
		resiliencePre, err = e.gate.Gate(ctx, input.People, now(), input.OverrideToken)
		if err != nil {
			return models.RunReport{}, err
		}
	}

	schedCtx := schedcontext.New(input.People, slots, input.Templates, preloadResult.Assignments, avail, resilienceInputs(resiliencePre))

	dispatcher := solver.NewDispatcher(e.withBudgetOverride(input.TimeBudget), e.thresholds, e.breakers, e.rngSeed, e.logger)
	progress := e.wrapProgress(ctx, input.Progress)

	var solveResult solver.Result
	if input.Algorithm != "" {
		solveResult, err = dispatcher.DispatchWith(input.Algorithm, schedCtx, e.registry, progress)
	} else {
		solveResult, err = dispatcher.Dispatch(schedCtx, e.registry, progress)
	}
	if err != nil {
		return models.RunReport{Solver: solveResult.Stats}, classifyDispatchError(err)
	}

	decisions := solver.DecisionsToAssignments(solveResult.Decisions, schedCtx)
	reconcileResult, err := e.reconciler.Reconcile(ctx, run.ID, input.RangeStart, input.RangeEnd, decisions, preloadResult.Assignments, schedCtx)
	if err != nil {
		return models.RunReport{Solver: solveResult.Stats}, fmt.Errorf("reconcile: %w", err)
	}

	validation := e.validator.Validate(reconcileResult.Committed, schedCtx)
	audits := e.validator.NFToPostCallAudit(reconcileResult.Committed, schedCtx)

	status := models.RunStatusSuccess
	if !validation.Passed() {
		status = models.RunStatusPartial
	}

	var resiliencePost models.ResilienceSnapshot
	if input.CheckResilience {
		resiliencePost, err = e.gate.ForceRecompute(ctx, input.People, now())
		if err != nil {
			e.logger.Warn("post-generation resilience recompute failed", zap.Error(err))
		}
	}

	return models.RunReport{
		Status:            status,
		TotalAssigned:     len(reconcileResult.Committed),
		TotalSlots:        len(slots),
		Validation:        validation,
		Solver:            solveResult.Stats,
		Resilience:        models.ResiliencePair{Pre: resiliencePre.Level, Post: resiliencePost.Level},
		NFToPostCallAudit: audits,
	}, nil
}

func (e *Engine) withBudgetOverride(override time.Duration) solver.Budgets {
	if override <= 0 {
		return e.budgets
	}
	return solver.Budgets{CP: override, LP: override, Hybrid: override}
}

// wrapProgress forwards incumbent updates to the caller's callback (if
// any) and requests cancellation the moment ctx is done, giving
// context.Context the same cooperative-cancellation role spec.md §6's
// CancellationHandle describes.
func (e *Engine) wrapProgress(ctx context.Context, caller solver.ProgressFunc) solver.ProgressFunc {
	return func(u solver.ProgressUpdate) bool {
		if ctx.Err() != nil {
			return true
		}
		if caller != nil {
			return caller(u)
		}
		return false
	}
}

func classifyDispatchError(err error) error {
	switch {
	case errors.Is(err, solver.ErrCancelled):
		return appErrors.Wrap(err, appErrors.ErrGenerationCancelled.Code, appErrors.ErrGenerationCancelled.Status, appErrors.ErrGenerationCancelled.Message)
	case errors.Is(err, solver.ErrTimeout):
		return appErrors.Wrap(err, appErrors.ErrGenerationTimeout.Code, appErrors.ErrGenerationTimeout.Status, appErrors.ErrGenerationTimeout.Message)
	case errors.Is(err, solver.ErrInfeasible):
		return appErrors.Wrap(err, appErrors.ErrInfeasible.Code, appErrors.ErrInfeasible.Status, appErrors.ErrInfeasible.Message)
	default:
		return err
	}
}

func resilienceInputs(snap models.ResilienceSnapshot) schedcontext.ResilienceInputs {
	hub := make(map[string]float64, len(snap.HubScores))
	for _, h := range snap.HubScores {
		hub[h.PersonID] = h.Score
	}
	n1 := make(map[string]bool, len(snap.N1Vulnerable))
	for _, id := range snap.N1Vulnerable {
		n1[id] = true
	}
	return schedcontext.ResilienceInputs{
		HubScores:          hub,
		CurrentUtilization: snap.Utilization,
		N1Vulnerable:       n1,
	}
}

func now() time.Time { return time.Now().UTC() }
