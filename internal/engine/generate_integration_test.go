package engine

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gme-scheduler/core/internal/calendar"
	"github.com/gme-scheduler/core/internal/constraint"
	"github.com/gme-scheduler/core/internal/models"
	"github.com/gme-scheduler/core/internal/preload"
	"github.com/gme-scheduler/core/internal/reconcile"
	"github.com/gme-scheduler/core/internal/solver"
	"github.com/gme-scheduler/core/internal/validate"
	"github.com/gme-scheduler/core/pkg/breaker"
)

// fakeHolidays is a holidaySource stand-in with no holidays in range.
type fakeHolidays struct{}

func (fakeHolidays) DatesInRange(ctx context.Context, start, end time.Time) (map[string]bool, error) {
	return map[string]bool{}, nil
}

// fakeRunRepository captures the ScheduleRun row the engine writes,
// without touching a database.
type fakeRunRepository struct {
	created  *models.ScheduleRun
	finished models.RunStatus
}

func (f *fakeRunRepository) Create(ctx context.Context, exec sqlx.ExtContext, run *models.ScheduleRun) error {
	f.created = run
	return nil
}

func (f *fakeRunRepository) Finish(ctx context.Context, exec sqlx.ExtContext, id string, status models.RunStatus, solverStats, validationReport []byte) error {
	f.finished = status
	return nil
}

// fakeAssignmentStore is a reconcile.assignmentStore stand-in with an
// empty committed schedule.
type fakeAssignmentStore struct {
	upserted []models.Assignment
}

func (f *fakeAssignmentStore) FindExisting(ctx context.Context, start, end time.Time) (map[models.AssignmentKey]models.Assignment, error) {
	return map[models.AssignmentKey]models.Assignment{}, nil
}

func (f *fakeAssignmentStore) UpsertBatch(ctx context.Context, exec sqlx.ExtContext, assignments []models.Assignment) error {
	f.upserted = append(f.upserted, assignments...)
	return nil
}

func (f *fakeAssignmentStore) DeleteStaleSolver(ctx context.Context, exec sqlx.ExtContext, start, end time.Time, keep []models.AssignmentKey) error {
	return nil
}

// fakeReleaser is a releaser stand-in that never touches Redis.
type fakeReleaser struct{ released bool }

func (f *fakeReleaser) Release(ctx context.Context) error {
	f.released = true
	return nil
}

// fakeLocker is a locker stand-in that always grants the lease
// immediately, so Generate can be exercised without a running Redis.
type fakeLocker struct {
	lease *fakeReleaser
}

func (f *fakeLocker) Acquire(ctx context.Context, start, end time.Time) (releaser, error) {
	f.lease = &fakeReleaser{}
	return f.lease, nil
}

func newReconcileTxDB(t *testing.T) (*sqlx.DB, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectBegin()
	mock.ExpectCommit()
	return sqlx.NewDb(db, "sqlmock"), func() { db.Close() }
}

// TestEngineGenerateCommitsAnEmptyRosterRun exercises the full
// generate() pipeline end to end -- lock, holidays, calendar,
// preload, schedcontext, solver dispatch, reconcile, validate, commit
// -- with an empty roster, which is the minimal scenario that still
// touches every module wired into the engine.
func TestEngineGenerateCommitsAnEmptyRosterRun(t *testing.T) {
	db, cleanup := newReconcileTxDB(t)
	defer cleanup()

	calSvc := calendar.NewService(calendar.Block0Policy{})
	pipeline := preload.New(calSvc)
	registry := constraint.NewRegistry()
	assignments := &fakeAssignmentStore{}
	reconciler := reconcile.New(db, assignments, []string{"fm_clinic"}, "AT", zap.NewNop())
	validator := validate.New(registry, "NF")
	breakers := breaker.NewRegistry(breaker.Config{}, zap.NewNop())
	runs := &fakeRunRepository{}
	locks := &fakeLocker{}

	eng := &Engine{
		cal:        calSvc,
		holidays:   fakeHolidays{},
		pipeline:   pipeline,
		gate:       nil,
		registry:   registry,
		budgets:    solver.Budgets{CP: 5 * time.Second, LP: 5 * time.Second, Hybrid: 5 * time.Second},
		thresholds: solver.Thresholds{Greedy: 20, LP: 50, CP: 75},
		breakers:   breakers,
		rngSeed:    1,
		reconciler: reconciler,
		validator:  validator,
		locks:      locks,
		runs:       runs,
		logger:     zap.NewNop(),
	}

	start := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)
	end := start

	report, err := eng.Generate(context.Background(), GenerateInput{
		RangeStart:        start,
		RangeEnd:          end,
		AcademicYearStart: start,
		CheckResilience:   false,
	})

	require.NoError(t, err)
	assert.Equal(t, models.RunStatusSuccess, report.Status)
	assert.Equal(t, 0, report.TotalAssigned)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, models.RunStatusSuccess, runs.finished)
	assert.NotNil(t, runs.created)
	assert.True(t, locks.lease.released, "the lease must be released once Generate returns")
}

// TestEngineGenerateRejectsInvertedRange exercises the engine's own
// validation guard without ever reaching the lock manager.
func TestEngineGenerateRejectsInvertedRange(t *testing.T) {
	eng := &Engine{logger: zap.NewNop()}

	start := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, -1)

	_, err := eng.Generate(context.Background(), GenerateInput{RangeStart: start, RangeEnd: end})
	require.Error(t, err)
}
