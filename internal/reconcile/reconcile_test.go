package reconcile

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gme-scheduler/core/internal/availability"
	"github.com/gme-scheduler/core/internal/models"
	"github.com/gme-scheduler/core/internal/schedcontext"
)

// fakeStore is a narrow in-memory assignmentStore stand-in so the
// reconciler's merge/supervision logic can be exercised without a real
// database, with BeginTxx/Commit still flowing through sqlmock.
type fakeStore struct {
	existing       map[models.AssignmentKey]models.Assignment
	upserted       []models.Assignment
	staleDeletedOn struct{ start, end time.Time }
	staleKeep      []models.AssignmentKey
}

func (f *fakeStore) FindExisting(ctx context.Context, start, end time.Time) (map[models.AssignmentKey]models.Assignment, error) {
	return f.existing, nil
}

func (f *fakeStore) UpsertBatch(ctx context.Context, exec sqlx.ExtContext, assignments []models.Assignment) error {
	f.upserted = append(f.upserted, assignments...)
	return nil
}

func (f *fakeStore) DeleteStaleSolver(ctx context.Context, exec sqlx.ExtContext, start, end time.Time, keep []models.AssignmentKey) error {
	f.staleDeletedOn.start, f.staleDeletedOn.end = start, end
	f.staleKeep = keep
	return nil
}

func newTxDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectBegin()
	mock.ExpectCommit()
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return d
}

func TestReconcileDropsSolverPlacementOverlappingPreload(t *testing.T) {
	db, mock, cleanup := newTxDB(t)
	defer cleanup()
	store := &fakeStore{existing: map[models.AssignmentKey]models.Assignment{}}
	r := New(db, store, nil, "at", nil)

	date := day(t, "2026-08-03")
	preloads := []models.Assignment{
		{PersonID: "res1", Date: date, Period: models.PeriodAM, ActivityCode: "absence", Source: models.SourcePreload, Role: models.AssignmentRolePrimary},
	}
	solverResult := []models.Assignment{
		{PersonID: "res1", Date: date, Period: models.PeriodAM, ActivityCode: "fm_clinic"},
		{PersonID: "res2", Date: date, Period: models.PeriodPM, ActivityCode: "fm_clinic"},
	}
	schedCtx := schedcontext.New(
		[]models.Person{{ID: "res1", Role: models.RoleResidentPGY1}, {ID: "res2", Role: models.RoleResidentPGY2}},
		nil, nil, nil, availability.NewMatrix(), schedcontext.ResilienceInputs{},
	)

	result, err := r.Reconcile(context.Background(), "run-1", date, date, solverResult, preloads, schedCtx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.DroppedCount)
	assert.NoError(t, mock.ExpectationsWereMet())

	for _, a := range store.upserted {
		if a.PersonID == "res1" {
			assert.Equal(t, models.SourcePreload, a.Source)
		}
		if a.PersonID == "res2" {
			assert.Equal(t, models.SourceSolver, a.Source)
		}
	}
}

func TestReconcileDropsSolverPlacementOverlappingManualOverride(t *testing.T) {
	db, mock, cleanup := newTxDB(t)
	defer cleanup()
	date := day(t, "2026-08-03")
	key := models.AssignmentKey{PersonID: "res1", Date: "2026-08-03", Period: models.PeriodAM}
	store := &fakeStore{existing: map[models.AssignmentKey]models.Assignment{
		key: {PersonID: "res1", Date: date, Period: models.PeriodAM, ActivityCode: "manual_swap", Source: models.SourceManual},
	}}
	r := New(db, store, nil, "at", nil)

	schedCtx := schedcontext.New([]models.Person{{ID: "res1", Role: models.RoleResidentPGY1}}, nil, nil, nil, availability.NewMatrix(), schedcontext.ResilienceInputs{})
	solverResult := []models.Assignment{{PersonID: "res1", Date: date, Period: models.PeriodAM, ActivityCode: "fm_clinic"}}

	result, err := r.Reconcile(context.Background(), "run-1", date, date, solverResult, nil, schedCtx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.DroppedCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcileAddsSupervisingFacultyWhenRatioExceeded(t *testing.T) {
	db, mock, cleanup := newTxDB(t)
	defer cleanup()
	store := &fakeStore{existing: map[models.AssignmentKey]models.Assignment{}}
	r := New(db, store, []string{"fm_clinic"}, "at", nil)

	date := day(t, "2026-08-03")
	people := []models.Person{
		{ID: "res1", Role: models.RoleResidentPGY1},
		{ID: "res2", Role: models.RoleResidentPGY1},
		{ID: "res3", Role: models.RoleResidentPGY1},
		{ID: "fac1", Role: models.RoleFacultyCore},
	}
	schedCtx := schedcontext.New(people, nil, nil, nil, availability.NewMatrix(), schedcontext.ResilienceInputs{})
	solverResult := []models.Assignment{
		{PersonID: "res1", Date: date, Period: models.PeriodAM, ActivityCode: "fm_clinic"},
		{PersonID: "res2", Date: date, Period: models.PeriodAM, ActivityCode: "fm_clinic"},
		{PersonID: "res3", Date: date, Period: models.PeriodAM, ActivityCode: "fm_clinic"},
	}

	result, err := r.Reconcile(context.Background(), "run-1", date, date, solverResult, nil, schedCtx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.SupervisionAdded)
	assert.NoError(t, mock.ExpectationsWereMet())

	found := false
	for _, a := range store.upserted {
		if a.PersonID == "fac1" && a.Role == models.AssignmentRoleSupervising {
			found = true
			assert.Equal(t, "at", a.ActivityCode)
		}
	}
	assert.True(t, found)
}

func TestReconcileSkipsSupervisionWhenNoFacultyAvailable(t *testing.T) {
	db, mock, cleanup := newTxDB(t)
	defer cleanup()
	store := &fakeStore{existing: map[models.AssignmentKey]models.Assignment{}}
	r := New(db, store, []string{"fm_clinic"}, "at", nil)

	date := day(t, "2026-08-03")
	people := []models.Person{{ID: "res1", Role: models.RoleResidentPGY1}}
	schedCtx := schedcontext.New(people, nil, nil, nil, availability.NewMatrix(), schedcontext.ResilienceInputs{})
	solverResult := []models.Assignment{{PersonID: "res1", Date: date, Period: models.PeriodAM, ActivityCode: "fm_clinic"}}

	result, err := r.Reconcile(context.Background(), "run-1", date, date, solverResult, nil, schedCtx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.SupervisionAdded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcileKeepsOnlySolverAndSupervisingRowsInStaleDeleteSet(t *testing.T) {
	db, mock, cleanup := newTxDB(t)
	defer cleanup()
	store := &fakeStore{existing: map[models.AssignmentKey]models.Assignment{}}
	r := New(db, store, nil, "at", nil)

	date := day(t, "2026-08-03")
	preloads := []models.Assignment{{PersonID: "res1", Date: date, Period: models.PeriodPM, ActivityCode: "absence", Source: models.SourcePreload}}
	solverResult := []models.Assignment{{PersonID: "res2", Date: date, Period: models.PeriodAM, ActivityCode: "fm_clinic"}}
	schedCtx := schedcontext.New(
		[]models.Person{{ID: "res1", Role: models.RoleResidentPGY1}, {ID: "res2", Role: models.RoleResidentPGY2}},
		nil, nil, nil, availability.NewMatrix(), schedcontext.ResilienceInputs{},
	)

	_, err := r.Reconcile(context.Background(), "run-1", date, date, solverResult, preloads, schedCtx)
	require.NoError(t, err)
	require.Len(t, store.staleKeep, 1)
	assert.Equal(t, "res2", store.staleKeep[0].PersonID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
