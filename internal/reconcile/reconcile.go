// Package reconcile implements the Assignment Reconciler (C7): it
// merges a solver's proposed placements with the run's preloads (and
// any standing manual overrides) by source priority, runs the faculty
// supervision pass over the result, and commits the whole batch in one
// transaction (spec.md §4.7).
package reconcile

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/gme-scheduler/core/internal/models"
	"github.com/gme-scheduler/core/internal/schedcontext"
)

// assignmentStore is the narrow persistence surface the reconciler
// needs from AssignmentRepository.
type assignmentStore interface {
	FindExisting(ctx context.Context, start, end time.Time) (map[models.AssignmentKey]models.Assignment, error)
	UpsertBatch(ctx context.Context, exec sqlx.ExtContext, assignments []models.Assignment) error
	DeleteStaleSolver(ctx context.Context, exec sqlx.ExtContext, start, end time.Time, keep []models.AssignmentKey) error
}

// Result summarizes one Reconcile call for the run report and logs.
type Result struct {
	Committed        []models.Assignment
	DroppedCount     int // solver placements discarded to a higher-priority occupant
	SupervisionAdded int
}

// Reconciler merges solver output into the committed schedule.
type Reconciler struct {
	db          *sqlx.DB
	assignments assignmentStore
	clinicCodes map[string]bool
	atCode      string
	logger      *zap.Logger
}

// New builds a Reconciler. clinicCodes names the activity codes that
// count toward the supervision ratio; atCode is the activity marking an
// attending's own supervising duty (mirrors
// internal/constraint/hard.SupervisionRatios's parameters, since both
// must agree on what counts as a clinic half-day).
func New(db *sqlx.DB, assignments assignmentStore, clinicCodes []string, atCode string, logger *zap.Logger) *Reconciler {
	codes := make(map[string]bool, len(clinicCodes))
	for _, c := range clinicCodes {
		codes[c] = true
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{db: db, assignments: assignments, clinicCodes: codes, atCode: atCode, logger: logger}
}

// Reconcile merges solverResult with preloads by source priority, runs
// the faculty supervision pass, and commits the result atomically: new
// rows are written first, and only after that succeeds are stale
// solver-sourced rows from a prior run (anything in range this run did
// not reproduce) removed. Any failure leaves the previously-committed
// schedule untouched.
func (r *Reconciler) Reconcile(ctx context.Context, runID string, rangeStart, rangeEnd time.Time, solverResult []models.Assignment, preloads []models.Assignment, schedCtx *schedcontext.Context) (Result, error) {
	existing, err := r.assignments.FindExisting(ctx, rangeStart, rangeEnd)
	if err != nil {
		return Result{}, fmt.Errorf("reconcile: load existing assignments: %w", err)
	}

	occupied := make(map[models.AssignmentKey]models.Assignment, len(preloads)+len(existing))
	for _, p := range preloads {
		occupied[p.Key()] = p
	}
	for key, a := range existing {
		if a.Source == models.SourceManual {
			occupied[key] = a
		}
	}

	committed := make([]models.Assignment, 0, len(preloads)+len(solverResult))
	committed = append(committed, preloads...)

	dropped := 0
	for _, placement := range solverResult {
		key := placement.Key()
		if occupant, taken := occupied[key]; taken {
			r.logger.Debug("reconciler dropped solver placement to higher-priority occupant",
				zap.String("person_id", placement.PersonID),
				zap.String("date", key.Date),
				zap.String("source", string(occupant.Source)),
			)
			dropped++
			continue
		}
		placement.Source = models.SourceSolver
		placement.Role = models.AssignmentRolePrimary
		placement.ScheduleRunID = &runID
		committed = append(committed, placement)
		occupied[key] = placement
	}

	supervisionAdds := r.superviseFaculty(committed, occupied, schedCtx, runID)
	committed = append(committed, supervisionAdds...)

	keep := make([]models.AssignmentKey, 0, len(committed))
	for _, a := range committed {
		if a.Source == models.SourceSolver || a.Role == models.AssignmentRoleSupervising {
			keep = append(keep, a.Key())
		}
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return Result{}, fmt.Errorf("reconcile: begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = r.assignments.UpsertBatch(ctx, tx, committed); err != nil {
		return Result{}, fmt.Errorf("reconcile: upsert committed assignments: %w", err)
	}
	if err = r.assignments.DeleteStaleSolver(ctx, tx, rangeStart, rangeEnd, keep); err != nil {
		return Result{}, fmt.Errorf("reconcile: delete stale solver assignments: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return Result{}, fmt.Errorf("reconcile: commit: %w", err)
	}

	r.logger.Info("reconciliation committed",
		zap.String("run_id", runID),
		zap.Int("committed", len(committed)),
		zap.Int("dropped", dropped),
		zap.Int("supervision_added", len(supervisionAdds)),
	)

	return Result{Committed: committed, DroppedCount: dropped, SupervisionAdded: len(supervisionAdds)}, nil
}

// superviseFaculty assigns the least-loaded available attending to every
// clinic slot that is short on supervision, using the same
// ceil(PGY1/2)+ceil(PGY2/4)+ceil(PGY3/4) ratio
// internal/constraint/hard.SupervisionRatios validates against, so a
// reconciled schedule never fails the validator's own supervision check
// for want of an assignable attending.
func (r *Reconciler) superviseFaculty(committed []models.Assignment, occupied map[models.AssignmentKey]models.Assignment, schedCtx *schedcontext.Context, runID string) []models.Assignment {
	type bucket struct {
		pgy1, pgy2, pgy3, at int
		slot                 models.SlotKey
	}
	buckets := make(map[models.SlotKey]*bucket)
	roleByPerson := make(map[string]models.Role, len(schedCtx.People))
	for _, p := range schedCtx.People {
		roleByPerson[p.ID] = p.Role
	}

	for _, a := range committed {
		isClinic := r.clinicCodes[a.ActivityCode]
		isAT := a.ActivityCode == r.atCode
		if !isClinic && !isAT {
			continue
		}
		key := models.SlotKey{Date: a.Date.Format("2006-01-02"), Period: a.Period}
		b, ok := buckets[key]
		if !ok {
			b = &bucket{slot: key}
			buckets[key] = b
		}
		if isAT {
			b.at++
			continue
		}
		switch roleByPerson[a.PersonID] {
		case models.RoleResidentPGY1:
			b.pgy1++
		case models.RoleResidentPGY2:
			b.pgy2++
		case models.RoleResidentPGY3:
			b.pgy3++
		}
	}

	keys := make([]models.SlotKey, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Date != keys[j].Date {
			return keys[i].Date < keys[j].Date
		}
		return keys[i].Period < keys[j].Period
	})

	load := make(map[string]int, len(schedCtx.People))
	var additions []models.Assignment
	for _, key := range keys {
		b := buckets[key]
		required := int(math.Ceil(float64(b.pgy1)/2)) + int(math.Ceil(float64(b.pgy2)/4)) + int(math.Ceil(float64(b.pgy3)/4))
		for b.at < required {
			candidate, ok := r.leastLoadedAvailableFaculty(schedCtx, key, occupied, load)
			if !ok {
				r.logger.Warn("no available attending for required supervision slot",
					zap.String("date", key.Date), zap.String("period", string(key.Period)),
					zap.Int("required", required), zap.Int("available", b.at),
				)
				break
			}
			date, err := time.Parse("2006-01-02", key.Date)
			if err != nil {
				break
			}
			addition := models.Assignment{
				PersonID:      candidate,
				Date:          date,
				Period:        key.Period,
				ActivityCode:  r.atCode,
				Source:        models.SourceSolver,
				Role:          models.AssignmentRoleSupervising,
				ScheduleRunID: &runID,
			}
			additions = append(additions, addition)
			occupied[addition.Key()] = addition
			load[candidate]++
			b.at++
		}
	}
	return additions
}

func (r *Reconciler) leastLoadedAvailableFaculty(schedCtx *schedcontext.Context, slot models.SlotKey, occupied map[models.AssignmentKey]models.Assignment, load map[string]int) (string, bool) {
	var best string
	bestLoad := -1
	for _, p := range schedCtx.People {
		if !p.Role.IsFaculty() || p.Adjunct {
			continue
		}
		if !schedCtx.Availability.CanAssign(p.ID, slot) {
			continue
		}
		key := models.AssignmentKey{PersonID: p.ID, Date: slot.Date, Period: slot.Period}
		if _, taken := occupied[key]; taken {
			continue
		}
		l := load[p.ID]
		if bestLoad == -1 || l < bestLoad || (l == bestLoad && p.ID < best) {
			best = p.ID
			bestLoad = l
		}
	}
	return best, bestLoad != -1
}
