// Package resilience implements the Resilience Gate (C9): the
// pre-generation health check that computes system utilization, faculty
// hub centrality and N-1 vulnerability over the committed assignment
// history, maps them to a GREEN..BLACK level, and refuses to let a run
// proceed at RED without a scoped override token, or at BLACK at all.
package resilience

import (
	"context"
	"fmt"
	"sort"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/gme-scheduler/core/internal/models"
	"github.com/gme-scheduler/core/internal/service"
	"github.com/gme-scheduler/core/pkg/config"
	appErrors "github.com/gme-scheduler/core/pkg/errors"
)

const snapshotCacheKey = "resilience:snapshot"

// historyStore is the narrow slice of AssignmentRepository the gate
// needs to look back over the committed schedule. Satisfied directly by
// *repository.AssignmentRepository.
type historyStore interface {
	FindExisting(ctx context.Context, start, end time.Time) (map[models.AssignmentKey]models.Assignment, error)
}

// Gate computes and caches resilience snapshots and enforces the
// RED/BLACK refusal rule (spec.md §4.9).
type Gate struct {
	history  historyStore
	cache    *service.CacheService // L2 (Redis-backed, shared across instances)
	local    *gocache.Cache        // L1 (in-process, avoids a network hop per request)
	cron     *cron.Cron
	override *service.OverrideAuthService
	metrics  *service.MetricsService
	logger   *zap.Logger
	config   config.ResilienceConfig
	callCode string
	window   time.Duration
}

// New builds a Gate. callCode is stored on the Gate; utilization and
// hub analysis do not filter by it and count every committed assignment
// in the window.
func New(history historyStore, cacheService *service.CacheService, override *service.OverrideAuthService, metrics *service.MetricsService, logger *zap.Logger, cfg config.ResilienceConfig, callCode string) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	local := gocache.New(cfg.MaxCacheAge, cfg.MaxCacheAge/2)
	return &Gate{
		history:  history,
		cache:    cacheService,
		local:    local,
		override: override,
		metrics:  metrics,
		logger:   logger,
		config:   cfg,
		callCode: callCode,
		window:   28 * 24 * time.Hour,
	}
}

// StartCron schedules the nightly recompute described in spec.md §4.9's
// "pre-compute" framing: a warm snapshot means a `generate` call almost
// never pays the full history scan. people supplies the current roster
// at the time the job fires.
func (g *Gate) StartCron(ctx context.Context, people func() []models.Person) error {
	if g.config.CronSchedule == "" {
		return nil
	}
	g.cron = cron.New()
	_, err := g.cron.AddFunc(g.config.CronSchedule, func() {
		if _, err := g.recompute(ctx, people(), time.Now()); err != nil {
			g.logger.Warn("resilience cron recompute failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule resilience cron: %w", err)
	}
	g.cron.Start()
	return nil
}

// StopCron stops the background recompute job, if running.
func (g *Gate) StopCron() {
	if g.cron != nil {
		g.cron.Stop()
	}
}

// Snapshot returns the current resilience reading, serving from the L1
// then L2 cache when fresh and recomputing synchronously otherwise so a
// caller is never gated on data older than config.MaxCacheAge.
func (g *Gate) Snapshot(ctx context.Context, people []models.Person, now time.Time) (models.ResilienceSnapshot, error) {
	if cached, ok := g.local.Get(snapshotCacheKey); ok {
		if snap, ok := cached.(models.ResilienceSnapshot); ok && !snap.Stale(g.config.MaxCacheAge, now) {
			return snap, nil
		}
	}

	if g.cache != nil && g.cache.Enabled() {
		var snap models.ResilienceSnapshot
		hit, err := g.cache.Get(ctx, snapshotCacheKey, &snap)
		if err == nil && hit && !snap.Stale(g.config.MaxCacheAge, now) {
			g.local.SetDefault(snapshotCacheKey, snap)
			return snap, nil
		}
	}

	return g.recompute(ctx, people, now)
}

// Gate runs Snapshot and enforces the refusal rule. overrideToken is the
// caller-supplied JWT bearer token (empty if none was presented); it is
// only consulted when the level is RED. BLACK never accepts an override.
func (g *Gate) Gate(ctx context.Context, people []models.Person, now time.Time, overrideToken string) (models.ResilienceSnapshot, error) {
	snap, err := g.Snapshot(ctx, people, now)
	if err != nil {
		return models.ResilienceSnapshot{}, err
	}
	if g.metrics != nil {
		g.metrics.RecordResilienceCheck(snap.Level)
	}

	if snap.Level == models.ResilienceBlack {
		return snap, appErrors.Clone(appErrors.ErrResilienceRefused, "resilience level BLACK requires manual intervention, not an override")
	}

	if snap.Level != models.ResilienceRed {
		return snap, nil
	}

	if overrideToken == "" || g.override == nil {
		return snap, appErrors.ErrResilienceRefused
	}
	claims, err := g.override.ValidateToken(overrideToken)
	if err != nil {
		return snap, appErrors.Wrap(err, appErrors.ErrResilienceRefused.Code, appErrors.ErrResilienceRefused.Status, "resilience override token rejected")
	}
	if err := g.override.AuthorizeScope(claims, models.OverrideScopeResilience); err != nil {
		return snap, err
	}

	snap.OverrideActive = true
	snap.OverrideActor = claims.ActorID
	if claims.ExpiresAt != nil {
		t := claims.ExpiresAt.Time
		snap.OverrideExpires = &t
	}
	return snap, nil
}

// ForceRecompute recomputes the snapshot unconditionally, bypassing any
// cached reading. The engine calls this once after committing a run so
// a RunReport's post-generation reading reflects the schedule the run
// just wrote rather than a snapshot taken minutes earlier.
func (g *Gate) ForceRecompute(ctx context.Context, people []models.Person, now time.Time) (models.ResilienceSnapshot, error) {
	return g.recompute(ctx, people, now)
}

func (g *Gate) recompute(ctx context.Context, people []models.Person, now time.Time) (models.ResilienceSnapshot, error) {
	start := now.Add(-g.window)
	history, err := g.history.FindExisting(ctx, start, now)
	if err != nil {
		return models.ResilienceSnapshot{}, fmt.Errorf("resilience recompute: load history: %w", err)
	}

	utilization := g.utilization(people, history, start, now)
	hubScores, n1 := g.hubAnalysis(people, history)

	hubScoreList := make([]models.HubScore, 0, len(hubScores))
	for personID, score := range hubScores {
		hubScoreList = append(hubScoreList, models.HubScore{PersonID: personID, Score: score})
	}
	sort.Slice(hubScoreList, func(i, j int) bool { return hubScoreList[i].PersonID < hubScoreList[j].PersonID })

	snap := models.ResilienceSnapshot{
		ComputedAt:   now,
		Utilization:  utilization,
		Level:        g.level(utilization),
		HubScores:    hubScoreList,
		N1Vulnerable: n1,
	}

	g.local.SetDefault(snapshotCacheKey, snap)
	if g.cache != nil && g.cache.Enabled() {
		if err := g.cache.Set(ctx, snapshotCacheKey, snap, g.config.MaxCacheAge); err != nil {
			g.logger.Warn("resilience snapshot cache write failed", zap.Error(err))
		}
	}
	return snap, nil
}

// utilization is the share of available resident/faculty half-days over
// the trailing window that carry a committed assignment. Adjunct faculty
// are excluded: they are never counted toward core system capacity.
func (g *Gate) utilization(people []models.Person, history map[models.AssignmentKey]models.Assignment, start, end time.Time) float64 {
	days := int(end.Sub(start).Hours()/24) + 1
	if days <= 0 {
		return 0
	}
	capacity := 0
	for _, p := range people {
		if p.Adjunct {
			continue
		}
		capacity += days * 2 // AM + PM half-days
	}
	if capacity == 0 {
		return 0
	}
	occupied := 0
	for range history {
		occupied++
	}
	utilization := float64(occupied) / float64(capacity)
	if utilization > 1 {
		utilization = 1
	}
	return utilization
}

// hubAnalysis finds, for each person, how many distinct activity codes
// in the history window that person was the *sole* covering person for.
// Losing a person who alone carried a code would leave every slot under
// that code uncovered going forward, so the count doubles as both the
// hub-centrality numerator and the N-1 vulnerability flag.
func (g *Gate) hubAnalysis(people []models.Person, history map[models.AssignmentKey]models.Assignment) (map[string]float64, []string) {
	coverage := make(map[string]map[string]bool) // activityCode -> personID -> covered
	for _, a := range history {
		if coverage[a.ActivityCode] == nil {
			coverage[a.ActivityCode] = make(map[string]bool)
		}
		coverage[a.ActivityCode][a.PersonID] = true
	}

	soleCoverCount := make(map[string]int)
	for _, coverers := range coverage {
		if len(coverers) != 1 {
			continue
		}
		for personID := range coverers {
			soleCoverCount[personID]++
		}
	}

	maxCount := 0
	for _, c := range soleCoverCount {
		if c > maxCount {
			maxCount = c
		}
	}

	facultyIDs := make(map[string]bool, len(people))
	for _, p := range people {
		if p.Role.IsFaculty() {
			facultyIDs[p.ID] = true
		}
	}

	scores := make(map[string]float64, len(soleCoverCount))
	var vulnerable []string
	for personID, count := range soleCoverCount {
		if !facultyIDs[personID] {
			continue
		}
		score := 0.0
		if maxCount > 0 {
			score = float64(count) / float64(maxCount)
		}
		scores[personID] = score
		vulnerable = append(vulnerable, personID)
	}
	sort.Strings(vulnerable)
	return scores, vulnerable
}

func (g *Gate) level(utilization float64) models.ResilienceLevel {
	switch {
	case utilization >= g.config.BlackUtilization:
		return models.ResilienceBlack
	case utilization >= g.config.RedUtilization:
		return models.ResilienceRed
	case utilization >= g.config.OrangeUtilization:
		return models.ResilienceOrange
	case utilization >= g.config.YellowUtilization:
		return models.ResilienceYellow
	default:
		return models.ResilienceGreen
	}
}
