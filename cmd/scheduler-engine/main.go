package main

import (
	"context"
	"fmt"
	"log"
	"net/http/pprof"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/gme-scheduler/core/api/swagger"
	"github.com/gme-scheduler/core/internal/calendar"
	"github.com/gme-scheduler/core/internal/constraint"
	"github.com/gme-scheduler/core/internal/constraint/hard"
	"github.com/gme-scheduler/core/internal/constraint/soft"
	"github.com/gme-scheduler/core/internal/dispatch"
	"github.com/gme-scheduler/core/internal/engine"
	internalhandler "github.com/gme-scheduler/core/internal/handler"
	internalmiddleware "github.com/gme-scheduler/core/internal/middleware"
	"github.com/gme-scheduler/core/internal/models"
	"github.com/gme-scheduler/core/internal/preload"
	"github.com/gme-scheduler/core/internal/reconcile"
	"github.com/gme-scheduler/core/internal/repository"
	"github.com/gme-scheduler/core/internal/resilience"
	"github.com/gme-scheduler/core/internal/service"
	"github.com/gme-scheduler/core/internal/solver"
	"github.com/gme-scheduler/core/internal/validate"
	"github.com/gme-scheduler/core/pkg/breaker"
	"github.com/gme-scheduler/core/pkg/cache"
	"github.com/gme-scheduler/core/pkg/config"
	"github.com/gme-scheduler/core/pkg/database"
	"github.com/gme-scheduler/core/pkg/jobs"
	"github.com/gme-scheduler/core/pkg/lock"
	"github.com/gme-scheduler/core/pkg/logger"
	corsmiddleware "github.com/gme-scheduler/core/pkg/middleware/cors"
	reqidmiddleware "github.com/gme-scheduler/core/pkg/middleware/requestid"
)

// Clinic and activity codes the constraint registry and reconciler both
// key off. These have no config knob of their own -- they name fixed
// points in the activity-code catalog the preload pipeline already
// writes (continuity and sports-medicine clinics), plus two that exist
// only as constraint inputs (the attending-supervision code and the
// protected lecture/advising slots).
const (
	clinicCodeContinuity     = preload.ActivityContinuity
	clinicCodeSportsMed      = preload.ActivitySportsMedicine
	attendingSupervisionCode = "AT"
	lectureCode              = "lecture"
	advisingCode             = "advising"
	nfCode                   = "NF"
	callCode                 = preload.ActivityCall
	overrideIssuer           = "gme-scheduler"
)

// @title Residency Scheduling Engine API
// @version 1.0
// @description Generates and manages resident/faculty call and clinic schedules.
// @BasePath /
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	metricsSvc := service.NewMetricsService()
	metricsHandler := internalhandler.NewMetricsHandler(metricsSvc)

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to initialise database", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to initialise redis", "error", err)
	}
	defer redisClient.Close()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
		registerPprof(r)
	}

	r.GET("/metrics", metricsHandler.Prometheus)

	api := r.Group(cfg.APIPrefix)

	// --- persistence ---
	holidayRepo := repository.NewHolidayRepository(db)
	holidaySvc := service.NewHolidayService(holidayRepo, nil, logr)
	assignmentRepo := repository.NewAssignmentRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Resilience.MaxCacheAge, logr, true)
	auditRepo := repository.NewAuditRepository(db)
	overrideRepo := repository.NewOverrideRequestRepository(db)
	scheduleRunRepo := repository.NewScheduleRunRepository(db)

	// --- override auth + manual-override workflow ---
	overrideAuthSvc := service.NewOverrideAuthService(auditRepo, logr, service.OverrideAuthConfig{
		TokenSecret:    cfg.JWT.Secret,
		TokenTTL:       cfg.JWT.Expiration,
		Issuer:         overrideIssuer,
		PassphraseHash: cfg.Resilience.OverrideHash,
	})
	overrideAuthHandler := internalhandler.NewOverrideAuthHandler(overrideAuthSvc)

	assignmentApplier := service.NewAssignmentOverrideApplier(assignmentRepo, logr)
	callAssignmentRepo := repository.NewCallAssignmentRepository(db)
	callApplier := service.NewCallAssignmentOverrideApplier(callAssignmentRepo, logr)
	mutationSvc := service.NewMutationService(overrideRepo, auditRepo, logr,
		service.WithOverrideAppliers(map[string]service.OverrideApplier{
			"assignment":      assignmentApplier,
			"call_assignment": callApplier,
		}),
	)
	overrideRequestHandler := internalhandler.NewOverrideRequestHandler(mutationSvc)

	r.POST("/override/authenticate", overrideAuthHandler.Authenticate)

	overrides := api.Group("/overrides")
	overrides.Use(internalmiddleware.OverrideAuth(overrideAuthSvc, models.OverrideScopeAssignment))
	overrides.POST("", overrideRequestHandler.Create)
	overrides.GET("", overrideRequestHandler.List)
	overrides.GET("/:id", overrideRequestHandler.Get)
	overrides.POST("/:id/review", internalmiddleware.RBAC(models.RoleFacultyPD, models.RoleFacultyAPD, models.RoleFacultyDeptChief), overrideRequestHandler.Review)

	// --- calendar, preload, resilience gate ---
	calSvc := calendar.NewService(calendar.Block0Policy{
		Enabled:              cfg.Calendar.Block0Policy != "" && cfg.Calendar.Block0Policy != "none",
		Block1StartDayOffset: cfg.Calendar.Block0MaxDays,
	})
	pipeline := preload.New(calSvc)

	gate := resilience.New(assignmentRepo, cacheSvc, overrideAuthSvc, metricsSvc, logr, cfg.Resilience, callCode)
	gateCtx, stopGate := context.WithCancel(context.Background())
	defer stopGate()
	if err := gate.StartCron(gateCtx, func() []models.Person { return nil }); err != nil {
		logr.Sugar().Warnw("resilience cron not started", "error", err)
	}
	defer gate.StopCron()

	// --- constraint registry ---
	registry := buildConstraintRegistry()

	// --- solver dispatch + locking + orchestration ---
	breakers := breaker.NewRegistry(breaker.Config{
		MaxRequests: cfg.Solver.BreakerMaxRequests,
		Interval:    cfg.Solver.BreakerInterval,
		Timeout:     cfg.Solver.BreakerTimeout,
	}, logr)
	lockMgr := lock.NewManager(redisClient, cfg.Engine.LockTTL, cfg.Engine.LockPollEvery)
	reconciler := reconcile.New(db, assignmentRepo, []string{clinicCodeContinuity, clinicCodeSportsMed}, attendingSupervisionCode, logr)
	validator := validate.New(registry, nfCode)

	budgets := solver.Budgets{CP: cfg.Solver.CPBudget, LP: cfg.Solver.LPBudget, Hybrid: cfg.Solver.HybridBudget}
	thresholds := solver.Thresholds{Greedy: cfg.Solver.GreedyThreshold, LP: cfg.Solver.LPThreshold, CP: cfg.Solver.CPThreshold}

	eng := engine.New(calSvc, holidaySvc, pipeline, gate, registry, budgets, thresholds, breakers, cfg.Solver.RNGSeed, reconciler, validator, lockMgr, scheduleRunRepo, logr)

	// --- async generate dispatch ---
	progressHub := solver.NewProgressHub(func(backend string, objective float64) {
		metricsSvc.RecordSolverRun(models.Algorithm(backend), "progress", 0, false)
	})
	genDispatcher := dispatch.New(eng, logr, jobs.QueueConfig{
		Workers:    2,
		BufferSize: 16,
		MaxRetries: 2,
		RetryDelay: 5 * time.Second,
		Logger:     logr,
	})
	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	genDispatcher.Start(dispatchCtx)
	defer func() {
		stopDispatch()
		genDispatcher.Stop()
	}()

	generationHandler := internalhandler.NewGenerationHandler(genDispatcher)
	progressHandler := internalhandler.NewProgressHandler(progressHub, logr)

	generate := api.Group("/generate")
	generate.Use(internalmiddleware.OverrideAuth(overrideAuthSvc, models.OverrideScopeResilience))
	generate.Use(internalmiddleware.RBAC(models.RoleFacultyPD, models.RoleFacultyAPD, models.RoleFacultyOIC, models.RoleFacultyDeptChief))
	generate.POST("", generationHandler.Generate)
	generate.GET("/:requestId", generationHandler.Status)
	generate.POST("/:requestId/cancel", generationHandler.Cancel)
	r.GET("/generate/progress/ws", progressHandler.Stream)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

// buildConstraintRegistry assembles the full hard/soft constraint
// catalog the solver dispatcher and validator both consult. Weights and
// numeric bounds here are the engine's own defaults -- none of them
// come from config, since varying them per-run is not a feature this
// deployment offers.
func buildConstraintRegistry() *constraint.Registry {
	reg := constraint.NewRegistry()

	clinicCodes := []string{clinicCodeContinuity, clinicCodeSportsMed}

	reg.Register(hard.NewAvailability())
	reg.Register(hard.NewOvernightCallCoverage())
	reg.Register(hard.NewAdjunctCallExclusion())
	reg.Register(hard.NewPostCallPCATDO())
	reg.Register(hard.NewCapacityPerSlot())
	reg.Register(hard.NewClinicHeadcountCap(8, clinicCodes))
	reg.Register(hard.NewFacultyWeeklyClinicBounds(clinicCodes, false))
	reg.Register(hard.NewFacultyDayAvailability(clinicCodes))
	reg.Register(hard.NewCallAvailability())
	reg.Register(hard.NewSMResidentFacultyAlignment(clinicCodeSportsMed))
	reg.Register(hard.NewFMITMandatoryCall())
	reg.Register(hard.NewPostFMITRecovery())
	reg.Register(hard.NewPostFMITSundayBlock())
	reg.Register(hard.NewFMITStaffingFloor(1, 0.5))
	reg.Register(hard.NewSupervisionRatios(clinicCodes, attendingSupervisionCode))
	reg.Register(hard.NewWednesdayAMInternOnly(clinicCodes, nil))
	reg.Register(hard.NewWednesdayPMSingleFaculty(clinicCodes))
	reg.Register(hard.NewProtectedSlots(lectureCode, advisingCode))
	reg.Register(hard.NewEightyHourRule())
	reg.Register(hard.NewOneInSevenRule())

	reg.Register(soft.NewSundayEquity(1.0))
	reg.Register(soft.NewWeekdayEquity(1.0))
	reg.Register(soft.NewCallSpacing(1.0, 2))
	reg.Register(soft.NewTuesdayPreference(0.5))
	reg.Register(soft.NewDeptChiefWedPreference(0.5))
	reg.Register(soft.NewCoverage(2.0))
	reg.Register(soft.NewTemplateBalance(1.0))
	reg.Register(soft.NewContinuity(1.0))
	reg.Register(soft.NewFacultyClinicEquity(1.0, clinicCodes, 0.1))
	reg.Register(soft.NewHubProtection(1.5, 0.6, 0.3))
	reg.Register(soft.NewUtilizationBuffer(1.0, 0.8))

	return reg
}

func registerPprof(r *gin.Engine) {
	group := r.Group("/debug/pprof")
	group.GET("/", gin.WrapF(pprof.Index))
	group.GET("/cmdline", gin.WrapF(pprof.Cmdline))
	group.GET("/profile", gin.WrapF(pprof.Profile))
	group.POST("/symbol", gin.WrapF(pprof.Symbol))
	group.GET("/symbol", gin.WrapF(pprof.Symbol))
	group.GET("/trace", gin.WrapF(pprof.Trace))
	group.GET("/allocs", gin.WrapH(pprof.Handler("allocs")))
	group.GET("/block", gin.WrapH(pprof.Handler("block")))
	group.GET("/goroutine", gin.WrapH(pprof.Handler("goroutine")))
	group.GET("/heap", gin.WrapH(pprof.Handler("heap")))
	group.GET("/mutex", gin.WrapH(pprof.Handler("mutex")))
	group.GET("/threadcreate", gin.WrapH(pprof.Handler("threadcreate")))
}
