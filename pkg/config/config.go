package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config aggregates every configuration knob the engine needs. Every
// behavioural choice the spec leaves open (Block-0 policy, solver
// budgets, resilience thresholds) is an explicit field here rather than
// a magic constant buried in a service.
type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Calendar   CalendarConfig
	Preload    PreloadConfig
	Solver     SolverConfig
	Resilience ResilienceConfig
	Engine     EngineConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig governs the bearer token the resilience-override and
// cancellation endpoints require. There is no user/session model behind
// it — it authenticates a caller as "allowed to force an override", full
// stop.
type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// CalendarConfig resolves the Open Questions spec.md §9 leaves
// unresolved: Block-0 handling and the canonical calendar-mode set.
type CalendarConfig struct {
	AcademicYearStartMonth int // 7 = July
	AcademicYearStartDay   int // 1
	Block0Policy           string
	Block0MaxDays          int
	FMITWeekStartWeekday   time.Weekday // time.Friday
}

// PreloadConfig toggles individual preload phases, primarily for test
// environments that only seed a subset of source tables.
type PreloadConfig struct {
	AbsencesEnabled        bool
	InpatientEnabled       bool
	FMITCallEnabled        bool
	ContinuityClinicEnabled bool
	ResidentCallEnabled    bool
	FacultyCallEnabled     bool
	SportsMedEnabled       bool
}

// SolverConfig carries every per-backend budget and the RNG seed so a
// run is reproducible modulo documented CP tie-breaking.
type SolverConfig struct {
	GreedyThreshold   float64
	LPThreshold       float64
	CPThreshold       float64
	CPBudget          time.Duration
	LPBudget          time.Duration
	HybridBudget      time.Duration
	RNGSeed           int64
	BreakerMaxRequests uint32
	BreakerInterval   time.Duration
	BreakerTimeout    time.Duration
}

// ResilienceConfig carries the GREEN..BLACK thresholds and the override
// credential.
type ResilienceConfig struct {
	YellowUtilization float64
	OrangeUtilization float64
	RedUtilization    float64
	BlackUtilization  float64
	MaxCacheAge       time.Duration
	OverrideHash      string
	CronSchedule      string
}

// EngineConfig controls orchestration-level behaviour: the lock lease
// length and how often a waiting run polls for a conflicting lock.
type EngineConfig struct {
	LockTTL       time.Duration
	LockPollEvery time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Calendar = CalendarConfig{
		AcademicYearStartMonth: v.GetInt("AY_START_MONTH"),
		AcademicYearStartDay:   v.GetInt("AY_START_DAY"),
		Block0Policy:           v.GetString("BLOCK0_POLICY"),
		Block0MaxDays:          v.GetInt("BLOCK0_MAX_DAYS"),
		FMITWeekStartWeekday:   time.Weekday(v.GetInt("FMIT_WEEK_START_WEEKDAY")),
	}

	cfg.Preload = PreloadConfig{
		AbsencesEnabled:         v.GetBool("PRELOAD_ABSENCES_ENABLED"),
		InpatientEnabled:        v.GetBool("PRELOAD_INPATIENT_ENABLED"),
		FMITCallEnabled:         v.GetBool("PRELOAD_FMIT_CALL_ENABLED"),
		ContinuityClinicEnabled: v.GetBool("PRELOAD_CONTINUITY_CLINIC_ENABLED"),
		ResidentCallEnabled:     v.GetBool("PRELOAD_RESIDENT_CALL_ENABLED"),
		FacultyCallEnabled:      v.GetBool("PRELOAD_FACULTY_CALL_ENABLED"),
		SportsMedEnabled:        v.GetBool("PRELOAD_SPORTS_MED_ENABLED"),
	}

	cfg.Solver = SolverConfig{
		GreedyThreshold:    v.GetFloat64("SOLVER_GREEDY_THRESHOLD"),
		LPThreshold:        v.GetFloat64("SOLVER_LP_THRESHOLD"),
		CPThreshold:        v.GetFloat64("SOLVER_CP_THRESHOLD"),
		CPBudget:           parseDuration(v.GetString("SOLVER_CP_BUDGET"), 60*time.Second),
		LPBudget:           parseDuration(v.GetString("SOLVER_LP_BUDGET"), 30*time.Second),
		HybridBudget:       parseDuration(v.GetString("SOLVER_HYBRID_BUDGET"), 120*time.Second),
		RNGSeed:            v.GetInt64("SOLVER_RNG_SEED"),
		BreakerMaxRequests: uint32(v.GetUint("SOLVER_BREAKER_MAX_REQUESTS")),
		BreakerInterval:    parseDuration(v.GetString("SOLVER_BREAKER_INTERVAL"), time.Minute),
		BreakerTimeout:     parseDuration(v.GetString("SOLVER_BREAKER_TIMEOUT"), 2*time.Minute),
	}

	cfg.Resilience = ResilienceConfig{
		YellowUtilization: v.GetFloat64("RESILIENCE_YELLOW_UTILIZATION"),
		OrangeUtilization: v.GetFloat64("RESILIENCE_ORANGE_UTILIZATION"),
		RedUtilization:    v.GetFloat64("RESILIENCE_RED_UTILIZATION"),
		BlackUtilization:  v.GetFloat64("RESILIENCE_BLACK_UTILIZATION"),
		MaxCacheAge:       parseDuration(v.GetString("RESILIENCE_MAX_CACHE_AGE"), 6*time.Hour),
		OverrideHash:      v.GetString("RESILIENCE_OVERRIDE_HASH"),
		CronSchedule:      v.GetString("RESILIENCE_CRON_SCHEDULE"),
	}

	cfg.Engine = EngineConfig{
		LockTTL:       parseDuration(v.GetString("ENGINE_LOCK_TTL"), 10*time.Minute),
		LockPollEvery: parseDuration(v.GetString("ENGINE_LOCK_POLL_EVERY"), 2*time.Second),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "residency_scheduler")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("AY_START_MONTH", 7)
	v.SetDefault("AY_START_DAY", 1)
	v.SetDefault("BLOCK0_POLICY", "roll_forward")
	v.SetDefault("BLOCK0_MAX_DAYS", 6)
	v.SetDefault("FMIT_WEEK_START_WEEKDAY", int(time.Friday))

	v.SetDefault("PRELOAD_ABSENCES_ENABLED", true)
	v.SetDefault("PRELOAD_INPATIENT_ENABLED", true)
	v.SetDefault("PRELOAD_FMIT_CALL_ENABLED", true)
	v.SetDefault("PRELOAD_CONTINUITY_CLINIC_ENABLED", true)
	v.SetDefault("PRELOAD_RESIDENT_CALL_ENABLED", true)
	v.SetDefault("PRELOAD_FACULTY_CALL_ENABLED", true)
	v.SetDefault("PRELOAD_SPORTS_MED_ENABLED", true)

	v.SetDefault("SOLVER_GREEDY_THRESHOLD", 20.0)
	v.SetDefault("SOLVER_LP_THRESHOLD", 50.0)
	v.SetDefault("SOLVER_CP_THRESHOLD", 75.0)
	v.SetDefault("SOLVER_CP_BUDGET", "60s")
	v.SetDefault("SOLVER_LP_BUDGET", "30s")
	v.SetDefault("SOLVER_HYBRID_BUDGET", "120s")
	v.SetDefault("SOLVER_RNG_SEED", 1)
	v.SetDefault("SOLVER_BREAKER_MAX_REQUESTS", 1)
	v.SetDefault("SOLVER_BREAKER_INTERVAL", "1m")
	v.SetDefault("SOLVER_BREAKER_TIMEOUT", "2m")

	v.SetDefault("RESILIENCE_YELLOW_UTILIZATION", 0.70)
	v.SetDefault("RESILIENCE_ORANGE_UTILIZATION", 0.80)
	v.SetDefault("RESILIENCE_RED_UTILIZATION", 0.90)
	v.SetDefault("RESILIENCE_BLACK_UTILIZATION", 0.97)
	v.SetDefault("RESILIENCE_MAX_CACHE_AGE", "6h")
	v.SetDefault("RESILIENCE_OVERRIDE_HASH", "")
	v.SetDefault("RESILIENCE_CRON_SCHEDULE", "0 2 * * *")

	v.SetDefault("ENGINE_LOCK_TTL", "10m")
	v.SetDefault("ENGINE_LOCK_POLL_EVERY", "2s")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
