// Package breaker wraps solver backend invocations in a per-backend
// circuit breaker so a backend that is currently timing out or
// returning infeasible results is skipped in favor of a cheaper
// fallback rather than retried immediately (spec.md §4.6 progress
// contract; grounded on the teacher pack's felixgeelhaar-orbita engine
// executor, which keys one gobreaker.CircuitBreaker per engine id).
package breaker

import (
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// Config mirrors config.SolverConfig's breaker knobs so callers don't
// need to import the config package just to build a Registry.
type Config struct {
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
}

// Registry hands out one circuit breaker per named backend, creating
// it lazily on first use.
type Registry struct {
	cfg      Config
	logger   *zap.Logger
	breakers map[string]*gobreaker.CircuitBreaker[any]
}

// NewRegistry builds a breaker Registry. A nil logger disables state
// change logging.
func NewRegistry(cfg Config, logger *zap.Logger) *Registry {
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 1
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &Registry{cfg: cfg, logger: logger, breakers: make(map[string]*gobreaker.CircuitBreaker[any])}
}

// For returns the circuit breaker for a named backend (e.g. "cp",
// "lp"), creating it on first call.
func (r *Registry) For(backend string) *gobreaker.CircuitBreaker[any] {
	if b, ok := r.breakers[backend]; ok {
		return b
	}
	settings := gobreaker.Settings{
		Name:        backend,
		MaxRequests: r.cfg.MaxRequests,
		Interval:    r.cfg.Interval,
		Timeout:     r.cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if r.logger != nil {
				r.logger.Warn("solver circuit breaker state changed",
					zap.String("backend", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			}
		},
	}
	b := gobreaker.NewCircuitBreaker[any](settings)
	r.breakers[backend] = b
	return b
}

// Execute runs fn through the named backend's breaker. ErrOpenState is
// returned unwrapped so callers can treat it as an immediate-fallback
// signal the way an infeasible or timeout result would be treated.
func (r *Registry) Execute(backend string, fn func() (any, error)) (any, error) {
	return r.For(backend).Execute(fn)
}

// IsOpen reports whether the named backend's breaker is currently open,
// without making a call through it.
func (r *Registry) IsOpen(backend string) bool {
	b, ok := r.breakers[backend]
	if !ok {
		return false
	}
	return b.State() == gobreaker.StateOpen
}
