// Package dispatch wires pkg/jobs' generic worker queue into the
// generation engine: a submitted generate request gets a correlation id
// immediately, runs on a queue worker with the job package's own
// retry/backoff policy, and is pollable by id until it finishes. This is
// the async run-dispatch path the engine's own synchronous Generate call
// does not provide on its own (spec.md §4.10's generate operation is a
// single blocking call; a run over a full academic block can take
// minutes, long past any reasonable HTTP request timeout).
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gme-scheduler/core/internal/engine"
	"github.com/gme-scheduler/core/internal/models"
	appErrors "github.com/gme-scheduler/core/pkg/errors"
	"github.com/gme-scheduler/core/pkg/jobs"
)

// Status is one dispatched generation's lifecycle state.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// generator is the narrow engine.Engine surface the dispatcher drives.
type generator interface {
	Generate(ctx context.Context, input engine.GenerateInput) (models.RunReport, error)
}

// Record is one submitted generation's tracked state, returned by
// Status and updated in place as the job runs.
type Record struct {
	ID         string
	Status     Status
	Report     models.RunReport
	Err        string
	QueuedAt   time.Time
	StartedAt  time.Time
	FinishedAt time.Time
}

// Dispatcher submits GenerateInput values onto a jobs.Queue and tracks
// each one's outcome by a correlation id handed back at submit time --
// the ScheduleRun id the engine itself assigns is not known until the
// job actually starts running.
type Dispatcher struct {
	engine generator
	queue  *jobs.Queue
	logger *zap.Logger

	mu      sync.Mutex
	records map[string]*Record
	cancels map[string]context.CancelFunc
}

// New builds a Dispatcher. It does not start the underlying queue;
// callers must call Start before Submit.
func New(eng generator, logger *zap.Logger, cfg jobs.QueueConfig) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		engine:  eng,
		logger:  logger,
		records: make(map[string]*Record),
		cancels: make(map[string]context.CancelFunc),
	}
	cfg.Logger = logger
	d.queue = jobs.NewQueue("generation-dispatch", d.handle, cfg)
	return d
}

// Start begins worker consumption.
func (d *Dispatcher) Start(ctx context.Context) { d.queue.Start(ctx) }

// Stop cancels every in-flight run and waits for workers to exit.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	for _, cancel := range d.cancels {
		cancel()
	}
	d.mu.Unlock()
	d.queue.Stop()
}

// Submit enqueues a generation and returns the correlation id a caller
// polls Status with.
func (d *Dispatcher) Submit(input engine.GenerateInput) (string, error) {
	id := uuid.NewString()
	d.mu.Lock()
	d.records[id] = &Record{ID: id, Status: StatusQueued, QueuedAt: time.Now().UTC()}
	d.mu.Unlock()

	if err := d.queue.Enqueue(jobs.Job{ID: id, Type: "generate", Payload: input}); err != nil {
		d.mu.Lock()
		delete(d.records, id)
		d.mu.Unlock()
		return "", fmt.Errorf("submit generation: %w", err)
	}
	return id, nil
}

// Status returns the current state of a submitted generation.
func (d *Dispatcher) Status(id string) (Record, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	rec, ok := d.records[id]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// Cancel requests cooperative cancellation of a running generation.
// Returns false if the id is unknown or already finished.
func (d *Dispatcher) Cancel(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	cancel, ok := d.cancels[id]
	if !ok {
		return false
	}
	cancel()
	return true
}

func (d *Dispatcher) handle(ctx context.Context, job jobs.Job) error {
	input, ok := job.Payload.(engine.GenerateInput)
	if !ok {
		d.logger.Error("generation job carried an unexpected payload type", zap.String("job_id", job.ID))
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.mu.Lock()
	rec, exists := d.records[job.ID]
	if !exists {
		d.mu.Unlock()
		cancel()
		return nil
	}
	rec.Status = StatusRunning
	rec.StartedAt = time.Now().UTC()
	d.cancels[job.ID] = cancel
	d.mu.Unlock()

	report, err := d.engine.Generate(runCtx, input)
	cancel()

	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.cancels, job.ID)
	rec.FinishedAt = time.Now().UTC()
	rec.Report = report

	if err != nil {
		rec.Status = StatusFailed
		rec.Err = err.Error()
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			// A structured domain failure (infeasible, timeout,
			// resilience refusal, validation) is not worth retrying:
			// the inputs that produced it haven't changed.
			return nil
		}
		// Anything else (lock acquisition, a transient database error)
		// is exactly what the queue's retry/backoff policy exists for.
		return err
	}

	rec.Status = StatusSucceeded
	return nil
}
