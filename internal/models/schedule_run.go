package models

import "time"

// RunStatus is the terminal/in-flight state of a ScheduleRun.
// in_progress -> (success | partial | failed), terminal (spec.md §4.10).
type RunStatus string

const (
	RunStatusInProgress RunStatus = "in_progress"
	RunStatusSuccess    RunStatus = "success"
	RunStatusPartial    RunStatus = "partial"
	RunStatusFailed     RunStatus = "failed"
)

// Algorithm names the solver backend a run used or was asked to use.
type Algorithm string

const (
	AlgorithmGreedy Algorithm = "greedy"
	AlgorithmCP     Algorithm = "cp"
	AlgorithmLP     Algorithm = "lp"
	AlgorithmHybrid Algorithm = "hybrid"
)

// ScheduleRun is one row per generation attempt (spec.md §6).
type ScheduleRun struct {
	ID              string     `db:"id" json:"id"`
	RangeStart      time.Time  `db:"range_start" json:"rangeStart"`
	RangeEnd        time.Time  `db:"range_end" json:"rangeEnd"`
	Algorithm       Algorithm  `db:"algorithm" json:"algorithm"`
	Status          RunStatus  `db:"status" json:"status"`
	SolverStatsJSON []byte     `db:"solver_stats" json:"-"`
	ValidationJSON  []byte     `db:"validation_report" json:"-"`
	CreatedAt       time.Time  `db:"created_at" json:"createdAt"`
	FinishedAt      *time.Time `db:"finished_at" json:"finishedAt,omitempty"`
}

// SolverStats carries the backend's reported statistics, independent of
// which backend produced them.
type SolverStats struct {
	Backend       Algorithm `json:"backend"`
	Branches      int       `json:"branches"`
	Conflicts     int       `json:"conflicts"`
	BestObjective float64   `json:"bestObjective"`
	RuntimeMillis int64     `json:"runtimeMillis"`
	TerminalState string    `json:"terminalState"` // optimal|feasible|infeasible|timeout
}

// NFToPostCallAudit records one resident's night-float-to-post-call check.
type NFToPostCallAudit struct {
	PersonID      string `json:"personId"`
	NFBlockEndsOn string `json:"nfBlockEndsOn"`
	NextDayIsOff  bool   `json:"nextDayIsOff"`
}

// ResiliencePair carries the pre- and post-generation resilience level.
type ResiliencePair struct {
	Pre  ResilienceLevel `json:"pre"`
	Post ResilienceLevel `json:"post"`
}

// RunReport is the caller-visible result of a generate() call
// (spec.md §6).
type RunReport struct {
	RunID             string             `json:"runId"`
	Status            RunStatus          `json:"status"`
	TotalAssigned     int                `json:"totalAssigned"`
	TotalSlots        int                `json:"totalSlots"`
	Validation        ValidationReport   `json:"validation"`
	Solver            SolverStats        `json:"solver"`
	Resilience        ResiliencePair     `json:"resilience"`
	NFToPostCallAudit []NFToPostCallAudit `json:"nfToPostCallAudit"`
}
