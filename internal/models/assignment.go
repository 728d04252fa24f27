package models

import "time"

// Source orders where an Assignment came from. Priority is
// preload > manual > solver > template (spec.md §3).
type Source string

const (
	SourceTemplate Source = "template"
	SourcePreload  Source = "preload"
	SourceSolver   Source = "solver"
	SourceManual   Source = "manual"
)

// sourcePriority ranks sources from lowest to highest; a higher number
// always wins a write conflict on the same (person, slot).
var sourcePriority = map[Source]int{
	SourceTemplate: 0,
	SourceSolver:   1,
	SourceManual:   2,
	SourcePreload:  3,
}

// Outranks reports whether source a may overwrite an assignment
// currently sourced from b. Equal sources never outrank each other
// (a same-source write is an update, not an override).
func (s Source) Outranks(other Source) bool {
	return sourcePriority[s] > sourcePriority[other]
}

// AssignmentRole distinguishes a primary placement from a supervision
// add-on created by the reconciler's faculty supervision pass.
type AssignmentRole string

const (
	AssignmentRolePrimary     AssignmentRole = "primary"
	AssignmentRoleSupervising AssignmentRole = "supervising"
)

// Assignment is a committed (person, slot) -> activity binding.
// Uniqueness is on (person_id, date, period): at most one assignment per
// person-slot (spec.md §3, §8 invariant 1).
type Assignment struct {
	ID             string         `db:"id" json:"id"`
	PersonID       string         `db:"person_id" json:"personId"`
	Date           time.Time      `db:"date" json:"date"`
	Period         Period         `db:"period" json:"period"`
	ActivityCode   string         `db:"activity_code" json:"activityCode"`
	Source         Source         `db:"source" json:"source"`
	Role           AssignmentRole `db:"role" json:"role"`
	ScheduleRunID  *string        `db:"schedule_run_id" json:"scheduleRunId,omitempty"`
	OverrideActor  *string        `db:"override_actor" json:"overrideActor,omitempty"`
	OverrideReason *string        `db:"override_reason" json:"overrideReason,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updatedAt"`
}

// Key returns the (person, slot) uniqueness identity.
func (a Assignment) Key() AssignmentKey {
	return AssignmentKey{PersonID: a.PersonID, Date: a.Date.Format("2006-01-02"), Period: a.Period}
}

// AssignmentKey is the comparable uniqueness key for an Assignment.
type AssignmentKey struct {
	PersonID string
	Date     string
	Period   Period
}

// CallType enumerates the distinct call_assignments carried alongside
// half-day Assignments.
type CallType string

const (
	CallTypeOvernight CallType = "overnight"
	CallTypeWeekend   CallType = "weekend"
	CallTypeBackup    CallType = "backup"
)

// CallAssignment records a (date, person, call_type) overnight call
// binding, unique on that triple (spec.md §6 persisted state layout).
type CallAssignment struct {
	ID        string    `db:"id" json:"id"`
	Date      time.Time `db:"date" json:"date"`
	PersonID  string    `db:"person_id" json:"personId"`
	CallType  CallType  `db:"call_type" json:"callType"`
	Source    Source    `db:"source" json:"source"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// AssignmentFilter narrows down assignment listing queries.
type AssignmentFilter struct {
	PersonID      string
	StartDate     *time.Time
	EndDate       *time.Time
	ScheduleRunID string
	Page          int
	PageSize      int
}

// CallAssignmentFilter narrows down call assignment listing queries.
type CallAssignmentFilter struct {
	PersonID  string
	StartDate *time.Time
	EndDate   *time.Time
	CallType  CallType
}
