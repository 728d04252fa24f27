package models

import "time"

// OverrideType enumerates what a manual override touches.
type OverrideType string

const (
	OverrideTypeAssignment     OverrideType = "ASSIGNMENT"
	OverrideTypeCallAssignment OverrideType = "CALL_ASSIGNMENT"
	OverrideTypeResilience     OverrideType = "RESILIENCE_GATE"
)

// OverrideStatus captures workflow states for a manual override request.
type OverrideStatus string

const (
	OverrideStatusPending  OverrideStatus = "PENDING"
	OverrideStatusApplied  OverrideStatus = "APPLIED"
	OverrideStatusRejected OverrideStatus = "REJECTED"
)

// OverrideRequest stores a manual override to a committed assignment or
// to an active resilience-gate block. Applying one always writes through
// Source=manual, which outranks solver and template writes but not a
// preload (spec.md §3 priority ordering).
type OverrideRequest struct {
	ID              string         `db:"id" json:"id"`
	Type            OverrideType   `db:"type" json:"type"`
	Entity          string         `db:"entity" json:"entity"`
	EntityID        string         `db:"entity_id" json:"entityId"`
	CurrentSnapshot []byte         `db:"current_snapshot" json:"currentSnapshot"`
	RequestedChange []byte         `db:"requested_change" json:"requestedChange"`
	Status          OverrideStatus `db:"status" json:"status"`
	Reason          string         `db:"reason" json:"reason"`
	RequestedBy     string         `db:"requested_by" json:"requestedBy"`
	ReviewedBy      *string        `db:"reviewed_by" json:"reviewedBy,omitempty"`
	RequestedAt     time.Time      `db:"requested_at" json:"requestedAt"`
	ReviewedAt      *time.Time     `db:"reviewed_at" json:"reviewedAt,omitempty"`
	Note            *string        `db:"note" json:"note,omitempty"`
}

// OverrideFilter constrains listing queries over override requests.
type OverrideFilter struct {
	Status      []OverrideStatus
	Entity      string
	Type        OverrideType
	EntityID    string
	RequestedBy string
	ReviewerID  string
	Limit       int
	Offset      int
}
