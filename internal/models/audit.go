package models

import "time"

// AuditAction constants represent actions the engine records for every
// state-changing call it makes.
const (
	AuditActionRunStart           = "RUN_START"
	AuditActionRunCommit          = "RUN_COMMIT"
	AuditActionRunCancel          = "RUN_CANCEL"
	AuditActionRunFail            = "RUN_FAIL"
	AuditActionManualOverride     = "MANUAL_OVERRIDE"
	AuditActionResilienceOverride = "RESILIENCE_OVERRIDE"
)

// AuditLog represents an audit trail record for one engine action.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	ActorID    *string   `db:"actor_id" json:"actorId,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resourceId,omitempty"`
	OldValues  []byte    `db:"old_values" json:"oldValues,omitempty"`
	NewValues  []byte    `db:"new_values" json:"newValues,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ipAddress"`
	UserAgent  string    `db:"user_agent" json:"userAgent"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}
