package dto

import (
	"encoding/json"

	"github.com/gme-scheduler/core/internal/models"
)

// CreateOverrideRequest is the payload for requesting a manual override
// to a committed assignment, call assignment, or an active resilience
// gate block.
type CreateOverrideRequest struct {
	Type            models.OverrideType `json:"type"`
	Entity          string              `json:"entity"`
	EntityID        string              `json:"entityId"`
	Reason          string              `json:"reason"`
	RequestedChange json.RawMessage     `json:"requestedChange"`
}

// ReviewOverrideRequest captures reviewer decision and optional note.
type ReviewOverrideRequest struct {
	Status models.OverrideStatus `json:"status"`
	Note   string                `json:"note"`
}

// OverrideQuery mirrors supported listing filters.
type OverrideQuery struct {
	Status []models.OverrideStatus
	Entity string
	Type   models.OverrideType
}
