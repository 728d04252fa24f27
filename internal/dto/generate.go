package dto

import (
	"time"

	"github.com/gme-scheduler/core/internal/availability"
	"github.com/gme-scheduler/core/internal/engine"
	"github.com/gme-scheduler/core/internal/models"
	"github.com/gme-scheduler/core/internal/preload"
)

// AbsenceRequest is the wire shape for one availability.Absence; the
// internal type carries no json tags of its own since nothing else in
// this core ever serializes one.
type AbsenceRequest struct {
	PersonID string                  `json:"personId"`
	Start    time.Time               `json:"start"`
	End      time.Time               `json:"end"`
	Kind     availability.AbsenceKind `json:"kind"`
	Type     string                  `json:"type"`
	Reason   string                  `json:"reason"`
	Replace  string                  `json:"replace"`
}

func (a AbsenceRequest) toAbsence() availability.Absence {
	return availability.Absence{
		PersonID: a.PersonID,
		Start:    models.Slot{Date: a.Start},
		End:      models.Slot{Date: a.End},
		Kind:     a.Kind,
		Type:     a.Type,
		Reason:   a.Reason,
		Replace:  a.Replace,
	}
}

// ResidentCallPreloadRequest is the wire shape for one explicit
// pre-assigned overnight call.
type ResidentCallPreloadRequest struct {
	PersonID string    `json:"personId"`
	Date     time.Time `json:"date"`
}

func (r ResidentCallPreloadRequest) toPreload() preload.ResidentCallPreload {
	return preload.ResidentCallPreload{PersonID: r.PersonID, Date: r.Date}
}

// GenerateRequest is the HTTP payload for a generate call. The engine
// has no opinion on where roster, rotation and absence data come from
// (internal/engine's own doc comment); this is the caller that supplies
// it, in the request body, since this deployment has no roster store of
// its own to query.
type GenerateRequest struct {
	RangeStart        time.Time `json:"rangeStart" binding:"required"`
	RangeEnd          time.Time `json:"rangeEnd" binding:"required"`
	AcademicYearStart time.Time `json:"academicYearStart" binding:"required"`

	People                  []models.Person                `json:"people"`
	Templates                []models.RotationTemplate       `json:"templates"`
	BlockRotations           []models.ResidentBlockRotation   `json:"blockRotations"`
	Absences                 []AbsenceRequest                `json:"absences"`
	ResidentCallPreloads     []ResidentCallPreloadRequest     `json:"residentCallPreloads"`
	SportsMedicineFacultyID string                           `json:"sportsMedicineFacultyId"`

	// Algorithm forces a backend; empty means auto-select.
	Algorithm models.Algorithm `json:"algorithm"`
	// TimeBudgetSeconds overrides every backend's configured wall-clock
	// budget when positive.
	TimeBudgetSeconds int `json:"timeBudgetSeconds"`
	// CheckResilience defaults to true: a caller must opt out explicitly.
	CheckResilience *bool  `json:"checkResilience,omitempty"`
	OverrideToken   string `json:"overrideToken,omitempty"`
}

// ToGenerateInput converts the wire payload into engine.GenerateInput.
// Progress is left nil; callers that want incumbent updates attach one
// after conversion.
func (r GenerateRequest) ToGenerateInput() engine.GenerateInput {
	absences := make([]availability.Absence, 0, len(r.Absences))
	for _, a := range r.Absences {
		absences = append(absences, a.toAbsence())
	}
	preloads := make([]preload.ResidentCallPreload, 0, len(r.ResidentCallPreloads))
	for _, p := range r.ResidentCallPreloads {
		preloads = append(preloads, p.toPreload())
	}

	checkResilience := true
	if r.CheckResilience != nil {
		checkResilience = *r.CheckResilience
	}

	var budget time.Duration
	if r.TimeBudgetSeconds > 0 {
		budget = time.Duration(r.TimeBudgetSeconds) * time.Second
	}

	return engine.GenerateInput{
		RangeStart:              r.RangeStart,
		RangeEnd:                r.RangeEnd,
		AcademicYearStart:       r.AcademicYearStart,
		People:                  r.People,
		Templates:               r.Templates,
		BlockRotations:          r.BlockRotations,
		Absences:                absences,
		ResidentCallPreloads:    preloads,
		SportsMedicineFacultyID: r.SportsMedicineFacultyID,
		Algorithm:               r.Algorithm,
		TimeBudget:              budget,
		CheckResilience:         checkResilience,
		OverrideToken:           r.OverrideToken,
	}
}

// GenerateAcceptedResponse is returned immediately on submission.
type GenerateAcceptedResponse struct {
	RequestID string `json:"requestId"`
	Status    string `json:"status"`
}

// GenerateStatusResponse reports a dispatched generation's current state.
type GenerateStatusResponse struct {
	RequestID string            `json:"requestId"`
	Status    string            `json:"status"`
	Report    *models.RunReport `json:"report,omitempty"`
	Error     string            `json:"error,omitempty"`
}
