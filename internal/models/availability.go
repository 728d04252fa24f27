package models

// AvailabilityState is the tri-state result the availability matrix
// returns for a (person, slot) pair.
type AvailabilityState string

const (
	AvailabilityStateFree        AvailabilityState = "free"
	AvailabilityStatePartial     AvailabilityState = "partial"
	AvailabilityStateUnavailable AvailabilityState = "unavailable"
)

// AvailabilityEntry is one cell of the availability matrix (C2). Partial
// entries carry a ReplacementActivity — e.g. a half-day didactic
// conference that narrows but does not zero out a slot.
type AvailabilityEntry struct {
	PersonID             string             `json:"personId"`
	SlotKey              SlotKey            `json:"slotKey"`
	State                AvailabilityState  `json:"state"`
	ReplacementActivity  string             `json:"replacementActivity,omitempty"`
	Reason               string             `json:"reason,omitempty"`
}

// Available reports whether the entry permits a new placement at all.
func (e AvailabilityEntry) Available() bool {
	return e.State == AvailabilityStateFree || e.State == AvailabilityStatePartial
}
