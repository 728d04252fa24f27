package models

import "github.com/golang-jwt/jwt/v5"

// OverrideScope names what an override token authorizes.
type OverrideScope string

const (
	OverrideScopeAssignment OverrideScope = "assignment_override"
	OverrideScopeResilience OverrideScope = "resilience_override"
)

// OverrideClaims is the JWT payload minted after a caller presents the
// shared override passphrase. The resilience gate and the reconciler's
// manual-write path both require a token with the matching scope before
// they will bypass a block (spec.md §4.9).
type OverrideClaims struct {
	ActorID string        `json:"actorId"`
	Role    Role          `json:"role"`
	Scope   OverrideScope `json:"scope"`
	jwt.RegisteredClaims
}
