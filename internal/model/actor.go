package model

import "github.com/google/uuid"

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleDoctor  Role = "doctor"
	RoleNurse   Role = "nurse"
	RolePatient Role = "patient"
)

// Actor identifies the authenticated caller. Credentials are verified by the
// identity service upstream; this layer only consumes the claims.
type Actor struct {
	ID   uuid.UUID `json:"id"`
	Role Role      `json:"role"`
}

// Elevated reports whether the role bypasses ownership checks.
func (r Role) Elevated() bool {
	return r == RoleAdmin || r == RoleNurse
}
