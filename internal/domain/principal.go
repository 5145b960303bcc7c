package domain

import (
	"fmt"

	"github.com/google/uuid"
)

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleDoctor Role = "doctor"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleDoctor
}

// Principal is the authenticated caller. Every service operation receives it
// explicitly; there is no ambient session.
type Principal struct {
	ID   uuid.UUID `json:"id"`
	Role Role      `json:"role"`
	Name string    `json:"name"`
}

// Require returns ErrForbidden unless the principal holds one of roles.
func (p Principal) Require(roles ...Role) error {
	if p.ID == uuid.Nil {
		return ErrUnauthorized
	}
	for _, r := range roles {
		if p.Role == r {
			return nil
		}
	}
	return fmt.Errorf("%w: role %q may not perform this operation", ErrForbidden, p.Role)
}

func (p Principal) IsDoctor() bool { return p.Role == RoleDoctor }
func (p Principal) IsAdmin() bool  { return p.Role == RoleAdmin }
