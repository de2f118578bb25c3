package identity

import (
	"time"

	"github.com/google/uuid"

	"github.com/descanso-app/descanso/internal/shared"
)

// Profile is the identity provider's account record.
type Profile struct {
	ID           uuid.UUID
	Email        string
	Name         string
	Role         shared.Role
	EmployeeType shared.EmployeeType
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
}

// Identity projects the profile onto the authenticated-caller shape the
// core trusts verbatim.
func (p Profile) Identity() shared.Identity {
	return shared.Identity{
		ID:           p.ID,
		Name:         p.Name,
		Email:        p.Email,
		Role:         p.Role,
		EmployeeType: p.EmployeeType,
	}
}
