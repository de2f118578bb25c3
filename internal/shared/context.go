package shared

import (
	"context"

	"github.com/google/uuid"
)

type identityContextKey struct{}

// Identity describes the authenticated caller as supplied by the identity
// provider. The core trusts these attributes verbatim; authorization checks
// use Role only, never display-name content.
type Identity struct {
	ID           uuid.UUID
	Name         string
	Email        string
	Role         Role
	EmployeeType EmployeeType
}

// Role is the caller's authorization role.
type Role string

const (
	RoleEmployee Role = "employee"
	RoleManager  Role = "manager"
	RoleHR       Role = "hr"
	// RoleSystem is the background actor that hands approvals off to HR.
	// Never assigned to an authenticated caller.
	RoleSystem Role = "system"
)

// EmployeeType is the employment classification.
type EmployeeType string

const (
	EmployeeCLT EmployeeType = "CLT"
	EmployeePJ  EmployeeType = "PJ"
)

// systemActorID identifies the background actor in the decision trail.
var systemActorID = uuid.MustParse("00000000-0000-4000-8000-000000000001")

// SystemIdentity returns the background actor used by workers. It carries
// RoleSystem and a fixed id so trail entries stay attributable.
func SystemIdentity() Identity {
	return Identity{ID: systemActorID, Name: "system", Role: RoleSystem}
}

// IsManager reports whether the identity carries the manager role.
func (i Identity) IsManager() bool {
	return i.Role == RoleManager
}

// ContextWithIdentity stores the identity in context.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the identity from context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	return id, ok
}
