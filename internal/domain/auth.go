package domain

import "time"

// ActorKind identifies one of the independent identity domains.
type ActorKind string

const (
	ActorKindStaff    ActorKind = "staff"
	ActorKindMinister ActorKind = "minister"
	ActorKindGuest    ActorKind = "guest"
)

// Valid reports whether k is a known actor kind.
func (k ActorKind) Valid() bool {
	switch k {
	case ActorKindStaff, ActorKindMinister, ActorKindGuest:
		return true
	default:
		return false
	}
}

// TokenType differentiates access and refresh tokens.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Valid reports whether t is a known token type.
func (t TokenType) Valid() bool {
	return t == TokenTypeAccess || t == TokenTypeRefresh
}

// Role is the authorization role carried by an identity.
type Role string

const (
	RoleSuperAdmin Role = "SUPER_ADMIN"
	RoleAdmin      Role = "ADMIN"
	RoleEditor     Role = "EDITOR"
	RoleViewer     Role = "VIEWER"

	// Implicit single roles of the non-staff kinds.
	RoleMinister Role = "MINISTER"
	RoleGuest    Role = "GUEST"
)

// StaffRoles lists staff roles from most to least privileged.
func StaffRoles() []Role {
	return []Role{RoleSuperAdmin, RoleAdmin, RoleEditor, RoleViewer}
}

// IsStaffRole reports whether r belongs to the staff role set.
func (r Role) IsStaffRole() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleEditor, RoleViewer:
		return true
	default:
		return false
	}
}

// ImplicitRole returns the fixed role of a kind without sub-roles.
func ImplicitRole(kind ActorKind) Role {
	switch kind {
	case ActorKindMinister:
		return RoleMinister
	case ActorKindGuest:
		return RoleGuest
	default:
		return ""
	}
}

// Identity is the read-only projection of an authenticated actor.
type Identity struct {
	ID     string    `json:"id"`
	Kind   ActorKind `json:"kind"`
	Email  string    `json:"email"`
	Name   string    `json:"name,omitempty"`
	Role   Role      `json:"role"`
	Active bool      `json:"active"`
}

// TokenPair is the result of issuing credentials for an actor.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}
