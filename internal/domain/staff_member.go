package domain

import "time"

// StaffMember models an administrative operator.
type StaffMember struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	Active       bool
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity projects the staff member without credentials.
func (s *StaffMember) Identity() *Identity {
	return &Identity{
		ID:     s.ID,
		Kind:   ActorKindStaff,
		Email:  s.Email,
		Name:   s.Name,
		Role:   s.Role,
		Active: s.Active,
	}
}
