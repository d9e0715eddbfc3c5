package domain

import "time"

// Minister is an affiliated minister with portal access.
type Minister struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Active       bool
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity projects the minister without credentials.
func (m *Minister) Identity() *Identity {
	return &Identity{
		ID:     m.ID,
		Kind:   ActorKindMinister,
		Email:  m.Email,
		Name:   m.Name,
		Role:   RoleMinister,
		Active: m.Active,
	}
}
