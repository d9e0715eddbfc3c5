package domain

import "time"

// Guest is a self-registered attendee account.
type Guest struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity projects the guest without credentials. Guests have no active flag.
func (g *Guest) Identity() *Identity {
	return &Identity{
		ID:     g.ID,
		Kind:   ActorKindGuest,
		Email:  g.Email,
		Name:   g.Name,
		Role:   RoleGuest,
		Active: true,
	}
}
