package dto

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/spec-kit/event-admin/internal/domain"
)

// CreateStaffRequest payload.
type CreateStaffRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// Validate runs validation rules.
func (r CreateStaffRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(minPasswordLength, maxPasswordLength)),
		validation.Field(&r.Role, validation.Required, validation.In(staffRoleValues()...)),
	)
}

// CreateMinisterRequest payload.
type CreateMinisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate runs validation rules.
func (r CreateMinisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(minPasswordLength, maxPasswordLength)),
	)
}

// SetActiveRequest toggles an actor's active flag.
type SetActiveRequest struct {
	Active *bool `json:"active"`
}

// Validate runs validation rules.
func (r SetActiveRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Active, validation.NotNil),
	)
}

// StaffResponse is the public view of a staff member.
type StaffResponse struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Email       string      `json:"email"`
	Role        domain.Role `json:"role"`
	Active      bool        `json:"active"`
	LastLoginAt *time.Time  `json:"last_login_at,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// NewStaffResponse maps a staff member.
func NewStaffResponse(s *domain.StaffMember) StaffResponse {
	return StaffResponse{
		ID:          s.ID,
		Name:        s.Name,
		Email:       s.Email,
		Role:        s.Role,
		Active:      s.Active,
		LastLoginAt: s.LastLoginAt,
		CreatedAt:   s.CreatedAt,
	}
}

// MinisterResponse is the public view of a minister.
type MinisterResponse struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Active      bool       `json:"active"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// NewMinisterResponse maps a minister.
func NewMinisterResponse(m *domain.Minister) MinisterResponse {
	return MinisterResponse{
		ID:          m.ID,
		Name:        m.Name,
		Email:       m.Email,
		Active:      m.Active,
		LastLoginAt: m.LastLoginAt,
		CreatedAt:   m.CreatedAt,
	}
}

func staffRoleValues() []interface{} {
	roles := domain.StaffRoles()
	out := make([]interface{}, 0, len(roles))
	for _, r := range roles {
		out = append(out, string(r))
	}
	return out
}
