package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/spec-kit/event-admin/internal/auth"
	"github.com/spec-kit/event-admin/internal/domain"
	"github.com/spec-kit/event-admin/internal/repository"
	apperrors "github.com/spec-kit/event-admin/pkg/util/errorutil"
)

// StaffService manages staff members and ministers on behalf of administrators.
// Role checks happen in the HTTP layer; the service trusts its caller.
type StaffService struct {
	staff      repository.StaffRepository
	ministers  repository.MinisterRepository
	sessions   *auth.Sessions
	bcryptCost int
}

// DirectoryDependencies encapsulates repositories required for actor management.
type DirectoryDependencies struct {
	StaffRepo    repository.StaffRepository
	MinisterRepo repository.MinisterRepository
	Sessions     *auth.Sessions
	BcryptCost   int
}

// StaffListFilters define listing parameters.
type StaffListFilters struct {
	Role   *domain.Role
	Active *bool
	Limit  int
	Offset int
}

// NewStaffService constructs the service.
func NewStaffService(deps DirectoryDependencies) *StaffService {
	return &StaffService{
		staff:      deps.StaffRepo,
		ministers:  deps.MinisterRepo,
		sessions:   deps.Sessions,
		bcryptCost: deps.BcryptCost,
	}
}

// CreateStaffMember adds a staff member with the given role.
func (s *StaffService) CreateStaffMember(ctx context.Context, name, email, password string, role domain.Role) (*domain.StaffMember, error) {
	if !role.IsStaffRole() {
		return nil, apperrors.NewValidationError("invalid role", map[string]any{"role": string(role)})
	}
	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	staff := &domain.StaffMember{
		Name:         strings.TrimSpace(name),
		Email:        normalizeEmail(email),
		PasswordHash: hash,
		Role:         role,
		Active:       true,
	}
	if err := s.staff.Create(ctx, staff); err != nil {
		return nil, createError(err)
	}
	return staff, nil
}

// ListStaffMembers returns staff matching filters.
func (s *StaffService) ListStaffMembers(ctx context.Context, filters StaffListFilters) ([]domain.StaffMember, error) {
	list, err := s.staff.List(ctx, repository.StaffFilter{
		Role:   filters.Role,
		Active: filters.Active,
		Limit:  filters.Limit,
		Offset: filters.Offset,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return list, nil
}

// SetStaffActive toggles a staff member's active flag. Deactivation also
// revokes the member's outstanding tokens so reactivation starts clean.
func (s *StaffService) SetStaffActive(ctx context.Context, actor *domain.Identity, id string, active bool) (*domain.StaffMember, error) {
	if !validID(id) {
		return nil, apperrors.NewNotFound("staff member", map[string]any{"id": id})
	}
	if actor != nil && actor.Kind == domain.ActorKindStaff && actor.ID == id && !active {
		return nil, apperrors.NewConflict("cannot deactivate your own account", nil)
	}
	if err := s.staff.SetActive(ctx, id, active); err != nil {
		return nil, apperrors.MapError(err)
	}
	staff, err := s.staff.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !active {
		s.revoke(ctx, staff.Identity())
	}
	return staff, nil
}

// CreateMinister adds a minister account.
func (s *StaffService) CreateMinister(ctx context.Context, name, email, password string) (*domain.Minister, error) {
	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	minister := &domain.Minister{
		Name:         strings.TrimSpace(name),
		Email:        normalizeEmail(email),
		PasswordHash: hash,
		Active:       true,
	}
	if err := s.ministers.Create(ctx, minister); err != nil {
		return nil, createError(err)
	}
	return minister, nil
}

// GetMinister fetches a minister by id.
func (s *StaffService) GetMinister(ctx context.Context, id string) (*domain.Minister, error) {
	if !validID(id) {
		return nil, apperrors.NewNotFound("minister", map[string]any{"id": id})
	}
	minister, err := s.ministers.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return minister, nil
}

// ListMinisters returns ministers, optionally filtered by active flag.
func (s *StaffService) ListMinisters(ctx context.Context, active *bool, limit, offset int) ([]domain.Minister, error) {
	list, err := s.ministers.List(ctx, active, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return list, nil
}

// SetMinisterActive toggles a minister's active flag.
func (s *StaffService) SetMinisterActive(ctx context.Context, id string, active bool) (*domain.Minister, error) {
	if !validID(id) {
		return nil, apperrors.NewNotFound("minister", map[string]any{"id": id})
	}
	if err := s.ministers.SetActive(ctx, id, active); err != nil {
		return nil, apperrors.MapError(err)
	}
	minister, err := s.ministers.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !active {
		s.revoke(ctx, minister.Identity())
	}
	return minister, nil
}

func (s *StaffService) revoke(ctx context.Context, identity *domain.Identity) {
	if s.sessions != nil {
		s.sessions.RevokeAll(ctx, identity, "deactivated")
	}
}

func createError(err error) error {
	if errors.Is(err, repository.ErrDuplicateEmail) {
		return apperrors.NewConflict("email already registered", map[string]any{"field": "email"})
	}
	return apperrors.MapError(err)
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
