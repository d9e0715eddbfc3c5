package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/event-admin/internal/auth"
	"github.com/spec-kit/event-admin/internal/domain"
	"github.com/spec-kit/event-admin/internal/events"
	"github.com/spec-kit/event-admin/internal/repository"
	apperrors "github.com/spec-kit/event-admin/pkg/util/errorutil"
)

// AuthService coordinates login, registration and session flows for every actor kind.
type AuthService struct {
	staff      repository.StaffRepository
	ministers  repository.MinisterRepository
	guests     repository.GuestRepository
	sessions   *auth.Sessions
	dispatcher events.Dispatcher
	logger     *zap.Logger
	bcryptCost int
	dummyHash  string
	now        func() time.Time
}

// AuthDependencies encapsulates requirements for the auth service.
type AuthDependencies struct {
	StaffRepo    repository.StaffRepository
	MinisterRepo repository.MinisterRepository
	GuestRepo    repository.GuestRepository
	Sessions     *auth.Sessions
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
	BcryptCost   int
	Now          func() time.Time
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	// Unknown emails compare against a hash of the configured cost so they
	// take as long to reject as wrong passwords.
	dummy, err := auth.HashPassword(uuid.NewString(), deps.BcryptCost)
	if err != nil {
		logger.Warn("falling back to built-in dummy password hash", zap.Error(err))
	}
	return &AuthService{
		staff:      deps.StaffRepo,
		ministers:  deps.MinisterRepo,
		guests:     deps.GuestRepo,
		sessions:   deps.Sessions,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		bcryptCost: deps.BcryptCost,
		dummyHash:  dummy,
		now:        now,
	}
}

// Session is the result of a successful login or refresh.
type Session struct {
	Identity *domain.Identity
	Tokens   *domain.TokenPair
}

// LoginStaff authenticates a staff member by email and password.
func (s *AuthService) LoginStaff(ctx context.Context, email, password string) (*Session, error) {
	staff, err := s.staff.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, s.missingAccount(err, password)
	}
	if err := auth.ComparePassword(staff.PasswordHash, password); err != nil {
		return nil, invalidCredentials()
	}
	if !staff.Active {
		return nil, apperrors.NewForbidden("account inactive")
	}
	s.touch(ctx, domain.ActorKindStaff, staff.ID, s.staff.TouchLastLogin)
	return s.open(ctx, staff.Identity())
}

// LoginMinister authenticates a minister by email and password.
func (s *AuthService) LoginMinister(ctx context.Context, email, password string) (*Session, error) {
	minister, err := s.ministers.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, s.missingAccount(err, password)
	}
	if err := auth.ComparePassword(minister.PasswordHash, password); err != nil {
		return nil, invalidCredentials()
	}
	if !minister.Active {
		return nil, apperrors.NewForbidden("account inactive")
	}
	s.touch(ctx, domain.ActorKindMinister, minister.ID, s.ministers.TouchLastLogin)
	return s.open(ctx, minister.Identity())
}

// LoginGuest authenticates a guest by email and password.
func (s *AuthService) LoginGuest(ctx context.Context, email, password string) (*Session, error) {
	guest, err := s.guests.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, s.missingAccount(err, password)
	}
	if err := auth.ComparePassword(guest.PasswordHash, password); err != nil {
		return nil, invalidCredentials()
	}
	s.touch(ctx, domain.ActorKindGuest, guest.ID, s.guests.TouchLastLogin)
	return s.open(ctx, guest.Identity())
}

// RegisterGuest creates a guest account and signs it in.
func (s *AuthService) RegisterGuest(ctx context.Context, name, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	guest := &domain.Guest{Name: strings.TrimSpace(name), Email: email, PasswordHash: hash}
	if err := s.guests.Create(ctx, guest); err != nil {
		return nil, createError(err)
	}
	return s.open(ctx, guest.Identity())
}

// Refresh rotates a refresh token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	pair, identity, err := s.sessions.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, auth.ToDomainError(err)
	}
	return &Session{Identity: identity, Tokens: pair}, nil
}

// Logout revokes the presented tokens. It never fails.
func (s *AuthService) Logout(ctx context.Context, accessToken, refreshToken string) {
	s.sessions.Logout(ctx, accessToken, refreshToken)
}

// LogoutAll revokes every token issued to the identity so far.
func (s *AuthService) LogoutAll(ctx context.Context, identity *domain.Identity) {
	s.sessions.RevokeAll(ctx, identity, "logout_all")
}

// ChangePassword verifies the current password, stores the new one and
// revokes every token the actor holds.
func (s *AuthService) ChangePassword(ctx context.Context, identity *domain.Identity, currentPassword, newPassword string) error {
	if identity == nil {
		return apperrors.NewUnauthorized("unauthenticated")
	}

	var (
		currentHash string
		update      func(ctx context.Context, id, hash string) error
	)
	switch identity.Kind {
	case domain.ActorKindStaff:
		staff, err := s.staff.GetByID(ctx, identity.ID)
		if err != nil {
			return apperrors.MapError(err)
		}
		currentHash, update = staff.PasswordHash, s.staff.UpdatePassword
	case domain.ActorKindMinister:
		minister, err := s.ministers.GetByID(ctx, identity.ID)
		if err != nil {
			return apperrors.MapError(err)
		}
		currentHash, update = minister.PasswordHash, s.ministers.UpdatePassword
	case domain.ActorKindGuest:
		guest, err := s.guests.GetByID(ctx, identity.ID)
		if err != nil {
			return apperrors.MapError(err)
		}
		currentHash, update = guest.PasswordHash, s.guests.UpdatePassword
	default:
		return apperrors.NewForbidden("actor kind not allowed")
	}

	if err := auth.ComparePassword(currentHash, currentPassword); err != nil {
		return invalidCredentials()
	}
	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if err := update(ctx, identity.ID, hash); err != nil {
		return apperrors.MapError(err)
	}

	s.sessions.RevokeAll(ctx, identity, "password_changed")
	return nil
}

func (s *AuthService) open(ctx context.Context, identity *domain.Identity) (*Session, error) {
	pair, err := s.sessions.Issue(identity)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if s.dispatcher != nil {
		event := events.New(events.EventLoginSucceeded,
			events.Actor{Kind: identity.Kind, ID: identity.ID},
			s.now(),
			events.LoginSucceededPayload{Role: identity.Role})
		_ = s.dispatcher.Publish(ctx, event)
	}
	return &Session{Identity: identity, Tokens: pair}, nil
}

// missingAccount turns a lookup failure into the generic credentials error,
// spending a bcrypt comparison so unknown emails are not faster to reject.
func (s *AuthService) missingAccount(err error, password string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		_ = auth.ComparePassword(s.dummyHash, password)
		return invalidCredentials()
	}
	return apperrors.MapError(err)
}

func (s *AuthService) touch(ctx context.Context, kind domain.ActorKind, id string, fn func(context.Context, string, time.Time) error) {
	if err := fn(ctx, id, s.now()); err != nil {
		s.logger.Warn("update last login", zap.String("kind", string(kind)), zap.String("id", id), zap.Error(err))
	}
}

func invalidCredentials() error {
	return apperrors.NewUnauthorized("invalid credentials")
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
