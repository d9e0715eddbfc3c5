package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/event-admin/internal/domain"
	apperrors "github.com/spec-kit/event-admin/pkg/util/errorutil"
)

const (
	identityKey            = "auth_identity"
	unauthenticatedMessage = "unauthenticated"
)

type identityCtxKey struct{}

// AttemptRecorder observes authentication outcomes.
type AttemptRecorder interface {
	RecordAuth(kind, outcome string)
}

// AuthMiddleware validates bearer tokens and attaches the resolved identity.
type AuthMiddleware struct {
	authenticator Authenticator
	logger        *zap.Logger
	recorder      AttemptRecorder
	label         string
}

// NewAuthMiddleware constructs middleware. label names the guard in logs and metrics.
func NewAuthMiddleware(authenticator Authenticator, label string, logger *zap.Logger, recorder AttemptRecorder) *AuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthMiddleware{authenticator: authenticator, logger: logger, recorder: recorder, label: label}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	token, err := BearerToken(c.Get(fiber.HeaderAuthorization))
	if err != nil {
		m.record("missing_token")
		return apperrors.NewUnauthorized(unauthenticatedMessage)
	}

	identity, err := m.authenticator.Authenticate(c.UserContext(), token)
	if err != nil {
		if IsAuthenticationError(err) {
			// The specific reason stays in the logs; clients only learn "unauthenticated".
			m.logger.Debug("authentication rejected", zap.String("guard", m.label), zap.Error(err))
			m.record(outcomeFor(err))
			return apperrors.NewUnauthorized(unauthenticatedMessage)
		}
		m.record("error")
		return apperrors.MapError(err)
	}

	m.record("ok")
	c.Locals(identityKey, identity)
	c.SetUserContext(WithIdentity(c.UserContext(), identity))
	return c.Next()
}

func (m *AuthMiddleware) record(outcome string) {
	if m.recorder != nil {
		m.recorder.RecordAuth(m.label, outcome)
	}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrMissingToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", ErrMissingToken
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}

// IdentityFromContext retrieves the authenticated identity.
func IdentityFromContext(c *fiber.Ctx) (*domain.Identity, bool) {
	val := c.Locals(identityKey)
	if val == nil {
		return nil, false
	}
	identity, ok := val.(*domain.Identity)
	return identity, ok
}

// WithIdentity stores identity on a standard context for downstream services.
func WithIdentity(ctx context.Context, identity *domain.Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey{}, identity)
}

// IdentityFrom reads the identity stored by WithIdentity.
func IdentityFrom(ctx context.Context) (*domain.Identity, bool) {
	identity, ok := ctx.Value(identityCtxKey{}).(*domain.Identity)
	return identity, ok && identity != nil
}

// ToDomainError maps auth failures onto API errors: every authentication
// failure becomes the same 401, forbidden errors keep their required roles.
func ToDomainError(err error) error {
	return toDomainError(err)
}

func toDomainError(err error) error {
	if err == nil {
		return nil
	}
	var forbidden *ForbiddenError
	if errors.As(err, &forbidden) {
		return apperrors.NewDomainError("FORBIDDEN", forbidden.Error(), http.StatusForbidden, map[string]any{
			"required_roles": forbidden.RequiredRoleNames(),
		})
	}
	if IsAuthenticationError(err) {
		return apperrors.NewUnauthorized(unauthenticatedMessage)
	}
	return apperrors.MapError(err)
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, ErrExpiredToken):
		return "expired"
	case errors.Is(err, ErrRevokedToken):
		return "revoked"
	case errors.Is(err, ErrBadSignature):
		return "bad_signature"
	case errors.Is(err, ErrMalformedToken):
		return "malformed"
	case errors.Is(err, ErrWrongTokenType):
		return "wrong_type"
	case errors.Is(err, ErrActorNotFound):
		return "not_found"
	case errors.Is(err, ErrActorInactive):
		return "inactive"
	default:
		return "invalid"
	}
}
