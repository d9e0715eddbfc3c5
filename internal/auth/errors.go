package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spec-kit/event-admin/internal/domain"
)

// Authentication failures. Callers outside this package should surface all of
// them as a single generic "unauthenticated" outcome.
var (
	ErrMissingToken   = errors.New("missing bearer token")
	ErrMalformedToken = errors.New("malformed token")
	ErrBadSignature   = errors.New("token signature mismatch")
	ErrExpiredToken   = errors.New("token expired")
	ErrRevokedToken   = errors.New("token revoked")
	ErrWrongTokenType = errors.New("unexpected token type")
	ErrWrongActorKind = errors.New("unexpected actor kind")
	ErrActorNotFound  = errors.New("actor not found")
	ErrActorInactive  = errors.New("actor inactive")
	ErrInvalidToken   = errors.New("invalid token")
)

var authFailures = []error{
	ErrMissingToken,
	ErrMalformedToken,
	ErrBadSignature,
	ErrExpiredToken,
	ErrRevokedToken,
	ErrWrongTokenType,
	ErrWrongActorKind,
	ErrActorNotFound,
	ErrActorInactive,
	ErrInvalidToken,
}

// IsAuthenticationError reports whether err is one of the authentication failures.
func IsAuthenticationError(err error) bool {
	for _, target := range authFailures {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// ForbiddenError is returned when an authenticated actor lacks the required role.
type ForbiddenError struct {
	Required []domain.Role
}

func (e *ForbiddenError) Error() string {
	names := make([]string, 0, len(e.Required))
	for _, r := range e.Required {
		names = append(names, string(r))
	}
	return fmt.Sprintf("requires role: %s", strings.Join(names, ", "))
}

// RequiredRoleNames returns the required roles as plain strings.
func (e *ForbiddenError) RequiredRoleNames() []string {
	names := make([]string, 0, len(e.Required))
	for _, r := range e.Required {
		names = append(names, string(r))
	}
	return names
}
