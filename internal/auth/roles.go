package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/event-admin/internal/domain"
	apperrors "github.com/spec-kit/event-admin/pkg/util/errorutil"
)

// Authorize decides whether identity satisfies any of the required roles.
//
// SUPER_ADMIN passes everything. ADMIN passes everything except resources that
// name SUPER_ADMIN without also naming ADMIN. Every other role must be listed.
// An empty requirement only demands authentication.
func Authorize(identity *domain.Identity, required ...domain.Role) error {
	if identity == nil {
		return ErrInvalidToken
	}
	if len(required) == 0 {
		return nil
	}

	switch identity.Role {
	case domain.RoleSuperAdmin:
		return nil
	case domain.RoleAdmin:
		if contains(required, domain.RoleSuperAdmin) && !contains(required, domain.RoleAdmin) {
			return &ForbiddenError{Required: required}
		}
		return nil
	}

	if contains(required, identity.Role) {
		return nil
	}
	return &ForbiddenError{Required: required}
}

func contains(roles []domain.Role, role domain.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// RequireRoles ensures the authenticated identity passes Authorize.
func RequireRoles(required ...domain.Role) fiber.Handler {
	roles := append([]domain.Role(nil), required...)

	return func(c *fiber.Ctx) error {
		identity, ok := IdentityFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized(unauthenticatedMessage)
		}
		if err := Authorize(identity, roles...); err != nil {
			return toDomainError(err)
		}
		return c.Next()
	}
}

// RequireKind ensures the authenticated identity is one of the given kinds.
func RequireKind(kinds ...domain.ActorKind) fiber.Handler {
	allowed := make(map[domain.ActorKind]struct{}, len(kinds))
	for _, kind := range kinds {
		allowed[kind] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		identity, ok := IdentityFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized(unauthenticatedMessage)
		}
		if _, exists := allowed[identity.Kind]; !exists {
			return apperrors.NewForbidden("actor kind not allowed")
		}
		return c.Next()
	}
}
