package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/event-admin/internal/api/dto"
	"github.com/spec-kit/event-admin/internal/auth"
	"github.com/spec-kit/event-admin/internal/domain"
	apperrors "github.com/spec-kit/event-admin/pkg/util/errorutil"
)

// bind parses the JSON body into req and validates it.
func bind(c *fiber.Ctx, req dto.Validatable) error {
	if err := c.BodyParser(req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := req.Validate(); err != nil {
		return dto.ValidationError(err)
	}
	return nil
}

func currentIdentity(c *fiber.Ctx) (*domain.Identity, error) {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("unauthenticated")
	}
	return identity, nil
}

func data(c *fiber.Ctx, status int, payload any) error {
	return c.Status(status).JSON(fiber.Map{"data": payload})
}
