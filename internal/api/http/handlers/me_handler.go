package handlers

import (
	"github.com/gofiber/fiber/v2"
)

// MeHandler serves the authenticated actor's own identity.
type MeHandler struct{}

// NewMeHandler constructs handler.
func NewMeHandler() *MeHandler {
	return &MeHandler{}
}

// Me handles GET /me and GET /portal/me.
func (h *MeHandler) Me(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	return data(c, fiber.StatusOK, identity)
}
