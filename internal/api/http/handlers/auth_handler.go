package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/event-admin/internal/api/dto"
	"github.com/spec-kit/event-admin/internal/auth"
	"github.com/spec-kit/event-admin/internal/service"
)

// AuthHandler exposes login, registration and session endpoints.
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

type loginFunc func(ctx context.Context, email, password string) (*service.Session, error)

func (h *AuthHandler) login(c *fiber.Ctx, fn loginFunc) error {
	var req dto.LoginRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	session, err := fn(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return data(c, fiber.StatusOK, sessionResponse(session))
}

// StaffLogin handles POST /auth/staff/login.
func (h *AuthHandler) StaffLogin(c *fiber.Ctx) error {
	return h.login(c, h.authService.LoginStaff)
}

// MinisterLogin handles POST /auth/ministers/login.
func (h *AuthHandler) MinisterLogin(c *fiber.Ctx) error {
	return h.login(c, h.authService.LoginMinister)
}

// GuestLogin handles POST /auth/guests/login.
func (h *AuthHandler) GuestLogin(c *fiber.Ctx) error {
	return h.login(c, h.authService.LoginGuest)
}

// GuestRegister handles POST /auth/guests/register.
func (h *AuthHandler) GuestRegister(c *fiber.Ctx) error {
	var req dto.GuestRegisterRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	session, err := h.authService.RegisterGuest(c.UserContext(), req.Name, req.Email, req.Password)
	if err != nil {
		return err
	}
	return data(c, fiber.StatusCreated, sessionResponse(session))
}

// Refresh handles POST /auth/refresh.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req dto.RefreshRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	session, err := h.authService.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return err
	}
	return data(c, fiber.StatusOK, sessionResponse(session))
}

// Logout handles POST /auth/logout. It always succeeds.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	var req dto.LogoutRequest
	// A missing or malformed body only means there is no refresh token to revoke.
	_ = c.BodyParser(&req)
	accessToken, _ := auth.BearerToken(c.Get(fiber.HeaderAuthorization))

	h.authService.Logout(c.UserContext(), accessToken, req.RefreshToken)
	return data(c, fiber.StatusOK, fiber.Map{"status": "logged_out"})
}

// LogoutAll handles POST /auth/logout/all.
func (h *AuthHandler) LogoutAll(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	h.authService.LogoutAll(c.UserContext(), identity)
	return data(c, fiber.StatusOK, fiber.Map{"status": "sessions_revoked"})
}

// ChangePassword handles POST /auth/password/change.
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	var req dto.PasswordChangeRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.authService.ChangePassword(c.UserContext(), identity, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return data(c, fiber.StatusOK, fiber.Map{"status": "password_changed"})
}

func sessionResponse(s *service.Session) dto.SessionResponse {
	return dto.SessionResponse{Actor: s.Identity, Auth: dto.NewTokenResponse(s.Tokens)}
}
