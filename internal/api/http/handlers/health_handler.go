package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/event-admin/internal/revocation"
	apperrors "github.com/spec-kit/event-admin/pkg/util/errorutil"
)

// Pinger checks a dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RevocationStatus reports the revocation store state.
type RevocationStatus interface {
	State() revocation.State
}

// HealthHandler responds to liveness and readiness probes.
type HealthHandler struct {
	serviceName string
	version     string
	postgres    Pinger
	revocation  RevocationStatus
}

// NewHealthHandler returns a new handler instance.
func NewHealthHandler(serviceName, version string, postgres Pinger, revocation RevocationStatus) *HealthHandler {
	return &HealthHandler{serviceName: serviceName, version: version, postgres: postgres, revocation: revocation}
}

// Live reports service liveness.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "alive",
		"service": h.serviceName,
		"version": h.version,
	})
}

// Ready reports readiness. Only the database gates readiness: without the
// revocation store the service keeps serving under its failure policy.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	depStatus := fiber.Map{}
	ready := true

	if err := h.postgres.Ping(ctx); err != nil {
		depStatus["postgres"] = err.Error()
		ready = false
	} else {
		depStatus["postgres"] = "ok"
	}

	if h.revocation != nil {
		depStatus["revocation_store"] = h.revocation.State().String()
	}

	if ready {
		return c.JSON(fiber.Map{
			"status":       "ready",
			"dependencies": depStatus,
		})
	}
	return apperrors.NewServiceUnavailable("one or more dependencies unavailable", depStatus)
}
