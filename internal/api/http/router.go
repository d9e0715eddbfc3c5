package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/event-admin/internal/api/http/handlers"
	"github.com/spec-kit/event-admin/internal/auth"
	"github.com/spec-kit/event-admin/internal/domain"
	"github.com/spec-kit/event-admin/internal/observability"
)

// Guards bundles the authentication middleware for each route group.
type Guards struct {
	Staff  *auth.AuthMiddleware
	Any    *auth.AuthMiddleware
	Portal *auth.AuthMiddleware
}

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health  *handlers.HealthHandler
	Auth    *handlers.AuthHandler
	Admin   *handlers.AdminHandler
	Me      *handlers.MeHandler
	Guards  Guards
	Metrics *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	authGroup := app.Group("/auth", noStore)
	authGroup.Post("/staff/login", cfg.Auth.StaffLogin)
	authGroup.Post("/ministers/login", cfg.Auth.MinisterLogin)
	authGroup.Post("/guests/register", cfg.Auth.GuestRegister)
	authGroup.Post("/guests/login", cfg.Auth.GuestLogin)
	authGroup.Post("/refresh", cfg.Auth.Refresh)
	authGroup.Post("/logout", cfg.Auth.Logout)

	authGroup.Post("/logout/all", cfg.Guards.Any.Handle, cfg.Auth.LogoutAll)
	authGroup.Post("/password/change", cfg.Guards.Any.Handle, cfg.Auth.ChangePassword)

	app.Get("/me", cfg.Guards.Any.Handle, cfg.Me.Me)
	app.Get("/portal/me", cfg.Guards.Portal.Handle, cfg.Me.Me)

	admin := app.Group("/admin", cfg.Guards.Staff.Handle)
	admin.Post("/staff", auth.RequireRoles(domain.RoleSuperAdmin), cfg.Admin.CreateStaff)
	admin.Get("/staff", auth.RequireRoles(domain.RoleAdmin), cfg.Admin.ListStaff)
	admin.Patch("/staff/:id/active", auth.RequireRoles(domain.RoleSuperAdmin), cfg.Admin.SetStaffActive)

	admin.Post("/ministers", auth.RequireRoles(domain.RoleAdmin), cfg.Admin.CreateMinister)
	admin.Get("/ministers", auth.RequireRoles(domain.RoleViewer, domain.RoleEditor), cfg.Admin.ListMinisters)
	admin.Get("/ministers/:id", auth.RequireRoles(domain.RoleViewer, domain.RoleEditor), cfg.Admin.GetMinister)
	admin.Patch("/ministers/:id/active", auth.RequireRoles(domain.RoleAdmin), cfg.Admin.SetMinisterActive)
}
