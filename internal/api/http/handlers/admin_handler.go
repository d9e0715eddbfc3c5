package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/event-admin/internal/api/dto"
	"github.com/spec-kit/event-admin/internal/domain"
	"github.com/spec-kit/event-admin/internal/service"
)

// AdminHandler exposes staff and minister management.
type AdminHandler struct {
	staffService *service.StaffService
}

// NewAdminHandler constructs handler.
func NewAdminHandler(staffService *service.StaffService) *AdminHandler {
	return &AdminHandler{staffService: staffService}
}

// CreateStaff handles POST /admin/staff.
func (h *AdminHandler) CreateStaff(c *fiber.Ctx) error {
	var req dto.CreateStaffRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	staff, err := h.staffService.CreateStaffMember(c.UserContext(), req.Name, req.Email, req.Password, domain.Role(req.Role))
	if err != nil {
		return err
	}
	return data(c, fiber.StatusCreated, dto.NewStaffResponse(staff))
}

// ListStaff handles GET /admin/staff.
func (h *AdminHandler) ListStaff(c *fiber.Ctx) error {
	filters := service.StaffListFilters{
		Limit:  queryInt(c, "limit", 50),
		Offset: queryInt(c, "offset", 0),
	}
	if role := c.Query("role"); role != "" {
		r := domain.Role(role)
		filters.Role = &r
	}
	filters.Active = queryBool(c, "active")

	list, err := h.staffService.ListStaffMembers(c.UserContext(), filters)
	if err != nil {
		return err
	}
	out := make([]dto.StaffResponse, 0, len(list))
	for i := range list {
		out = append(out, dto.NewStaffResponse(&list[i]))
	}
	return data(c, fiber.StatusOK, out)
}

// SetStaffActive handles PATCH /admin/staff/:id/active.
func (h *AdminHandler) SetStaffActive(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	var req dto.SetActiveRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	staff, err := h.staffService.SetStaffActive(c.UserContext(), identity, c.Params("id"), *req.Active)
	if err != nil {
		return err
	}
	return data(c, fiber.StatusOK, dto.NewStaffResponse(staff))
}

// CreateMinister handles POST /admin/ministers.
func (h *AdminHandler) CreateMinister(c *fiber.Ctx) error {
	var req dto.CreateMinisterRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	minister, err := h.staffService.CreateMinister(c.UserContext(), req.Name, req.Email, req.Password)
	if err != nil {
		return err
	}
	return data(c, fiber.StatusCreated, dto.NewMinisterResponse(minister))
}

// ListMinisters handles GET /admin/ministers.
func (h *AdminHandler) ListMinisters(c *fiber.Ctx) error {
	list, err := h.staffService.ListMinisters(c.UserContext(), queryBool(c, "active"), queryInt(c, "limit", 50), queryInt(c, "offset", 0))
	if err != nil {
		return err
	}
	out := make([]dto.MinisterResponse, 0, len(list))
	for i := range list {
		out = append(out, dto.NewMinisterResponse(&list[i]))
	}
	return data(c, fiber.StatusOK, out)
}

// GetMinister handles GET /admin/ministers/:id.
func (h *AdminHandler) GetMinister(c *fiber.Ctx) error {
	minister, err := h.staffService.GetMinister(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return data(c, fiber.StatusOK, dto.NewMinisterResponse(minister))
}

// SetMinisterActive handles PATCH /admin/ministers/:id/active.
func (h *AdminHandler) SetMinisterActive(c *fiber.Ctx) error {
	var req dto.SetActiveRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	minister, err := h.staffService.SetMinisterActive(c.UserContext(), c.Params("id"), *req.Active)
	if err != nil {
		return err
	}
	return data(c, fiber.StatusOK, dto.NewMinisterResponse(minister))
}

func queryInt(c *fiber.Ctx, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func queryBool(c *fiber.Ctx, key string) *bool {
	raw := c.Query(key)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &v
}
