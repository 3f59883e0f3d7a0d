package settings

import (
	"github.com/gofiber/fiber/v2"

	"stakehub/internal/web"
)

// Handler exposes settings over HTTP.
type Handler struct {
	service *Service
}

// NewHandler creates the handler over the service.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Register mounts the routes on the API router.
func (h *Handler) Register(api fiber.Router, g web.Guards) {
	api.Get("/settings", h.public)

	admin := api.Group("/admin/settings", g.Auth, g.Admin)
	admin.Get("/", h.list)
	admin.Put("/:key", h.update)
}

// public handles GET /settings.
func (h *Handler) public(c *fiber.Ctx) error {
	return web.WriteSuccess(c, fiber.StatusOK, "Settings", h.service.Public())
}

// list handles GET /admin/settings.
func (h *Handler) list(c *fiber.Ctx) error {
	return web.WriteSuccess(c, fiber.StatusOK, "Settings", h.service.List())
}

// update handles PUT /admin/settings/:key.
func (h *Handler) update(c *fiber.Ctx) error {
	var req UpdateRequest
	if err := web.Bind(c, &req); err != nil {
		return web.WriteErr(c, err)
	}
	entry, err := h.service.Update(web.Context(c), web.UserID(c), c.Params("key"), req.Value)
	if err != nil {
		return web.WriteErr(c, err)
	}
	return web.WriteSuccess(c, fiber.StatusOK, "Setting updated", entry)
}
