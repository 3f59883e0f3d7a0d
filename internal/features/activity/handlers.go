package activity

import (
	"github.com/gofiber/fiber/v2"

	"stakehub/internal/ledger"
	"stakehub/internal/web"
)

// Handler serves the activity log.
type Handler struct {
	service *Service
}

// NewHandler creates the handler over the service.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Register mounts the routes on the API router.
func (h *Handler) Register(api fiber.Router, g web.Guards) {
	api.Get("/activity", g.Auth, h.mine)
	api.Get("/admin/activity", g.Auth, g.Admin, h.list)
}

// mine handles GET /activity.
func (h *Handler) mine(c *fiber.Ctx) error {
	limit, offset := web.Page(c)
	out, err := h.service.List(web.Context(c), ledger.ListFilter{
		UserID: web.UserID(c),
		Action: c.Query("action"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return web.WriteErr(c, err)
	}
	return web.WriteSuccess(c, fiber.StatusOK, "Activity", out)
}

// list handles GET /admin/activity.
func (h *Handler) list(c *fiber.Ctx) error {
	limit, offset := web.Page(c)
	out, err := h.service.List(web.Context(c), ledger.ListFilter{
		UserID: int64(c.QueryInt("user_id", 0)),
		Action: c.Query("action"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return web.WriteErr(c, err)
	}
	return web.WriteSuccess(c, fiber.StatusOK, "Activity", out)
}
