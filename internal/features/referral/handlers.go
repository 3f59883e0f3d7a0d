package referral

import (
	"github.com/gofiber/fiber/v2"

	"stakehub/internal/web"
)

// Handler exposes the referral overview.
type Handler struct {
	service *Service
}

// NewHandler creates the handler over the service.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Register mounts the routes on the API router.
func (h *Handler) Register(api fiber.Router, g web.Guards) {
	api.Get("/referrals", g.Auth, h.overview)
}

// overview handles GET /referrals.
func (h *Handler) overview(c *fiber.Ctx) error {
	out, err := h.service.Overview(web.Context(c), web.UserID(c))
	if err != nil {
		return web.WriteErr(c, err)
	}
	return web.WriteSuccess(c, fiber.StatusOK, "Referral program", out)
}
