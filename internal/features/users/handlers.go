package users

import (
	"github.com/gofiber/fiber/v2"

	"stakehub/internal/ledger"
	"stakehub/internal/web"
)

// Handler serves registration, login and user administration.
type Handler struct {
	service *Service
}

// NewHandler creates the handler over the service.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Register mounts the routes on the API router.
func (h *Handler) Register(api fiber.Router, g web.Guards) {
	auth := api.Group("/auth")
	auth.Post("/register", h.register)
	auth.Post("/login", h.login)

	api.Get("/me", g.Auth, h.me)

	admin := api.Group("/admin/users", g.Auth, g.Admin)
	admin.Get("/", h.list)
	admin.Get("/:id", h.get)
	admin.Post("/:id/status", h.status)
}

// register handles POST /auth/register.
func (h *Handler) register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := web.Bind(c, &req); err != nil {
		return web.WriteErr(c, err)
	}
	p, err := h.service.Register(web.Context(c), req)
	if err != nil {
		return web.WriteErr(c, err)
	}
	return web.WriteSuccess(c, fiber.StatusCreated, "Registration successful", p)
}

// login handles POST /auth/login.
func (h *Handler) login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := web.Bind(c, &req); err != nil {
		return web.WriteErr(c, err)
	}
	tok, err := h.service.Login(web.Context(c), req)
	if err != nil {
		return web.WriteErr(c, err)
	}
	return web.WriteSuccess(c, fiber.StatusOK, "Login successful", tok)
}

// me handles GET /me.
func (h *Handler) me(c *fiber.Ctx) error {
	p, err := h.service.Profile(web.Context(c), web.UserID(c))
	if err != nil {
		return web.WriteErr(c, err)
	}
	return web.WriteSuccess(c, fiber.StatusOK, "Profile", p)
}

// list handles GET /admin/users.
func (h *Handler) list(c *fiber.Ctx) error {
	limit, offset := web.Page(c)
	out, err := h.service.List(web.Context(c), ledger.ListFilter{Limit: limit, Offset: offset})
	if err != nil {
		return web.WriteErr(c, err)
	}
	return web.WriteSuccess(c, fiber.StatusOK, "Users", out)
}

// get handles GET /admin/users/:id.
func (h *Handler) get(c *fiber.Ctx) error {
	id, err := web.ParamID(c, "id")
	if err != nil {
		return web.WriteErr(c, err)
	}
	p, err := h.service.Profile(web.Context(c), id)
	if err != nil {
		return web.WriteErr(c, err)
	}
	return web.WriteSuccess(c, fiber.StatusOK, "User", p)
}

// status handles POST /admin/users/:id/status.
func (h *Handler) status(c *fiber.Ctx) error {
	id, err := web.ParamID(c, "id")
	if err != nil {
		return web.WriteErr(c, err)
	}
	var req StatusRequest
	if err := web.Bind(c, &req); err != nil {
		return web.WriteErr(c, err)
	}
	if err := h.service.SetActive(web.Context(c), web.UserID(c), id, *req.Active); err != nil {
		return web.WriteErr(c, err)
	}
	msg := "User deactivated"
	if *req.Active {
		msg = "User activated"
	}
	return web.WriteSuccess(c, fiber.StatusOK, msg, nil)
}
