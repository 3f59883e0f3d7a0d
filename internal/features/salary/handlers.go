package salary

import (
	"github.com/gofiber/fiber/v2"

	"stakehub/internal/common"
	"stakehub/internal/ledger"
	"stakehub/internal/web"
)

// Handler serves salary progress and requests.
type Handler struct {
	service *Service
}

// NewHandler creates the handler over the service.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Register mounts the routes on the API router.
func (h *Handler) Register(api fiber.Router, g web.Guards) {
	api.Get("/salary/tiers", h.tiers)

	s := api.Group("/salary", g.Auth)
	s.Get("/", h.progress)
	s.Put("/wallet", h.wallet)
	s.Post("/requests", h.request)
	s.Get("/requests", h.mine)

	admin := api.Group("/admin/salary", g.Auth, g.Admin)
	admin.Get("/requests", h.list)
	admin.Post("/requests/:id/approve", h.approve)
	admin.Post("/requests/:id/reject", h.reject)
}

// tiers handles GET /salary/tiers.
func (h *Handler) tiers(c *fiber.Ctx) error {
	return web.WriteSuccess(c, fiber.StatusOK, "Salary tiers", Tiers)
}

// progress handles GET /salary.
func (h *Handler) progress(c *fiber.Ctx) error {
	p, err := h.service.Progress(web.Context(c), web.UserID(c))
	if err != nil {
		return web.WriteErr(c, err)
	}
	return web.WriteSuccess(c, fiber.StatusOK, "Salary progress", p)
}

// wallet handles PUT /salary/wallet.
func (h *Handler) wallet(c *fiber.Ctx) error {
	var req WalletRequest
	if err := web.Bind(c, &req); err != nil {
		return web.WriteErr(c, err)
	}
	if err := h.service.SetWallet(web.Context(c), web.UserID(c), req.Address); err != nil {
		return web.WriteErr(c, err)
	}
	return web.WriteSuccess(c, fiber.StatusOK, "Salary wallet saved", nil)
}

// request handles POST /salary/requests.
func (h *Handler) request(c *fiber.Ctx) error {
	v, err := h.service.Request(web.Context(c), web.UserID(c))
	if err != nil {
		return web.WriteErr(c, err)
	}
	return web.WriteSuccess(c, fiber.StatusCreated, "Salary request submitted", v)
}

// mine handles GET /salary/requests.
func (h *Handler) mine(c *fiber.Ctx) error {
	limit, offset := web.Page(c)
	out, err := h.service.List(web.Context(c), ledger.ListFilter{UserID: web.UserID(c), Limit: limit, Offset: offset})
	if err != nil {
		return web.WriteErr(c, err)
	}
	return web.WriteSuccess(c, fiber.StatusOK, "Salary requests", out)
}

// list handles GET /admin/salary/requests.
func (h *Handler) list(c *fiber.Ctx) error {
	limit, offset := web.Page(c)
	status := c.Query("status")
	switch status {
	case "", ledger.SalaryPending, ledger.SalaryApproved, ledger.SalaryRejected:
	default:
		return web.WriteErr(c, common.Validation("unknown salary request status"))
	}
	out, err := h.service.List(web.Context(c), ledger.ListFilter{Status: status, Limit: limit, Offset: offset})
	if err != nil {
		return web.WriteErr(c, err)
	}
	return web.WriteSuccess(c, fiber.StatusOK, "Salary requests", out)
}

// approve handles POST /admin/salary/requests/:id/approve.
func (h *Handler) approve(c *fiber.Ctx) error {
	id, err := web.ParamID(c, "id")
	if err != nil {
		return web.WriteErr(c, err)
	}
	var req ApproveRequest
	if len(c.Body()) > 0 {
		if err := web.Bind(c, &req); err != nil {
			return web.WriteErr(c, err)
		}
	}
	v, err := h.service.Approve(web.Context(c), web.UserID(c), id, req.TxHash, req.Notes)
	if err != nil {
		return web.WriteErr(c, err)
	}
	return web.WriteSuccess(c, fiber.StatusOK, "Salary request approved", v)
}

// reject handles POST /admin/salary/requests/:id/reject.
func (h *Handler) reject(c *fiber.Ctx) error {
	id, err := web.ParamID(c, "id")
	if err != nil {
		return web.WriteErr(c, err)
	}
	var req RejectRequest
	if len(c.Body()) > 0 {
		if err := web.Bind(c, &req); err != nil {
			return web.WriteErr(c, err)
		}
	}
	v, err := h.service.Reject(web.Context(c), web.UserID(c), id, req.Notes)
	if err != nil {
		return web.WriteErr(c, err)
	}
	return web.WriteSuccess(c, fiber.StatusOK, "Salary request rejected", v)
}
