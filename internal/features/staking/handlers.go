package staking

import (
	"github.com/gofiber/fiber/v2"

	"stakehub/internal/common"
	"stakehub/internal/ledger"
	"stakehub/internal/web"
)

// Handler serves the stake endpoints.
type Handler struct {
	service *Service
}

// NewHandler creates the handler over the service.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Register mounts the routes on the API router.
func (h *Handler) Register(api fiber.Router, g web.Guards) {
	stakes := api.Group("/stakes", g.Auth)
	stakes.Post("/", h.open)
	stakes.Get("/", h.mine)
	stakes.Get("/:id", h.get)
	stakes.Post("/:id/withdraw", h.withdraw)
	stakes.Post("/:id/cancel", h.cancel)

	api.Get("/admin/stakes", g.Auth, g.Admin, h.list)
}

// open handles POST /stakes.
func (h *Handler) open(c *fiber.Ctx) error {
	var req OpenRequest
	if err := web.Bind(c, &req); err != nil {
		return web.WriteErr(c, err)
	}
	res, err := h.service.Open(web.Context(c), web.UserID(c), req)
	if err != nil {
		return web.WriteErr(c, err)
	}
	return web.WriteSuccess(c, fiber.StatusCreated, "Stake created", res)
}

// mine handles GET /stakes.
func (h *Handler) mine(c *fiber.Ctx) error {
	limit, offset := web.Page(c)
	out, err := h.service.List(web.Context(c), ledger.ListFilter{
		UserID: web.UserID(c),
		Status: c.Query("status"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return web.WriteErr(c, err)
	}
	return web.WriteSuccess(c, fiber.StatusOK, "Stakes", out)
}

// get handles GET /stakes/:id.
func (h *Handler) get(c *fiber.Ctx) error {
	id, err := web.ParamID(c, "id")
	if err != nil {
		return web.WriteErr(c, err)
	}
	v, err := h.service.Get(web.Context(c), web.UserID(c), id)
	if err != nil {
		return web.WriteErr(c, err)
	}
	return web.WriteSuccess(c, fiber.StatusOK, "Stake", v)
}

// withdraw handles POST /stakes/:id/withdraw.
func (h *Handler) withdraw(c *fiber.Ctx) error {
	id, err := web.ParamID(c, "id")
	if err != nil {
		return web.WriteErr(c, err)
	}
	res, err := h.service.WithdrawMatured(web.Context(c), web.UserID(c), id)
	if err != nil {
		return web.WriteErr(c, err)
	}
	return web.WriteSuccess(c, fiber.StatusOK, "Stake withdrawn", res)
}

// cancel handles POST /stakes/:id/cancel.
func (h *Handler) cancel(c *fiber.Ctx) error {
	id, err := web.ParamID(c, "id")
	if err != nil {
		return web.WriteErr(c, err)
	}
	res, err := h.service.Cancel(web.Context(c), web.UserID(c), id)
	if err != nil {
		return web.WriteErr(c, err)
	}
	return web.WriteSuccess(c, fiber.StatusOK, "Stake cancelled, principal returned", res)
}

// list handles GET /admin/stakes.
func (h *Handler) list(c *fiber.Ctx) error {
	limit, offset := web.Page(c)
	status := c.Query("status")
	switch status {
	case "", ledger.StakeActive, ledger.StakeCompleted, ledger.StakeCancelled:
	default:
		return web.WriteErr(c, common.Validation("unknown stake status"))
	}
	out, err := h.service.List(web.Context(c), ledger.ListFilter{
		UserID: int64(c.QueryInt("user_id", 0)),
		Status: status,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return web.WriteErr(c, err)
	}
	return web.WriteSuccess(c, fiber.StatusOK, "Stakes", out)
}
