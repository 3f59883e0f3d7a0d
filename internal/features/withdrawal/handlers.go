package withdrawal

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"stakehub/internal/common"
	"stakehub/internal/ledger"
	"stakehub/internal/web"
)

// Handler serves withdrawal requests and their review.
type Handler struct {
	service *Service
}

// NewHandler creates the handler over the service.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Register mounts the routes on the API router.
func (h *Handler) Register(api fiber.Router, g web.Guards) {
	w := api.Group("/withdrawals", g.Auth)
	w.Post("/", h.submit)
	w.Get("/", h.mine)
	w.Get("/quote", h.quote)

	admin := api.Group("/admin/withdrawals", g.Auth, g.Admin)
	admin.Get("/", h.list)
	admin.Post("/:id/approve", h.approve)
	admin.Post("/:id/complete", h.complete)
	admin.Post("/:id/reject", h.reject)
}

// submit handles POST /withdrawals.
func (h *Handler) submit(c *fiber.Ctx) error {
	var req SubmitRequest
	if err := web.Bind(c, &req); err != nil {
		return web.WriteErr(c, err)
	}
	res, err := h.service.Submit(web.Context(c), web.UserID(c), req)
	if err != nil {
		return web.WriteErr(c, err)
	}
	return web.WriteSuccess(c, fiber.StatusCreated, "Withdrawal request submitted", res)
}

// quote handles GET /withdrawals/quote.
func (h *Handler) quote(c *fiber.Ctx) error {
	amount, err := decimal.NewFromString(c.Query("amount"))
	if err != nil {
		return web.WriteErr(c, common.ErrInvalidAmount)
	}
	q, err := h.service.Quote(web.Context(c), web.UserID(c), amount)
	if err != nil {
		return web.WriteErr(c, err)
	}
	return web.WriteSuccess(c, fiber.StatusOK, "Withdrawal quote", q)
}

// mine handles GET /withdrawals.
func (h *Handler) mine(c *fiber.Ctx) error {
	limit, offset := web.Page(c)
	out, err := h.service.List(web.Context(c), ledger.ListFilter{UserID: web.UserID(c), Limit: limit, Offset: offset})
	if err != nil {
		return web.WriteErr(c, err)
	}
	return web.WriteSuccess(c, fiber.StatusOK, "Withdrawals", out)
}

// list handles GET /admin/withdrawals.
func (h *Handler) list(c *fiber.Ctx) error {
	limit, offset := web.Page(c)
	status := c.Query("status")
	switch status {
	case "", ledger.WithdrawalPending, ledger.WithdrawalApproved, ledger.WithdrawalCompleted, ledger.WithdrawalRejected:
	default:
		return web.WriteErr(c, common.Validation("unknown withdrawal status"))
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
	return web.WriteSuccess(c, fiber.StatusOK, "Withdrawals", out)
}

// approve handles POST /admin/withdrawals/:id/approve.
func (h *Handler) approve(c *fiber.Ctx) error {
	id, err := web.ParamID(c, "id")
	if err != nil {
		return web.WriteErr(c, err)
	}
	var req ReviewRequest
	if len(c.Body()) > 0 {
		if err := web.Bind(c, &req); err != nil {
			return web.WriteErr(c, err)
		}
	}
	v, err := h.service.Approve(web.Context(c), web.UserID(c), id, req.Notes)
	if err != nil {
		return web.WriteErr(c, err)
	}
	return web.WriteSuccess(c, fiber.StatusOK, "Withdrawal approved", v)
}

// complete handles POST /admin/withdrawals/:id/complete.
func (h *Handler) complete(c *fiber.Ctx) error {
	id, err := web.ParamID(c, "id")
	if err != nil {
		return web.WriteErr(c, err)
	}
	var req CompleteRequest
	if err := web.Bind(c, &req); err != nil {
		return web.WriteErr(c, err)
	}
	v, err := h.service.Complete(web.Context(c), web.UserID(c), id, req.TxHash, req.Notes)
	if err != nil {
		return web.WriteErr(c, err)
	}
	return web.WriteSuccess(c, fiber.StatusOK, "Withdrawal completed", v)
}

// reject handles POST /admin/withdrawals/:id/reject.
func (h *Handler) reject(c *fiber.Ctx) error {
	id, err := web.ParamID(c, "id")
	if err != nil {
		return web.WriteErr(c, err)
	}
	var req ReviewRequest
	if len(c.Body()) > 0 {
		if err := web.Bind(c, &req); err != nil {
			return web.WriteErr(c, err)
		}
	}
	v, err := h.service.Reject(web.Context(c), web.UserID(c), id, req.Notes)
	if err != nil {
		return web.WriteErr(c, err)
	}
	return web.WriteSuccess(c, fiber.StatusOK, "Withdrawal rejected, funds returned", v)
}
