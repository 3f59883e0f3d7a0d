package deposit

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"stakehub/internal/common"
	"stakehub/internal/ledger"
	"stakehub/internal/web"
)

// Handler serves deposit submission and review.
type Handler struct {
	service *Service
}

// NewHandler creates the handler over the service.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Register mounts the routes on the API router.
func (h *Handler) Register(api fiber.Router, g web.Guards) {
	api.Post("/deposits", g.Auth, h.submit)
	api.Get("/deposits", g.Auth, h.mine)

	admin := api.Group("/admin/deposits", g.Auth, g.Admin)
	admin.Get("/", h.list)
	admin.Post("/:id/approve", h.approve)
	admin.Post("/:id/reject", h.reject)
}

// submit handles POST /deposits.
func (h *Handler) submit(c *fiber.Ctx) error {
	var req SubmitRequest
	if err := web.Bind(c, &req); err != nil {
		return web.WriteErr(c, err)
	}

	res, err := h.service.Submit(web.Context(c), web.UserID(c), req)
	if err != nil {
		// a rejected verdict still created a deposit row the user can see
		if res != nil && common.KindOf(err) == common.KindVerificationRejected {
			return c.Status(web.StatusOf(err)).JSON(web.Response{
				Success: false,
				Message: common.MessageOf(err),
				Data:    res,
				Error:   common.MessageOf(err),
				Reason:  common.ReasonOf(err),
			})
		}
		return web.WriteErr(c, err)
	}
	return web.WriteSuccess(c, fiber.StatusCreated, "Deposit verified and credited", res)
}

// mine handles GET /deposits.
func (h *Handler) mine(c *fiber.Ctx) error {
	limit, offset := web.Page(c)
	out, err := h.service.List(web.Context(c), ledger.ListFilter{
		UserID: web.UserID(c),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return web.WriteErr(c, err)
	}
	return web.WriteSuccess(c, fiber.StatusOK, "Deposits", out)
}

// list handles GET /admin/deposits.
func (h *Handler) list(c *fiber.Ctx) error {
	limit, offset := web.Page(c)
	status := c.Query("status")
	switch status {
	case "", ledger.DepositPending, ledger.DepositVerified, ledger.DepositApproved, ledger.DepositRejected:
	default:
		return web.WriteErr(c, common.Validation("unknown deposit status"))
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
	return web.WriteSuccess(c, fiber.StatusOK, "Deposits", out)
}

// approve handles POST /admin/deposits/:id/approve.
func (h *Handler) approve(c *fiber.Ctx) error {
	return h.review(c, h.service.Approve, "Deposit approved")
}

// reject handles POST /admin/deposits/:id/reject.
func (h *Handler) reject(c *fiber.Ctx) error {
	return h.review(c, h.service.Reject, "Deposit rejected")
}

func (h *Handler) review(c *fiber.Ctx, fn func(ctx context.Context, adminID, depositID int64, notes string) (*View, error), msg string) error {
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
	out, err := fn(web.Context(c), web.UserID(c), id, req.Notes)
	if err != nil {
		return web.WriteErr(c, err)
	}
	return web.WriteSuccess(c, fiber.StatusOK, msg, out)
}
