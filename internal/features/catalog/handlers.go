package catalog

import (
	"github.com/gofiber/fiber/v2"

	"stakehub/internal/web"
)

// Handler serves coins, plans and payment addresses.
type Handler struct {
	service *Service
}

// NewHandler creates the handler over the service.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Register mounts the routes on the API router.
func (h *Handler) Register(api fiber.Router, g web.Guards) {
	api.Get("/coins", h.coins)
	api.Get("/coins/:id/plans", h.plans)
	api.Get("/deposit-address/:network", g.Auth, h.depositAddress)

	admin := api.Group("/admin", g.Auth, g.Admin)
	admin.Get("/coins", h.allCoins)
	admin.Post("/coins", h.createCoin)
	admin.Put("/coins/:id", h.updateCoin)
	admin.Post("/plans", h.createPlan)
	admin.Put("/plans/:id", h.updatePlan)
	admin.Get("/payment-addresses", h.addresses)
	admin.Put("/payment-addresses", h.setAddress)
}

// coins handles GET /coins.
func (h *Handler) coins(c *fiber.Ctx) error {
	out, err := h.service.Coins(web.Context(c), true)
	if err != nil {
		return web.WriteErr(c, err)
	}
	return web.WriteSuccess(c, fiber.StatusOK, "Coins", out)
}

// allCoins handles GET /admin/coins.
func (h *Handler) allCoins(c *fiber.Ctx) error {
	out, err := h.service.Coins(web.Context(c), false)
	if err != nil {
		return web.WriteErr(c, err)
	}
	return web.WriteSuccess(c, fiber.StatusOK, "Coins", out)
}

// plans handles GET /coins/:id/plans.
func (h *Handler) plans(c *fiber.Ctx) error {
	id, err := web.ParamID(c, "id")
	if err != nil {
		return web.WriteErr(c, err)
	}
	out, err := h.service.Plans(web.Context(c), id, true)
	if err != nil {
		return web.WriteErr(c, err)
	}
	return web.WriteSuccess(c, fiber.StatusOK, "Plans", out)
}

// depositAddress handles GET /deposit-address/:network.
func (h *Handler) depositAddress(c *fiber.Ctx) error {
	v, err := h.service.DepositAddress(web.Context(c), c.Params("network"))
	if err != nil {
		return web.WriteErr(c, err)
	}
	return web.WriteSuccess(c, fiber.StatusOK, "Deposit address", v)
}

// createCoin handles POST /admin/coins.
func (h *Handler) createCoin(c *fiber.Ctx) error {
	var req CoinRequest
	if err := web.Bind(c, &req); err != nil {
		return web.WriteErr(c, err)
	}
	v, err := h.service.CreateCoin(web.Context(c), web.UserID(c), req)
	if err != nil {
		return web.WriteErr(c, err)
	}
	return web.WriteSuccess(c, fiber.StatusCreated, "Coin created", v)
}

// updateCoin handles PUT /admin/coins/:id.
func (h *Handler) updateCoin(c *fiber.Ctx) error {
	id, err := web.ParamID(c, "id")
	if err != nil {
		return web.WriteErr(c, err)
	}
	var req CoinRequest
	if err := web.Bind(c, &req); err != nil {
		return web.WriteErr(c, err)
	}
	v, err := h.service.UpdateCoin(web.Context(c), web.UserID(c), id, req)
	if err != nil {
		return web.WriteErr(c, err)
	}
	return web.WriteSuccess(c, fiber.StatusOK, "Coin updated", v)
}

// createPlan handles POST /admin/plans.
func (h *Handler) createPlan(c *fiber.Ctx) error {
	var req PlanRequest
	if err := web.Bind(c, &req); err != nil {
		return web.WriteErr(c, err)
	}
	v, err := h.service.CreatePlan(web.Context(c), web.UserID(c), req)
	if err != nil {
		return web.WriteErr(c, err)
	}
	return web.WriteSuccess(c, fiber.StatusCreated, "Plan created", v)
}

// updatePlan handles PUT /admin/plans/:id.
func (h *Handler) updatePlan(c *fiber.Ctx) error {
	id, err := web.ParamID(c, "id")
	if err != nil {
		return web.WriteErr(c, err)
	}
	var req PlanRequest
	if err := web.Bind(c, &req); err != nil {
		return web.WriteErr(c, err)
	}
	v, err := h.service.UpdatePlan(web.Context(c), web.UserID(c), id, req)
	if err != nil {
		return web.WriteErr(c, err)
	}
	return web.WriteSuccess(c, fiber.StatusOK, "Plan updated", v)
}

// addresses handles GET /admin/payment-addresses.
func (h *Handler) addresses(c *fiber.Ctx) error {
	out, err := h.service.Addresses(web.Context(c))
	if err != nil {
		return web.WriteErr(c, err)
	}
	return web.WriteSuccess(c, fiber.StatusOK, "Payment addresses", out)
}

// setAddress handles PUT /admin/payment-addresses.
func (h *Handler) setAddress(c *fiber.Ctx) error {
	var req AddressRequest
	if err := web.Bind(c, &req); err != nil {
		return web.WriteErr(c, err)
	}
	v, err := h.service.SetPaymentAddress(web.Context(c), web.UserID(c), req)
	if err != nil {
		return web.WriteErr(c, err)
	}
	return web.WriteSuccess(c, fiber.StatusOK, "Payment address saved", v)
}
