package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/linkgrove/linkgrove/internal/auth"
)

// RegisterAuthRoutes wires the wallet authentication endpoints.
func RegisterAuthRoutes(r fiber.Router, h *auth.Handler, rateLimiter fiber.Handler) {
	group := r.Group("/auth")
	if rateLimiter != nil {
		group.Post("/wallet", rateLimiter, h.WalletLogin)
	} else {
		group.Post("/wallet", h.WalletLogin)
	}
	group.Post("/refresh", h.Refresh)
}
