package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/linkgrove/linkgrove/internal/payment"
)

// RegisterPaymentRoutes wires the payment handshake callback endpoints.
func RegisterPaymentRoutes(r fiber.Router, h *payment.Handler) {
	group := r.Group("/payments")
	group.Post("/approve", h.Approve)
	group.Post("/complete", h.Complete)
	group.Post("/cancel", h.Cancel)
	group.Post("/error", h.Error)
}
