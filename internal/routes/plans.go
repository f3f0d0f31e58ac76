package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/linkgrove/linkgrove/internal/workflow"
)

// RegisterPlanRoutes wires the plan catalogue and selection endpoints. The
// catalogue is public; selecting a plan requires a session.
func RegisterPlanRoutes(public fiber.Router, protected fiber.Router, h *workflow.Handler) {
	public.Get("/plans", h.ListPlans)
	protected.Post("/plans/select", h.SelectPlan)
}
