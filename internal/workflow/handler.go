package workflow

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/linkgrove/linkgrove/internal/payment"
	"github.com/linkgrove/linkgrove/internal/plans"
	"github.com/linkgrove/linkgrove/internal/profile"
)

var validate = validator.New()

// Handler exposes the plan catalogue and the plan-selection resumption point
// over HTTP.
type Handler struct {
	controller *Controller
}

func NewHandler(controller *Controller) *Handler {
	return &Handler{controller: controller}
}

// ListPlans returns the static plan catalogue.
func (h *Handler) ListPlans(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"plans": plans.All()})
}

type selectPlanRequest struct {
	PlanID string `json:"plan_id" validate:"required"`
}

// SelectPlan resumes the authenticated user's workflow with a plan choice.
func (h *Handler) SelectPlan(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	if uid == "" {
		return fiber.NewError(http.StatusUnauthorized, "missing user context")
	}

	var req selectPlanRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid JSON body")
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "plan_id is required")
	}

	outcome, err := h.controller.SelectPlan(c.UserContext(), uid, req.PlanID)
	if err != nil {
		switch {
		case errors.Is(err, plans.ErrUnknownPlan):
			return fiber.NewError(http.StatusNotFound, "unknown plan")
		case errors.Is(err, profile.ErrNotFound):
			return fiber.NewError(http.StatusNotFound, "profile not found")
		case errors.Is(err, payment.ErrHandshakeInFlight):
			return fiber.NewError(http.StatusConflict, "a payment is already in flight")
		default:
			msg := "plan selection failed"
			var stepErr *StepError
			if errors.As(err, &stepErr) {
				msg += " (step: " + stepErr.Step + ")"
			}
			return fiber.NewError(http.StatusInternalServerError, msg)
		}
	}

	if outcome.Granted {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"plan":    outcome.Plan,
			"granted": true,
			"grant":   outcome.Grant,
		})
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{
		"plan":             outcome.Plan,
		"payment_required": true,
		"amount_micros":    outcome.AmountMicros,
		"memo":             outcome.Memo,
	})
}
