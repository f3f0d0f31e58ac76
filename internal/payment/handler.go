package payment

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/linkgrove/linkgrove/internal/platform"
)

var validate = validator.New()

// Handler exposes the handshake phase callbacks over HTTP. The browser SDK
// invokes these after the wallet signals each phase.
type Handler struct {
	orch *Orchestrator
}

// NewHandler constructs a payment handler.
func NewHandler(orch *Orchestrator) *Handler {
	return &Handler{orch: orch}
}

type approveRequest struct {
	PaymentID string `json:"paymentId" validate:"required"`
}

type completeRequest struct {
	PaymentID string `json:"paymentId" validate:"required"`
	TxID      string `json:"txid" validate:"required"`
}

type cancelRequest struct {
	PaymentID string `json:"paymentId"`
}

type errorRequest struct {
	PaymentID string `json:"paymentId"`
	Message   string `json:"message"`
}

// Approve handles the phase-2 callback.
func (h *Handler) Approve(c *fiber.Ctx) error {
	var req approveRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}
	uid, _ := c.Locals("user_id").(string)

	if err := h.orch.HandleApproval(c.UserContext(), uid, req.PaymentID); err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"paymentId": req.PaymentID, "status": "approved"})
}

// Complete handles the phase-3 callback.
func (h *Handler) Complete(c *fiber.Ctx) error {
	var req completeRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}
	uid, _ := c.Locals("user_id").(string)

	if err := h.orch.HandleCompletion(c.UserContext(), uid, req.PaymentID, req.TxID); err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"paymentId": req.PaymentID, "txid": req.TxID, "status": "settled"})
}

// Cancel handles a user-abandoned handshake.
func (h *Handler) Cancel(c *fiber.Ctx) error {
	var req cancelRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}
	uid, _ := c.Locals("user_id").(string)

	if err := h.orch.HandleCancel(c.UserContext(), uid, req.PaymentID); err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"paymentId": req.PaymentID, "status": "cancelled"})
}

// Error records a client-reported handshake failure.
func (h *Handler) Error(c *fiber.Ctx) error {
	var req errorRequest
	if err := parseAndValidate(c, &req); err != nil {
		return err
	}
	uid, _ := c.Locals("user_id").(string)

	h.orch.HandleError(c.UserContext(), uid, req.PaymentID, errors.New(req.Message))
	return c.Status(http.StatusOK).JSON(fiber.Map{"paymentId": req.PaymentID, "status": "failed"})
}

func parseAndValidate(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func mapError(err error) error {
	var apiErr *platform.APIError
	switch {
	case errors.Is(err, ErrNoIntent):
		return fiber.NewError(http.StatusNotFound, "no payment in flight")
	case errors.Is(err, ErrStaleCallback):
		return fiber.NewError(http.StatusConflict, "stale payment callback")
	case errors.Is(err, ErrAlreadySettled):
		return fiber.NewError(http.StatusConflict, "payment already settled")
	case errors.As(err, &apiErr):
		return fiber.NewError(http.StatusBadGateway, apiErr.Message)
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
