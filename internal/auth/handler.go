package auth

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/linkgrove/linkgrove/internal/walletsdk"
	"github.com/linkgrove/linkgrove/internal/workflow"
)

var validate = validator.New()

// Handler exposes the wallet login and session endpoints.
type Handler struct {
	controller *workflow.Controller
	svc        *Service
}

// NewHandler constructs an auth handler.
func NewHandler(controller *workflow.Controller, svc *Service) *Handler {
	return &Handler{controller: controller, svc: svc}
}

type walletUserPayload struct {
	UID      string `json:"uid"`
	Username string `json:"username"`
}

type incompletePaymentPayload struct {
	PaymentID string            `json:"identifier"`
	TxID      string            `json:"txid"`
	Metadata  map[string]string `json:"metadata"`
}

type walletLoginRequest struct {
	AccessToken       string                    `json:"accessToken"`
	User              walletUserPayload         `json:"user"`
	WalletAddress     string                    `json:"walletAddress"`
	IncompletePayment *incompletePaymentPayload `json:"incompletePayment"`
	ResumeIncomplete  bool                      `json:"resumeIncomplete"`
}

type walletLoginResponse struct {
	UserID         string `json:"user_id"`
	Username       string `json:"username"`
	IsNewUser      bool   `json:"is_new_user"`
	SetupCompleted bool   `json:"setup_completed"`
	PlanID         string `json:"plan_id,omitempty"`
	AccessToken    string `json:"access_token"`
	RefreshToken   string `json:"refresh_token"`
	ExpiresIn      int64  `json:"expires_in"`
}

// WalletLogin replays the browser SDK's authentication through the workflow
// controller and issues session tokens on success.
func (h *Handler) WalletLogin(c *fiber.Ctx) error {
	var req walletLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	clientAuth := walletsdk.ClientAuth{
		AccessToken:   req.AccessToken,
		User:          walletsdk.User{UID: req.User.UID, Username: req.User.Username},
		WalletAddress: req.WalletAddress,
	}
	if req.IncompletePayment != nil {
		clientAuth.IncompletePayment = &walletsdk.Payment{
			PaymentID: req.IncompletePayment.PaymentID,
			TxID:      req.IncompletePayment.TxID,
			Metadata:  req.IncompletePayment.Metadata,
		}
	}

	res := h.controller.Run(c.UserContext(), workflow.Options{
		SDK:              walletsdk.NewBridge(clientAuth),
		ResumeIncomplete: req.ResumeIncomplete,
	})
	if !res.Success {
		return failedRunError(res)
	}

	pair, err := h.svc.IssueSession(c.UserContext(), res.User)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	return c.Status(http.StatusOK).JSON(walletLoginResponse{
		UserID:         res.User.ExternalID,
		Username:       res.User.Username,
		IsNewUser:      res.IsNewUser,
		SetupCompleted: res.User.SetupCompleted,
		PlanID:         res.User.PlanID,
		AccessToken:    pair.AccessToken,
		RefreshToken:   pair.RefreshToken,
		ExpiresIn:      pair.ExpiresIn,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// Refresh issues a new access token from a valid refresh token.
func (h *Handler) Refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	token, exp, err := h.svc.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return fiber.NewError(http.StatusUnauthorized, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"access_token": token, "expires_in": exp})
}

// Logout invalidates the caller's outstanding session tokens.
func (h *Handler) Logout(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	if uid == "" {
		return c.SendStatus(http.StatusUnauthorized)
	}
	if err := h.svc.Logout(c.UserContext(), uid); err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.SendStatus(http.StatusNoContent)
}

// failedRunError maps a failed workflow step to an HTTP error whose body
// names the step, letting the client render a specific retry affordance.
func failedRunError(res workflow.Result) error {
	status := http.StatusInternalServerError
	switch res.FailedStep {
	case workflow.StepAuthenticate:
		status = http.StatusUnauthorized
		if errors.Is(res.Err, workflow.ErrRunInFlight) {
			status = http.StatusConflict
		}
		if errors.Is(res.Err, workflow.ErrSDKMissing) {
			status = http.StatusServiceUnavailable
		}
	case workflow.StepVerify:
		status = http.StatusUnauthorized
	case workflow.StepUpsertProfile:
		status = http.StatusInternalServerError
	}

	msg := "authentication failed"
	if res.Err != nil {
		msg = res.Err.Error()
	}
	return fiber.NewError(status, msg+" (step: "+res.FailedStep+")")
}
