package walletsdk

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Outcome scripts how a sandbox payment handshake plays out.
type Outcome int

const (
	// OutcomeComplete drives the handshake through all three phases.
	OutcomeComplete Outcome = iota
	// OutcomeCancelAfterApproval fires the cancel callback after the
	// approval phase, simulating a user abandoning the wallet dialog.
	OutcomeCancelAfterApproval
	// OutcomeError fires the error callback instead of approval.
	OutcomeError
)

// Sandbox is a deterministic SDK stub for the permissive profile and tests.
// It authenticates the configured user and runs payment handshakes
// synchronously according to the scripted outcome.
type Sandbox struct {
	User              User
	AccessToken       string
	WalletAddress     string
	IncompletePayment *Payment
	RejectAuth        bool
	PaymentOutcome    Outcome
}

// Authenticate returns the configured session, reporting any scripted
// incomplete payment first.
func (s *Sandbox) Authenticate(_ context.Context, _ []string, onIncompletePayment func(Payment)) (AuthResult, error) {
	if s.RejectAuth {
		return AuthResult{}, ErrAuthRejected
	}
	if s.IncompletePayment != nil && onIncompletePayment != nil {
		onIncompletePayment(*s.IncompletePayment)
	}
	token := s.AccessToken
	if token == "" {
		token = "sandbox-token-" + uuid.NewString()
	}
	return AuthResult{AccessToken: token, User: s.User, WalletAddress: s.WalletAddress}, nil
}

// CreatePayment runs the scripted handshake synchronously through the
// provided callbacks.
func (s *Sandbox) CreatePayment(_ context.Context, data PaymentData, cb Callbacks) error {
	paymentID := "sandbox-pay-" + uuid.NewString()

	switch s.PaymentOutcome {
	case OutcomeError:
		if cb.OnError != nil {
			cb.OnError(errors.New("sandbox payment error"), &Payment{
				PaymentID:    paymentID,
				AmountMicros: data.AmountMicros,
				Memo:         data.Memo,
				Metadata:     data.Metadata,
			})
		}
	case OutcomeCancelAfterApproval:
		if cb.OnReadyForServerApproval != nil {
			cb.OnReadyForServerApproval(paymentID)
		}
		if cb.OnCancel != nil {
			cb.OnCancel(paymentID)
		}
	default:
		if cb.OnReadyForServerApproval != nil {
			cb.OnReadyForServerApproval(paymentID)
		}
		if cb.OnReadyForServerCompletion != nil {
			cb.OnReadyForServerCompletion(paymentID, "sandbox-tx-"+uuid.NewString())
		}
	}
	return nil
}
