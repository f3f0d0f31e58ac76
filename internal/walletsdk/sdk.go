package walletsdk

import (
	"context"
	"errors"
)

// Scopes requested from the wallet platform during authentication.
const (
	ScopeUsername = "username"
	ScopePayments = "payments"
)

var (
	// ErrClientDriven signals that payment creation happens in the user's
	// browser; the server only receives the resulting phase callbacks.
	ErrClientDriven = errors.New("payment creation is driven by the client")

	// ErrAuthRejected indicates the wallet declined the authentication
	// request or the user dismissed it.
	ErrAuthRejected = errors.New("wallet authentication rejected")
)

// User identifies a wallet account as reported by the SDK.
type User struct {
	UID      string
	Username string
}

// AuthResult is the outcome of a successful authenticate call. The access
// token lives only for the duration of the workflow run and is never
// persisted.
type AuthResult struct {
	AccessToken   string
	User          User
	WalletAddress string
}

// Payment mirrors the SDK's payment object as seen in callbacks and
// incomplete-payment reports.
type Payment struct {
	PaymentID    string
	TxID         string
	AmountMicros int64
	Memo         string
	Metadata     map[string]string
}

// PaymentData is the input to a create-payment call.
type PaymentData struct {
	AmountMicros int64
	Memo         string
	Metadata     map[string]string
}

// Callbacks receive the handshake phase notifications for one payment.
type Callbacks struct {
	OnReadyForServerApproval   func(paymentID string)
	OnReadyForServerCompletion func(paymentID, txid string)
	OnCancel                   func(paymentID string)
	OnError                    func(err error, payment *Payment)
}

// SDK is the boundary to the wallet platform's client SDK. Exactly one
// authenticate call and at most one create-payment call are in flight per
// instance; implementations are not required to be safe for concurrent use.
type SDK interface {
	// Authenticate requests the given capability scopes. When the wallet
	// reports a payment left in flight by a previous session it is passed
	// to onIncompletePayment before the call returns.
	Authenticate(ctx context.Context, scopes []string, onIncompletePayment func(Payment)) (AuthResult, error)

	// CreatePayment starts the three-phase payment handshake. Phase
	// progress is delivered exclusively through the callbacks.
	CreatePayment(ctx context.Context, data PaymentData, cb Callbacks) error
}
