package walletsdk

import "context"

// ClientAuth is the payload the browser posts after running the wallet SDK's
// authenticate call client-side.
type ClientAuth struct {
	AccessToken       string
	User              User
	WalletAddress     string
	IncompletePayment *Payment
}

// Bridge replays a client-side SDK session on the server. The browser already
// ran authenticate; the bridge surfaces its result (and any incomplete
// payment the wallet reported) to the workflow as if the SDK were local.
type Bridge struct {
	auth ClientAuth
}

// NewBridge wraps a client-reported SDK session.
func NewBridge(auth ClientAuth) *Bridge {
	return &Bridge{auth: auth}
}

// Authenticate returns the client-reported session. The workflow layer is
// responsible for rejecting sessions missing a token or user.
func (b *Bridge) Authenticate(_ context.Context, _ []string, onIncompletePayment func(Payment)) (AuthResult, error) {
	if b.auth.IncompletePayment != nil && onIncompletePayment != nil {
		onIncompletePayment(*b.auth.IncompletePayment)
	}
	return AuthResult{
		AccessToken:   b.auth.AccessToken,
		User:          b.auth.User,
		WalletAddress: b.auth.WalletAddress,
	}, nil
}

// CreatePayment always reports ErrClientDriven: the browser owns payment
// creation and the server learns about phases via HTTP callbacks instead.
func (b *Bridge) CreatePayment(_ context.Context, _ PaymentData, _ Callbacks) error {
	return ErrClientDriven
}
