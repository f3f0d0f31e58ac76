package payment

import (
	"context"

	"github.com/linkgrove/linkgrove/internal/platform"
)

// Authority is the server-side approval and completion endpoint pair of the
// wallet platform. Both calls happen exactly once per successful handshake,
// approval first; completion cross-checks the transaction on-chain before an
// entitlement may be written.
type Authority interface {
	ApprovePayment(ctx context.Context, paymentID string) error
	CompletePayment(ctx context.Context, paymentID, txid string) error
}

// Inspector fetches the platform's record of a payment. Resuming an
// incomplete payment requires one: the client-reported payment is trusted
// only after its txid and plan metadata match the platform's record.
// *platform.Client satisfies it.
type Inspector interface {
	Payment(ctx context.Context, paymentID string) (platform.PaymentRecord, error)
}

// StaticAuthority approves and completes every payment. Used in the sandbox
// profile where no real settlement happens.
type StaticAuthority struct{}

// ApprovePayment always succeeds.
func (StaticAuthority) ApprovePayment(_ context.Context, _ string) error {
	return nil
}

// CompletePayment always succeeds.
func (StaticAuthority) CompletePayment(_ context.Context, _, _ string) error {
	return nil
}
