package profile

import "time"

// Record is the durable profile for a wallet user, keyed by the immutable
// external wallet uid.
type Record struct {
	ExternalID     string
	Username       string
	WalletAddress  string
	SetupCompleted bool
	PlanID         string
	TokenVersion   int
	CreatedAt      time.Time
	LastSeenAt     time.Time
}

// UpsertInput carries the identity attributes refreshed on every
// authentication.
type UpsertInput struct {
	ExternalID    string
	Username      string
	WalletAddress string
}
