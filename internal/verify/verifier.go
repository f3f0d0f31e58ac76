package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/linkgrove/linkgrove/internal/platform"
	"github.com/linkgrove/linkgrove/internal/walletsdk"
)

// ErrVerificationFailed wraps any failure to cross-check a wallet session
// against the platform's /me endpoint.
var ErrVerificationFailed = errors.New("identity verification failed")

// IdentitySource resolves an access token to the identity the platform
// believes it belongs to. *platform.Client satisfies it.
type IdentitySource interface {
	Me(ctx context.Context, accessToken string) (platform.Identity, error)
}

// Verifier cross-checks an authenticated wallet session against a second
// authority. The strict and permissive variants are chosen once at controller
// construction and never swapped mid-workflow.
type Verifier interface {
	Verify(ctx context.Context, session walletsdk.AuthResult) error
}

// Strict verifies every session and treats any failure as fatal.
type Strict struct {
	source IdentitySource
}

// NewStrict builds the strict verifier used outside the sandbox.
func NewStrict(source IdentitySource) *Strict {
	return &Strict{source: source}
}

// Verify calls the platform and requires the reported uid to match the
// session's claimed user.
func (v *Strict) Verify(ctx context.Context, session walletsdk.AuthResult) error {
	if v.source == nil {
		return fmt.Errorf("%w: no identity source configured", ErrVerificationFailed)
	}
	id, err := v.source.Me(ctx, session.AccessToken)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrVerificationFailed, err)
	}
	if id.UID != session.User.UID {
		return fmt.Errorf("%w: token belongs to %q, client claimed %q", ErrVerificationFailed, id.UID, session.User.UID)
	}
	return nil
}

// Permissive attempts the same cross-check when an identity source is
// available but only logs failures. Development convenience: sessions proceed
// unverified.
type Permissive struct {
	source IdentitySource
	logger *slog.Logger
}

// NewPermissive builds the sandbox verifier. source may be nil, in which case
// verification is skipped entirely.
func NewPermissive(source IdentitySource, logger *slog.Logger) *Permissive {
	return &Permissive{source: source, logger: logger}
}

// Verify never fails.
func (v *Permissive) Verify(ctx context.Context, session walletsdk.AuthResult) error {
	if v.source == nil {
		return nil
	}
	id, err := v.source.Me(ctx, session.AccessToken)
	if err != nil {
		v.logger.Warn("identity verification skipped", "uid", session.User.UID, "error", err)
		return nil
	}
	if id.UID != session.User.UID {
		v.logger.Warn("identity mismatch ignored in sandbox", "token_uid", id.UID, "claimed_uid", session.User.UID)
	}
	return nil
}
