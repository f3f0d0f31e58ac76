package verify

import (
	"context"
	"errors"
	"testing"

	"github.com/linkgrove/linkgrove/internal/logging"
	"github.com/linkgrove/linkgrove/internal/platform"
	"github.com/linkgrove/linkgrove/internal/walletsdk"
)

type stubSource struct {
	identity platform.Identity
	err      error
}

func (s *stubSource) Me(_ context.Context, _ string) (platform.Identity, error) {
	return s.identity, s.err
}

func session(uid string) walletsdk.AuthResult {
	return walletsdk.AuthResult{
		AccessToken: "token-1",
		User:        walletsdk.User{UID: uid, Username: "ada"},
	}
}

func TestStrictVerifyMatch(t *testing.T) {
	v := NewStrict(&stubSource{identity: platform.Identity{UID: "uid-1"}})
	if err := v.Verify(context.Background(), session("uid-1")); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestStrictVerifyMismatch(t *testing.T) {
	v := NewStrict(&stubSource{identity: platform.Identity{UID: "uid-2"}})
	err := v.Verify(context.Background(), session("uid-1"))
	if !errors.Is(err, ErrVerificationFailed) {
		t.Fatalf("expected ErrVerificationFailed, got %v", err)
	}
}

func TestStrictVerifySourceError(t *testing.T) {
	v := NewStrict(&stubSource{err: &platform.APIError{StatusCode: 401, Message: "expired"}})
	err := v.Verify(context.Background(), session("uid-1"))
	if !errors.Is(err, ErrVerificationFailed) {
		t.Fatalf("expected ErrVerificationFailed, got %v", err)
	}

	var apiErr *platform.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected wrapped APIError, got %v", err)
	}
}

func TestPermissiveSwallowsFailure(t *testing.T) {
	v := NewPermissive(&stubSource{err: errors.New("network down")}, logging.Discard())
	if err := v.Verify(context.Background(), session("uid-1")); err != nil {
		t.Fatalf("permissive verify should not fail: %v", err)
	}
}

func TestPermissiveNoSource(t *testing.T) {
	v := NewPermissive(nil, logging.Discard())
	if err := v.Verify(context.Background(), session("uid-1")); err != nil {
		t.Fatalf("permissive verify should not fail: %v", err)
	}
}
