package auth

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/linkgrove/linkgrove/internal/config"
	"github.com/linkgrove/linkgrove/internal/profile"
)

func testConfig() config.Config {
	return config.Config{
		JWTSecret:       "access-secret",
		RefreshSecret:   "refresh-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: time.Hour,
	}
}

func newTestService(t *testing.T) (*Service, profile.Repository, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	repo := profile.NewMemoryRepository()
	rec := profile.Record{ExternalID: "uid-1", Username: "ada", CreatedAt: time.Now().UTC()}
	if err := repo.Create(context.Background(), rec); err != nil {
		t.Fatalf("seed profile: %v", err)
	}

	svc := NewService(testConfig(), repo, cache)
	cleanup := func() {
		cache.Close()
		mr.Close()
	}
	return svc, repo, cleanup
}

func TestIssueAndRefreshSession(t *testing.T) {
	svc, repo, cleanup := newTestService(t)
	defer cleanup()
	ctx := context.Background()

	user, err := repo.FindByExternalID(ctx, "uid-1")
	if err != nil {
		t.Fatalf("find profile: %v", err)
	}

	pair, err := svc.IssueSession(ctx, user)
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected both tokens")
	}
	if pair.ExpiresIn <= 0 {
		t.Fatalf("expires_in must be positive, got %d", pair.ExpiresIn)
	}

	claims, err := ParseAndVerifyHS256(pair.AccessToken, []byte("access-secret"))
	if err != nil {
		t.Fatalf("verify access token: %v", err)
	}
	if claims["sub"] != "uid-1" {
		t.Fatalf("unexpected subject %v", claims["sub"])
	}

	access, exp, err := svc.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if access == "" || exp <= 0 {
		t.Fatal("refresh returned an empty access token")
	}
}

func TestRefreshRejectsWrongSecret(t *testing.T) {
	svc, _, cleanup := newTestService(t)
	defer cleanup()
	ctx := context.Background()

	forged, err := SignHS256(map[string]any{
		"sub": "uid-1",
		"ver": 0,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour).Unix(),
	}, []byte("some-other-secret"))
	if err != nil {
		t.Fatalf("sign forged token: %v", err)
	}

	if _, _, err := svc.Refresh(ctx, forged); err == nil {
		t.Fatal("expected a forged refresh token to be rejected")
	}
}

func TestLogoutInvalidatesRefreshToken(t *testing.T) {
	svc, repo, cleanup := newTestService(t)
	defer cleanup()
	ctx := context.Background()

	user, _ := repo.FindByExternalID(ctx, "uid-1")
	pair, err := svc.IssueSession(ctx, user)
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}

	if err := svc.Logout(ctx, "uid-1"); err != nil {
		t.Fatalf("logout: %v", err)
	}

	if _, _, err := svc.Refresh(ctx, pair.RefreshToken); err == nil {
		t.Fatal("refresh must fail after logout")
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	expired, err := SignHS256(map[string]any{
		"sub": "uid-1",
		"iat": time.Now().Add(-2 * time.Hour).Unix(),
		"exp": time.Now().Add(-time.Hour).Unix(),
	}, []byte("access-secret"))
	if err != nil {
		t.Fatalf("sign expired token: %v", err)
	}
	if _, err := ParseAndVerifyHS256(expired, []byte("access-secret")); err == nil {
		t.Fatal("expected expired token to fail verification")
	}
}
