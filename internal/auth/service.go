package auth

import (
	"context"
	"crypto/sha256"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/linkgrove/linkgrove/internal/config"
	"github.com/linkgrove/linkgrove/internal/profile"
)

const refreshKeyPrefix = "session:refresh:"

// Service issues and refreshes application session tokens after a wallet
// authentication run. Refresh tokens are stored bcrypt-hashed in Redis so a
// cache dump cannot be replayed.
type Service struct {
	cfg      config.Config
	profiles profile.Repository
	cache    *redis.Client
}

// NewService creates a session service. cache may be nil; revocation checks
// then degrade to token-version comparison only.
func NewService(cfg config.Config, profiles profile.Repository, cache *redis.Client) *Service {
	return &Service{cfg: cfg, profiles: profiles, cache: cache}
}

// TokenPair bundles the issued session tokens.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// IssueSession signs an access/refresh pair for an authenticated profile.
func (s *Service) IssueSession(ctx context.Context, user profile.Record) (TokenPair, error) {
	access, accessExp, err := s.sign(user, s.cfg.JWTSecret, s.cfg.AccessTokenTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, _, err := s.sign(user, s.cfg.RefreshSecret, s.cfg.RefreshTokenTTL)
	if err != nil {
		return TokenPair{}, err
	}

	if s.cache != nil {
		hash, err := hashToken(refresh)
		if err != nil {
			return TokenPair{}, err
		}
		if err := s.cache.Set(ctx, refreshKeyPrefix+user.ExternalID, hash, s.cfg.RefreshTokenTTL).Err(); err != nil {
			return TokenPair{}, err
		}
	}

	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(time.Until(accessExp).Seconds()),
	}, nil
}

// Refresh verifies the refresh token and returns a new access token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, int64, error) {
	claims, err := ParseAndVerifyHS256(refreshToken, []byte(s.cfg.RefreshSecret))
	if err != nil {
		return "", 0, errors.New("invalid refresh token")
	}
	sub, _ := claims["sub"].(string)
	verFloat, _ := claims["ver"].(float64)
	ver := int(verFloat)

	user, err := s.profiles.FindByExternalID(ctx, sub)
	if err != nil {
		return "", 0, errors.New("user not found")
	}
	if user.TokenVersion != ver {
		return "", 0, errors.New("token version invalidated")
	}

	if s.cache != nil {
		stored, err := s.cache.Get(ctx, refreshKeyPrefix+sub).Result()
		if err != nil {
			return "", 0, errors.New("refresh token revoked")
		}
		digest := sha256.Sum256([]byte(refreshToken))
		if bcrypt.CompareHashAndPassword([]byte(stored), digest[:]) != nil {
			return "", 0, errors.New("refresh token revoked")
		}
	}

	now := time.Now()
	accessClaims := map[string]any{
		"sub": sub,
		"ver": ver,
		"iat": now.Unix(),
		"exp": now.Add(s.cfg.AccessTokenTTL).Unix(),
	}
	signed, err := SignHS256(accessClaims, []byte(s.cfg.JWTSecret))
	if err != nil {
		return "", 0, err
	}
	return signed, int64(s.cfg.AccessTokenTTL.Seconds()), nil
}

// Logout bumps the token version so outstanding tokens become invalid and
// drops the stored refresh hash.
func (s *Service) Logout(ctx context.Context, userID string) error {
	user, err := s.profiles.FindByExternalID(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.profiles.UpdateTokenVersion(ctx, user.ExternalID, user.TokenVersion+1); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Del(ctx, refreshKeyPrefix+userID)
	}
	return nil
}

func (s *Service) sign(user profile.Record, secret string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(ttl)
	claims := map[string]any{
		"sub":      user.ExternalID,
		"username": user.Username,
		"ver":      user.TokenVersion,
		"iat":      now.Unix(),
		"exp":      exp.Unix(),
	}
	signed, err := SignHS256(claims, []byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// hashToken bcrypt-hashes the sha256 digest of the token, sidestepping
// bcrypt's 72-byte input limit.
func hashToken(token string) (string, error) {
	digest := sha256.Sum256([]byte(token))
	hash, err := bcrypt.GenerateFromPassword(digest[:], bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
