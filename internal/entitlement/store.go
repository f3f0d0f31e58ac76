package entitlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/linkgrove/linkgrove/internal/logging"
)

// Store persists grants primary-first with a device-local fallback. Writes
// never fail the calling workflow: when the primary store is down the grant
// lands in the fallback and is reconciled on the next successful primary
// contact, last-write-wins by granted-at.
type Store struct {
	primary  Repository
	fallback *LocalStore
	logger   *slog.Logger

	mu    sync.Mutex
	dirty bool
}

// NewStore builds the entitlement store. fallback may be nil, in which case
// primary failures surface as errors.
func NewStore(primary Repository, fallback *LocalStore, logger *slog.Logger) *Store {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Store{primary: primary, fallback: fallback, logger: logger}
}

// Grant records a plan entitlement for the user with the given ttl.
func (s *Store) Grant(ctx context.Context, userID, planID string, ttl time.Duration) (Grant, error) {
	if ttl <= 0 {
		return Grant{}, fmt.Errorf("grant ttl must be positive")
	}

	now := time.Now().UTC()
	grant := Grant{
		ID:        uuid.NewString(),
		UserID:    userID,
		PlanID:    planID,
		GrantedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	if err := s.primary.Save(ctx, grant); err != nil {
		if s.fallback == nil {
			return Grant{}, fmt.Errorf("save grant: %w", err)
		}
		s.logger.Warn("primary grant store unavailable, using fallback", "user_id", userID, "plan_id", planID, "error", err)
		if werr := s.fallback.Write(grant); werr != nil {
			s.logger.Error("fallback grant store write failed", "user_id", userID, "error", werr)
		}
		s.markDirty()
		return grant, nil
	}

	s.reconcile(ctx)
	return grant, nil
}

// CurrentGrant returns the valid grant for the user, or nil when none exists,
// the latest grant expired, or the record belongs to someone else. Callers
// never need to re-check expiry.
func (s *Store) CurrentGrant(ctx context.Context, userID string) (*Grant, error) {
	now := time.Now().UTC()

	grant, err := s.primary.Latest(ctx, userID)
	switch {
	case err == nil:
		s.reconcile(ctx)
		// The fallback may hold a newer grant from an outage window.
		if s.fallback != nil {
			if fg, ok := s.fallback.Read(); ok && fg.UserID == userID && fg.GrantedAt.After(grant.GrantedAt) {
				grant = fg
			}
		}
		if !grant.ValidAt(userID, now) {
			return nil, nil
		}
		return &grant, nil

	case errors.Is(err, ErrNoGrant):
		s.reconcile(ctx)
		if s.fallback != nil {
			if fg, ok := s.fallback.Read(); ok && fg.ValidAt(userID, now) {
				return &fg, nil
			}
		}
		return nil, nil

	default:
		if s.fallback == nil {
			return nil, fmt.Errorf("read grant: %w", err)
		}
		s.logger.Warn("primary grant store unavailable, reading fallback", "user_id", userID, "error", err)
		if fg, ok := s.fallback.Read(); ok && fg.ValidAt(userID, now) {
			return &fg, nil
		}
		return nil, nil
	}
}

func (s *Store) markDirty() {
	s.mu.Lock()
	s.dirty = true
	s.mu.Unlock()
}

// reconcile pushes a fallback-held grant to the primary store after an
// outage. Last write wins: the primary's latest grant is kept if it is newer
// than the fallback record.
func (s *Store) reconcile(ctx context.Context) {
	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	if s.fallback == nil {
		return
	}
	fg, ok := s.fallback.Read()
	if !ok {
		s.clearDirty()
		return
	}

	latest, err := s.primary.Latest(ctx, fg.UserID)
	if err != nil && !errors.Is(err, ErrNoGrant) {
		return // still unreachable, keep the dirty flag
	}
	if err == nil && latest.GrantedAt.After(fg.GrantedAt) {
		s.clearDirty()
		return
	}

	if err := s.primary.Save(ctx, fg); err != nil {
		s.logger.Warn("grant reconciliation failed", "user_id", fg.UserID, "error", err)
		return
	}
	s.logger.Info("fallback grant reconciled to primary store", "user_id", fg.UserID, "plan_id", fg.PlanID)
	s.clearDirty()
}

func (s *Store) clearDirty() {
	s.mu.Lock()
	s.dirty = false
	s.mu.Unlock()
}
