package entitlement

import (
	"context"
	"sync"
)

type memoryRepository struct {
	mu     sync.RWMutex
	grants map[string][]Grant
}

// NewMemoryRepository builds an in-memory grant store for sandbox use and tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{grants: make(map[string][]Grant)}
}

func (r *memoryRepository) Save(_ context.Context, grant Grant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, g := range r.grants[grant.UserID] {
		if g.ID == grant.ID {
			return nil
		}
	}
	r.grants[grant.UserID] = append(r.grants[grant.UserID], grant)
	return nil
}

func (r *memoryRepository) Latest(_ context.Context, userID string) (Grant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	grants := r.grants[userID]
	if len(grants) == 0 {
		return Grant{}, ErrNoGrant
	}
	latest := grants[0]
	for _, g := range grants[1:] {
		if g.GrantedAt.After(latest.GrantedAt) {
			latest = g
		}
	}
	return latest, nil
}
