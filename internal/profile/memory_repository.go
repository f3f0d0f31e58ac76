package profile

import (
	"context"
	"errors"
	"sync"
	"time"
)

type memoryRepository struct {
	mu       sync.RWMutex
	profiles map[string]Record
}

// NewMemoryRepository builds an in-memory profile store for sandbox use and tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{profiles: make(map[string]Record)}
}

func (r *memoryRepository) FindByExternalID(_ context.Context, externalID string) (Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.profiles[externalID]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (r *memoryRepository) Create(_ context.Context, rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.profiles[rec.ExternalID]; exists {
		return errors.New("profile exists")
	}
	r.profiles[rec.ExternalID] = rec
	return nil
}

func (r *memoryRepository) Refresh(_ context.Context, externalID, username, walletAddress string, seenAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.profiles[externalID]
	if !ok {
		return ErrNotFound
	}
	rec.Username = username
	if walletAddress != "" {
		rec.WalletAddress = walletAddress
	}
	rec.LastSeenAt = seenAt
	r.profiles[externalID] = rec
	return nil
}

func (r *memoryRepository) SetPlan(_ context.Context, externalID, planID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.profiles[externalID]
	if !ok {
		return ErrNotFound
	}
	rec.PlanID = planID
	r.profiles[externalID] = rec
	return nil
}

func (r *memoryRepository) UpdateTokenVersion(_ context.Context, externalID string, version int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.profiles[externalID]
	if !ok {
		return ErrNotFound
	}
	rec.TokenVersion = version
	r.profiles[externalID] = rec
	return nil
}
