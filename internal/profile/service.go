package profile

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Service manages profile lifecycle around authentication.
type Service struct {
	repo Repository
}

// NewService creates a profile service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Upsert creates or refreshes the profile for a wallet uid. The operation is
// idempotent: repeated calls with identical input leave one record, and a
// refresh never touches setup_completed or the selected plan. The returned
// bool reports whether the record was created by this call.
func (s *Service) Upsert(ctx context.Context, input UpsertInput) (Record, bool, error) {
	if input.ExternalID == "" {
		return Record{}, false, fmt.Errorf("external id is required")
	}

	now := time.Now().UTC()

	existing, err := s.repo.FindByExternalID(ctx, input.ExternalID)
	if err == nil {
		if err := s.repo.Refresh(ctx, input.ExternalID, input.Username, input.WalletAddress, now); err != nil {
			return Record{}, false, fmt.Errorf("refresh profile: %w", err)
		}
		existing.Username = input.Username
		if input.WalletAddress != "" {
			existing.WalletAddress = input.WalletAddress
		}
		existing.LastSeenAt = now
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Record{}, false, fmt.Errorf("lookup profile: %w", err)
	}

	rec := Record{
		ExternalID:     input.ExternalID,
		Username:       input.Username,
		WalletAddress:  input.WalletAddress,
		SetupCompleted: false,
		CreatedAt:      now,
		LastSeenAt:     now,
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return Record{}, false, fmt.Errorf("create profile: %w", err)
	}
	return rec, true, nil
}

// Get fetches a profile by wallet uid.
func (s *Service) Get(ctx context.Context, externalID string) (Record, error) {
	return s.repo.FindByExternalID(ctx, externalID)
}

// SelectPlan stores the plan chosen by the user.
func (s *Service) SelectPlan(ctx context.Context, externalID, planID string) error {
	return s.repo.SetPlan(ctx, externalID, planID)
}
