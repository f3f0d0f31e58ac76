package profile

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates no profile exists for the requested external id.
var ErrNotFound = errors.New("profile not found")

// Repository persists profile records.
type Repository interface {
	FindByExternalID(ctx context.Context, externalID string) (Record, error)
	Create(ctx context.Context, rec Record) error
	Refresh(ctx context.Context, externalID, username, walletAddress string, seenAt time.Time) error
	SetPlan(ctx context.Context, externalID, planID string) error
	UpdateTokenVersion(ctx context.Context, externalID string, version int) error
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed profile repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// FindByExternalID fetches a profile by wallet uid.
func (r *PostgresRepository) FindByExternalID(ctx context.Context, externalID string) (Record, error) {
	row := r.db.QueryRow(ctx, `SELECT external_id, username, wallet_address, setup_completed, plan_id, token_version, created_at, last_seen_at
        FROM profiles WHERE external_id = $1`, externalID)

	var rec Record
	err := row.Scan(&rec.ExternalID, &rec.Username, &rec.WalletAddress, &rec.SetupCompleted,
		&rec.PlanID, &rec.TokenVersion, &rec.CreatedAt, &rec.LastSeenAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.LastSeenAt = rec.LastSeenAt.UTC()
	return rec, nil
}

// Create inserts a new profile. external_id carries a unique constraint, so a
// duplicate insert fails rather than producing a second record.
func (r *PostgresRepository) Create(ctx context.Context, rec Record) error {
	_, err := r.db.Exec(ctx, `INSERT INTO profiles (external_id, username, wallet_address, setup_completed, plan_id, token_version, created_at, last_seen_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ExternalID, rec.Username, rec.WalletAddress, rec.SetupCompleted,
		rec.PlanID, rec.TokenVersion, rec.CreatedAt.UTC(), rec.LastSeenAt.UTC())
	return err
}

// Refresh updates the identity attributes touched on every authentication.
// setup_completed and plan_id are deliberately left alone.
func (r *PostgresRepository) Refresh(ctx context.Context, externalID, username, walletAddress string, seenAt time.Time) error {
	cmd, err := r.db.Exec(ctx, `UPDATE profiles SET username = $1, wallet_address = COALESCE(NULLIF($2, ''), wallet_address), last_seen_at = $3
        WHERE external_id = $4`, username, walletAddress, seenAt.UTC(), externalID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetPlan records the profile's selected plan.
func (r *PostgresRepository) SetPlan(ctx context.Context, externalID, planID string) error {
	cmd, err := r.db.Exec(ctx, `UPDATE profiles SET plan_id = $1 WHERE external_id = $2`, planID, externalID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateTokenVersion bumps the session token version, invalidating older tokens.
func (r *PostgresRepository) UpdateTokenVersion(ctx context.Context, externalID string, version int) error {
	cmd, err := r.db.Exec(ctx, `UPDATE profiles SET token_version = $1 WHERE external_id = $2`, version, externalID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
