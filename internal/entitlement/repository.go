package entitlement

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNoGrant indicates the user has no recorded grant at all.
var ErrNoGrant = errors.New("no grant recorded")

// Repository is the primary durable store for grants.
type Repository interface {
	Save(ctx context.Context, grant Grant) error
	Latest(ctx context.Context, userID string) (Grant, error)
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed grant repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Save inserts a grant. Saving the same grant id twice is a no-op, which
// keeps fallback reconciliation idempotent.
func (r *PostgresRepository) Save(ctx context.Context, grant Grant) error {
	_, err := r.db.Exec(ctx, `INSERT INTO entitlement_grants (id, user_id, plan_id, granted_at, expires_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (id) DO NOTHING`,
		grant.ID, grant.UserID, grant.PlanID, grant.GrantedAt.UTC(), grant.ExpiresAt.UTC())
	return err
}

// Latest returns the most recently granted entitlement for the user.
func (r *PostgresRepository) Latest(ctx context.Context, userID string) (Grant, error) {
	row := r.db.QueryRow(ctx, `SELECT id, user_id, plan_id, granted_at, expires_at
        FROM entitlement_grants WHERE user_id = $1
        ORDER BY granted_at DESC LIMIT 1`, userID)

	var g Grant
	if err := row.Scan(&g.ID, &g.UserID, &g.PlanID, &g.GrantedAt, &g.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Grant{}, ErrNoGrant
		}
		return Grant{}, err
	}
	g.GrantedAt = g.GrantedAt.UTC()
	g.ExpiresAt = g.ExpiresAt.UTC()
	return g, nil
}
