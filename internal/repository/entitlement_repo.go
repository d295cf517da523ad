package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"foodsnap/internal/domain"
)

type EntitlementRepository interface {
	GetByUserID(ctx context.Context, userID string) (domain.Entitlement, error)
}

type PgEntitlementRepository struct {
	pool *pgxpool.Pool
}

func NewPgEntitlementRepository(pool *pgxpool.Pool) *PgEntitlementRepository {
	return &PgEntitlementRepository{pool: pool}
}

func (r *PgEntitlementRepository) GetByUserID(ctx context.Context, userID string) (domain.Entitlement, error) {
	const query = `
		SELECT user_id,
		       COALESCE(entitlement_code, 'free'),
		       COALESCE(is_active, false),
		       started_at,
		       valid_until
		FROM user_entitlements
		WHERE user_id = $1
	`
	var ent domain.Entitlement
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&ent.UserID,
		&ent.Code,
		&ent.IsActive,
		&ent.StartedAt,
		&ent.ValidUntil,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Entitlement{}, err
	}
	return ent, err
}
