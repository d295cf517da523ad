package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"foodsnap/internal/domain"
)

type ProfileRepository interface {
	GetByID(ctx context.Context, id string) (domain.Profile, error)
}

type PgProfileRepository struct {
	pool *pgxpool.Pool
}

func NewPgProfileRepository(pool *pgxpool.Pool) *PgProfileRepository {
	return &PgProfileRepository{pool: pool}
}

func (r *PgProfileRepository) GetByID(ctx context.Context, id string) (domain.Profile, error) {
	const query = `
		SELECT id,
		       COALESCE(full_name, ''),
		       COALESCE(email, ''),
		       COALESCE(phone_e164, ''),
		       COALESCE(public_id, ''),
		       COALESCE(avatar_url, ''),
		       COALESCE(is_admin, false),
		       created_at
		FROM profiles
		WHERE id = $1
	`
	var profile domain.Profile
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&profile.ID,
		&profile.FullName,
		&profile.Email,
		&profile.PhoneE164,
		&profile.PublicID,
		&profile.AvatarURL,
		&profile.IsAdmin,
		&profile.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Profile{}, err
	}
	return profile, err
}
