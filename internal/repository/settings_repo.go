package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SettingsRepository lee pares clave/valor de app_settings.
type SettingsRepository interface {
	Get(ctx context.Context, key string) (string, error)
}

type PgSettingsRepository struct {
	pool *pgxpool.Pool
}

func NewPgSettingsRepository(pool *pgxpool.Pool) *PgSettingsRepository {
	return &PgSettingsRepository{pool: pool}
}

func (r *PgSettingsRepository) Get(ctx context.Context, key string) (string, error) {
	const query = `SELECT value FROM app_settings WHERE key = $1`
	var value string
	err := r.pool.QueryRow(ctx, query, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", err
	}
	return value, err
}
