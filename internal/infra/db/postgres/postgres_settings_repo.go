package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"giftcard-service/internal/domain/model"
	"giftcard-service/internal/domain/ports/repository"
)

var _ repository.SettingsRepository = (*settingsRepo)(nil)

type settingsRepo struct {
	pool *pgxpool.Pool
}

func NewSettingsRepo(pool *pgxpool.Pool) repository.SettingsRepository {
	return &settingsRepo{pool: pool}
}

func (r *settingsRepo) Get(ctx context.Context, tx repository.Tx, key string) (*model.Setting, error) {
	const q = `SELECT key, value, updated_at FROM site_settings WHERE key = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, key)
	if err != nil {
		return nil, dbErr("settings.get", err)
	}
	var s model.Setting
	if err := row.Scan(&s.Key, &s.Value, &s.UpdatedAt); err != nil {
		return nil, dbErr("settings.get", err)
	}
	return &s, nil
}

// Upsert stores value under key; a nil value clears it.
func (r *settingsRepo) Upsert(ctx context.Context, tx repository.Tx, key string, value *string) error {
	const q = `
INSERT INTO site_settings (key, value, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE
  SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at;
`
	_, err := execSQL(ctx, r.pool, tx, q, key, value)
	return dbErr("settings.upsert", err)
}
