package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"vtu/internal/domain"
	vtuerrors "vtu/pkg/errors"
)

type SettingsRepository struct {
	db *sqlx.DB
}

func NewSettingsRepository(db *sqlx.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

func (r *SettingsRepository) GetAll(ctx context.Context) ([]*domain.Setting, error) {
	var settings []*domain.Setting
	err := r.db.SelectContext(ctx, &settings, `SELECT * FROM settings ORDER BY key`)
	if err != nil {
		return nil, vtuerrors.Wrap(err, "failed to read settings")
	}
	return settings, nil
}

func (r *SettingsRepository) Upsert(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, key, value)
	return vtuerrors.Wrap(err, "failed to upsert setting")
}
