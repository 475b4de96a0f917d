package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"vtu/internal/domain"
	vtuerrors "vtu/pkg/errors"
)

type ApiKeyRepository struct {
	db *sqlx.DB
}

func NewApiKeyRepository(db *sqlx.DB) *ApiKeyRepository {
	return &ApiKeyRepository{db: db}
}

// Rotate revokes any live key for the user and inserts the replacement.
func (r *ApiKeyRepository) Rotate(ctx context.Context, key *domain.ApiKey) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return vtuerrors.Wrap(err, "failed to begin rotate tx")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE api_keys SET revoked_at = $1 WHERE user_id = $2 AND revoked_at IS NULL
	`, time.Now(), key.UserID)
	if err != nil {
		return vtuerrors.Wrap(err, "failed to revoke old keys")
	}

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO api_keys (id, user_id, prefix, key_hash, created_at)
		VALUES (:id, :user_id, :prefix, :key_hash, :created_at)
	`, key)
	if err != nil {
		return vtuerrors.Wrap(err, "failed to insert api key")
	}

	return tx.Commit()
}

func (r *ApiKeyRepository) FindActiveByUser(ctx context.Context, userID uuid.UUID) (*domain.ApiKey, error) {
	key := &domain.ApiKey{}
	err := r.db.GetContext(ctx, key, `
		SELECT * FROM api_keys WHERE user_id = $1 AND revoked_at IS NULL ORDER BY created_at DESC LIMIT 1
	`, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, vtuerrors.ErrNotFound
		}
		return nil, vtuerrors.Wrap(err, "failed to find api key")
	}
	return key, nil
}

func (r *ApiKeyRepository) FindActiveByPrefix(ctx context.Context, prefix string) (*domain.ApiKey, error) {
	key := &domain.ApiKey{}
	err := r.db.GetContext(ctx, key, `
		SELECT * FROM api_keys WHERE prefix = $1 AND revoked_at IS NULL
	`, prefix)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, vtuerrors.ErrNotFound
		}
		return nil, vtuerrors.Wrap(err, "failed to find api key by prefix")
	}
	return key, nil
}

func (r *ApiKeyRepository) TouchLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `UPDATE api_keys SET last_used_at = NOW() WHERE id = $1`, id)
	return vtuerrors.Wrap(err, "failed to touch api key")
}
