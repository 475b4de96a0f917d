package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"vtu/internal/domain"
	vtuerrors "vtu/pkg/errors"
)

type BeneficiaryRepository struct {
	db *sqlx.DB
}

func NewBeneficiaryRepository(db *sqlx.DB) *BeneficiaryRepository {
	return &BeneficiaryRepository{db: db}
}

func (r *BeneficiaryRepository) Create(ctx context.Context, b *domain.Beneficiary) error {
	query := `
		INSERT INTO beneficiaries (id, user_id, name, phone, network, created_at)
		VALUES (:id, :user_id, :name, :phone, :network, :created_at)
	`
	_, err := r.db.NamedExecContext(ctx, query, b)
	if err != nil {
		if isUniqueViolation(err) {
			return vtuerrors.ErrBeneficiaryExists
		}
		return vtuerrors.Wrap(err, "failed to create beneficiary")
	}
	return nil
}

func (r *BeneficiaryRepository) FindByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Beneficiary, error) {
	var list []*domain.Beneficiary
	err := r.db.SelectContext(ctx, &list, `
		SELECT * FROM beneficiaries WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, vtuerrors.Wrap(err, "failed to list beneficiaries")
	}
	return list, nil
}

func (r *BeneficiaryRepository) Delete(ctx context.Context, id, userID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM beneficiaries WHERE id = $1 AND user_id = $2
	`, id, userID)
	if err != nil {
		return vtuerrors.Wrap(err, "failed to delete beneficiary")
	}
	return checkFound(result, vtuerrors.ErrNotFound)
}

func (r *BeneficiaryRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Beneficiary, error) {
	b := &domain.Beneficiary{}
	err := r.db.GetContext(ctx, b, `SELECT * FROM beneficiaries WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, vtuerrors.ErrNotFound
		}
		return nil, vtuerrors.Wrap(err, "failed to find beneficiary")
	}
	return b, nil
}
