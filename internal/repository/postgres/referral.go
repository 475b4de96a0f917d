package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"vtu/internal/domain"
	vtuerrors "vtu/pkg/errors"
)

type ReferralRepository struct {
	db *sqlx.DB
}

func NewReferralRepository(db *sqlx.DB) *ReferralRepository {
	return &ReferralRepository{db: db}
}

// Create inserts a credit row. The unique (referrer_id, referred_user_id)
// constraint is what makes crediting exactly-once under retried settlements;
// a duplicate insert reports created=false and the caller must not credit.
func (r *ReferralRepository) Create(ctx context.Context, credit *domain.ReferralCredit) (bool, error) {
	query := `
		INSERT INTO referral_credits (
			id, referrer_id, referred_user_id, qualifying_transaction_id, commission_amount, created_at
		) VALUES (
			:id, :referrer_id, :referred_user_id, :qualifying_transaction_id, :commission_amount, :created_at
		)
	`
	_, err := r.db.NamedExecContext(ctx, query, credit)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, vtuerrors.Wrap(err, "failed to create referral credit")
	}
	return true, nil
}

func (r *ReferralRepository) FindByReferrer(ctx context.Context, referrerID uuid.UUID) ([]*domain.ReferralCredit, error) {
	var credits []*domain.ReferralCredit
	err := r.db.SelectContext(ctx, &credits, `
		SELECT * FROM referral_credits WHERE referrer_id = $1 ORDER BY created_at DESC
	`, referrerID)
	if err != nil {
		return nil, vtuerrors.Wrap(err, "failed to list referral credits")
	}
	return credits, nil
}

func (r *ReferralRepository) TotalCommission(ctx context.Context, referrerID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.GetContext(ctx, &total, `
		SELECT COALESCE(SUM(commission_amount), 0) FROM referral_credits WHERE referrer_id = $1
	`, referrerID)
	if err != nil {
		return decimal.Zero, vtuerrors.Wrap(err, "failed to sum commissions")
	}
	return total, nil
}
