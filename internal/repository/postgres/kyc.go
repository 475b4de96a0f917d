package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"vtu/internal/domain"
	vtuerrors "vtu/pkg/errors"
)

type KycRepository struct {
	db *sqlx.DB
}

func NewKycRepository(db *sqlx.DB) *KycRepository {
	return &KycRepository{db: db}
}

// Create inserts a submission. The partial unique index on (user_id) WHERE
// status='pending' rejects a second concurrent pending submission.
func (r *KycRepository) Create(ctx context.Context, sub *domain.KycSubmission) error {
	query := `
		INSERT INTO kyc_submissions (id, user_id, document, status, submitted_at)
		VALUES (:id, :user_id, :document, :status, :submitted_at)
	`
	_, err := r.db.NamedExecContext(ctx, query, sub)
	if err != nil {
		if isUniqueViolation(err) {
			return vtuerrors.ErrKYCPending
		}
		return vtuerrors.Wrap(err, "failed to create kyc submission")
	}
	return nil
}

func (r *KycRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.KycSubmission, error) {
	sub := &domain.KycSubmission{}
	err := r.db.GetContext(ctx, sub, `SELECT * FROM kyc_submissions WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, vtuerrors.ErrKYCNotFound
		}
		return nil, vtuerrors.Wrap(err, "failed to find kyc submission")
	}
	return sub, nil
}

func (r *KycRepository) FindPendingByUser(ctx context.Context, userID uuid.UUID) (*domain.KycSubmission, error) {
	sub := &domain.KycSubmission{}
	err := r.db.GetContext(ctx, sub, `
		SELECT * FROM kyc_submissions WHERE user_id = $1 AND status = 'pending'
	`, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, vtuerrors.ErrKYCNotFound
		}
		return nil, vtuerrors.Wrap(err, "failed to find pending submission")
	}
	return sub, nil
}

func (r *KycRepository) FindLatestByUser(ctx context.Context, userID uuid.UUID) (*domain.KycSubmission, error) {
	sub := &domain.KycSubmission{}
	err := r.db.GetContext(ctx, sub, `
		SELECT * FROM kyc_submissions WHERE user_id = $1 ORDER BY submitted_at DESC LIMIT 1
	`, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, vtuerrors.ErrKYCNotFound
		}
		return nil, vtuerrors.Wrap(err, "failed to find latest submission")
	}
	return sub, nil
}

func (r *KycRepository) Review(ctx context.Context, id uuid.UUID, status domain.KYCStatus, reviewerID uuid.UUID, reason *string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE kyc_submissions SET
			status = $1,
			rejection_reason = $2,
			reviewed_by = $3,
			reviewed_at = NOW()
		WHERE id = $4 AND status = 'pending'
	`, status, reason, reviewerID, id)
	if err != nil {
		return vtuerrors.Wrap(err, "failed to review kyc submission")
	}
	return checkFound(result, vtuerrors.ErrKYCNotFound)
}

func (r *KycRepository) ListPending(ctx context.Context, limit, offset int) ([]*domain.KycSubmission, error) {
	var subs []*domain.KycSubmission
	err := r.db.SelectContext(ctx, &subs, `
		SELECT * FROM kyc_submissions WHERE status = 'pending' ORDER BY submitted_at ASC LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, vtuerrors.Wrap(err, "failed to list pending submissions")
	}
	return subs, nil
}
