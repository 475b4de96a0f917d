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

type TransactionRepository struct {
	db *sqlx.DB
}

func NewTransactionRepository(db *sqlx.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *domain.Transaction) error {
	query := `
		INSERT INTO transactions (
			id, reference, user_id, kind, status, amount, payload, artifacts,
			resource_id, reservation_id, failure_reason, created_at, completed_at
		) VALUES (
			:id, :reference, :user_id, :kind, :status, :amount, :payload, :artifacts,
			:resource_id, :reservation_id, :failure_reason, :created_at, :completed_at
		)
	`
	_, err := r.db.NamedExecContext(ctx, query, tx)
	return vtuerrors.Wrap(err, "failed to create transaction")
}

func (r *TransactionRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	tx := &domain.Transaction{}
	err := r.db.GetContext(ctx, tx, `SELECT * FROM transactions WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, vtuerrors.ErrTransactionNotFound
		}
		return nil, vtuerrors.Wrap(err, "failed to find transaction")
	}
	return tx, nil
}

// Complete moves a pending transaction to a terminal state. Terminal rows are
// immutable: the WHERE clause refuses to touch them.
func (r *TransactionRepository) Complete(ctx context.Context, id uuid.UUID, status domain.TransactionStatus, resourceID *uuid.UUID, failureReason *string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET
			status = $1,
			resource_id = COALESCE($2, resource_id),
			failure_reason = $3,
			completed_at = NOW()
		WHERE id = $4 AND status = 'pending'
	`, status, resourceID, failureReason, id)
	if err != nil {
		return vtuerrors.Wrap(err, "failed to complete transaction")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return vtuerrors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return vtuerrors.ErrTransactionNotFound
	}
	return nil
}

// FindByReservation resolves a wallet reservation back to its transaction;
// used when an idempotency-key replay must return the original result.
func (r *TransactionRepository) FindByReservation(ctx context.Context, reservationID uuid.UUID) (*domain.Transaction, error) {
	tx := &domain.Transaction{}
	err := r.db.GetContext(ctx, tx, `SELECT * FROM transactions WHERE reservation_id = $1`, reservationID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, vtuerrors.ErrTransactionNotFound
		}
		return nil, vtuerrors.Wrap(err, "failed to find transaction by reservation")
	}
	return tx, nil
}

// SetArtifacts stores generated pins/serials; they are only ever returned in
// the creation response.
func (r *TransactionRepository) SetArtifacts(ctx context.Context, id uuid.UUID, artifacts domain.Metadata) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET artifacts = $1 WHERE id = $2
	`, artifacts, id)
	return vtuerrors.Wrap(err, "failed to set artifacts")
}

func (r *TransactionRepository) FindByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Transaction, error) {
	var txs []*domain.Transaction
	err := r.db.SelectContext(ctx, &txs, `
		SELECT * FROM transactions WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, vtuerrors.Wrap(err, "failed to list user transactions")
	}
	return txs, nil
}

func (r *TransactionRepository) FindAll(ctx context.Context, limit, offset int) ([]*domain.Transaction, error) {
	var txs []*domain.Transaction
	err := r.db.SelectContext(ctx, &txs, `
		SELECT * FROM transactions ORDER BY created_at DESC LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, vtuerrors.Wrap(err, "failed to list transactions")
	}
	return txs, nil
}

// FindRecentSince powers the admin live stream.
func (r *TransactionRepository) FindRecentSince(ctx context.Context, since time.Time) ([]*domain.Transaction, error) {
	var txs []*domain.Transaction
	err := r.db.SelectContext(ctx, &txs, `
		SELECT * FROM transactions WHERE created_at > $1 OR (completed_at IS NOT NULL AND completed_at > $1)
		ORDER BY created_at ASC
	`, since)
	if err != nil {
		return nil, vtuerrors.Wrap(err, "failed to find recent transactions")
	}
	return txs, nil
}

// FindStalePending returns pending transactions older than the cutoff for the
// watchdog sweep.
func (r *TransactionRepository) FindStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Transaction, error) {
	var txs []*domain.Transaction
	err := r.db.SelectContext(ctx, &txs, `
		SELECT * FROM transactions WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at ASC LIMIT $2
	`, cutoff, limit)
	if err != nil {
		return nil, vtuerrors.Wrap(err, "failed to find stale transactions")
	}
	return txs, nil
}

// HasSettledFund reports whether the user already has a successful funding
// transaction other than the given one. Used by the referral engine to detect
// the first qualifying deposit.
func (r *TransactionRepository) HasSettledFund(ctx context.Context, userID, excludeTxID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS(
			SELECT 1 FROM transactions
			WHERE user_id = $1 AND kind = 'fund' AND status = 'success' AND id <> $2
		)
	`, userID, excludeTxID)
	return exists, vtuerrors.Wrap(err, "failed to check settled funds")
}

func (r *TransactionRepository) StatsByUser(ctx context.Context, userID uuid.UUID) (*domain.UserStats, error) {
	stats := &domain.UserStats{}
	err := r.db.GetContext(ctx, stats, `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE status = 'success') AS successful,
			COUNT(*) FILTER (WHERE status IN ('failed','refunded')) AS failed,
			COUNT(*) FILTER (WHERE status = 'pending') AS pending,
			COALESCE(SUM(amount) FILTER (WHERE status = 'success' AND kind <> 'fund'), 0) AS total_spent
		FROM transactions WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, vtuerrors.Wrap(err, "failed to aggregate user stats")
	}
	return stats, nil
}

func (r *TransactionRepository) SystemStats(ctx context.Context) (*domain.SystemStats, error) {
	stats := &domain.SystemStats{}
	err := r.db.GetContext(ctx, stats, `
		SELECT
			COUNT(*) AS total_transactions,
			COUNT(*) FILTER (WHERE status = 'success') AS successful,
			COUNT(*) FILTER (WHERE status IN ('failed','refunded')) AS failed,
			COUNT(*) FILTER (WHERE status = 'pending') AS pending,
			COALESCE(SUM(amount) FILTER (WHERE status = 'success' AND kind <> 'fund'), 0) AS total_volume,
			COALESCE(SUM(amount) FILTER (WHERE status = 'success' AND kind = 'fund'), 0) AS fund_volume
		FROM transactions
	`)
	if err != nil {
		return nil, vtuerrors.Wrap(err, "failed to aggregate system stats")
	}
	return stats, nil
}

// ReferencesPlan reports whether any transaction has purchased the plan;
// once true, the plan's price and external id are frozen.
func (r *TransactionRepository) ReferencesPlan(ctx context.Context, planID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS(SELECT 1 FROM transactions WHERE payload->>'plan_id' = $1)
	`, planID.String())
	return exists, vtuerrors.Wrap(err, "failed to check plan references")
}
