package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"vtu/internal/domain"
	vtuerrors "vtu/pkg/errors"
)

// LedgerRepository owns all balance mutation. users.balance is the available
// balance: finalized credits minus every debit (a pending debit is a hold).
// No other repository writes ledger_entries or users.balance.
type LedgerRepository struct {
	db *sqlx.DB
}

func NewLedgerRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// ReserveDebit atomically checks funds, deducts the amount and appends a
// pending debit entry. Replaying the same (user, key) returns the original
// entry with created=false instead of double-debiting.
func (r *LedgerRepository) ReserveDebit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, idempotencyKey string, txID *uuid.UUID) (*domain.LedgerEntry, bool, error) {
	// Fast path for replays, before touching the balance.
	if existing, err := r.FindByIdempotencyKey(ctx, userID, idempotencyKey); err == nil {
		return existing, false, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, vtuerrors.Wrap(err, "failed to begin reserve tx")
	}
	defer tx.Rollback()

	var balanceAfter decimal.Decimal
	err = tx.QueryRowxContext(ctx, `
		UPDATE users SET
			balance = balance - $1,
			updated_at = NOW()
		WHERE id = $2 AND balance >= $1
		RETURNING balance
	`, amount, userID).Scan(&balanceAfter)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, vtuerrors.ErrInsufficientFunds
		}
		return nil, false, vtuerrors.Wrap(err, "failed to debit balance")
	}

	entry := &domain.LedgerEntry{
		ID:             uuid.New(),
		UserID:         userID,
		Direction:      domain.EntryDebit,
		Amount:         amount,
		Status:         domain.EntryStatusPending,
		IdempotencyKey: &idempotencyKey,
		Reason:         "purchase hold",
		TransactionID:  txID,
		BalanceAfter:   balanceAfter,
		CreatedAt:      time.Now(),
	}

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO ledger_entries (
			id, user_id, direction, amount, status, idempotency_key, reason, transaction_id, balance_after, created_at
		) VALUES (
			:id, :user_id, :direction, :amount, :status, :idempotency_key, :reason, :transaction_id, :balance_after, :created_at
		)
	`, entry)
	if err != nil {
		if isUniqueViolation(err) {
			// Lost a race with a concurrent replay; the rollback undoes our
			// debit and the winner's entry is authoritative.
			if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
				return nil, false, vtuerrors.Wrap(rbErr, "failed to roll back duplicate reserve")
			}
			existing, ferr := r.FindByIdempotencyKey(ctx, userID, idempotencyKey)
			if ferr != nil {
				return nil, false, vtuerrors.ErrDuplicateKey
			}
			return existing, false, nil
		}
		return nil, false, vtuerrors.Wrap(err, "failed to insert ledger entry")
	}

	if err := tx.Commit(); err != nil {
		return nil, false, vtuerrors.Wrap(err, "failed to commit reserve")
	}
	return entry, true, nil
}

// SettleDebitFinal marks a pending debit final. The balance was already
// deducted at reserve time, so nothing else moves.
func (r *LedgerRepository) SettleDebitFinal(ctx context.Context, reservationID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE ledger_entries SET
			status = $1,
			settled_at = NOW()
		WHERE id = $2 AND status = $3
	`, domain.EntryStatusFinal, reservationID, domain.EntryStatusPending)
	if err != nil {
		return vtuerrors.Wrap(err, "failed to finalize debit")
	}
	return r.settledRows(ctx, result, reservationID)
}

// SettleDebitRefund marks a pending debit refunded and appends the matching
// credit entry so the transaction nets to zero.
func (r *LedgerRepository) SettleDebitRefund(ctx context.Context, reservationID uuid.UUID) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return vtuerrors.Wrap(err, "failed to begin refund tx")
	}
	defer tx.Rollback()

	var entry domain.LedgerEntry
	err = tx.GetContext(ctx, &entry, `
		SELECT * FROM ledger_entries WHERE id = $1 FOR UPDATE
	`, reservationID)
	if err != nil {
		if err == sql.ErrNoRows {
			return vtuerrors.ErrReservationNotFound
		}
		return vtuerrors.Wrap(err, "failed to lock reservation")
	}
	if entry.Status != domain.EntryStatusPending {
		return vtuerrors.ErrReservationSettled
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE ledger_entries SET status = $1, settled_at = NOW() WHERE id = $2
	`, domain.EntryStatusRefunded, reservationID)
	if err != nil {
		return vtuerrors.Wrap(err, "failed to mark debit refunded")
	}

	var balanceAfter decimal.Decimal
	err = tx.QueryRowxContext(ctx, `
		UPDATE users SET balance = balance + $1, updated_at = NOW()
		WHERE id = $2
		RETURNING balance
	`, entry.Amount, entry.UserID).Scan(&balanceAfter)
	if err != nil {
		return vtuerrors.Wrap(err, "failed to return funds")
	}

	now := time.Now()
	refund := &domain.LedgerEntry{
		ID:            uuid.New(),
		UserID:        entry.UserID,
		Direction:     domain.EntryCredit,
		Amount:        entry.Amount,
		Status:        domain.EntryStatusFinal,
		Reason:        "refund",
		TransactionID: entry.TransactionID,
		BalanceAfter:  balanceAfter,
		CreatedAt:     now,
		SettledAt:     &now,
	}
	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO ledger_entries (
			id, user_id, direction, amount, status, reason, transaction_id, balance_after, created_at, settled_at
		) VALUES (
			:id, :user_id, :direction, :amount, :status, :reason, :transaction_id, :balance_after, :created_at, :settled_at
		)
	`, refund)
	if err != nil {
		return vtuerrors.Wrap(err, "failed to insert refund entry")
	}

	return tx.Commit()
}

// LinkTransaction backfills the transaction id onto a reservation entry. The
// hold is taken before the transaction row exists, so the id is set here;
// refund credits copy it from the debit they reverse.
func (r *LedgerRepository) LinkTransaction(ctx context.Context, reservationID, txID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE ledger_entries SET transaction_id = $1 WHERE id = $2
	`, txID, reservationID)
	if err != nil {
		return vtuerrors.Wrap(err, "failed to link reservation to transaction")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return vtuerrors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return vtuerrors.ErrReservationNotFound
	}
	return nil
}

// Credit adds funds and appends a final credit entry.
func (r *LedgerRepository) Credit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, reason string, txID *uuid.UUID) (*domain.LedgerEntry, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, vtuerrors.Wrap(err, "failed to begin credit tx")
	}
	defer tx.Rollback()

	var balanceAfter decimal.Decimal
	err = tx.QueryRowxContext(ctx, `
		UPDATE users SET balance = balance + $1, updated_at = NOW()
		WHERE id = $2
		RETURNING balance
	`, amount, userID).Scan(&balanceAfter)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, vtuerrors.ErrUserNotFound
		}
		return nil, vtuerrors.Wrap(err, "failed to credit balance")
	}

	now := time.Now()
	entry := &domain.LedgerEntry{
		ID:            uuid.New(),
		UserID:        userID,
		Direction:     domain.EntryCredit,
		Amount:        amount,
		Status:        domain.EntryStatusFinal,
		Reason:        reason,
		TransactionID: txID,
		BalanceAfter:  balanceAfter,
		CreatedAt:     now,
		SettledAt:     &now,
	}
	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO ledger_entries (
			id, user_id, direction, amount, status, reason, transaction_id, balance_after, created_at, settled_at
		) VALUES (
			:id, :user_id, :direction, :amount, :status, :reason, :transaction_id, :balance_after, :created_at, :settled_at
		)
	`, entry)
	if err != nil {
		return nil, vtuerrors.Wrap(err, "failed to insert credit entry")
	}

	if err := tx.Commit(); err != nil {
		return nil, vtuerrors.Wrap(err, "failed to commit credit")
	}
	return entry, nil
}

// CreditOnce is Credit with an idempotency key: replaying the same
// (user, key) returns the original entry with created=false instead of
// moving money again.
func (r *LedgerRepository) CreditOnce(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, reason, idempotencyKey string, txID *uuid.UUID) (*domain.LedgerEntry, bool, error) {
	if existing, err := r.FindByIdempotencyKey(ctx, userID, idempotencyKey); err == nil {
		return existing, false, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, vtuerrors.Wrap(err, "failed to begin credit tx")
	}
	defer tx.Rollback()

	var balanceAfter decimal.Decimal
	err = tx.QueryRowxContext(ctx, `
		UPDATE users SET balance = balance + $1, updated_at = NOW()
		WHERE id = $2
		RETURNING balance
	`, amount, userID).Scan(&balanceAfter)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, vtuerrors.ErrUserNotFound
		}
		return nil, false, vtuerrors.Wrap(err, "failed to credit balance")
	}

	now := time.Now()
	entry := &domain.LedgerEntry{
		ID:             uuid.New(),
		UserID:         userID,
		Direction:      domain.EntryCredit,
		Amount:         amount,
		Status:         domain.EntryStatusFinal,
		IdempotencyKey: &idempotencyKey,
		Reason:         reason,
		TransactionID:  txID,
		BalanceAfter:   balanceAfter,
		CreatedAt:      now,
		SettledAt:      &now,
	}
	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO ledger_entries (
			id, user_id, direction, amount, status, idempotency_key, reason, transaction_id, balance_after, created_at, settled_at
		) VALUES (
			:id, :user_id, :direction, :amount, :status, :idempotency_key, :reason, :transaction_id, :balance_after, :created_at, :settled_at
		)
	`, entry)
	if err != nil {
		if isUniqueViolation(err) {
			// Lost a race with a concurrent credit; the rollback undoes our
			// balance update and the winner's entry is authoritative.
			if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
				return nil, false, vtuerrors.Wrap(rbErr, "failed to roll back duplicate credit")
			}
			existing, ferr := r.FindByIdempotencyKey(ctx, userID, idempotencyKey)
			if ferr != nil {
				return nil, false, vtuerrors.ErrDuplicateKey
			}
			return existing, false, nil
		}
		return nil, false, vtuerrors.Wrap(err, "failed to insert credit entry")
	}

	if err := tx.Commit(); err != nil {
		return nil, false, vtuerrors.Wrap(err, "failed to commit credit")
	}
	return entry, true, nil
}

func (r *LedgerRepository) FindEntryByID(ctx context.Context, id uuid.UUID) (*domain.LedgerEntry, error) {
	entry := &domain.LedgerEntry{}
	err := r.db.GetContext(ctx, entry, `SELECT * FROM ledger_entries WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, vtuerrors.ErrReservationNotFound
		}
		return nil, vtuerrors.Wrap(err, "failed to find ledger entry")
	}
	return entry, nil
}

func (r *LedgerRepository) FindByIdempotencyKey(ctx context.Context, userID uuid.UUID, key string) (*domain.LedgerEntry, error) {
	entry := &domain.LedgerEntry{}
	err := r.db.GetContext(ctx, entry, `
		SELECT * FROM ledger_entries WHERE user_id = $1 AND idempotency_key = $2
	`, userID, key)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, vtuerrors.ErrReservationNotFound
		}
		return nil, vtuerrors.Wrap(err, "failed to find entry by idempotency key")
	}
	return entry, nil
}

func (r *LedgerRepository) EntriesByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.LedgerEntry, error) {
	var entries []*domain.LedgerEntry
	err := r.db.SelectContext(ctx, &entries, `
		SELECT * FROM ledger_entries WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, vtuerrors.Wrap(err, "failed to list ledger entries")
	}
	return entries, nil
}

// RecomputeBalance derives the available balance from the entries alone:
// finalized credits minus every debit. A pending debit is a hold; a refunded
// debit cancels against its refund credit.
func (r *LedgerRepository) RecomputeBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := r.db.GetContext(ctx, &balance, `
		SELECT COALESCE(SUM(
			CASE
				WHEN direction = 'credit' AND status = 'final' THEN amount
				WHEN direction = 'debit' THEN -amount
				ELSE 0
			END
		), 0)
		FROM ledger_entries WHERE user_id = $1
	`, userID)
	if err != nil {
		return decimal.Zero, vtuerrors.Wrap(err, "failed to recompute balance")
	}
	return balance, nil
}

// DailyDebits sums today's holds and spends for the KYC limit gate.
func (r *LedgerRepository) DailyDebits(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.GetContext(ctx, &total, `
		SELECT COALESCE(SUM(amount), 0) FROM ledger_entries
		WHERE user_id = $1 AND direction = 'debit' AND status IN ('pending','final')
		  AND created_at >= date_trunc('day', NOW())
	`, userID)
	if err != nil {
		return decimal.Zero, vtuerrors.Wrap(err, "failed to sum daily debits")
	}
	return total, nil
}

func (r *LedgerRepository) settledRows(ctx context.Context, result sql.Result, reservationID uuid.UUID) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return vtuerrors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		if _, err := r.FindEntryByID(ctx, reservationID); err != nil {
			return err
		}
		return vtuerrors.ErrReservationSettled
	}
	return nil
}
