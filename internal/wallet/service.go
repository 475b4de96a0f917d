// Package wallet implements the ledger: every balance movement on the
// platform goes through this service.
package wallet

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"vtu/internal/domain"
	"vtu/pkg/errors"
	"vtu/pkg/logger"
)

// Repository is the persistence contract. All methods are atomic; per-user
// serialization happens in the store (conditional updates / row locks), never
// with an in-process mutex.
type Repository interface {
	ReserveDebit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, idempotencyKey string, txID *uuid.UUID) (*domain.LedgerEntry, bool, error)
	LinkTransaction(ctx context.Context, reservationID, txID uuid.UUID) error
	SettleDebitFinal(ctx context.Context, reservationID uuid.UUID) error
	SettleDebitRefund(ctx context.Context, reservationID uuid.UUID) error
	Credit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, reason string, txID *uuid.UUID) (*domain.LedgerEntry, error)
	CreditOnce(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, reason, idempotencyKey string, txID *uuid.UUID) (*domain.LedgerEntry, bool, error)
	FindEntryByID(ctx context.Context, id uuid.UUID) (*domain.LedgerEntry, error)
	EntriesByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.LedgerEntry, error)
	RecomputeBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
	DailyDebits(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
}

type Service struct {
	repo   Repository
	logger logger.Logger
}

func NewService(repo Repository, log logger.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: log,
	}
}

// Reservation is the handle returned by Reserve; Replayed is true when the
// idempotency key matched an earlier reservation.
type Reservation struct {
	ID       uuid.UUID
	Amount   decimal.Decimal
	Replayed bool
}

// Reserve places a hold on the user's balance. Replaying the same key
// returns the original reservation instead of double-debiting.
func (s *Service) Reserve(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, idempotencyKey string, txID *uuid.UUID) (*Reservation, error) {
	if !amount.IsPositive() {
		return nil, errors.ErrInvalidAmount
	}
	if idempotencyKey == "" {
		return nil, errors.ErrDuplicateKey
	}

	entry, created, err := s.repo.ReserveDebit(ctx, userID, amount, idempotencyKey, txID)
	if err != nil {
		return nil, err
	}

	if !created {
		s.logger.Info("Reservation replayed", map[string]interface{}{
			"user_id":         userID,
			"idempotency_key": idempotencyKey,
			"reservation_id":  entry.ID,
		})
		return &Reservation{ID: entry.ID, Amount: entry.Amount, Replayed: true}, nil
	}

	s.logger.Info("Funds reserved", map[string]interface{}{
		"user_id":        userID,
		"amount":         amount.String(),
		"reservation_id": entry.ID,
	})
	return &Reservation{ID: entry.ID, Amount: entry.Amount}, nil
}

// LinkTransaction stamps the transaction id onto a reservation taken before
// its transaction row existed, so refunds stay traceable to the transaction.
func (s *Service) LinkTransaction(ctx context.Context, reservationID, txID uuid.UUID) error {
	return s.repo.LinkTransaction(ctx, reservationID, txID)
}

// SettleSuccess finalizes a hold; the money was already deducted.
func (s *Service) SettleSuccess(ctx context.Context, reservationID uuid.UUID) error {
	return s.repo.SettleDebitFinal(ctx, reservationID)
}

// SettleFailure refunds a hold with an equal credit entry; net effect zero.
func (s *Service) SettleFailure(ctx context.Context, reservationID uuid.UUID) error {
	if err := s.repo.SettleDebitRefund(ctx, reservationID); err != nil {
		return err
	}
	s.logger.Info("Reservation refunded", map[string]interface{}{
		"reservation_id": reservationID,
	})
	return nil
}

// Credit adds funds; used by deposits and referral commissions.
func (s *Service) Credit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, reason string, txID *uuid.UUID) (*domain.LedgerEntry, error) {
	if !amount.IsPositive() {
		return nil, errors.ErrInvalidAmount
	}
	entry, err := s.repo.Credit(ctx, userID, amount, reason, txID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Wallet credited", map[string]interface{}{
		"user_id": userID,
		"amount":  amount.String(),
		"reason":  reason,
	})
	return entry, nil
}

// CreditOnce credits at most once per (user, key); replaying the same key
// returns the original entry without moving money again. Deposits use it so
// a confirmation retried after a partial failure can never pay twice.
func (s *Service) CreditOnce(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, reason, idempotencyKey string, txID *uuid.UUID) (*domain.LedgerEntry, bool, error) {
	if !amount.IsPositive() {
		return nil, false, errors.ErrInvalidAmount
	}
	if idempotencyKey == "" {
		return nil, false, errors.ErrDuplicateKey
	}
	entry, created, err := s.repo.CreditOnce(ctx, userID, amount, reason, idempotencyKey, txID)
	if err != nil {
		return nil, false, err
	}
	if created {
		s.logger.Info("Wallet credited", map[string]interface{}{
			"user_id": userID,
			"amount":  amount.String(),
			"reason":  reason,
		})
	}
	return entry, created, nil
}

func (s *Service) Entries(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.LedgerEntry, error) {
	return s.repo.EntriesByUser(ctx, userID, limit, offset)
}

// RecomputeBalance derives the balance from ledger entries alone; used by
// reconciliation and tests to assert the stored balance never drifts.
func (s *Service) RecomputeBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	return s.repo.RecomputeBalance(ctx, userID)
}

// DailySpend reports today's holds plus settled spend for the KYC gate.
func (s *Service) DailySpend(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	return s.repo.DailyDebits(ctx, userID)
}
