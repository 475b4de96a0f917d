// Package referral pays commissions on a referred user's first deposit.
package referral

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"vtu/internal/domain"
	"vtu/pkg/logger"
)

type Repository interface {
	Create(ctx context.Context, credit *domain.ReferralCredit) (bool, error)
	FindByReferrer(ctx context.Context, referrerID uuid.UUID) ([]*domain.ReferralCredit, error)
	TotalCommission(ctx context.Context, referrerID uuid.UUID) (decimal.Decimal, error)
}

type TransactionStore interface {
	HasSettledFund(ctx context.Context, userID, excludeTxID uuid.UUID) (bool, error)
}

type UserStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	CountReferred(ctx context.Context, referrerID uuid.UUID) (int, error)
}

type Wallet interface {
	Credit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, reason string, txID *uuid.UUID) (*domain.LedgerEntry, error)
}

type Service struct {
	repo   Repository
	txs    TransactionStore
	users  UserStore
	wallet Wallet
	rate   decimal.Decimal
	logger logger.Logger
}

func NewService(repo Repository, txs TransactionStore, users UserStore, w Wallet, rate decimal.Decimal, log logger.Logger) *Service {
	return &Service{
		repo:   repo,
		txs:    txs,
		users:  users,
		wallet: w,
		rate:   rate,
		logger: log,
	}
}

// OnDepositSettled pays the referrer when this is the referred user's first
// successful deposit. Exactly-once holds even if the settlement hook fires
// more than once: the credit row's unique (referrer, referred) constraint
// decides, and only the inserting caller pays out.
func (s *Service) OnDepositSettled(ctx context.Context, tx *domain.Transaction) error {
	if tx.Kind != domain.KindFund || tx.Status != domain.TransactionStatusSuccess {
		return nil
	}

	user, err := s.users.FindByID(ctx, tx.UserID)
	if err != nil {
		return err
	}
	if user.ReferredBy == nil {
		return nil
	}

	earlier, err := s.txs.HasSettledFund(ctx, user.ID, tx.ID)
	if err != nil {
		return err
	}
	if earlier {
		return nil
	}

	commission := tx.Amount.Mul(s.rate).Round(2)
	if !commission.IsPositive() {
		return nil
	}

	credit := &domain.ReferralCredit{
		ID:                      uuid.New(),
		ReferrerID:              *user.ReferredBy,
		ReferredUserID:          user.ID,
		QualifyingTransactionID: tx.ID,
		CommissionAmount:        commission,
		CreatedAt:               time.Now(),
	}
	created, err := s.repo.Create(ctx, credit)
	if err != nil {
		return err
	}
	if !created {
		return nil
	}

	if _, err := s.wallet.Credit(ctx, credit.ReferrerID, commission, "referral commission", &tx.ID); err != nil {
		return err
	}

	s.logger.Info("Referral commission paid", map[string]interface{}{
		"referrer_id": credit.ReferrerID,
		"referred_id": user.ID,
		"commission":  commission.String(),
	})
	return nil
}

// AffiliateStats is the reseller dashboard summary.
type AffiliateStats struct {
	ReferralCode    string                   `json:"referral_code"`
	TotalReferred   int                      `json:"total_referred"`
	TotalCommission decimal.Decimal          `json:"total_commission"`
	Credits         []*domain.ReferralCredit `json:"credits"`
}

func (s *Service) Stats(ctx context.Context, userID uuid.UUID) (*AffiliateStats, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	referred, err := s.users.CountReferred(ctx, userID)
	if err != nil {
		return nil, err
	}
	total, err := s.repo.TotalCommission(ctx, userID)
	if err != nil {
		return nil, err
	}
	credits, err := s.repo.FindByReferrer(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &AffiliateStats{
		ReferralCode:    user.ReferralCode,
		TotalReferred:   referred,
		TotalCommission: total,
		Credits:         credits,
	}, nil
}
