package referral

import (
	"context"
	"testing"

	"vtu/internal/domain"
	"vtu/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- Mocks ---

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, credit *domain.ReferralCredit) (bool, error) {
	args := m.Called(ctx, credit)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) FindByReferrer(ctx context.Context, referrerID uuid.UUID) ([]*domain.ReferralCredit, error) {
	args := m.Called(ctx, referrerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ReferralCredit), args.Error(1)
}

func (m *MockRepository) TotalCommission(ctx context.Context, referrerID uuid.UUID) (decimal.Decimal, error) {
	args := m.Called(ctx, referrerID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

type MockTransactionStore struct {
	mock.Mock
}

func (m *MockTransactionStore) HasSettledFund(ctx context.Context, userID, excludeTxID uuid.UUID) (bool, error) {
	args := m.Called(ctx, userID, excludeTxID)
	return args.Bool(0), args.Error(1)
}

type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserStore) CountReferred(ctx context.Context, referrerID uuid.UUID) (int, error) {
	args := m.Called(ctx, referrerID)
	return args.Int(0), args.Error(1)
}

type MockWallet struct {
	mock.Mock
}

func (m *MockWallet) Credit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, reason string, txID *uuid.UUID) (*domain.LedgerEntry, error) {
	args := m.Called(ctx, userID, amount, reason, txID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LedgerEntry), args.Error(1)
}

// --- Helpers ---

func newTestService(repo *MockRepository, txs *MockTransactionStore, users *MockUserStore, w *MockWallet) *Service {
	return NewService(repo, txs, users, w, decimal.RequireFromString("0.05"), logger.NewNop())
}

func settledDeposit(userID uuid.UUID, amount int64) *domain.Transaction {
	return &domain.Transaction{
		ID:     uuid.New(),
		UserID: userID,
		Kind:   domain.KindFund,
		Status: domain.TransactionStatusSuccess,
		Amount: decimal.NewFromInt(amount),
	}
}

// --- Tests ---

func TestFirstDepositPaysCommission(t *testing.T) {
	repo := new(MockRepository)
	txs := new(MockTransactionStore)
	users := new(MockUserStore)
	w := new(MockWallet)
	service := newTestService(repo, txs, users, w)
	ctx := context.Background()

	referrerID := uuid.New()
	userID := uuid.New()
	tx := settledDeposit(userID, 10000)

	users.On("FindByID", ctx, userID).Return(&domain.User{ID: userID, ReferredBy: &referrerID}, nil)
	txs.On("HasSettledFund", ctx, userID, tx.ID).Return(false, nil)
	repo.On("Create", ctx, mock.MatchedBy(func(c *domain.ReferralCredit) bool {
		return c.ReferrerID == referrerID &&
			c.ReferredUserID == userID &&
			c.QualifyingTransactionID == tx.ID &&
			c.CommissionAmount.Equal(decimal.NewFromInt(500))
	})).Return(true, nil)
	w.On("Credit", ctx, referrerID, mock.MatchedBy(func(a decimal.Decimal) bool {
		return a.Equal(decimal.NewFromInt(500))
	}), "referral commission", &tx.ID).Return(&domain.LedgerEntry{ID: uuid.New()}, nil)

	err := service.OnDepositSettled(ctx, tx)

	require.NoError(t, err)
	repo.AssertExpectations(t)
	w.AssertExpectations(t)
}

func TestSecondDepositPaysNothing(t *testing.T) {
	repo := new(MockRepository)
	txs := new(MockTransactionStore)
	users := new(MockUserStore)
	w := new(MockWallet)
	service := newTestService(repo, txs, users, w)
	ctx := context.Background()

	referrerID := uuid.New()
	userID := uuid.New()
	tx := settledDeposit(userID, 10000)

	users.On("FindByID", ctx, userID).Return(&domain.User{ID: userID, ReferredBy: &referrerID}, nil)
	txs.On("HasSettledFund", ctx, userID, tx.ID).Return(true, nil)

	err := service.OnDepositSettled(ctx, tx)

	require.NoError(t, err)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	w.AssertNotCalled(t, "Credit", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUnreferredUserPaysNothing(t *testing.T) {
	repo := new(MockRepository)
	txs := new(MockTransactionStore)
	users := new(MockUserStore)
	w := new(MockWallet)
	service := newTestService(repo, txs, users, w)
	ctx := context.Background()

	userID := uuid.New()
	tx := settledDeposit(userID, 10000)

	users.On("FindByID", ctx, userID).Return(&domain.User{ID: userID}, nil)

	err := service.OnDepositSettled(ctx, tx)

	require.NoError(t, err)
	txs.AssertNotCalled(t, "HasSettledFund", mock.Anything, mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestNonFundTransactionIgnored(t *testing.T) {
	repo := new(MockRepository)
	txs := new(MockTransactionStore)
	users := new(MockUserStore)
	w := new(MockWallet)
	service := newTestService(repo, txs, users, w)

	err := service.OnDepositSettled(context.Background(), &domain.Transaction{
		ID:     uuid.New(),
		UserID: uuid.New(),
		Kind:   domain.KindAirtime,
		Status: domain.TransactionStatusSuccess,
		Amount: decimal.NewFromInt(10000),
	})

	require.NoError(t, err)
	users.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

func TestFailedDepositIgnored(t *testing.T) {
	repo := new(MockRepository)
	txs := new(MockTransactionStore)
	users := new(MockUserStore)
	w := new(MockWallet)
	service := newTestService(repo, txs, users, w)

	err := service.OnDepositSettled(context.Background(), &domain.Transaction{
		ID:     uuid.New(),
		UserID: uuid.New(),
		Kind:   domain.KindFund,
		Status: domain.TransactionStatusFailed,
		Amount: decimal.NewFromInt(10000),
	})

	require.NoError(t, err)
	users.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

func TestDuplicateHookFiringCreditsOnce(t *testing.T) {
	repo := new(MockRepository)
	txs := new(MockTransactionStore)
	users := new(MockUserStore)
	w := new(MockWallet)
	service := newTestService(repo, txs, users, w)
	ctx := context.Background()

	referrerID := uuid.New()
	userID := uuid.New()
	tx := settledDeposit(userID, 10000)

	users.On("FindByID", ctx, userID).Return(&domain.User{ID: userID, ReferredBy: &referrerID}, nil)
	txs.On("HasSettledFund", ctx, userID, tx.ID).Return(false, nil)
	// The unique constraint lets only one insert through; the loser gets
	// created=false and must not pay.
	repo.On("Create", ctx, mock.AnythingOfType("*domain.ReferralCredit")).Return(false, nil)

	err := service.OnDepositSettled(ctx, tx)

	require.NoError(t, err)
	w.AssertNotCalled(t, "Credit", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCommissionRounding(t *testing.T) {
	repo := new(MockRepository)
	txs := new(MockTransactionStore)
	users := new(MockUserStore)
	w := new(MockWallet)
	service := newTestService(repo, txs, users, w)
	ctx := context.Background()

	referrerID := uuid.New()
	userID := uuid.New()
	tx := &domain.Transaction{
		ID:     uuid.New(),
		UserID: userID,
		Kind:   domain.KindFund,
		Status: domain.TransactionStatusSuccess,
		Amount: decimal.RequireFromString("333.33"),
	}

	users.On("FindByID", ctx, userID).Return(&domain.User{ID: userID, ReferredBy: &referrerID}, nil)
	txs.On("HasSettledFund", ctx, userID, tx.ID).Return(false, nil)
	// 333.33 * 0.05 = 16.6665, rounded to 16.67.
	repo.On("Create", ctx, mock.MatchedBy(func(c *domain.ReferralCredit) bool {
		return c.CommissionAmount.Equal(decimal.RequireFromString("16.67"))
	})).Return(true, nil)
	w.On("Credit", ctx, referrerID, mock.MatchedBy(func(a decimal.Decimal) bool {
		return a.Equal(decimal.RequireFromString("16.67"))
	}), "referral commission", &tx.ID).Return(&domain.LedgerEntry{ID: uuid.New()}, nil)

	err := service.OnDepositSettled(ctx, tx)

	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestStats(t *testing.T) {
	repo := new(MockRepository)
	txs := new(MockTransactionStore)
	users := new(MockUserStore)
	w := new(MockWallet)
	service := newTestService(repo, txs, users, w)
	ctx := context.Background()

	userID := uuid.New()
	credits := []*domain.ReferralCredit{{ID: uuid.New(), ReferrerID: userID}}

	users.On("FindByID", ctx, userID).Return(&domain.User{ID: userID, ReferralCode: "AB12CD34"}, nil)
	users.On("CountReferred", ctx, userID).Return(4, nil)
	repo.On("TotalCommission", ctx, userID).Return(decimal.NewFromInt(1200), nil)
	repo.On("FindByReferrer", ctx, userID).Return(credits, nil)

	stats, err := service.Stats(ctx, userID)

	require.NoError(t, err)
	assert.Equal(t, "AB12CD34", stats.ReferralCode)
	assert.Equal(t, 4, stats.TotalReferred)
	assert.True(t, stats.TotalCommission.Equal(decimal.NewFromInt(1200)))
	assert.Len(t, stats.Credits, 1)
}
