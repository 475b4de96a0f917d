package dispatch

import (
	"context"
	"fmt"
	"testing"
	"time"

	"vtu/internal/domain"
	"vtu/internal/wallet"
	"vtu/pkg/errors"
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

func (m *MockRepository) Create(ctx context.Context, tx *domain.Transaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

func (m *MockRepository) FindByReservation(ctx context.Context, reservationID uuid.UUID) (*domain.Transaction, error) {
	args := m.Called(ctx, reservationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

func (m *MockRepository) Complete(ctx context.Context, id uuid.UUID, status domain.TransactionStatus, resourceID *uuid.UUID, failureReason *string) error {
	args := m.Called(ctx, id, status, resourceID, failureReason)
	return args.Error(0)
}

func (m *MockRepository) SetArtifacts(ctx context.Context, id uuid.UUID, artifacts domain.Metadata) error {
	args := m.Called(ctx, id, artifacts)
	return args.Error(0)
}

func (m *MockRepository) FindByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Transaction, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Transaction), args.Error(1)
}

func (m *MockRepository) FindStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Transaction, error) {
	args := m.Called(ctx, cutoff, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Transaction), args.Error(1)
}

func (m *MockRepository) StatsByUser(ctx context.Context, userID uuid.UUID) (*domain.UserStats, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UserStats), args.Error(1)
}

type MockWallet struct {
	mock.Mock
}

func (m *MockWallet) Reserve(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, idempotencyKey string, txID *uuid.UUID) (*wallet.Reservation, error) {
	args := m.Called(ctx, userID, amount, idempotencyKey, txID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Reservation), args.Error(1)
}

func (m *MockWallet) LinkTransaction(ctx context.Context, reservationID, txID uuid.UUID) error {
	args := m.Called(ctx, reservationID, txID)
	return args.Error(0)
}

func (m *MockWallet) SettleSuccess(ctx context.Context, reservationID uuid.UUID) error {
	args := m.Called(ctx, reservationID)
	return args.Error(0)
}

func (m *MockWallet) SettleFailure(ctx context.Context, reservationID uuid.UUID) error {
	args := m.Called(ctx, reservationID)
	return args.Error(0)
}

func (m *MockWallet) CreditOnce(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, reason, idempotencyKey string, txID *uuid.UUID) (*domain.LedgerEntry, bool, error) {
	args := m.Called(ctx, userID, amount, reason, idempotencyKey, txID)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*domain.LedgerEntry), args.Bool(1), args.Error(2)
}

func (m *MockWallet) DailySpend(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

type MockPool struct {
	mock.Mock
}

func (m *MockPool) Select(ctx context.Context, network domain.Network, amountNeeded decimal.Decimal, exclude *uuid.UUID) (*domain.SimResource, error) {
	args := m.Called(ctx, network, amountNeeded, exclude)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SimResource), args.Error(1)
}

func (m *MockPool) MarkFailure(ctx context.Context, id uuid.UUID, chargedAmount decimal.Decimal) error {
	args := m.Called(ctx, id, chargedAmount)
	return args.Error(0)
}

func (m *MockPool) Release(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockPlanStore struct {
	mock.Mock
}

func (m *MockPlanStore) FindByID(ctx context.Context, id uuid.UUID) (*domain.DataPlan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DataPlan), args.Error(1)
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

type MockClient struct {
	mock.Mock
}

func (m *MockClient) Vend(ctx context.Context, req *VendRequest) (*VendResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*VendResult), args.Error(1)
}

type MockReferral struct {
	mock.Mock
}

func (m *MockReferral) OnDepositSettled(ctx context.Context, tx *domain.Transaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

// --- Fixtures ---

type fixture struct {
	repo     *MockRepository
	wallet   *MockWallet
	pool     *MockPool
	plans    *MockPlanStore
	users    *MockUserStore
	provider *MockClient
	referral *MockReferral
	service  *Service
}

func newFixture() *fixture {
	f := &fixture{
		repo:     new(MockRepository),
		wallet:   new(MockWallet),
		pool:     new(MockPool),
		plans:    new(MockPlanStore),
		users:    new(MockUserStore),
		provider: new(MockClient),
		referral: new(MockReferral),
	}
	cfg := Config{
		Timeout:              5 * time.Second,
		UnverifiedDailyLimit: decimal.NewFromInt(50000),
	}
	f.service = NewService(f.repo, f.wallet, f.pool, f.plans, f.users, f.provider, f.referral, cfg, logger.NewNop())
	return f
}

func verifiedUser(id uuid.UUID) *domain.User {
	return &domain.User{ID: id, Role: domain.RoleUser, KYCStatus: domain.KYCStatusVerified, IsActive: true}
}

func decEq(want decimal.Decimal) interface{} {
	return mock.MatchedBy(func(got decimal.Decimal) bool { return got.Equal(want) })
}

func excludes(id uuid.UUID) interface{} {
	return mock.MatchedBy(func(ex *uuid.UUID) bool { return ex != nil && *ex == id })
}

// --- Tests ---

func TestPurchaseAirtimeSuccess(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	userID := uuid.New()
	amount := decimal.NewFromInt(500)
	reservationID := uuid.New()
	sim := &domain.SimResource{ID: uuid.New(), Network: domain.NetworkMTN, Phone: "08031112222", Status: domain.ResourceStatusActive}

	f.users.On("FindByID", ctx, userID).Return(verifiedUser(userID), nil)
	f.wallet.On("Reserve", ctx, userID, decEq(amount), "air-1", (*uuid.UUID)(nil)).
		Return(&wallet.Reservation{ID: reservationID, Amount: amount}, nil)
	f.repo.On("Create", ctx, mock.AnythingOfType("*domain.Transaction")).Return(nil)
	f.wallet.On("LinkTransaction", ctx, reservationID, mock.AnythingOfType("uuid.UUID")).Return(nil)
	f.pool.On("Select", ctx, domain.NetworkMTN, decEq(amount), (*uuid.UUID)(nil)).Return(sim, nil)
	f.provider.On("Vend", mock.Anything, mock.AnythingOfType("*dispatch.VendRequest")).
		Return(&VendResult{ProviderRef: "prov-123"}, nil)
	f.pool.On("Release", ctx, sim.ID).Return(nil)
	f.wallet.On("SettleSuccess", ctx, reservationID).Return(nil)
	f.repo.On("Complete", ctx, mock.AnythingOfType("uuid.UUID"), domain.TransactionStatusSuccess, excludes(sim.ID), (*string)(nil)).Return(nil)

	tx, err := f.service.PurchaseAirtime(ctx, userID, &AirtimeRequest{
		Network:        domain.NetworkMTN,
		Phone:          "08030001111",
		Amount:         amount,
		IdempotencyKey: "air-1",
	})

	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusSuccess, tx.Status)
	assert.Equal(t, domain.KindAirtime, tx.Kind)
	assert.Equal(t, &sim.ID, tx.ResourceID)
	f.wallet.AssertNotCalled(t, "SettleFailure", mock.Anything, mock.Anything)
	f.pool.AssertNotCalled(t, "MarkFailure", mock.Anything, mock.Anything, mock.Anything)
	f.repo.AssertExpectations(t)
	f.wallet.AssertExpectations(t)
	f.pool.AssertExpectations(t)
}

func TestPurchaseLinksReservationToDebitEntry(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	userID := uuid.New()
	amount := decimal.NewFromInt(750)
	reservationID := uuid.New()
	sim := &domain.SimResource{ID: uuid.New(), Network: domain.NetworkMTN, Phone: "08031112222"}

	var created *domain.Transaction
	f.users.On("FindByID", ctx, userID).Return(verifiedUser(userID), nil)
	f.wallet.On("Reserve", ctx, userID, decEq(amount), "air-link", (*uuid.UUID)(nil)).
		Return(&wallet.Reservation{ID: reservationID, Amount: amount}, nil)
	f.repo.On("Create", ctx, mock.AnythingOfType("*domain.Transaction")).
		Run(func(args mock.Arguments) { created = args.Get(1).(*domain.Transaction) }).
		Return(nil)
	// The debit entry is stamped with the row's id so refund credits stay
	// traceable to the transaction they reverse.
	f.wallet.On("LinkTransaction", ctx, reservationID, mock.MatchedBy(func(id uuid.UUID) bool {
		return created != nil && id == created.ID
	})).Return(nil)
	f.pool.On("Select", ctx, domain.NetworkMTN, decEq(amount), (*uuid.UUID)(nil)).Return(sim, nil)
	f.provider.On("Vend", mock.Anything, mock.AnythingOfType("*dispatch.VendRequest")).
		Return(&VendResult{ProviderRef: "prov-link"}, nil)
	f.pool.On("Release", ctx, sim.ID).Return(nil)
	f.wallet.On("SettleSuccess", ctx, reservationID).Return(nil)
	f.repo.On("Complete", ctx, mock.AnythingOfType("uuid.UUID"), domain.TransactionStatusSuccess, excludes(sim.ID), (*string)(nil)).Return(nil)

	tx, err := f.service.PurchaseAirtime(ctx, userID, &AirtimeRequest{
		Network:        domain.NetworkMTN,
		Phone:          "08030001111",
		Amount:         amount,
		IdempotencyKey: "air-link",
	})

	require.NoError(t, err)
	f.wallet.AssertCalled(t, "LinkTransaction", ctx, reservationID, tx.ID)
	f.wallet.AssertNumberOfCalls(t, "LinkTransaction", 1)
}

func TestPurchaseSettleFailureLeavesRowForWatchdog(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	userID := uuid.New()
	amount := decimal.NewFromInt(600)
	reservationID := uuid.New()
	sim := &domain.SimResource{ID: uuid.New(), Network: domain.NetworkMTN, Phone: "08031112222"}

	f.users.On("FindByID", ctx, userID).Return(verifiedUser(userID), nil)
	f.wallet.On("Reserve", ctx, userID, decEq(amount), "air-settle", (*uuid.UUID)(nil)).
		Return(&wallet.Reservation{ID: reservationID, Amount: amount}, nil)
	f.repo.On("Create", ctx, mock.AnythingOfType("*domain.Transaction")).Return(nil)
	f.wallet.On("LinkTransaction", ctx, reservationID, mock.AnythingOfType("uuid.UUID")).Return(nil)
	f.pool.On("Select", ctx, domain.NetworkMTN, decEq(amount), (*uuid.UUID)(nil)).Return(sim, nil)
	f.provider.On("Vend", mock.Anything, mock.AnythingOfType("*dispatch.VendRequest")).
		Return(&VendResult{ProviderRef: "prov-789"}, nil)
	f.pool.On("Release", ctx, sim.ID).Return(nil)
	f.wallet.On("SettleSuccess", ctx, reservationID).Return(fmt.Errorf("driver: bad connection"))

	tx, err := f.service.PurchaseAirtime(ctx, userID, &AirtimeRequest{
		Network:        domain.NetworkMTN,
		Phone:          "08030001111",
		Amount:         amount,
		IdempotencyKey: "air-settle",
	})

	assert.Nil(t, tx)
	require.Error(t, err)
	// The row stays pending for the watchdog: success is never recorded over
	// an unsettled hold, and this path does not refund on its own.
	f.repo.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.wallet.AssertNotCalled(t, "SettleFailure", mock.Anything, mock.Anything)
}

func TestPurchaseAirtimeInsufficientFunds(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	userID := uuid.New()
	amount := decimal.NewFromInt(900)

	f.users.On("FindByID", ctx, userID).Return(verifiedUser(userID), nil)
	f.wallet.On("Reserve", ctx, userID, decEq(amount), "air-2", (*uuid.UUID)(nil)).
		Return(nil, errors.ErrInsufficientFunds)

	tx, err := f.service.PurchaseAirtime(ctx, userID, &AirtimeRequest{
		Network:        domain.NetworkGlo,
		Phone:          "08030001111",
		Amount:         amount,
		IdempotencyKey: "air-2",
	})

	assert.Nil(t, tx)
	assert.ErrorIs(t, err, errors.ErrInsufficientFunds)
	// The rejection happens before any transaction row or pool touch.
	f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.pool.AssertNotCalled(t, "Select", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.provider.AssertNotCalled(t, "Vend", mock.Anything, mock.Anything)
}

func TestPurchaseAirtimeNoCapacityRefunds(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	userID := uuid.New()
	amount := decimal.NewFromInt(200)
	reservationID := uuid.New()

	f.users.On("FindByID", ctx, userID).Return(verifiedUser(userID), nil)
	f.wallet.On("Reserve", ctx, userID, decEq(amount), "air-3", (*uuid.UUID)(nil)).
		Return(&wallet.Reservation{ID: reservationID, Amount: amount}, nil)
	f.repo.On("Create", ctx, mock.AnythingOfType("*domain.Transaction")).Return(nil)
	f.wallet.On("LinkTransaction", ctx, reservationID, mock.AnythingOfType("uuid.UUID")).Return(nil)
	f.pool.On("Select", ctx, domain.NetworkAirtel, decEq(amount), (*uuid.UUID)(nil)).
		Return(nil, errors.ErrNoCapacity)
	f.wallet.On("SettleFailure", ctx, reservationID).Return(nil)
	f.repo.On("Complete", ctx, mock.AnythingOfType("uuid.UUID"), domain.TransactionStatusFailed, (*uuid.UUID)(nil), mock.AnythingOfType("*string")).Return(nil)

	tx, err := f.service.PurchaseAirtime(ctx, userID, &AirtimeRequest{
		Network:        domain.NetworkAirtel,
		Phone:          "08030001111",
		Amount:         amount,
		IdempotencyKey: "air-3",
	})

	assert.Nil(t, tx)
	assert.ErrorIs(t, err, errors.ErrNoCapacity)
	// No resource was charged, so none may be marked failed.
	f.pool.AssertNotCalled(t, "MarkFailure", mock.Anything, mock.Anything, mock.Anything)
	f.provider.AssertNotCalled(t, "Vend", mock.Anything, mock.Anything)
	f.wallet.AssertExpectations(t)
	f.repo.AssertExpectations(t)
}

func TestPurchaseAirtimeRetriesOnceOnAlternate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	userID := uuid.New()
	amount := decimal.NewFromInt(1000)
	reservationID := uuid.New()
	first := &domain.SimResource{ID: uuid.New(), Network: domain.NetworkMTN, Phone: "08031112222"}
	second := &domain.SimResource{ID: uuid.New(), Network: domain.NetworkMTN, Phone: "08033334444"}

	f.users.On("FindByID", ctx, userID).Return(verifiedUser(userID), nil)
	f.wallet.On("Reserve", ctx, userID, decEq(amount), "air-4", (*uuid.UUID)(nil)).
		Return(&wallet.Reservation{ID: reservationID, Amount: amount}, nil)
	f.repo.On("Create", ctx, mock.AnythingOfType("*domain.Transaction")).Return(nil)
	f.wallet.On("LinkTransaction", ctx, reservationID, mock.AnythingOfType("uuid.UUID")).Return(nil)

	f.pool.On("Select", ctx, domain.NetworkMTN, decEq(amount), (*uuid.UUID)(nil)).Return(first, nil).Once()
	f.provider.On("Vend", mock.Anything, mock.MatchedBy(func(req *VendRequest) bool {
		return req.ResourcePhone == first.Phone
	})).Return(nil, errors.ErrUpstreamFailure).Once()
	f.pool.On("MarkFailure", ctx, first.ID, decEq(amount)).Return(nil).Once()

	f.pool.On("Select", ctx, domain.NetworkMTN, decEq(amount), excludes(first.ID)).Return(second, nil).Once()
	f.provider.On("Vend", mock.Anything, mock.MatchedBy(func(req *VendRequest) bool {
		return req.ResourcePhone == second.Phone
	})).Return(&VendResult{ProviderRef: "prov-456"}, nil).Once()
	f.pool.On("Release", ctx, second.ID).Return(nil)
	f.wallet.On("SettleSuccess", ctx, reservationID).Return(nil)
	f.repo.On("Complete", ctx, mock.AnythingOfType("uuid.UUID"), domain.TransactionStatusSuccess, excludes(second.ID), (*string)(nil)).Return(nil)

	tx, err := f.service.PurchaseAirtime(ctx, userID, &AirtimeRequest{
		Network:        domain.NetworkMTN,
		Phone:          "08030001111",
		Amount:         amount,
		IdempotencyKey: "air-4",
	})

	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusSuccess, tx.Status)
	assert.Equal(t, &second.ID, tx.ResourceID)
	f.pool.AssertExpectations(t)
	f.provider.AssertExpectations(t)
}

func TestPurchaseAirtimeBothAttemptsFailRefunds(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	userID := uuid.New()
	amount := decimal.NewFromInt(300)
	reservationID := uuid.New()
	first := &domain.SimResource{ID: uuid.New(), Network: domain.NetworkGlo, Phone: "08051112222"}
	second := &domain.SimResource{ID: uuid.New(), Network: domain.NetworkGlo, Phone: "08053334444"}

	f.users.On("FindByID", ctx, userID).Return(verifiedUser(userID), nil)
	f.wallet.On("Reserve", ctx, userID, decEq(amount), "air-5", (*uuid.UUID)(nil)).
		Return(&wallet.Reservation{ID: reservationID, Amount: amount}, nil)
	f.repo.On("Create", ctx, mock.AnythingOfType("*domain.Transaction")).Return(nil)
	f.wallet.On("LinkTransaction", ctx, reservationID, mock.AnythingOfType("uuid.UUID")).Return(nil)

	f.pool.On("Select", ctx, domain.NetworkGlo, decEq(amount), (*uuid.UUID)(nil)).Return(first, nil).Once()
	f.pool.On("Select", ctx, domain.NetworkGlo, decEq(amount), excludes(first.ID)).Return(second, nil).Once()
	f.provider.On("Vend", mock.Anything, mock.AnythingOfType("*dispatch.VendRequest")).
		Return(nil, errors.ErrUpstreamFailure).Twice()
	f.pool.On("MarkFailure", ctx, first.ID, decEq(amount)).Return(nil).Once()
	f.pool.On("MarkFailure", ctx, second.ID, decEq(amount)).Return(nil).Once()
	f.wallet.On("SettleFailure", ctx, reservationID).Return(nil)
	f.repo.On("Complete", ctx, mock.AnythingOfType("uuid.UUID"), domain.TransactionStatusFailed, (*uuid.UUID)(nil), mock.AnythingOfType("*string")).Return(nil)

	tx, err := f.service.PurchaseAirtime(ctx, userID, &AirtimeRequest{
		Network:        domain.NetworkGlo,
		Phone:          "08030001111",
		Amount:         amount,
		IdempotencyKey: "air-5",
	})

	assert.Nil(t, tx)
	assert.ErrorIs(t, err, errors.ErrUpstreamFailure)
	// Exactly two vend attempts, never a third.
	f.provider.AssertNumberOfCalls(t, "Vend", 2)
	f.wallet.AssertNotCalled(t, "SettleSuccess", mock.Anything, mock.Anything)
	f.pool.AssertExpectations(t)
	f.wallet.AssertExpectations(t)
}

func TestPurchaseReplayReturnsOriginalWithoutArtifacts(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	userID := uuid.New()
	amount := decimal.NewFromInt(500)
	reservationID := uuid.New()
	original := &domain.Transaction{
		ID:        uuid.New(),
		Reference: "AIR-AA11BB22CC",
		UserID:    userID,
		Kind:      domain.KindAirtime,
		Status:    domain.TransactionStatusSuccess,
		Amount:    amount,
		Artifacts: domain.Metadata{"cards": "secret"},
	}

	f.users.On("FindByID", ctx, userID).Return(verifiedUser(userID), nil)
	f.wallet.On("Reserve", ctx, userID, decEq(amount), "replayed", (*uuid.UUID)(nil)).
		Return(&wallet.Reservation{ID: reservationID, Amount: amount, Replayed: true}, nil)
	f.repo.On("FindByReservation", ctx, reservationID).Return(original, nil)

	tx, err := f.service.PurchaseAirtime(ctx, userID, &AirtimeRequest{
		Network:        domain.NetworkMTN,
		Phone:          "08030001111",
		Amount:         amount,
		IdempotencyKey: "replayed",
	})

	require.NoError(t, err)
	assert.Equal(t, original.ID, tx.ID)
	assert.Nil(t, tx.Artifacts)
	// A replay never re-runs the pipeline.
	f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.pool.AssertNotCalled(t, "Select", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.provider.AssertNotCalled(t, "Vend", mock.Anything, mock.Anything)
}

func TestPurchaseDataRejectsInactivePlan(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	userID := uuid.New()
	planID := uuid.New()

	f.plans.On("FindByID", ctx, planID).Return(&domain.DataPlan{
		ID:      planID,
		Network: domain.NetworkMTN,
		Price:   decimal.NewFromInt(250),
	}, nil)

	tx, err := f.service.PurchaseData(ctx, userID, &DataRequest{
		Network:        domain.NetworkMTN,
		Phone:          "08030001111",
		PlanID:         planID,
		IdempotencyKey: "dat-1",
	})

	assert.Nil(t, tx)
	assert.ErrorIs(t, err, errors.ErrPlanInactive)
	f.wallet.AssertNotCalled(t, "Reserve", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPurchaseDataRejectsNetworkMismatch(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	planID := uuid.New()

	f.plans.On("FindByID", ctx, planID).Return(&domain.DataPlan{
		ID:       planID,
		Network:  domain.NetworkGlo,
		Price:    decimal.NewFromInt(250),
		IsActive: true,
	}, nil)

	_, err := f.service.PurchaseData(ctx, uuid.New(), &DataRequest{
		Network:        domain.NetworkMTN,
		Phone:          "08030001111",
		PlanID:         planID,
		IdempotencyKey: "dat-2",
	})

	assert.ErrorIs(t, err, errors.ErrPlanNotFound)
}

func TestPurchaseAirtimeMinimumAmount(t *testing.T) {
	f := newFixture()

	_, err := f.service.PurchaseAirtime(context.Background(), uuid.New(), &AirtimeRequest{
		Network:        domain.NetworkMTN,
		Phone:          "08030001111",
		Amount:         decimal.NewFromInt(49),
		IdempotencyKey: "air-min",
	})

	assert.ErrorIs(t, err, errors.ErrInvalidAmount)
	f.wallet.AssertNotCalled(t, "Reserve", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUnverifiedUserDailyLimit(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	userID := uuid.New()

	user := &domain.User{ID: userID, KYCStatus: domain.KYCStatusNone, IsActive: true}
	f.users.On("FindByID", ctx, userID).Return(user, nil)
	f.wallet.On("DailySpend", ctx, userID).Return(decimal.NewFromInt(49900), nil)

	_, err := f.service.PurchaseAirtime(ctx, userID, &AirtimeRequest{
		Network:        domain.NetworkMTN,
		Phone:          "08030001111",
		Amount:         decimal.NewFromInt(200),
		IdempotencyKey: "air-limit",
	})

	assert.ErrorIs(t, err, errors.ErrDailyLimitExceeded)
	f.wallet.AssertNotCalled(t, "Reserve", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestVerifiedUserSkipsDailyLimit(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	userID := uuid.New()

	f.users.On("FindByID", ctx, userID).Return(verifiedUser(userID), nil)
	f.wallet.On("Reserve", ctx, userID, mock.Anything, "air-big", (*uuid.UUID)(nil)).
		Return(nil, errors.ErrInsufficientFunds)

	_, err := f.service.PurchaseAirtime(ctx, userID, &AirtimeRequest{
		Network:        domain.NetworkMTN,
		Phone:          "08030001111",
		Amount:         decimal.NewFromInt(100000),
		IdempotencyKey: "air-big",
	})

	assert.ErrorIs(t, err, errors.ErrInsufficientFunds)
	f.wallet.AssertNotCalled(t, "DailySpend", mock.Anything, mock.Anything)
}

func TestResultCheckerGeneratesPinsOnce(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	userID := uuid.New()
	reservationID := uuid.New()
	expected := decimal.NewFromInt(3500).Mul(decimal.NewFromInt(2))
	sim := &domain.SimResource{ID: uuid.New(), Phone: "08031112222"}

	f.users.On("FindByID", ctx, userID).Return(verifiedUser(userID), nil)
	f.wallet.On("Reserve", ctx, userID, decEq(expected), "edu-1", (*uuid.UUID)(nil)).
		Return(&wallet.Reservation{ID: reservationID, Amount: expected}, nil)
	f.repo.On("Create", ctx, mock.AnythingOfType("*domain.Transaction")).Return(nil)
	f.wallet.On("LinkTransaction", ctx, reservationID, mock.AnythingOfType("uuid.UUID")).Return(nil)
	// Result checkers are not network bound; any channel serves.
	f.pool.On("Select", ctx, domain.Network(""), decEq(expected), (*uuid.UUID)(nil)).Return(sim, nil)
	f.provider.On("Vend", mock.Anything, mock.AnythingOfType("*dispatch.VendRequest")).
		Return(&VendResult{ProviderRef: "prov-edu"}, nil)
	f.pool.On("Release", ctx, sim.ID).Return(nil)
	f.wallet.On("SettleSuccess", ctx, reservationID).Return(nil)
	f.repo.On("SetArtifacts", ctx, mock.AnythingOfType("uuid.UUID"), mock.AnythingOfType("domain.Metadata")).Return(nil)
	f.repo.On("Complete", ctx, mock.AnythingOfType("uuid.UUID"), domain.TransactionStatusSuccess, excludes(sim.ID), (*string)(nil)).Return(nil)

	tx, err := f.service.PurchaseResultChecker(ctx, userID, &ResultCheckerRequest{
		ExamType:       "waec",
		Quantity:       2,
		IdempotencyKey: "edu-1",
	})

	require.NoError(t, err)
	require.NotNil(t, tx.Artifacts)
	cards, ok := tx.Artifacts["cards"].([]map[string]string)
	require.True(t, ok)
	assert.Len(t, cards, 2)
	for _, card := range cards {
		assert.NotEmpty(t, card["serial"])
		assert.Len(t, card["pin"], 12)
	}

	// Later reads never expose the pins again.
	f.repo.On("FindByID", ctx, tx.ID).Return(tx, nil)
	got, err := f.service.Get(ctx, tx.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Artifacts)
}

func TestBulkSMSPricedPerRecipient(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	userID := uuid.New()
	reservationID := uuid.New()
	recipients := []string{"08030001111", "08030002222", "08030003333"}
	expected := decimal.RequireFromString("4.00").Mul(decimal.NewFromInt(3))
	sim := &domain.SimResource{ID: uuid.New(), Phone: "08031112222"}

	f.users.On("FindByID", ctx, userID).Return(verifiedUser(userID), nil)
	f.wallet.On("Reserve", ctx, userID, decEq(expected), "sms-1", (*uuid.UUID)(nil)).
		Return(&wallet.Reservation{ID: reservationID, Amount: expected}, nil)
	f.repo.On("Create", ctx, mock.AnythingOfType("*domain.Transaction")).Return(nil)
	f.wallet.On("LinkTransaction", ctx, reservationID, mock.AnythingOfType("uuid.UUID")).Return(nil)
	f.pool.On("Select", ctx, domain.Network(""), decEq(expected), (*uuid.UUID)(nil)).Return(sim, nil)
	f.provider.On("Vend", mock.Anything, mock.AnythingOfType("*dispatch.VendRequest")).
		Return(&VendResult{ProviderRef: "batch-9"}, nil)
	f.pool.On("Release", ctx, sim.ID).Return(nil)
	f.wallet.On("SettleSuccess", ctx, reservationID).Return(nil)
	f.repo.On("SetArtifacts", ctx, mock.AnythingOfType("uuid.UUID"), mock.AnythingOfType("domain.Metadata")).Return(nil)
	f.repo.On("Complete", ctx, mock.AnythingOfType("uuid.UUID"), domain.TransactionStatusSuccess, excludes(sim.ID), (*string)(nil)).Return(nil)

	tx, err := f.service.SendBulkSMS(ctx, userID, &BulkSMSRequest{
		Message:        "promo: data plans now cheaper",
		Recipients:     recipients,
		SenderID:       "VTU",
		IdempotencyKey: "sms-1",
	})

	require.NoError(t, err)
	assert.Equal(t, "batch-9", tx.Artifacts["batch_ref"])
	assert.Equal(t, 3, tx.Artifacts["accepted"])
	f.wallet.AssertExpectations(t)
}

func TestConfirmFundCreditsOnce(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	userID := uuid.New()
	txID := uuid.New()
	amount := decimal.NewFromInt(5000)
	pending := &domain.Transaction{
		ID:        txID,
		Reference: "FND-AA11BB22CC",
		UserID:    userID,
		Kind:      domain.KindFund,
		Status:    domain.TransactionStatusPending,
		Amount:    amount,
	}

	f.repo.On("FindByID", ctx, txID).Return(pending, nil)
	f.wallet.On("CreditOnce", ctx, userID, decEq(amount), "wallet funding FND-AA11BB22CC", "fund:"+txID.String(), &txID).
		Return(&domain.LedgerEntry{ID: uuid.New()}, true, nil)
	f.repo.On("Complete", ctx, txID, domain.TransactionStatusSuccess, (*uuid.UUID)(nil), (*string)(nil)).Return(nil)
	f.referral.On("OnDepositSettled", ctx, mock.AnythingOfType("*domain.Transaction")).Return(nil)

	tx, err := f.service.ConfirmFund(ctx, txID, "gw-ref-1")

	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusSuccess, tx.Status)
	f.wallet.AssertNumberOfCalls(t, "CreditOnce", 1)
	f.referral.AssertExpectations(t)
}

func TestConfirmFundCompleteFailureKeepsDepositRecoverable(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	userID := uuid.New()
	txID := uuid.New()
	amount := decimal.NewFromInt(2000)
	pending := &domain.Transaction{
		ID:        txID,
		Reference: "FND-DD44EE55FF",
		UserID:    userID,
		Kind:      domain.KindFund,
		Status:    domain.TransactionStatusPending,
		Amount:    amount,
	}
	entry := &domain.LedgerEntry{ID: uuid.New()}

	f.repo.On("FindByID", ctx, txID).Return(pending, nil)
	// The credit lands but marking the row terminal fails transiently.
	f.wallet.On("CreditOnce", ctx, userID, decEq(amount), "wallet funding FND-DD44EE55FF", "fund:"+txID.String(), &txID).
		Return(entry, true, nil).Once()
	f.repo.On("Complete", ctx, txID, domain.TransactionStatusSuccess, (*uuid.UUID)(nil), (*string)(nil)).
		Return(errors.Wrap(fmt.Errorf("driver: bad connection"), "failed to complete transaction")).Once()

	_, err := f.service.ConfirmFund(ctx, txID, "gw-ref-7")
	require.Error(t, err)

	// The row is still pending, so a retry goes through; the credit replays
	// by key instead of paying twice.
	f.wallet.On("CreditOnce", ctx, userID, decEq(amount), "wallet funding FND-DD44EE55FF", "fund:"+txID.String(), &txID).
		Return(entry, false, nil).Once()
	f.repo.On("Complete", ctx, txID, domain.TransactionStatusSuccess, (*uuid.UUID)(nil), (*string)(nil)).Return(nil).Once()
	f.referral.On("OnDepositSettled", ctx, mock.AnythingOfType("*domain.Transaction")).Return(nil)

	tx, err := f.service.ConfirmFund(ctx, txID, "gw-ref-7")

	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusSuccess, tx.Status)
	f.wallet.AssertExpectations(t)
	f.repo.AssertExpectations(t)
}

func TestConfirmFundSecondConfirmationIsNoop(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	txID := uuid.New()
	settled := &domain.Transaction{
		ID:     txID,
		Kind:   domain.KindFund,
		Status: domain.TransactionStatusSuccess,
		Amount: decimal.NewFromInt(5000),
	}

	f.repo.On("FindByID", ctx, txID).Return(settled, nil)

	tx, err := f.service.ConfirmFund(ctx, txID, "gw-ref-1")

	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusSuccess, tx.Status)
	f.wallet.AssertNotCalled(t, "CreditOnce", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.repo.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestConfirmFundRejectsNonFund(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	txID := uuid.New()

	f.repo.On("FindByID", ctx, txID).Return(&domain.Transaction{
		ID:     txID,
		Kind:   domain.KindAirtime,
		Status: domain.TransactionStatusPending,
	}, nil)

	_, err := f.service.ConfirmFund(ctx, txID, "gw-ref-1")

	assert.ErrorIs(t, err, errors.ErrTransactionNotFound)
}

func TestInitiateFundMinimumDeposit(t *testing.T) {
	f := newFixture()

	_, err := f.service.InitiateFund(context.Background(), uuid.New(), &FundRequest{
		Amount:  decimal.NewFromInt(50),
		Gateway: "paystack",
	})

	assert.ErrorIs(t, err, errors.ErrInvalidAmount)
	f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestInitiateFundTakesNoReservation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	userID := uuid.New()

	f.repo.On("Create", ctx, mock.MatchedBy(func(tx *domain.Transaction) bool {
		return tx.Kind == domain.KindFund && tx.Status == domain.TransactionStatusPending && tx.ReservationID == nil
	})).Return(nil)

	tx, err := f.service.InitiateFund(ctx, userID, &FundRequest{
		Amount:  decimal.NewFromInt(2000),
		Gateway: "paystack",
	})

	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusPending, tx.Status)
	f.wallet.AssertNotCalled(t, "Reserve", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.wallet.AssertNotCalled(t, "CreditOnce", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReconcileStaleRefundsAndCloses(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	reservationID := uuid.New()
	stale := []*domain.Transaction{
		{
			ID:            uuid.New(),
			Kind:          domain.KindData,
			Status:        domain.TransactionStatusPending,
			ReservationID: &reservationID,
			CreatedAt:     time.Now().Add(-time.Hour),
		},
		{
			// A pending deposit has no reservation; it is just closed.
			ID:        uuid.New(),
			Kind:      domain.KindFund,
			Status:    domain.TransactionStatusPending,
			CreatedAt: time.Now().Add(-2 * time.Hour),
		},
	}

	f.repo.On("FindStalePending", ctx, mock.AnythingOfType("time.Time"), 100).Return(stale, nil)
	f.wallet.On("SettleFailure", ctx, reservationID).Return(nil)
	f.repo.On("Complete", ctx, stale[0].ID, domain.TransactionStatusFailed, (*uuid.UUID)(nil), mock.AnythingOfType("*string")).Return(nil)
	f.repo.On("Complete", ctx, stale[1].ID, domain.TransactionStatusFailed, (*uuid.UUID)(nil), mock.AnythingOfType("*string")).Return(nil)

	swept, err := f.service.ReconcileStale(ctx, 30*time.Minute, 100)

	require.NoError(t, err)
	assert.Equal(t, 2, swept)
	f.wallet.AssertExpectations(t)
	f.repo.AssertExpectations(t)
}

func TestReconcileStaleToleratesAlreadyRefunded(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	reservationID := uuid.New()
	stale := []*domain.Transaction{{
		ID:            uuid.New(),
		Kind:          domain.KindAirtime,
		Status:        domain.TransactionStatusPending,
		ReservationID: &reservationID,
		CreatedAt:     time.Now().Add(-time.Hour),
	}}

	f.repo.On("FindStalePending", ctx, mock.AnythingOfType("time.Time"), 100).Return(stale, nil)
	f.wallet.On("SettleFailure", ctx, reservationID).Return(errors.ErrReservationSettled)
	f.repo.On("Complete", ctx, stale[0].ID, domain.TransactionStatusFailed, (*uuid.UUID)(nil), mock.AnythingOfType("*string")).Return(nil)

	swept, err := f.service.ReconcileStale(ctx, 30*time.Minute, 100)

	require.NoError(t, err)
	assert.Equal(t, 1, swept)
	f.repo.AssertExpectations(t)
}

func TestListByUserStripsArtifacts(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	userID := uuid.New()
	txs := []*domain.Transaction{
		{ID: uuid.New(), Artifacts: domain.Metadata{"cards": "pins"}},
		{ID: uuid.New()},
	}

	f.repo.On("FindByUser", ctx, userID, 50, 0).Return(txs, nil)

	got, err := f.service.ListByUser(ctx, userID, 50, 0)

	require.NoError(t, err)
	for _, tx := range got {
		assert.Nil(t, tx.Artifacts)
	}
}

func TestReferenceFormat(t *testing.T) {
	ref := newReference(domain.KindData)
	assert.Regexp(t, `^DAT-[0-9A-F]{10}$`, ref)

	assert.Equal(t, "FND", prefixFor(domain.KindFund))
	assert.Equal(t, "SMS", prefixFor(domain.KindBulkSMS))
	assert.Equal(t, "TXN", prefixFor(domain.TransactionKind("unknown")))
}
