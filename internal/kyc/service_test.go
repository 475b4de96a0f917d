package kyc

import (
	"context"
	"testing"

	"vtu/internal/domain"
	"vtu/pkg/errors"
	"vtu/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- Mocks ---

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, sub *domain.KycSubmission) error {
	args := m.Called(ctx, sub)
	return args.Error(0)
}

func (m *MockRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.KycSubmission, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KycSubmission), args.Error(1)
}

func (m *MockRepository) FindPendingByUser(ctx context.Context, userID uuid.UUID) (*domain.KycSubmission, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KycSubmission), args.Error(1)
}

func (m *MockRepository) FindLatestByUser(ctx context.Context, userID uuid.UUID) (*domain.KycSubmission, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KycSubmission), args.Error(1)
}

func (m *MockRepository) Review(ctx context.Context, id uuid.UUID, status domain.KYCStatus, reviewerID uuid.UUID, reason *string) error {
	args := m.Called(ctx, id, status, reviewerID, reason)
	return args.Error(0)
}

func (m *MockRepository) ListPending(ctx context.Context, limit, offset int) ([]*domain.KycSubmission, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.KycSubmission), args.Error(1)
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

func (m *MockUserStore) UpdateKYC(ctx context.Context, id uuid.UUID, status domain.KYCStatus, document *string) error {
	args := m.Called(ctx, id, status, document)
	return args.Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) KYCDecided(ctx context.Context, user *domain.User, status domain.KYCStatus, reason string) {
	m.Called(ctx, user, status, reason)
}

// --- Tests ---

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		from, to domain.KYCStatus
		allowed  bool
	}{
		{domain.KYCStatusNone, domain.KYCStatusPending, true},
		{domain.KYCStatusPending, domain.KYCStatusVerified, true},
		{domain.KYCStatusPending, domain.KYCStatusRejected, true},
		{domain.KYCStatusRejected, domain.KYCStatusPending, true},
		{domain.KYCStatusNone, domain.KYCStatusVerified, false},
		{domain.KYCStatusPending, domain.KYCStatusPending, false},
		{domain.KYCStatusVerified, domain.KYCStatusPending, false},
		{domain.KYCStatusVerified, domain.KYCStatusRejected, false},
		{domain.KYCStatusRejected, domain.KYCStatusVerified, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.allowed, canTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestSubmitOpensReview(t *testing.T) {
	repo := new(MockRepository)
	users := new(MockUserStore)
	service := NewService(repo, users, nil, logger.NewNop())
	ctx := context.Background()

	userID := uuid.New()
	doc := "uploads/kyc/abc123.jpg"
	users.On("FindByID", ctx, userID).Return(&domain.User{ID: userID, KYCStatus: domain.KYCStatusNone}, nil)
	repo.On("Create", ctx, mock.MatchedBy(func(sub *domain.KycSubmission) bool {
		return sub.UserID == userID && sub.Document == doc && sub.Status == domain.KYCStatusPending
	})).Return(nil)
	users.On("UpdateKYC", ctx, userID, domain.KYCStatusPending, &doc).Return(nil)

	sub, err := service.Submit(ctx, userID, doc)

	require.NoError(t, err)
	assert.Equal(t, domain.KYCStatusPending, sub.Status)
	repo.AssertExpectations(t)
	users.AssertExpectations(t)
}

func TestSubmitWhilePendingConflicts(t *testing.T) {
	repo := new(MockRepository)
	users := new(MockUserStore)
	service := NewService(repo, users, nil, logger.NewNop())
	ctx := context.Background()

	userID := uuid.New()
	users.On("FindByID", ctx, userID).Return(&domain.User{ID: userID, KYCStatus: domain.KYCStatusPending}, nil)

	_, err := service.Submit(ctx, userID, "uploads/kyc/second.jpg")

	assert.ErrorIs(t, err, errors.ErrKYCPending)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSubmitWhenVerifiedConflicts(t *testing.T) {
	repo := new(MockRepository)
	users := new(MockUserStore)
	service := NewService(repo, users, nil, logger.NewNop())
	ctx := context.Background()

	userID := uuid.New()
	users.On("FindByID", ctx, userID).Return(&domain.User{ID: userID, KYCStatus: domain.KYCStatusVerified}, nil)

	_, err := service.Submit(ctx, userID, "uploads/kyc/extra.jpg")

	assert.ErrorIs(t, err, errors.ErrKYCVerified)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestResubmitAfterRejection(t *testing.T) {
	repo := new(MockRepository)
	users := new(MockUserStore)
	service := NewService(repo, users, nil, logger.NewNop())
	ctx := context.Background()

	userID := uuid.New()
	doc := "uploads/kyc/retry.jpg"
	users.On("FindByID", ctx, userID).Return(&domain.User{ID: userID, KYCStatus: domain.KYCStatusRejected}, nil)
	repo.On("Create", ctx, mock.AnythingOfType("*domain.KycSubmission")).Return(nil)
	users.On("UpdateKYC", ctx, userID, domain.KYCStatusPending, &doc).Return(nil)

	sub, err := service.Submit(ctx, userID, doc)

	require.NoError(t, err)
	assert.Equal(t, domain.KYCStatusPending, sub.Status)
}

func TestApproveVerifiesAndNotifies(t *testing.T) {
	repo := new(MockRepository)
	users := new(MockUserStore)
	notifier := new(MockNotifier)
	service := NewService(repo, users, notifier, logger.NewNop())
	ctx := context.Background()

	userID := uuid.New()
	reviewerID := uuid.New()
	sub := &domain.KycSubmission{ID: uuid.New(), UserID: userID, Status: domain.KYCStatusPending}
	user := &domain.User{ID: userID, KYCStatus: domain.KYCStatusVerified}

	repo.On("FindPendingByUser", ctx, userID).Return(sub, nil)
	repo.On("Review", ctx, sub.ID, domain.KYCStatusVerified, reviewerID, (*string)(nil)).Return(nil)
	users.On("UpdateKYC", ctx, userID, domain.KYCStatusVerified, (*string)(nil)).Return(nil)
	users.On("FindByID", ctx, userID).Return(user, nil)
	notifier.On("KYCDecided", ctx, user, domain.KYCStatusVerified, "").Return()

	err := service.Approve(ctx, userID, reviewerID)

	require.NoError(t, err)
	repo.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestRejectRequiresReason(t *testing.T) {
	repo := new(MockRepository)
	users := new(MockUserStore)
	service := NewService(repo, users, nil, logger.NewNop())

	err := service.Reject(context.Background(), uuid.New(), uuid.New(), "   ")

	assert.ErrorIs(t, err, errors.ErrRejectionReason)
	repo.AssertNotCalled(t, "FindPendingByUser", mock.Anything, mock.Anything)
}

func TestRejectRecordsReason(t *testing.T) {
	repo := new(MockRepository)
	users := new(MockUserStore)
	service := NewService(repo, users, nil, logger.NewNop())
	ctx := context.Background()

	userID := uuid.New()
	reviewerID := uuid.New()
	sub := &domain.KycSubmission{ID: uuid.New(), UserID: userID, Status: domain.KYCStatusPending}

	repo.On("FindPendingByUser", ctx, userID).Return(sub, nil)
	repo.On("Review", ctx, sub.ID, domain.KYCStatusRejected, reviewerID, mock.MatchedBy(func(r *string) bool {
		return r != nil && *r == "document is blurry"
	})).Return(nil)
	users.On("UpdateKYC", ctx, userID, domain.KYCStatusRejected, (*string)(nil)).Return(nil)
	users.On("FindByID", ctx, userID).Return(&domain.User{ID: userID}, nil)

	err := service.Reject(ctx, userID, reviewerID, "document is blurry")

	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestReviewWithoutPendingSubmission(t *testing.T) {
	repo := new(MockRepository)
	users := new(MockUserStore)
	service := NewService(repo, users, nil, logger.NewNop())
	ctx := context.Background()

	userID := uuid.New()
	repo.On("FindPendingByUser", ctx, userID).Return(nil, errors.ErrKYCNotFound)

	err := service.Approve(ctx, userID, uuid.New())

	assert.ErrorIs(t, err, errors.ErrKYCNotFound)
	users.AssertNotCalled(t, "UpdateKYC", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestResetOnlyFromVerified(t *testing.T) {
	repo := new(MockRepository)
	users := new(MockUserStore)
	service := NewService(repo, users, nil, logger.NewNop())
	ctx := context.Background()

	userID := uuid.New()
	users.On("FindByID", ctx, userID).Return(&domain.User{ID: userID, KYCStatus: domain.KYCStatusPending}, nil)

	err := service.Reset(ctx, userID, uuid.New())

	assert.ErrorIs(t, err, errors.ErrInvalidStatus)
	users.AssertNotCalled(t, "UpdateKYC", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestResetClearsVerified(t *testing.T) {
	repo := new(MockRepository)
	users := new(MockUserStore)
	service := NewService(repo, users, nil, logger.NewNop())
	ctx := context.Background()

	userID := uuid.New()
	users.On("FindByID", ctx, userID).Return(&domain.User{ID: userID, KYCStatus: domain.KYCStatusVerified}, nil)
	users.On("UpdateKYC", ctx, userID, domain.KYCStatusNone, (*string)(nil)).Return(nil)

	err := service.Reset(ctx, userID, uuid.New())

	require.NoError(t, err)
	users.AssertExpectations(t)
}
