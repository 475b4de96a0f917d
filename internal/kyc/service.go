// Package kyc implements the identity verification workflow.
package kyc

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"vtu/internal/domain"
	"vtu/pkg/errors"
	"vtu/pkg/logger"
)

type Repository interface {
	Create(ctx context.Context, sub *domain.KycSubmission) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.KycSubmission, error)
	FindPendingByUser(ctx context.Context, userID uuid.UUID) (*domain.KycSubmission, error)
	FindLatestByUser(ctx context.Context, userID uuid.UUID) (*domain.KycSubmission, error)
	Review(ctx context.Context, id uuid.UUID, status domain.KYCStatus, reviewerID uuid.UUID, reason *string) error
	ListPending(ctx context.Context, limit, offset int) ([]*domain.KycSubmission, error)
}

type UserStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	UpdateKYC(ctx context.Context, id uuid.UUID, status domain.KYCStatus, document *string) error
}

// Notifier tells the user the outcome of a review.
type Notifier interface {
	KYCDecided(ctx context.Context, user *domain.User, status domain.KYCStatus, reason string)
}

// allowedTransitions is the full state machine. A submission exists only for
// the pending state; the user-level status tracks the latest outcome.
var allowedTransitions = map[domain.KYCStatus][]domain.KYCStatus{
	domain.KYCStatusNone:     {domain.KYCStatusPending},
	domain.KYCStatusPending:  {domain.KYCStatusVerified, domain.KYCStatusRejected},
	domain.KYCStatusRejected: {domain.KYCStatusPending},
	domain.KYCStatusVerified: {}, // terminal until an admin reset
}

func canTransition(from, to domain.KYCStatus) bool {
	for _, t := range allowedTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

type Service struct {
	repo     Repository
	users    UserStore
	notifier Notifier
	logger   logger.Logger
}

func NewService(repo Repository, users UserStore, notifier Notifier, log logger.Logger) *Service {
	return &Service{
		repo:     repo,
		users:    users,
		notifier: notifier,
		logger:   log,
	}
}

// Submit opens a review round. Resubmission is allowed after a rejection;
// a second submission while one is pending is refused without a new row.
func (s *Service) Submit(ctx context.Context, userID uuid.UUID, documentPath string) (*domain.KycSubmission, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.KYCStatus == domain.KYCStatusVerified {
		return nil, errors.ErrKYCVerified
	}
	if !canTransition(user.KYCStatus, domain.KYCStatusPending) {
		return nil, errors.ErrKYCPending
	}

	sub := &domain.KycSubmission{
		ID:          uuid.New(),
		UserID:      userID,
		Document:    documentPath,
		Status:      domain.KYCStatusPending,
		SubmittedAt: time.Now(),
	}
	if err := s.repo.Create(ctx, sub); err != nil {
		return nil, err
	}
	if err := s.users.UpdateKYC(ctx, userID, domain.KYCStatusPending, &documentPath); err != nil {
		return nil, err
	}

	s.logger.Info("KYC submitted", map[string]interface{}{
		"user_id":       userID,
		"submission_id": sub.ID,
	})
	return sub, nil
}

func (s *Service) Approve(ctx context.Context, userID, reviewerID uuid.UUID) error {
	return s.review(ctx, userID, reviewerID, domain.KYCStatusVerified, "")
}

// Reject requires a reason; the client shows it to the user for resubmission.
func (s *Service) Reject(ctx context.Context, userID, reviewerID uuid.UUID, reason string) error {
	if strings.TrimSpace(reason) == "" {
		return errors.ErrRejectionReason
	}
	return s.review(ctx, userID, reviewerID, domain.KYCStatusRejected, reason)
}

func (s *Service) review(ctx context.Context, userID, reviewerID uuid.UUID, status domain.KYCStatus, reason string) error {
	sub, err := s.repo.FindPendingByUser(ctx, userID)
	if err != nil {
		return err
	}

	var reasonPtr *string
	if reason != "" {
		reasonPtr = &reason
	}
	if err := s.repo.Review(ctx, sub.ID, status, reviewerID, reasonPtr); err != nil {
		return err
	}
	if err := s.users.UpdateKYC(ctx, userID, status, nil); err != nil {
		return err
	}

	s.logger.Info("KYC reviewed", map[string]interface{}{
		"user_id":       userID,
		"submission_id": sub.ID,
		"status":        status,
		"reviewer":      reviewerID,
	})
	if s.notifier != nil {
		if user, uerr := s.users.FindByID(ctx, userID); uerr == nil {
			s.notifier.KYCDecided(ctx, user, status, reason)
		}
	}
	return nil
}

// Reset clears a verified status back to none; the only way out of verified.
func (s *Service) Reset(ctx context.Context, userID, adminID uuid.UUID) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.KYCStatus != domain.KYCStatusVerified {
		return errors.Wrap(errors.ErrInvalidStatus, "only a verified status can be reset")
	}
	if err := s.users.UpdateKYC(ctx, userID, domain.KYCStatusNone, nil); err != nil {
		return err
	}
	s.logger.Warn("KYC status reset", map[string]interface{}{
		"user_id": userID,
		"admin":   adminID,
	})
	return nil
}

func (s *Service) Latest(ctx context.Context, userID uuid.UUID) (*domain.KycSubmission, error) {
	return s.repo.FindLatestByUser(ctx, userID)
}

func (s *Service) Pending(ctx context.Context, limit, offset int) ([]*domain.KycSubmission, error) {
	return s.repo.ListPending(ctx, limit, offset)
}
