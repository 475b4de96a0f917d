// Package beneficiary manages saved top-up recipients.
package beneficiary

import (
	"context"
	"time"

	"github.com/google/uuid"

	"vtu/internal/domain"
	"vtu/pkg/logger"
)

type Repository interface {
	Create(ctx context.Context, b *domain.Beneficiary) error
	FindByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Beneficiary, error)
	Delete(ctx context.Context, id, userID uuid.UUID) error
}

type Service struct {
	repo   Repository
	logger logger.Logger
}

func NewService(repo Repository, log logger.Logger) *Service {
	return &Service{repo: repo, logger: log}
}

type CreateRequest struct {
	Name    string         `json:"name" validate:"required,max=100"`
	Phone   string         `json:"phone" validate:"required,ng_phone"`
	Network domain.Network `json:"network" validate:"required,oneof=mtn glo airtel 9mobile"`
}

func (s *Service) Create(ctx context.Context, userID uuid.UUID, req *CreateRequest) (*domain.Beneficiary, error) {
	b := &domain.Beneficiary{
		ID:        uuid.New(),
		UserID:    userID,
		Name:      req.Name,
		Phone:     req.Phone,
		Network:   req.Network,
		CreatedAt: time.Now(),
	}
	if err := s.repo.Create(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]*domain.Beneficiary, error) {
	return s.repo.FindByUser(ctx, userID)
}

// Delete only removes the caller's own row; the repository scopes by user.
func (s *Service) Delete(ctx context.Context, id, userID uuid.UUID) error {
	return s.repo.Delete(ctx, id, userID)
}
