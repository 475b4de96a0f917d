// Package plan manages the data bundle catalog.
package plan

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"vtu/internal/domain"
	"vtu/pkg/cache"
	"vtu/pkg/errors"
	"vtu/pkg/logger"
)

type Repository interface {
	Create(ctx context.Context, plan *domain.DataPlan) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.DataPlan, error)
	ListActive(ctx context.Context, network *domain.Network) ([]*domain.DataPlan, error)
	ListAll(ctx context.Context) ([]*domain.DataPlan, error)
	Update(ctx context.Context, plan *domain.DataPlan) error
}

type TransactionStore interface {
	ReferencesPlan(ctx context.Context, planID uuid.UUID) (bool, error)
}

const (
	catalogCacheKey = "plans:catalog"
	catalogCacheTTL = 5 * time.Minute
)

type Service struct {
	repo   Repository
	txs    TransactionStore
	cache  *cache.RedisCache
	logger logger.Logger
}

func NewService(repo Repository, txs TransactionStore, c *cache.RedisCache, log logger.Logger) *Service {
	return &Service{
		repo:   repo,
		txs:    txs,
		cache:  c,
		logger: log,
	}
}

type CreatePlanRequest struct {
	Network        domain.Network  `json:"network" validate:"required,oneof=mtn glo airtel 9mobile"`
	Category       string          `json:"category" validate:"required,oneof=sme gifting corporate"`
	Name           string          `json:"name" validate:"required,max=100"`
	Price          decimal.Decimal `json:"price" validate:"required"`
	SizeMB         int             `json:"size_mb" validate:"required,min=1"`
	ValidityDays   int             `json:"validity_days" validate:"required,min=1"`
	ExternalPlanID string          `json:"external_plan_id" validate:"required,max=64"`
}

func (s *Service) Create(ctx context.Context, req *CreatePlanRequest) (*domain.DataPlan, error) {
	if !req.Price.IsPositive() {
		return nil, errors.ErrInvalidAmount
	}
	now := time.Now()
	plan := &domain.DataPlan{
		ID:             uuid.New(),
		Network:        req.Network,
		Category:       req.Category,
		Name:           req.Name,
		Price:          req.Price,
		SizeMB:         req.SizeMB,
		ValidityDays:   req.ValidityDays,
		ExternalPlanID: req.ExternalPlanID,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Create(ctx, plan); err != nil {
		return nil, err
	}
	s.invalidateCatalog(ctx)
	return plan, nil
}

type UpdatePlanRequest struct {
	Name           *string          `json:"name" validate:"omitempty,max=100"`
	Price          *decimal.Decimal `json:"price"`
	SizeMB         *int             `json:"size_mb" validate:"omitempty,min=1"`
	ValidityDays   *int             `json:"validity_days" validate:"omitempty,min=1"`
	ExternalPlanID *string          `json:"external_plan_id" validate:"omitempty,max=64"`
	IsActive       *bool            `json:"is_active"`
}

// Update applies partial changes. Price and the upstream plan id freeze once
// any transaction references the plan so historical receipts stay truthful;
// deactivation is always allowed.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req *UpdatePlanRequest) (*domain.DataPlan, error) {
	plan, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Price != nil || req.ExternalPlanID != nil {
		referenced, err := s.txs.ReferencesPlan(ctx, id)
		if err != nil {
			return nil, err
		}
		if referenced {
			return nil, errors.ErrPlanImmutable
		}
	}

	if req.Name != nil {
		plan.Name = *req.Name
	}
	if req.Price != nil {
		if !req.Price.IsPositive() {
			return nil, errors.ErrInvalidAmount
		}
		plan.Price = *req.Price
	}
	if req.SizeMB != nil {
		plan.SizeMB = *req.SizeMB
	}
	if req.ValidityDays != nil {
		plan.ValidityDays = *req.ValidityDays
	}
	if req.ExternalPlanID != nil {
		plan.ExternalPlanID = *req.ExternalPlanID
	}
	if req.IsActive != nil {
		plan.IsActive = *req.IsActive
	}

	if err := s.repo.Update(ctx, plan); err != nil {
		return nil, err
	}
	s.invalidateCatalog(ctx)
	return plan, nil
}

// Catalog returns active plans, serving the unfiltered listing from redis
// when warm.
func (s *Service) Catalog(ctx context.Context, network *domain.Network) ([]*domain.DataPlan, error) {
	if network == nil && s.cache != nil {
		var cached []*domain.DataPlan
		if err := s.cache.Get(ctx, catalogCacheKey, &cached); err == nil {
			return cached, nil
		}
	}

	plans, err := s.repo.ListActive(ctx, network)
	if err != nil {
		return nil, err
	}

	if network == nil && s.cache != nil {
		if err := s.cache.Set(ctx, catalogCacheKey, plans, catalogCacheTTL); err != nil {
			s.logger.Warn("Failed to cache plan catalog", map[string]interface{}{"error": err.Error()})
		}
	}
	return plans, nil
}

func (s *Service) ListAll(ctx context.Context) ([]*domain.DataPlan, error) {
	return s.repo.ListAll(ctx)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.DataPlan, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *Service) invalidateCatalog(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, catalogCacheKey); err != nil {
		s.logger.Warn("Failed to invalidate plan catalog", map[string]interface{}{"error": err.Error()})
	}
}
