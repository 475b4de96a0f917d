// Package simpool manages the pool of SIM/provider channels purchases are
// fulfilled through.
package simpool

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"vtu/internal/domain"
	"vtu/pkg/errors"
	"vtu/pkg/logger"
)

type Repository interface {
	Create(ctx context.Context, res *domain.SimResource) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.SimResource, error)
	List(ctx context.Context) ([]*domain.SimResource, error)
	Acquire(ctx context.Context, network domain.Network, amount decimal.Decimal, exclude *uuid.UUID) (*domain.SimResource, error)
	Refund(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error
	IncrementFailure(ctx context.Context, id uuid.UUID, pauseThreshold int) (int, bool, error)
	ResetFailures(ctx context.Context, id uuid.UUID) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ResourceStatus) error
	TopUp(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error
	CreateAlert(ctx context.Context, alert *domain.ResourceAlert) error
	ListAlerts(ctx context.Context, unackedOnly bool) ([]*domain.ResourceAlert, error)
	AcknowledgeAlert(ctx context.Context, id uuid.UUID) error
}

// Alerter receives the alert condition raised when a resource auto-pauses.
type Alerter interface {
	ResourcePaused(ctx context.Context, res *domain.SimResource, failures int)
}

type Service struct {
	repo           Repository
	alerter        Alerter
	pauseThreshold int
	logger         logger.Logger
}

func NewService(repo Repository, alerter Alerter, pauseThreshold int, log logger.Logger) *Service {
	if pauseThreshold <= 0 {
		pauseThreshold = 3
	}
	return &Service{
		repo:           repo,
		alerter:        alerter,
		pauseThreshold: pauseThreshold,
		logger:         log,
	}
}

// Select picks and charges the best eligible resource for a purchase.
// Selection never returns a paused or inactive resource; the store orders
// candidates by failure count, then least-recently-used. exclude skips the
// resource a failed first attempt used, so the retry lands elsewhere.
func (s *Service) Select(ctx context.Context, network domain.Network, amountNeeded decimal.Decimal, exclude *uuid.UUID) (*domain.SimResource, error) {
	res, err := s.repo.Acquire(ctx, network, amountNeeded, exclude)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Resource selected", map[string]interface{}{
		"resource_id": res.ID,
		"network":     network,
		"amount":      amountNeeded.String(),
	})
	return res, nil
}

// MarkFailure records an upstream failure against the resource and returns
// its charged amount to it. At the pause threshold the resource is taken out
// of rotation and an alert condition is raised for the admin console.
func (s *Service) MarkFailure(ctx context.Context, id uuid.UUID, chargedAmount decimal.Decimal) error {
	if chargedAmount.IsPositive() {
		if err := s.repo.Refund(ctx, id, chargedAmount); err != nil {
			return err
		}
	}

	failures, paused, err := s.repo.IncrementFailure(ctx, id, s.pauseThreshold)
	if err != nil {
		return err
	}

	if !paused {
		return nil
	}

	res, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	alert := &domain.ResourceAlert{
		ID:         uuid.New(),
		ResourceID: id,
		Message:    fmt.Sprintf("resource %s auto-paused after %d consecutive failures", res.Label, failures),
		CreatedAt:  time.Now(),
	}
	if err := s.repo.CreateAlert(ctx, alert); err != nil {
		return err
	}

	s.logger.Warn("Resource auto-paused", map[string]interface{}{
		"resource_id": id,
		"failures":    failures,
	})
	if s.alerter != nil {
		s.alerter.ResourcePaused(ctx, res, failures)
	}
	return nil
}

// Release resets the failure counter after a successful delivery.
func (s *Service) Release(ctx context.Context, id uuid.UUID) error {
	return s.repo.ResetFailures(ctx, id)
}

// Admin surface.

type CreateResourceRequest struct {
	Label   string          `json:"label" validate:"required"`
	Network domain.Network  `json:"network" validate:"required,oneof=mtn glo airtel 9mobile"`
	Phone   string          `json:"phone" validate:"required,ng_phone"`
	Balance decimal.Decimal `json:"balance" validate:"gte=0"`
}

func (s *Service) Create(ctx context.Context, req *CreateResourceRequest) (*domain.SimResource, error) {
	now := time.Now()
	res := &domain.SimResource{
		ID:        uuid.New(),
		Label:     req.Label,
		Network:   req.Network,
		Phone:     req.Phone,
		Status:    domain.ResourceStatusActive,
		Balance:   req.Balance,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, res); err != nil {
		return nil, err
	}
	s.logger.Info("Resource created", map[string]interface{}{
		"resource_id": res.ID,
		"network":     res.Network,
	})
	return res, nil
}

func (s *Service) List(ctx context.Context) ([]*domain.SimResource, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.SimResource, error) {
	return s.repo.FindByID(ctx, id)
}

// SetStatus is the admin recovery path; a paused resource only re-enters
// rotation through here.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, status domain.ResourceStatus) error {
	switch status {
	case domain.ResourceStatusActive, domain.ResourceStatusInactive, domain.ResourceStatusPaused:
	default:
		return errors.ErrInvalidStatus
	}
	return s.repo.UpdateStatus(ctx, id, status)
}

func (s *Service) TopUp(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return errors.ErrInvalidAmount
	}
	return s.repo.TopUp(ctx, id, amount)
}

func (s *Service) Alerts(ctx context.Context, unackedOnly bool) ([]*domain.ResourceAlert, error) {
	return s.repo.ListAlerts(ctx, unackedOnly)
}

func (s *Service) AcknowledgeAlert(ctx context.Context, id uuid.UUID) error {
	return s.repo.AcknowledgeAlert(ctx, id)
}
