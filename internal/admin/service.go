// Package admin exposes the operator console: user directory, platform
// stats, and runtime settings.
package admin

import (
	"context"
	"time"

	"github.com/google/uuid"

	"vtu/internal/domain"
	"vtu/pkg/errors"
	"vtu/pkg/logger"
)

type UserStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	List(ctx context.Context, limit, offset int) ([]*domain.User, error)
	Count(ctx context.Context) (int, error)
	UpdateRole(ctx context.Context, id uuid.UUID, role domain.Role) error
	UpdateActive(ctx context.Context, id uuid.UUID, active bool) error
}

type TransactionStore interface {
	FindAll(ctx context.Context, limit, offset int) ([]*domain.Transaction, error)
	FindRecentSince(ctx context.Context, since time.Time) ([]*domain.Transaction, error)
	SystemStats(ctx context.Context) (*domain.SystemStats, error)
}

type SettingsStore interface {
	GetAll(ctx context.Context) ([]*domain.Setting, error)
	Upsert(ctx context.Context, key, value string) error
}

type Service struct {
	users    UserStore
	txs      TransactionStore
	settings SettingsStore
	logger   logger.Logger
}

func NewService(users UserStore, txs TransactionStore, settings SettingsStore, log logger.Logger) *Service {
	return &Service{
		users:    users,
		txs:      txs,
		settings: settings,
		logger:   log,
	}
}

func (s *Service) ListUsers(ctx context.Context, limit, offset int) ([]*domain.User, error) {
	return s.users.List(ctx, limit, offset)
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return s.users.FindByID(ctx, id)
}

// SetRole changes a user's role. Live sessions keep their old role claim
// until the token expires; the directory is the source of truth for new ones.
func (s *Service) SetRole(ctx context.Context, actorID, userID uuid.UUID, role domain.Role) error {
	switch role {
	case domain.RoleUser, domain.RoleReseller, domain.RoleAdmin:
	default:
		return errors.ErrInvalidStatus
	}
	if actorID == userID {
		return errors.Wrap(errors.ErrForbidden, "admins cannot change their own role")
	}
	if err := s.users.UpdateRole(ctx, userID, role); err != nil {
		return err
	}
	s.logger.Warn("User role changed", map[string]interface{}{
		"user_id": userID,
		"role":    role,
		"admin":   actorID,
	})
	return nil
}

func (s *Service) SetActive(ctx context.Context, actorID, userID uuid.UUID, active bool) error {
	if actorID == userID {
		return errors.Wrap(errors.ErrForbidden, "admins cannot deactivate themselves")
	}
	if err := s.users.UpdateActive(ctx, userID, active); err != nil {
		return err
	}
	s.logger.Warn("User active flag changed", map[string]interface{}{
		"user_id": userID,
		"active":  active,
		"admin":   actorID,
	})
	return nil
}

// Overview is the admin dashboard aggregate.
type Overview struct {
	Users        int                 `json:"users"`
	Transactions *domain.SystemStats `json:"transactions"`
}

func (s *Service) Stats(ctx context.Context) (*Overview, error) {
	userCount, err := s.users.Count(ctx)
	if err != nil {
		return nil, err
	}
	txStats, err := s.txs.SystemStats(ctx)
	if err != nil {
		return nil, err
	}
	return &Overview{Users: userCount, Transactions: txStats}, nil
}

func (s *Service) ListTransactions(ctx context.Context, limit, offset int) ([]*domain.Transaction, error) {
	return s.txs.FindAll(ctx, limit, offset)
}

// TransactionsSince feeds the websocket stream.
func (s *Service) TransactionsSince(ctx context.Context, since time.Time) ([]*domain.Transaction, error) {
	return s.txs.FindRecentSince(ctx, since)
}

func (s *Service) Settings(ctx context.Context) ([]*domain.Setting, error) {
	return s.settings.GetAll(ctx)
}

func (s *Service) PutSetting(ctx context.Context, key, value string) error {
	if key == "" {
		return errors.Wrap(errors.ErrInvalidStatus, "setting key required")
	}
	return s.settings.Upsert(ctx, key, value)
}
