// Package support implements the support ticket workflow.
package support

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"

	"vtu/internal/domain"
	"vtu/pkg/errors"
	"vtu/pkg/logger"
)

type Repository interface {
	Create(ctx context.Context, ticket *domain.SupportTicket) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.SupportTicket, error)
	FindByUser(ctx context.Context, userID uuid.UUID) ([]*domain.SupportTicket, error)
	FindAll(ctx context.Context, limit, offset int) ([]*domain.SupportTicket, error)
	Update(ctx context.Context, ticket *domain.SupportTicket) error
}

type UserStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

type Notifier interface {
	TicketReplied(ctx context.Context, user *domain.User, ticket *domain.SupportTicket)
}

// Status moves strictly forward; the single exception is an admin reply,
// which reopens the ticket.
var allowedTransitions = map[domain.TicketStatus]domain.TicketStatus{
	domain.TicketStatusOpen:     domain.TicketStatusResolved,
	domain.TicketStatusResolved: domain.TicketStatusClosed,
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

type CreateTicketRequest struct {
	Subject  string                `json:"subject" validate:"required,max=200"`
	Message  string                `json:"message" validate:"required,max=5000"`
	Priority domain.TicketPriority `json:"priority" validate:"omitempty,oneof=low medium high"`
}

func (s *Service) Create(ctx context.Context, userID uuid.UUID, req *CreateTicketRequest) (*domain.SupportTicket, error) {
	priority := req.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}

	now := time.Now()
	ticket := &domain.SupportTicket{
		ID:           uuid.New(),
		TicketNumber: newTicketNumber(),
		UserID:       userID,
		Subject:      req.Subject,
		Message:      req.Message,
		Priority:     priority,
		Status:       domain.TicketStatusOpen,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, ticket); err != nil {
		return nil, err
	}
	s.logger.Info("Ticket opened", map[string]interface{}{
		"ticket_id":     ticket.ID,
		"ticket_number": ticket.TicketNumber,
		"user_id":       userID,
	})
	return ticket, nil
}

// Reply records the admin response and reopens the ticket regardless of its
// current state.
func (s *Service) Reply(ctx context.Context, ticketID, adminID uuid.UUID, response string) (*domain.SupportTicket, error) {
	if strings.TrimSpace(response) == "" {
		return nil, errors.Wrap(errors.ErrInvalidStatus, "reply requires a message")
	}

	ticket, err := s.repo.FindByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	ticket.AdminResponse = &response
	ticket.Status = domain.TicketStatusOpen
	ticket.ResolvedAt = nil
	if err := s.repo.Update(ctx, ticket); err != nil {
		return nil, err
	}

	s.logger.Info("Ticket replied", map[string]interface{}{
		"ticket_id": ticket.ID,
		"admin":     adminID,
	})
	if s.notifier != nil {
		if user, uerr := s.users.FindByID(ctx, ticket.UserID); uerr == nil {
			s.notifier.TicketReplied(ctx, user, ticket)
		}
	}
	return ticket, nil
}

// SetStatus advances the ticket along open -> resolved -> closed. Any other
// movement is refused; closed is terminal.
func (s *Service) SetStatus(ctx context.Context, ticketID uuid.UUID, status domain.TicketStatus) (*domain.SupportTicket, error) {
	ticket, err := s.repo.FindByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if allowedTransitions[ticket.Status] != status {
		return nil, errors.Wrap(errors.ErrInvalidStatus, "ticket status can only move forward")
	}

	ticket.Status = status
	if status == domain.TicketStatusResolved {
		now := time.Now()
		ticket.ResolvedAt = &now
	}
	if err := s.repo.Update(ctx, ticket); err != nil {
		return nil, err
	}
	return ticket, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.SupportTicket, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.SupportTicket, error) {
	return s.repo.FindByUser(ctx, userID)
}

func (s *Service) ListAll(ctx context.Context, limit, offset int) ([]*domain.SupportTicket, error) {
	return s.repo.FindAll(ctx, limit, offset)
}

func newTicketNumber() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "TCK-" + time.Now().Format("20060102150405")
	}
	return "TCK-" + strings.ToUpper(hex.EncodeToString(b))
}
