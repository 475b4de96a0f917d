package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"vtu/internal/domain"
	vtuerrors "vtu/pkg/errors"
)

type SupportRepository struct {
	db *sqlx.DB
}

func NewSupportRepository(db *sqlx.DB) *SupportRepository {
	return &SupportRepository{db: db}
}

func (r *SupportRepository) Create(ctx context.Context, ticket *domain.SupportTicket) error {
	query := `
		INSERT INTO support_tickets (
			id, ticket_number, user_id, subject, message, priority, status, created_at, updated_at
		) VALUES (
			:id, :ticket_number, :user_id, :subject, :message, :priority, :status, :created_at, :updated_at
		)
	`
	_, err := r.db.NamedExecContext(ctx, query, ticket)
	return vtuerrors.Wrap(err, "failed to create ticket")
}

func (r *SupportRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.SupportTicket, error) {
	ticket := &domain.SupportTicket{}
	err := r.db.GetContext(ctx, ticket, `SELECT * FROM support_tickets WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, vtuerrors.ErrTicketNotFound
		}
		return nil, vtuerrors.Wrap(err, "failed to find ticket")
	}
	return ticket, nil
}

func (r *SupportRepository) FindByUser(ctx context.Context, userID uuid.UUID) ([]*domain.SupportTicket, error) {
	var tickets []*domain.SupportTicket
	err := r.db.SelectContext(ctx, &tickets, `
		SELECT * FROM support_tickets WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, vtuerrors.Wrap(err, "failed to list user tickets")
	}
	return tickets, nil
}

func (r *SupportRepository) FindAll(ctx context.Context, limit, offset int) ([]*domain.SupportTicket, error) {
	var tickets []*domain.SupportTicket
	err := r.db.SelectContext(ctx, &tickets, `
		SELECT * FROM support_tickets ORDER BY created_at DESC LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, vtuerrors.Wrap(err, "failed to list tickets")
	}
	return tickets, nil
}

func (r *SupportRepository) Update(ctx context.Context, ticket *domain.SupportTicket) error {
	ticket.UpdatedAt = time.Now()
	query := `
		UPDATE support_tickets SET
			status = :status,
			admin_response = :admin_response,
			resolved_at = :resolved_at,
			updated_at = :updated_at
		WHERE id = :id
	`
	result, err := r.db.NamedExecContext(ctx, query, ticket)
	if err != nil {
		return vtuerrors.Wrap(err, "failed to update ticket")
	}
	return checkFound(result, vtuerrors.ErrTicketNotFound)
}
