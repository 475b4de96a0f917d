// Package notification fans platform events out to users and operators.
package notification

import (
	"context"
	"fmt"

	"vtu/internal/domain"
	"vtu/pkg/logger"
	"vtu/pkg/mailer"
)

// Service renders and sends event mail. Delivery failures are logged, never
// propagated; no workflow blocks on SMTP.
type Service struct {
	mailer     mailer.Sender
	adminEmail string
	logger     logger.Logger
}

func NewService(m mailer.Sender, adminEmail string, log logger.Logger) *Service {
	return &Service{
		mailer:     m,
		adminEmail: adminEmail,
		logger:     log,
	}
}

// KYCDecided tells the user the outcome of an identity review.
func (s *Service) KYCDecided(ctx context.Context, user *domain.User, status domain.KYCStatus, reason string) {
	var subject, body string
	switch status {
	case domain.KYCStatusVerified:
		subject = "Identity verification approved"
		body = fmt.Sprintf("<p>Hi %s,</p><p>Your identity verification has been approved. Your daily spend limit has been removed.</p>", user.FullName)
	case domain.KYCStatusRejected:
		subject = "Identity verification rejected"
		body = fmt.Sprintf("<p>Hi %s,</p><p>Your identity verification was rejected: %s.</p><p>You can submit a new document at any time.</p>", user.FullName, reason)
	default:
		return
	}
	s.send(user.Email, subject, body)
}

// ResourcePaused alerts operations that a SIM left the rotation.
func (s *Service) ResourcePaused(ctx context.Context, res *domain.SimResource, failures int) {
	if s.adminEmail == "" {
		return
	}
	subject := fmt.Sprintf("SIM %s auto-paused", res.Label)
	body := fmt.Sprintf(
		"<p>Resource <b>%s</b> (%s, %s) was paused after %d consecutive upstream failures.</p><p>Resume it from the admin console once the line is healthy.</p>",
		res.Label, res.Network, res.Phone, failures,
	)
	s.send(s.adminEmail, subject, body)
}

// TicketReplied tells the user support has responded.
func (s *Service) TicketReplied(ctx context.Context, user *domain.User, ticket *domain.SupportTicket) {
	subject := fmt.Sprintf("Re: %s [%s]", ticket.Subject, ticket.TicketNumber)
	body := fmt.Sprintf("<p>Hi %s,</p><p>Support has replied to your ticket %s:</p><blockquote>%s</blockquote>", user.FullName, ticket.TicketNumber, deref(ticket.AdminResponse))
	s.send(user.Email, subject, body)
}

func (s *Service) send(to, subject, body string) {
	if err := s.mailer.Send(to, subject, body); err != nil {
		s.logger.Error("Failed to send notification", map[string]interface{}{
			"to":      to,
			"subject": subject,
			"error":   err.Error(),
		})
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
