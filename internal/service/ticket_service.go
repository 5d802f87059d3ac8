package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/support-resolver/internal/domain"
	"github.com/spec-kit/support-resolver/internal/repository"
	apperrors "github.com/spec-kit/support-resolver/pkg/errorutil"
)

// TicketService serves read access to a requester's own tickets.
type TicketService struct {
	tickets repository.TicketRepository
}

// NewTicketService builds the service.
func NewTicketService(tickets repository.TicketRepository) *TicketService {
	return &TicketService{tickets: tickets}
}

// ListForRequester returns the requester's tickets, newest first.
func (s *TicketService) ListForRequester(ctx context.Context, requesterID string, limit, offset int) ([]domain.Ticket, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.tickets.ListByRequester(ctx, requesterID, limit, offset)
}

// GetForRequester returns one ticket, hiding other requesters' tickets
// behind a not-found.
func (s *TicketService) GetForRequester(ctx context.Context, requesterID, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", nil)
		}
		return nil, err
	}
	if ticket.RequesterID != requesterID {
		return nil, apperrors.NewNotFound("ticket", nil)
	}
	return ticket, nil
}
