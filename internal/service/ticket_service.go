package service

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/EiadSorour/Ticketr/internal/domain"
	"github.com/EiadSorour/Ticketr/internal/repository"
	"github.com/EiadSorour/Ticketr/pkg/logger"
	"github.com/EiadSorour/Ticketr/pkg/telemetry"
)

// TicketService manages issued tickets after purchase
type TicketService interface {
	// Get retrieves a ticket by ID
	Get(ctx context.Context, id string) (*domain.Ticket, error)

	// ListByUser retrieves a user's tickets
	ListByUser(ctx context.Context, userID string) ([]*domain.Ticket, error)

	// Redeem marks a valid ticket as used at the gate
	Redeem(ctx context.Context, id string) (*domain.Ticket, error)

	// Refund marks a valid ticket as refunded. The freed capacity goes
	// back into the ledger, so the event's queue is rescanned.
	Refund(ctx context.Context, id string) (*domain.Ticket, error)
}

type ticketService struct {
	ticketRepo repository.TicketRepository
	allocation AllocationService
}

// NewTicketService creates a new TicketService
func NewTicketService(ticketRepo repository.TicketRepository, allocation AllocationService) TicketService {
	return &ticketService{
		ticketRepo: ticketRepo,
		allocation: allocation,
	}
}

// Get retrieves a ticket by ID
func (s *ticketService) Get(ctx context.Context, id string) (*domain.Ticket, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.ticket.get")
	defer span.End()

	span.SetAttributes(attribute.String("ticket_id", id))

	if id == "" {
		span.SetStatus(codes.Ok, "")
		return nil, domain.ErrInvalidTicketID
	}

	ticket, err := s.ticketRepo.GetByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return ticket, nil
}

// ListByUser retrieves a user's tickets
func (s *ticketService) ListByUser(ctx context.Context, userID string) ([]*domain.Ticket, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.ticket.list_by_user")
	defer span.End()

	span.SetAttributes(attribute.String("user_id", userID))

	if userID == "" {
		span.SetStatus(codes.Ok, "")
		return nil, domain.ErrInvalidUserID
	}

	tickets, err := s.ticketRepo.ListByUser(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return tickets, nil
}

// Redeem marks a valid ticket as used at the gate
func (s *ticketService) Redeem(ctx context.Context, id string) (*domain.Ticket, error) {
	return s.transition(ctx, "service.ticket.redeem", id, domain.TicketStatusValid, domain.TicketStatusUsed, false)
}

// Refund marks a valid ticket as refunded
func (s *ticketService) Refund(ctx context.Context, id string) (*domain.Ticket, error) {
	return s.transition(ctx, "service.ticket.refund", id, domain.TicketStatusValid, domain.TicketStatusRefunded, true)
}

func (s *ticketService) transition(ctx context.Context, spanName, id string, from, to domain.TicketStatus, rescan bool) (*domain.Ticket, error) {
	ctx, span := telemetry.StartSpan(ctx, spanName)
	defer span.End()

	span.SetAttributes(attribute.String("ticket_id", id))

	if id == "" {
		span.SetStatus(codes.Ok, "")
		return nil, domain.ErrInvalidTicketID
	}

	ticket, err := s.ticketRepo.GetByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	ok, err := s.ticketRepo.UpdateStatus(ctx, id, from, to)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if !ok {
		span.SetStatus(codes.Ok, "wrong status")
		return nil, domain.ErrInvalidTicketStatus
	}

	ticket.Status = to

	if rescan {
		// Refunded quantities re-enter the ledger; someone waiting may
		// fit now.
		if err := s.allocation.ProcessQueue(ctx, ticket.EventID); err != nil {
			logger.Get().Warn(fmt.Sprintf("allocation scan after refund failed for event %s: %v", ticket.EventID, err))
		}
	}

	span.SetStatus(codes.Ok, "")
	return ticket, nil
}
