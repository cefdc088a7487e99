package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/EiadSorour/Ticketr/internal/domain"
	"github.com/EiadSorour/Ticketr/internal/repository"
	"github.com/EiadSorour/Ticketr/pkg/telemetry"
)

// AvailabilityService computes the inventory ledger for an event.
// Availability is never stored; it is derived on every read from the
// tickets actually sold and the offers still live, so a crashed offer
// or an expired hold can never leak capacity.
type AvailabilityService interface {
	// GetAvailability returns the per-tier ledger for an event
	GetAvailability(ctx context.Context, eventID string) (*domain.Availability, error)

	// GetAvailabilityAt returns the ledger as of a given instant,
	// used by the allocator so one scan prices all entries against the
	// same clock
	GetAvailabilityAt(ctx context.Context, eventID string, now time.Time) (*domain.Availability, error)
}

type availabilityService struct {
	eventRepo  repository.EventRepository
	entryRepo  repository.WaitingListRepository
	ticketRepo repository.TicketRepository
}

// NewAvailabilityService creates a new AvailabilityService
func NewAvailabilityService(
	eventRepo repository.EventRepository,
	entryRepo repository.WaitingListRepository,
	ticketRepo repository.TicketRepository,
) AvailabilityService {
	return &availabilityService{
		eventRepo:  eventRepo,
		entryRepo:  entryRepo,
		ticketRepo: ticketRepo,
	}
}

// GetAvailability returns the per-tier ledger for an event
func (s *availabilityService) GetAvailability(ctx context.Context, eventID string) (*domain.Availability, error) {
	return s.GetAvailabilityAt(ctx, eventID, time.Now())
}

// GetAvailabilityAt returns the ledger as of a given instant
func (s *availabilityService) GetAvailabilityAt(ctx context.Context, eventID string, now time.Time) (*domain.Availability, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.availability.get")
	defer span.End()

	span.SetAttributes(attribute.String("event_id", eventID))

	if eventID == "" {
		span.SetStatus(codes.Ok, "")
		return nil, domain.ErrInvalidEventID
	}

	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	sold, err := s.ticketRepo.SumSold(ctx, eventID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	offers, err := s.entryRepo.SumActiveOffers(ctx, eventID, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	availability := domain.NewAvailability(eventID, event.Capacities(), sold, offers)

	span.SetAttributes(
		attribute.Int("sold_total", sold.Total()),
		attribute.Int("offered_total", offers.Total()),
	)
	span.SetStatus(codes.Ok, "")
	return availability, nil
}
