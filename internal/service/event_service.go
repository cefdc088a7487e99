package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/EiadSorour/Ticketr/internal/domain"
	"github.com/EiadSorour/Ticketr/internal/lock"
	"github.com/EiadSorour/Ticketr/internal/repository"
	"github.com/EiadSorour/Ticketr/pkg/logger"
	"github.com/EiadSorour/Ticketr/pkg/telemetry"
)

// CreateEventInput carries the fields for a new event
type CreateEventInput struct {
	Name        string
	Description string
	Location    string
	EventDate   time.Time
	OwnerID     string
	Silver      domain.TierConfig
	Gold        domain.TierConfig
	Platinum    domain.TierConfig
}

// EventService manages event records and their tier configuration
type EventService interface {
	// Create persists a new event
	Create(ctx context.Context, input *CreateEventInput) (*domain.Event, error)

	// Get retrieves an event by ID
	Get(ctx context.Context, id string) (*domain.Event, error)

	// ListByOwner retrieves a user's events
	ListByOwner(ctx context.Context, ownerID string) ([]*domain.Event, error)

	// UpdateTiers changes tier capacities and prices. Capacity may not
	// drop below what is already sold: that would turn issued tickets
	// into phantom inventory.
	UpdateTiers(ctx context.Context, eventID string, silver, gold, platinum domain.TierConfig) (*domain.Event, error)

	// Cancel cancels an event with no sold tickets and expires every
	// active waiting-list entry
	Cancel(ctx context.Context, eventID string) error
}

type eventService struct {
	eventRepo  repository.EventRepository
	entryRepo  repository.WaitingListRepository
	ticketRepo repository.TicketRepository
	publisher  EventPublisher
	locker     lock.Locker
}

// NewEventService creates a new EventService
func NewEventService(
	eventRepo repository.EventRepository,
	entryRepo repository.WaitingListRepository,
	ticketRepo repository.TicketRepository,
	publisher EventPublisher,
	locker lock.Locker,
) EventService {
	return &eventService{
		eventRepo:  eventRepo,
		entryRepo:  entryRepo,
		ticketRepo: ticketRepo,
		publisher:  publisher,
		locker:     locker,
	}
}

// Create persists a new event
func (s *eventService) Create(ctx context.Context, input *CreateEventInput) (*domain.Event, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.event.create")
	defer span.End()

	if input.OwnerID == "" {
		span.SetStatus(codes.Ok, "")
		return nil, domain.ErrInvalidUserID
	}

	now := time.Now()
	event := &domain.Event{
		ID:          uuid.New().String(),
		Name:        input.Name,
		Description: input.Description,
		Location:    input.Location,
		EventDate:   input.EventDate,
		OwnerID:     input.OwnerID,
		Silver:      input.Silver,
		Gold:        input.Gold,
		Platinum:    input.Platinum,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	event.Silver.Name = domain.TierSilver
	event.Gold.Name = domain.TierGold
	event.Platinum.Name = domain.TierPlatinum

	if event.Capacities().AnyNegative() {
		span.SetStatus(codes.Ok, "")
		return nil, domain.ErrInvalidTicketCounts
	}

	if err := s.eventRepo.Create(ctx, event); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.String("event_id", event.ID))
	span.SetStatus(codes.Ok, "")
	return event, nil
}

// Get retrieves an event by ID
func (s *eventService) Get(ctx context.Context, id string) (*domain.Event, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.event.get")
	defer span.End()

	span.SetAttributes(attribute.String("event_id", id))

	if id == "" {
		span.SetStatus(codes.Ok, "")
		return nil, domain.ErrInvalidEventID
	}

	event, err := s.eventRepo.GetByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return event, nil
}

// ListByOwner retrieves a user's events
func (s *eventService) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Event, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.event.list_by_owner")
	defer span.End()

	span.SetAttributes(attribute.String("owner_id", ownerID))

	if ownerID == "" {
		span.SetStatus(codes.Ok, "")
		return nil, domain.ErrInvalidUserID
	}

	events, err := s.eventRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return events, nil
}

// UpdateTiers changes tier capacities and prices, never below sold counts
func (s *eventService) UpdateTiers(ctx context.Context, eventID string, silver, gold, platinum domain.TierConfig) (*domain.Event, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.event.update_tiers")
	defer span.End()

	span.SetAttributes(attribute.String("event_id", eventID))

	if eventID == "" {
		span.SetStatus(codes.Ok, "")
		return nil, domain.ErrInvalidEventID
	}

	release, err := s.locker.Acquire(ctx, eventID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to acquire event lock: %w", err)
	}
	defer release()

	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if event.IsCancelled {
		span.SetStatus(codes.Ok, "event cancelled")
		return nil, domain.ErrEventInactive
	}

	next := domain.TierCounts{
		Silver:   silver.Capacity,
		Gold:     gold.Capacity,
		Platinum: platinum.Capacity,
	}
	if next.AnyNegative() {
		span.SetStatus(codes.Ok, "")
		return nil, domain.ErrInvalidTicketCounts
	}

	sold, err := s.ticketRepo.SumSold(ctx, eventID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if sold.ExceedsAny(next) {
		span.SetStatus(codes.Ok, "capacity below sold")
		return nil, domain.ErrCapacityBelowSold
	}

	event.Silver = silver
	event.Gold = gold
	event.Platinum = platinum
	event.Silver.Name = domain.TierSilver
	event.Gold.Name = domain.TierGold
	event.Platinum.Name = domain.TierPlatinum

	if err := s.eventRepo.UpdateTiers(ctx, event); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return event, nil
}

// Cancel cancels an event and expires every active waiting-list entry
func (s *eventService) Cancel(ctx context.Context, eventID string) error {
	ctx, span := telemetry.StartSpan(ctx, "service.event.cancel")
	defer span.End()

	span.SetAttributes(attribute.String("event_id", eventID))

	if eventID == "" {
		span.SetStatus(codes.Ok, "")
		return domain.ErrInvalidEventID
	}

	release, err := s.locker.Acquire(ctx, eventID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to acquire event lock: %w", err)
	}
	defer release()

	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if event.IsCancelled {
		span.SetStatus(codes.Ok, "already cancelled")
		return nil
	}

	sold, err := s.ticketRepo.HasSold(ctx, eventID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if sold {
		span.SetStatus(codes.Ok, "tickets outstanding")
		return domain.ErrTicketsOutstanding
	}

	if err := s.eventRepo.MarkCancelled(ctx, eventID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	// Live offers become ordinary expired entries. Their timers stay
	// armed but fire into the offered-status guard and no-op.
	expired, err := s.entryRepo.ExpireActiveForEvent(ctx, eventID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if err := s.publisher.PublishEventCancelled(ctx, eventID); err != nil {
		logger.Get().Warn(fmt.Sprintf("failed to publish cancellation for event %s: %v", eventID, err))
	}

	span.SetAttributes(attribute.Int64("entries_expired", expired))
	span.SetStatus(codes.Ok, "")
	return nil
}
