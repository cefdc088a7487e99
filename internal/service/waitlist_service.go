package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/EiadSorour/Ticketr/internal/domain"
	"github.com/EiadSorour/Ticketr/internal/metrics"
	"github.com/EiadSorour/Ticketr/internal/repository"
	"github.com/EiadSorour/Ticketr/pkg/logger"
	"github.com/EiadSorour/Ticketr/pkg/telemetry"
)

// QueueStatus is what a user sees about their place in line
type QueueStatus struct {
	Entry    *domain.WaitingEntry `json:"entry"`
	Position int64                `json:"position"`
}

// WaitlistService handles joining an event's waiting list and reporting
// a user's place in it
type WaitlistService interface {
	// Join appends the user to the event's waiting list and immediately
	// runs an allocation scan, so an open spot turns into an offer in
	// the same call
	Join(ctx context.Context, eventID, userID string, requested domain.TierCounts) (*QueueStatus, error)

	// Status returns the user's entry and FIFO position for an event.
	// Position counts active entries that arrived earlier, plus one.
	Status(ctx context.Context, eventID, userID string) (*QueueStatus, error)
}

type waitlistService struct {
	eventRepo  repository.EventRepository
	entryRepo  repository.WaitingListRepository
	allocation AllocationService
	publisher  EventPublisher
}

// NewWaitlistService creates a new WaitlistService
func NewWaitlistService(
	eventRepo repository.EventRepository,
	entryRepo repository.WaitingListRepository,
	allocation AllocationService,
	publisher EventPublisher,
) WaitlistService {
	return &waitlistService{
		eventRepo:  eventRepo,
		entryRepo:  entryRepo,
		allocation: allocation,
		publisher:  publisher,
	}
}

// Join appends the user to the event's waiting list
func (s *waitlistService) Join(ctx context.Context, eventID, userID string, requested domain.TierCounts) (*QueueStatus, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.waitlist.join")
	defer span.End()

	span.SetAttributes(
		attribute.String("event_id", eventID),
		attribute.String("user_id", userID),
		attribute.Int("requested_total", requested.Total()),
	)

	if eventID == "" {
		span.SetStatus(codes.Ok, "")
		return nil, domain.ErrInvalidEventID
	}
	if userID == "" {
		span.SetStatus(codes.Ok, "")
		return nil, domain.ErrInvalidUserID
	}
	if requested.IsZero() || requested.AnyNegative() {
		span.SetStatus(codes.Ok, "")
		return nil, domain.ErrInvalidTicketCounts
	}

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

	// A request no tier could ever hold fails at the door rather than
	// queueing forever behind entries it can never outlast.
	if requested.ExceedsAny(event.Capacities()) {
		span.SetStatus(codes.Ok, "exceeds capacity")
		return nil, domain.ErrCapacityExceeded
	}

	if _, err := s.entryRepo.GetActiveByUserAndEvent(ctx, eventID, userID); err == nil {
		span.SetStatus(codes.Ok, "already queued")
		return nil, domain.ErrAlreadyInWaitingList
	} else if !errors.Is(err, domain.ErrEntryNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	now := time.Now()
	entry := &domain.WaitingEntry{
		ID:        uuid.New().String(),
		EventID:   eventID,
		UserID:    userID,
		Requested: requested,
		Status:    domain.EntryStatusWaiting,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.entryRepo.Create(ctx, entry); err != nil {
		// The unique index is the authority; the pre-check above only
		// gives a friendlier fast path.
		if errors.Is(err, domain.ErrAlreadyInWaitingList) {
			span.SetStatus(codes.Ok, "already queued")
			return nil, err
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	metrics.RecordJoin(ctx, eventID)
	if err := s.publisher.PublishJoined(ctx, entry); err != nil {
		logger.Get().Warn(fmt.Sprintf("failed to publish join event for entry %s: %v", entry.ID, err))
	}

	if err := s.allocation.ProcessQueue(ctx, eventID); err != nil {
		// The entry is in; a later expiry or the sweep will pick it up.
		logger.Get().Warn(fmt.Sprintf("allocation scan after join failed for event %s: %v", eventID, err))
	}

	status, err := s.statusOf(ctx, entry)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return status, nil
}

// Status returns the user's entry and FIFO position for an event
func (s *waitlistService) Status(ctx context.Context, eventID, userID string) (*QueueStatus, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.waitlist.status")
	defer span.End()

	span.SetAttributes(
		attribute.String("event_id", eventID),
		attribute.String("user_id", userID),
	)

	if eventID == "" {
		span.SetStatus(codes.Ok, "")
		return nil, domain.ErrInvalidEventID
	}
	if userID == "" {
		span.SetStatus(codes.Ok, "")
		return nil, domain.ErrInvalidUserID
	}

	entry, err := s.entryRepo.GetActiveByUserAndEvent(ctx, eventID, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	status, err := s.statusOf(ctx, entry)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return status, nil
}

func (s *waitlistService) statusOf(ctx context.Context, entry *domain.WaitingEntry) (*QueueStatus, error) {
	status := &QueueStatus{Entry: entry}

	if entry.Status == domain.EntryStatusWaiting || entry.Status == domain.EntryStatusOffered {
		// Re-read the entry; the scan triggered above may have promoted
		// it to offered already.
		fresh, err := s.entryRepo.GetByID(ctx, entry.ID)
		if err == nil {
			status.Entry = fresh
			entry = fresh
		}

		ahead, err := s.entryRepo.CountAhead(ctx, entry.EventID, entry.ArrivalSeq)
		if err != nil {
			return nil, err
		}
		status.Position = ahead + 1
	}

	return status, nil
}
