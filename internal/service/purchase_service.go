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
	"github.com/EiadSorour/Ticketr/internal/metrics"
	"github.com/EiadSorour/Ticketr/internal/repository"
	"github.com/EiadSorour/Ticketr/internal/scheduler"
	"github.com/EiadSorour/Ticketr/pkg/logger"
	"github.com/EiadSorour/Ticketr/pkg/telemetry"
)

// PurchaseService finalizes a ticket purchase against a live offer.
// The ticket insert and the entry transition commit in one transaction:
// either both land or neither does.
type PurchaseService interface {
	// Confirm converts the caller's live offer into a ticket. The
	// payment reference comes from the payment processor's completion
	// callback; this service never charges anyone.
	Confirm(ctx context.Context, entryID, userID, paymentRef string) (*domain.Ticket, error)
}

type purchaseService struct {
	eventRepo  repository.EventRepository
	entryRepo  repository.WaitingListRepository
	ticketRepo repository.TicketRepository
	publisher  EventPublisher
	allocation AllocationService
	locker     lock.Locker
	timers     *scheduler.TimerRegistry
}

// NewPurchaseService creates a new PurchaseService
func NewPurchaseService(
	eventRepo repository.EventRepository,
	entryRepo repository.WaitingListRepository,
	ticketRepo repository.TicketRepository,
	publisher EventPublisher,
	allocation AllocationService,
	locker lock.Locker,
	timers *scheduler.TimerRegistry,
) PurchaseService {
	return &purchaseService{
		eventRepo:  eventRepo,
		entryRepo:  entryRepo,
		ticketRepo: ticketRepo,
		publisher:  publisher,
		allocation: allocation,
		locker:     locker,
		timers:     timers,
	}
}

// Confirm converts the caller's live offer into a ticket
func (s *purchaseService) Confirm(ctx context.Context, entryID, userID, paymentRef string) (*domain.Ticket, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.purchase.confirm")
	defer span.End()

	span.SetAttributes(
		attribute.String("entry_id", entryID),
		attribute.String("user_id", userID),
	)

	if entryID == "" {
		span.SetStatus(codes.Ok, "")
		return nil, domain.ErrInvalidEntryID
	}
	if userID == "" {
		span.SetStatus(codes.Ok, "")
		return nil, domain.ErrInvalidUserID
	}
	if paymentRef == "" {
		span.SetStatus(codes.Ok, "")
		return nil, domain.ErrInvalidPaymentRef
	}

	entry, err := s.entryRepo.GetByID(ctx, entryID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	now := time.Now()
	if !entry.OfferLive(now) {
		metrics.RecordPurchaseFailure(ctx, entry.EventID, "offer_not_active")
		span.SetStatus(codes.Ok, "offer not active")
		return nil, domain.ErrOfferNotActive
	}
	if !entry.BelongsToUser(userID) {
		metrics.RecordPurchaseFailure(ctx, entry.EventID, "ownership_mismatch")
		span.SetStatus(codes.Ok, "ownership mismatch")
		return nil, domain.ErrEntryOwnershipMismatch
	}

	event, err := s.eventRepo.GetByID(ctx, entry.EventID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if event.IsCancelled {
		metrics.RecordPurchaseFailure(ctx, entry.EventID, "event_cancelled")
		span.SetStatus(codes.Ok, "event cancelled")
		return nil, domain.ErrEventInactive
	}

	ticket, err := s.finalize(ctx, event, entry, paymentRef, now)
	if err != nil {
		if domain.IsConflictError(err) {
			metrics.RecordPurchaseFailure(ctx, entry.EventID, "offer_not_active")
			span.SetStatus(codes.Ok, "offer lost")
			return nil, err
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	metrics.RecordPurchase(ctx, entry.EventID, now.Sub(entry.UpdatedAt).Seconds())
	if err := s.publisher.PublishPurchased(ctx, entry, ticket.ID); err != nil {
		logger.Get().Warn(fmt.Sprintf("failed to publish purchase event for ticket %s: %v", ticket.ID, err))
	}

	// The sale may have made a waiting request permanently unsatisfiable;
	// rescan so it is evicted now instead of lingering until some
	// unrelated mutation touches the event.
	if err := s.allocation.ProcessQueue(ctx, entry.EventID); err != nil {
		logger.Get().Warn(fmt.Sprintf("post-purchase scan failed for event %s: %v", entry.EventID, err))
	}

	span.SetAttributes(attribute.String("ticket_id", ticket.ID))
	span.SetStatus(codes.Ok, "")
	return ticket, nil
}

// finalize commits the ticket under the event lock. The lock is released
// before the post-purchase rescan re-acquires it.
func (s *purchaseService) finalize(ctx context.Context, event *domain.Event, entry *domain.WaitingEntry, paymentRef string, now time.Time) (*domain.Ticket, error) {
	release, err := s.locker.Acquire(ctx, entry.EventID)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire event lock: %w", err)
	}
	defer release()

	ticket := &domain.Ticket{
		ID:          uuid.New().String(),
		EventID:     entry.EventID,
		UserID:      entry.UserID,
		Counts:      entry.Requested,
		Status:      domain.TicketStatusValid,
		PurchasedAt: now,
		PaymentRef:  paymentRef,
		Amount:      event.TotalPrice(entry.Requested),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// The transaction's status and deadline guards re-check the offer
	// atomically; a timer that fired between our read and here, or a
	// deadline that passed while we waited on the lock, loses cleanly.
	if err := s.ticketRepo.FinalizePurchase(ctx, ticket, entry.ID); err != nil {
		return nil, err
	}

	s.timers.Cancel(entry.ID)
	entry.Status = domain.EntryStatusPurchased

	return ticket, nil
}
