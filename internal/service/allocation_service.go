package service

import (
	"context"
	"fmt"
	"time"

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

const (
	// scanBatchSize caps how many waiting entries one scan considers
	scanBatchSize = 500

	// expiryCallbackTimeout bounds the context of a timer-fired expiry
	expiryCallbackTimeout = 15 * time.Second
)

// AllocationService runs the waiting-list scheduler and manages offer
// lifecycles. All mutation paths serialize on the per-event lock, so a
// scan's availability reads cannot interleave with a concurrent grant
// or expiry for the same event.
type AllocationService interface {
	// ProcessQueue scans an event's waiting entries in arrival order.
	// Each entry gets a fresh availability read: entries whose request
	// exceeds what the event could ever still sell are evicted, entries
	// that fit the unreserved remainder get an offer, everything else
	// is skipped and keeps its place.
	ProcessQueue(ctx context.Context, eventID string) error

	// ExpireOffer lapses an offer and rescans the queue with the freed
	// capacity. Expiring an entry that is no longer offered is a no-op,
	// so the timer path and the sweep path can race safely.
	ExpireOffer(ctx context.Context, entryID string) error

	// ReleaseOffer lapses an offer at its holder's request
	ReleaseOffer(ctx context.Context, entryID, userID string) error

	// RearmLiveOffers re-arms expiry timers for offers that survived a
	// restart. Returns the number of timers armed.
	RearmLiveOffers(ctx context.Context) (int, error)

	// ExpireDueOffers lapses offers whose deadline passed without a
	// timer firing. Returns the number expired.
	ExpireDueOffers(ctx context.Context, limit int) (int, error)
}

type allocationService struct {
	eventRepo    repository.EventRepository
	entryRepo    repository.WaitingListRepository
	availability AvailabilityService
	publisher    EventPublisher
	locker       lock.Locker
	timers       *scheduler.TimerRegistry
	offerTTL     time.Duration
}

// NewAllocationService creates a new AllocationService
func NewAllocationService(
	eventRepo repository.EventRepository,
	entryRepo repository.WaitingListRepository,
	availability AvailabilityService,
	publisher EventPublisher,
	locker lock.Locker,
	timers *scheduler.TimerRegistry,
	offerTTL time.Duration,
) AllocationService {
	return &allocationService{
		eventRepo:    eventRepo,
		entryRepo:    entryRepo,
		availability: availability,
		publisher:    publisher,
		locker:       locker,
		timers:       timers,
		offerTTL:     offerTTL,
	}
}

// ProcessQueue scans an event's waiting entries in arrival order
func (s *allocationService) ProcessQueue(ctx context.Context, eventID string) error {
	ctx, span := telemetry.StartSpan(ctx, "service.allocation.process_queue")
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

	if err := s.processQueueLocked(ctx, eventID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// processQueueLocked runs the scan. Caller holds the event lock.
func (s *allocationService) processQueueLocked(ctx context.Context, eventID string) error {
	start := time.Now()
	defer func() {
		metrics.RecordScan(ctx, eventID, time.Since(start).Seconds())
	}()

	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return err
	}
	if event.IsCancelled {
		return nil
	}

	entries, err := s.entryRepo.ListWaiting(ctx, eventID, scanBatchSize)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		// Fresh read per entry: earlier grants in this same scan must
		// count against later entries. One entry failing must not stall
		// the rest of the queue, so every error here logs and moves on.
		avail, err := s.availability.GetAvailabilityAt(ctx, eventID, time.Now())
		if err != nil {
			logger.Get().Warn(fmt.Sprintf("scan skipped entry %s, availability read failed: %v", entry.ID, err))
			continue
		}

		unsold := avail.Unsold()
		if entry.Requested.ExceedsAny(unsold) {
			// No future expiry or release can ever free enough: sold
			// tickets never come back. Holding this entry would stall
			// everyone behind it forever.
			if err := s.evictEntry(ctx, entry); err != nil {
				logger.Get().Warn(fmt.Sprintf("scan failed to evict entry %s: %v", entry.ID, err))
			}
			continue
		}

		if entry.Requested.FitsWithin(avail.Remaining()) {
			if err := s.grantOffer(ctx, entry); err != nil {
				logger.Get().Warn(fmt.Sprintf("scan failed to grant offer to entry %s: %v", entry.ID, err))
			}
			continue
		}

		// Fits capacity but not the current remainder: skip and keep
		// the entry's place. Later arrivals with smaller requests may
		// be served first.
	}

	return nil
}

// grantOffer transitions an entry to offered and arms its expiry timer
func (s *allocationService) grantOffer(ctx context.Context, entry *domain.WaitingEntry) error {
	expiresAt := time.Now().Add(s.offerTTL)

	ok, err := s.entryRepo.MarkOffered(ctx, entry.ID, expiresAt)
	if err != nil {
		return err
	}
	if !ok {
		// Entry left waiting status under us; the lock makes this rare
		// but a concurrent cancel can still win.
		return nil
	}

	entry.Status = domain.EntryStatusOffered
	entry.OfferExpiresAt = &expiresAt

	entryID := entry.ID
	s.timers.Schedule(entryID, expiresAt, func() {
		expCtx, cancel := context.WithTimeout(context.Background(), expiryCallbackTimeout)
		defer cancel()
		if err := s.ExpireOffer(expCtx, entryID); err != nil {
			logger.Get().Error(fmt.Sprintf("timer-fired offer expiry failed for entry %s: %v", entryID, err))
		}
	})

	metrics.RecordOffer(ctx, entry.EventID)
	if err := s.publisher.PublishOffered(ctx, entry); err != nil {
		logger.Get().Warn(fmt.Sprintf("failed to publish offer event for entry %s: %v", entry.ID, err))
	}

	return nil
}

// evictEntry expires a waiting entry that can never be satisfied
func (s *allocationService) evictEntry(ctx context.Context, entry *domain.WaitingEntry) error {
	ok, err := s.entryRepo.ExpireWaiting(ctx, entry.ID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	entry.Status = domain.EntryStatusExpired

	metrics.RecordEviction(ctx, entry.EventID)
	if err := s.publisher.PublishEvicted(ctx, entry); err != nil {
		logger.Get().Warn(fmt.Sprintf("failed to publish eviction event for entry %s: %v", entry.ID, err))
	}

	return nil
}

// ExpireOffer lapses an offer and rescans the queue
func (s *allocationService) ExpireOffer(ctx context.Context, entryID string) error {
	ctx, span := telemetry.StartSpan(ctx, "service.allocation.expire_offer")
	defer span.End()

	span.SetAttributes(attribute.String("entry_id", entryID))

	entry, err := s.entryRepo.GetByID(ctx, entryID)
	if err != nil {
		if domain.IsNotFoundError(err) {
			span.SetStatus(codes.Ok, "already gone")
			return nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if !entry.IsOffered() {
		// Purchased, released, or already expired. Nothing to do.
		span.SetStatus(codes.Ok, "not offered")
		return nil
	}

	release, err := s.locker.Acquire(ctx, entry.EventID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to acquire event lock: %w", err)
	}
	defer release()

	if err := s.lapseOfferLocked(ctx, entry, false); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// ReleaseOffer lapses an offer at its holder's request
func (s *allocationService) ReleaseOffer(ctx context.Context, entryID, userID string) error {
	ctx, span := telemetry.StartSpan(ctx, "service.allocation.release_offer")
	defer span.End()

	span.SetAttributes(
		attribute.String("entry_id", entryID),
		attribute.String("user_id", userID),
	)

	if entryID == "" {
		span.SetStatus(codes.Ok, "")
		return domain.ErrInvalidEntryID
	}
	if userID == "" {
		span.SetStatus(codes.Ok, "")
		return domain.ErrInvalidUserID
	}

	entry, err := s.entryRepo.GetByID(ctx, entryID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if !entry.BelongsToUser(userID) {
		span.SetStatus(codes.Ok, "ownership mismatch")
		return domain.ErrEntryOwnershipMismatch
	}
	if !entry.IsOffered() {
		span.SetStatus(codes.Ok, "not offered")
		return domain.ErrOfferNotActive
	}

	release, err := s.locker.Acquire(ctx, entry.EventID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to acquire event lock: %w", err)
	}
	defer release()

	if err := s.lapseOfferLocked(ctx, entry, true); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// lapseOfferLocked expires an offered entry and rescans. Caller holds
// the event lock.
func (s *allocationService) lapseOfferLocked(ctx context.Context, entry *domain.WaitingEntry, released bool) error {
	ok, err := s.entryRepo.ExpireOffered(ctx, entry.ID)
	if err != nil {
		return err
	}
	if !ok {
		// Lost the race to a purchase or another expiry path.
		return nil
	}

	s.timers.Cancel(entry.ID)
	entry.Status = domain.EntryStatusExpired

	metrics.RecordOfferExpired(ctx, entry.EventID, released, time.Since(entry.UpdatedAt).Seconds())
	if err := s.publisher.PublishOfferExpired(ctx, entry); err != nil {
		logger.Get().Warn(fmt.Sprintf("failed to publish offer-expired event for entry %s: %v", entry.ID, err))
	}

	// The freed hold may let someone further back fit now.
	return s.processQueueLocked(ctx, entry.EventID)
}

// RearmLiveOffers re-arms expiry timers after a restart
func (s *allocationService) RearmLiveOffers(ctx context.Context) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.allocation.rearm_live_offers")
	defer span.End()

	entries, err := s.entryRepo.ListLiveOffers(ctx, time.Now(), scanBatchSize)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}

	for _, entry := range entries {
		entryID := entry.ID
		s.timers.Schedule(entryID, *entry.OfferExpiresAt, func() {
			expCtx, cancel := context.WithTimeout(context.Background(), expiryCallbackTimeout)
			defer cancel()
			if err := s.ExpireOffer(expCtx, entryID); err != nil {
				logger.Get().Error(fmt.Sprintf("timer-fired offer expiry failed for entry %s: %v", entryID, err))
			}
		})
	}

	span.SetAttributes(attribute.Int("rearmed", len(entries)))
	span.SetStatus(codes.Ok, "")
	return len(entries), nil
}

// ExpireDueOffers lapses offers whose deadline has passed
func (s *allocationService) ExpireDueOffers(ctx context.Context, limit int) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.allocation.expire_due_offers")
	defer span.End()

	entries, err := s.entryRepo.ListExpiredOffers(ctx, time.Now(), limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}

	expired := 0
	for _, entry := range entries {
		if err := s.ExpireOffer(ctx, entry.ID); err != nil {
			logger.Get().Warn(fmt.Sprintf("sweep failed to expire offer for entry %s: %v", entry.ID, err))
			continue
		}
		expired++
	}

	span.SetAttributes(attribute.Int("expired", expired))
	span.SetStatus(codes.Ok, "")
	return expired, nil
}
