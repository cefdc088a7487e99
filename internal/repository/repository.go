package repository

import (
	"context"
	"time"

	"github.com/EiadSorour/Ticketr/internal/domain"
)

// EventRepository defines data access for events
type EventRepository interface {
	// Create persists a new event
	Create(ctx context.Context, event *domain.Event) error

	// GetByID retrieves an event by its ID
	GetByID(ctx context.Context, id string) (*domain.Event, error)

	// UpdateTiers replaces an event's tier capacities and prices
	UpdateTiers(ctx context.Context, event *domain.Event) error

	// MarkCancelled flags an event as cancelled
	MarkCancelled(ctx context.Context, id string) error

	// ListByOwner retrieves events created by a user
	ListByOwner(ctx context.Context, ownerID string) ([]*domain.Event, error)
}

// WaitingListRepository defines data access for waiting-list entries.
// Status transitions carry a WHERE guard on the expected current
// status, so a stale caller affects zero rows instead of clobbering a
// concurrent transition.
type WaitingListRepository interface {
	// Create persists a new entry; the store assigns ArrivalSeq
	Create(ctx context.Context, entry *domain.WaitingEntry) error

	// GetByID retrieves an entry by its ID
	GetByID(ctx context.Context, id string) (*domain.WaitingEntry, error)

	// GetActiveByUserAndEvent returns the user's non-expired entry for
	// an event, or ErrEntryNotFound. Purchased entries count: a buyer
	// does not rejoin the same event's list.
	GetActiveByUserAndEvent(ctx context.Context, eventID, userID string) (*domain.WaitingEntry, error)

	// ListWaiting returns waiting entries for an event in arrival order
	ListWaiting(ctx context.Context, eventID string, limit int) ([]*domain.WaitingEntry, error)

	// ListExpiredOffers returns offered entries across all events whose
	// deadline has passed
	ListExpiredOffers(ctx context.Context, now time.Time, limit int) ([]*domain.WaitingEntry, error)

	// ListLiveOffers returns offered entries whose deadline is still in
	// the future, for re-arming timers after a restart
	ListLiveOffers(ctx context.Context, now time.Time, limit int) ([]*domain.WaitingEntry, error)

	// MarkOffered transitions waiting -> offered with a deadline.
	// Returns false if the entry was not in waiting status.
	MarkOffered(ctx context.Context, id string, expiresAt time.Time) (bool, error)

	// ExpireOffered transitions offered -> expired. Returns false if
	// the entry was not in offered status.
	ExpireOffered(ctx context.Context, id string) (bool, error)

	// ExpireWaiting transitions waiting -> expired, used when a request
	// can never be satisfied. Returns false if not in waiting status.
	ExpireWaiting(ctx context.Context, id string) (bool, error)

	// ExpireActiveForEvent expires every waiting and offered entry for
	// an event, used on event cancellation. Returns the number expired.
	ExpireActiveForEvent(ctx context.Context, eventID string) (int64, error)

	// CountAhead returns how many active entries arrived before the
	// given sequence number for an event
	CountAhead(ctx context.Context, eventID string, arrivalSeq int64) (int64, error)

	// SumActiveOffers sums per-tier quantities held by offers that are
	// still live at the given instant
	SumActiveOffers(ctx context.Context, eventID string, now time.Time) (domain.TierCounts, error)

	// HasActiveEntries reports whether any waiting or offered entries
	// remain for an event
	HasActiveEntries(ctx context.Context, eventID string) (bool, error)
}

// TicketRepository defines data access for issued tickets
type TicketRepository interface {
	// GetByID retrieves a ticket by its ID
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)

	// ListByUser retrieves a user's tickets, newest first
	ListByUser(ctx context.Context, userID string) ([]*domain.Ticket, error)

	// SumSold sums per-tier quantities on valid and used tickets
	SumSold(ctx context.Context, eventID string) (domain.TierCounts, error)

	// HasSold reports whether the event has any valid or used tickets
	HasSold(ctx context.Context, eventID string) (bool, error)

	// UpdateStatus transitions a ticket's status. Returns false if the
	// ticket was not in the expected current status.
	UpdateStatus(ctx context.Context, id string, from, to domain.TicketStatus) (bool, error)

	// FinalizePurchase inserts the ticket and transitions its waiting
	// entry offered -> purchased in one transaction. Returns
	// ErrOfferNotActive if the entry is no longer offered; in that case
	// no ticket is written.
	FinalizePurchase(ctx context.Context, ticket *domain.Ticket, entryID string) error
}
