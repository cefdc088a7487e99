package domain

import "time"

// EntryStatus is the lifecycle state of a waiting-list entry.
type EntryStatus string

const (
	EntryStatusWaiting   EntryStatus = "waiting"
	EntryStatusOffered   EntryStatus = "offered"
	EntryStatusPurchased EntryStatus = "purchased"
	EntryStatusExpired   EntryStatus = "expired"
)

// String returns the status as a string.
func (s EntryStatus) String() string { return string(s) }

// IsTerminal reports whether the status is a terminal state. A user whose
// entry reaches a terminal state may join the waiting list again.
func (s EntryStatus) IsTerminal() bool {
	return s == EntryStatusPurchased || s == EntryStatusExpired
}

// WaitingEntry is one user's place in an event's waiting list. At most one
// non-expired entry may exist per (user, event) pair; the store enforces it.
// ArrivalSeq is assigned by the store at insertion and is strictly
// monotonically increasing per event, so FIFO order has no ties.
type WaitingEntry struct {
	ID             string      `json:"id"`
	EventID        string      `json:"event_id"`
	UserID         string      `json:"user_id"`
	Requested      TierCounts  `json:"requested"`
	Status         EntryStatus `json:"status"`
	OfferExpiresAt *time.Time  `json:"offer_expires_at,omitempty"`
	ArrivalSeq     int64       `json:"arrival_seq"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// IsActive reports whether the entry still occupies the user's single slot
// in the waiting list for this event.
func (e *WaitingEntry) IsActive() bool {
	return e.Status != EntryStatusExpired
}

// IsOffered reports whether the entry currently holds a ticket offer.
func (e *WaitingEntry) IsOffered() bool {
	return e.Status == EntryStatusOffered
}

// OfferLive reports whether the entry holds an offer that has not yet
// passed its deadline.
func (e *WaitingEntry) OfferLive(now time.Time) bool {
	return e.Status == EntryStatusOffered &&
		e.OfferExpiresAt != nil && e.OfferExpiresAt.After(now)
}

// BelongsToUser reports whether the entry is held by the given user.
func (e *WaitingEntry) BelongsToUser(userID string) bool {
	return e.UserID == userID
}

// Validate checks the fields a caller controls.
func (e *WaitingEntry) Validate() error {
	if e.UserID == "" {
		return ErrInvalidUserID
	}
	if e.EventID == "" {
		return ErrInvalidEventID
	}
	if e.Requested.IsZero() || e.Requested.AnyNegative() {
		return ErrInvalidTicketCounts
	}
	return nil
}
