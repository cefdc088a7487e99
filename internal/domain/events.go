package domain

import "time"

// WaitlistEventType identifies a lifecycle event published to the bus.
type WaitlistEventType string

const (
	WaitlistEventJoined    WaitlistEventType = "waitlist.joined"
	WaitlistEventOffered   WaitlistEventType = "waitlist.offered"
	WaitlistEventExpired   WaitlistEventType = "waitlist.offer_expired"
	WaitlistEventEvicted   WaitlistEventType = "waitlist.evicted"
	WaitlistEventPurchased WaitlistEventType = "waitlist.purchased"
	EventCancelledEvent    WaitlistEventType = "event.cancelled"
)

// WaitlistEvent is the envelope written to the event bus for each
// waiting-list transition. Consumers key on EventID so one event's
// transitions stay ordered within a partition.
type WaitlistEvent struct {
	ID         string            `json:"id"`
	Type       WaitlistEventType `json:"type"`
	EventID    string            `json:"event_id"`
	EntryID    string            `json:"entry_id,omitempty"`
	UserID     string            `json:"user_id,omitempty"`
	Requested  TierCounts        `json:"requested,omitempty"`
	TicketID   string            `json:"ticket_id,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// NewWaitlistEvent builds an event envelope for an entry transition.
func NewWaitlistEvent(t WaitlistEventType, entry *WaitingEntry, id string) *WaitlistEvent {
	ev := &WaitlistEvent{
		ID:         id,
		Type:       t,
		OccurredAt: time.Now(),
	}
	if entry != nil {
		ev.EventID = entry.EventID
		ev.EntryID = entry.ID
		ev.UserID = entry.UserID
		ev.Requested = entry.Requested
	}
	return ev
}

// Key returns the partition key for the event.
func (e *WaitlistEvent) Key() string {
	return e.EventID
}
