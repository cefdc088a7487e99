package domain

import "time"

// TicketStatus is the lifecycle state of a sold ticket.
type TicketStatus string

const (
	TicketStatusValid     TicketStatus = "valid"
	TicketStatusUsed      TicketStatus = "used"
	TicketStatusRefunded  TicketStatus = "refunded"
	TicketStatusCancelled TicketStatus = "cancelled"
)

// String returns the status as a string.
func (s TicketStatus) String() string { return string(s) }

// CountsAsSold reports whether a ticket in this status still occupies
// inventory. Refunded and cancelled tickets return capacity to the pool.
func (s TicketStatus) CountsAsSold() bool {
	return s == TicketStatusValid || s == TicketStatusUsed
}

// Ticket is a completed purchase. Tickets are created only by the purchase
// finalizer from an offered waiting-list entry, in the same transaction
// that marks the entry purchased.
type Ticket struct {
	ID          string       `json:"id"`
	EventID     string       `json:"event_id"`
	UserID      string       `json:"user_id"`
	Counts      TierCounts   `json:"counts"`
	Status      TicketStatus `json:"status"`
	PurchasedAt time.Time    `json:"purchased_at"`
	PaymentRef  string       `json:"payment_ref"`
	Amount      float64      `json:"amount"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// IsValid reports whether the ticket is still redeemable.
func (t *Ticket) IsValid() bool {
	return t.Status == TicketStatusValid
}
