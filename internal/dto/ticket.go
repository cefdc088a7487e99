package dto

import (
	"time"

	"github.com/EiadSorour/Ticketr/internal/domain"
)

// ConfirmPurchaseRequest represents a request to finalize a purchase
type ConfirmPurchaseRequest struct {
	PaymentRef string `json:"payment_ref" binding:"required"`
}

// TicketResponse represents an issued ticket in API responses
type TicketResponse struct {
	ID          string            `json:"id"`
	EventID     string            `json:"event_id"`
	UserID      string            `json:"user_id"`
	Counts      domain.TierCounts `json:"counts"`
	Status      string            `json:"status"`
	Amount      float64           `json:"amount"`
	PaymentRef  string            `json:"payment_ref,omitempty"`
	PurchasedAt time.Time         `json:"purchased_at"`
}

// TicketFromDomain converts a domain Ticket to TicketResponse
func TicketFromDomain(t *domain.Ticket) *TicketResponse {
	return &TicketResponse{
		ID:          t.ID,
		EventID:     t.EventID,
		UserID:      t.UserID,
		Counts:      t.Counts,
		Status:      t.Status.String(),
		Amount:      t.Amount,
		PaymentRef:  t.PaymentRef,
		PurchasedAt: t.PurchasedAt,
	}
}

// TicketsFromDomain converts a slice of tickets
func TicketsFromDomain(tickets []*domain.Ticket) []*TicketResponse {
	out := make([]*TicketResponse, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, TicketFromDomain(t))
	}
	return out
}
