package dto

import (
	"time"

	"github.com/EiadSorour/Ticketr/internal/domain"
	"github.com/EiadSorour/Ticketr/internal/service"
)

// TierCountsRequest carries a per-tier quantity selection
type TierCountsRequest struct {
	Silver   int `json:"silver" binding:"min=0"`
	Gold     int `json:"gold" binding:"min=0"`
	Platinum int `json:"platinum" binding:"min=0"`
}

// ToDomain converts to domain TierCounts
func (r TierCountsRequest) ToDomain() domain.TierCounts {
	return domain.TierCounts{
		Silver:   r.Silver,
		Gold:     r.Gold,
		Platinum: r.Platinum,
	}
}

// JoinQueueRequest represents a request to join an event's waiting list
type JoinQueueRequest struct {
	EventID   string            `json:"event_id" binding:"required"`
	Requested TierCountsRequest `json:"requested" binding:"required"`
}

// QueueEntryResponse represents a waiting-list entry in API responses
type QueueEntryResponse struct {
	ID             string            `json:"id"`
	EventID        string            `json:"event_id"`
	UserID         string            `json:"user_id"`
	Requested      domain.TierCounts `json:"requested"`
	Status         string            `json:"status"`
	Position       int64             `json:"position,omitempty"`
	OfferExpiresAt *time.Time        `json:"offer_expires_at,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// QueueStatusFromDomain converts a service QueueStatus to the API shape
func QueueStatusFromDomain(st *service.QueueStatus) *QueueEntryResponse {
	entry := st.Entry
	return &QueueEntryResponse{
		ID:             entry.ID,
		EventID:        entry.EventID,
		UserID:         entry.UserID,
		Requested:      entry.Requested,
		Status:         entry.Status.String(),
		Position:       st.Position,
		OfferExpiresAt: entry.OfferExpiresAt,
		CreatedAt:      entry.CreatedAt,
	}
}

// ReleaseOfferResponse represents the result of releasing an offer
type ReleaseOfferResponse struct {
	EntryID string `json:"entry_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}
