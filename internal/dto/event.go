package dto

import (
	"time"

	"github.com/EiadSorour/Ticketr/internal/domain"
)

// TierConfigRequest carries one tier's sale configuration
type TierConfigRequest struct {
	UnitPrice float64 `json:"unit_price" binding:"min=0"`
	Capacity  int     `json:"capacity" binding:"min=0"`
}

// CreateEventRequest represents a request to create an event
type CreateEventRequest struct {
	Name        string            `json:"name" binding:"required"`
	Description string            `json:"description"`
	Location    string            `json:"location" binding:"required"`
	EventDate   time.Time         `json:"event_date" binding:"required"`
	Silver      TierConfigRequest `json:"silver"`
	Gold        TierConfigRequest `json:"gold"`
	Platinum    TierConfigRequest `json:"platinum"`
}

// UpdateTiersRequest represents a request to change tier configuration
type UpdateTiersRequest struct {
	Silver   TierConfigRequest `json:"silver"`
	Gold     TierConfigRequest `json:"gold"`
	Platinum TierConfigRequest `json:"platinum"`
}

// TierConfigResponse represents one tier in API responses
type TierConfigResponse struct {
	UnitPrice float64 `json:"unit_price"`
	Capacity  int     `json:"capacity"`
}

// EventResponse represents an event in API responses
type EventResponse struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Location    string             `json:"location"`
	EventDate   time.Time          `json:"event_date"`
	OwnerID     string             `json:"owner_id"`
	Silver      TierConfigResponse `json:"silver"`
	Gold        TierConfigResponse `json:"gold"`
	Platinum    TierConfigResponse `json:"platinum"`
	IsCancelled bool               `json:"is_cancelled"`
	CreatedAt   time.Time          `json:"created_at"`
}

// EventFromDomain converts a domain Event to EventResponse
func EventFromDomain(e *domain.Event) *EventResponse {
	return &EventResponse{
		ID:          e.ID,
		Name:        e.Name,
		Description: e.Description,
		Location:    e.Location,
		EventDate:   e.EventDate,
		OwnerID:     e.OwnerID,
		Silver:      TierConfigResponse{UnitPrice: e.Silver.UnitPrice, Capacity: e.Silver.Capacity},
		Gold:        TierConfigResponse{UnitPrice: e.Gold.UnitPrice, Capacity: e.Gold.Capacity},
		Platinum:    TierConfigResponse{UnitPrice: e.Platinum.UnitPrice, Capacity: e.Platinum.Capacity},
		IsCancelled: e.IsCancelled,
		CreatedAt:   e.CreatedAt,
	}
}

// TierAvailabilityResponse represents one tier of the ledger
type TierAvailabilityResponse struct {
	Capacity     int  `json:"capacity"`
	Sold         int  `json:"sold"`
	ActiveOffers int  `json:"active_offers"`
	Remaining    int  `json:"remaining"`
	SoldOut      bool `json:"sold_out"`
}

// AvailabilityResponse represents the availability ledger for an event
type AvailabilityResponse struct {
	EventID  string                   `json:"event_id"`
	Silver   TierAvailabilityResponse `json:"silver"`
	Gold     TierAvailabilityResponse `json:"gold"`
	Platinum TierAvailabilityResponse `json:"platinum"`
}

// AvailabilityFromDomain converts a domain Availability to the API shape
func AvailabilityFromDomain(a *domain.Availability) *AvailabilityResponse {
	tier := func(t domain.TierAvailability) TierAvailabilityResponse {
		return TierAvailabilityResponse{
			Capacity:     t.Capacity,
			Sold:         t.Sold,
			ActiveOffers: t.ActiveOffers,
			Remaining:    t.Remaining,
			SoldOut:      t.SoldOut,
		}
	}
	return &AvailabilityResponse{
		EventID:  a.EventID,
		Silver:   tier(a.Silver),
		Gold:     tier(a.Gold),
		Platinum: tier(a.Platinum),
	}
}
