package handler

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/EiadSorour/Ticketr/internal/domain"
	"github.com/EiadSorour/Ticketr/internal/dto"
	"github.com/EiadSorour/Ticketr/internal/service"
	"github.com/EiadSorour/Ticketr/pkg/middleware"
	"github.com/EiadSorour/Ticketr/pkg/response"
	"github.com/EiadSorour/Ticketr/pkg/telemetry"
)

// EventHandler handles event management HTTP requests
type EventHandler struct {
	events       service.EventService
	availability service.AvailabilityService
}

// NewEventHandler creates a new event handler
func NewEventHandler(events service.EventService, availability service.AvailabilityService) *EventHandler {
	return &EventHandler{
		events:       events,
		availability: availability,
	}
}

// Create handles POST /events
func (h *EventHandler) Create(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.event.create")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID, ok := middleware.GetUserID(c)
	if !ok {
		span.SetStatus(codes.Error, "unauthorized")
		response.Unauthorized(c, "authentication required")
		return
	}

	var req dto.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		response.BadRequest(c, err.Error())
		return
	}

	event, err := h.events.Create(ctx, &service.CreateEventInput{
		Name:        req.Name,
		Description: req.Description,
		Location:    req.Location,
		EventDate:   req.EventDate,
		OwnerID:     userID,
		Silver:      domain.TierConfig{UnitPrice: req.Silver.UnitPrice, Capacity: req.Silver.Capacity},
		Gold:        domain.TierConfig{UnitPrice: req.Gold.UnitPrice, Capacity: req.Gold.Capacity},
		Platinum:    domain.TierConfig{UnitPrice: req.Platinum.UnitPrice, Capacity: req.Platinum.Capacity},
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetAttributes(attribute.String("event_id", event.ID))
	span.SetStatus(codes.Ok, "")
	response.Created(c, dto.EventFromDomain(event))
}

// Get handles GET /events/:id
func (h *EventHandler) Get(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.event.get")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	eventID := c.Param("id")
	span.SetAttributes(attribute.String("event_id", eventID))

	event, err := h.events.Get(ctx, eventID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	response.Success(c, dto.EventFromDomain(event))
}

// ListMine handles GET /events
func (h *EventHandler) ListMine(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.event.list_mine")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID, ok := middleware.GetUserID(c)
	if !ok {
		span.SetStatus(codes.Error, "unauthorized")
		response.Unauthorized(c, "authentication required")
		return
	}

	events, err := h.events.ListByOwner(ctx, userID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	out := make([]*dto.EventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, dto.EventFromDomain(e))
	}

	span.SetStatus(codes.Ok, "")
	response.Success(c, out)
}

// UpdateTiers handles PUT /events/:id/tiers
func (h *EventHandler) UpdateTiers(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.event.update_tiers")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	eventID := c.Param("id")
	span.SetAttributes(attribute.String("event_id", eventID))

	var req dto.UpdateTiersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		response.BadRequest(c, err.Error())
		return
	}

	event, err := h.events.UpdateTiers(ctx, eventID,
		domain.TierConfig{UnitPrice: req.Silver.UnitPrice, Capacity: req.Silver.Capacity},
		domain.TierConfig{UnitPrice: req.Gold.UnitPrice, Capacity: req.Gold.Capacity},
		domain.TierConfig{UnitPrice: req.Platinum.UnitPrice, Capacity: req.Platinum.Capacity},
	)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	response.Success(c, dto.EventFromDomain(event))
}

// Cancel handles DELETE /events/:id
func (h *EventHandler) Cancel(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.event.cancel")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	eventID := c.Param("id")
	span.SetAttributes(attribute.String("event_id", eventID))

	if err := h.events.Cancel(ctx, eventID); err != nil {
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	response.Success(c, gin.H{"event_id": eventID, "is_cancelled": true})
}

// Availability handles GET /events/:id/availability
func (h *EventHandler) Availability(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.event.availability")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	eventID := c.Param("id")
	span.SetAttributes(attribute.String("event_id", eventID))

	avail, err := h.availability.GetAvailability(ctx, eventID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	response.Success(c, dto.AvailabilityFromDomain(avail))
}
