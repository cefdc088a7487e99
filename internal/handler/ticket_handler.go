package handler

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/EiadSorour/Ticketr/internal/dto"
	"github.com/EiadSorour/Ticketr/internal/service"
	"github.com/EiadSorour/Ticketr/pkg/middleware"
	"github.com/EiadSorour/Ticketr/pkg/response"
	"github.com/EiadSorour/Ticketr/pkg/telemetry"
)

// TicketHandler handles ticket HTTP requests
type TicketHandler struct {
	tickets service.TicketService
}

// NewTicketHandler creates a new ticket handler
func NewTicketHandler(tickets service.TicketService) *TicketHandler {
	return &TicketHandler{tickets: tickets}
}

// Get handles GET /tickets/:id
func (h *TicketHandler) Get(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.ticket.get")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	ticketID := c.Param("id")
	span.SetAttributes(attribute.String("ticket_id", ticketID))

	ticket, err := h.tickets.Get(ctx, ticketID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	response.Success(c, dto.TicketFromDomain(ticket))
}

// ListMine handles GET /tickets
func (h *TicketHandler) ListMine(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.ticket.list_mine")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID, ok := middleware.GetUserID(c)
	if !ok {
		span.SetStatus(codes.Error, "unauthorized")
		response.Unauthorized(c, "authentication required")
		return
	}

	span.SetAttributes(attribute.String("user_id", userID))

	tickets, err := h.tickets.ListByUser(ctx, userID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	response.Success(c, dto.TicketsFromDomain(tickets))
}

// Redeem handles POST /tickets/:id/redeem
func (h *TicketHandler) Redeem(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.ticket.redeem")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	ticketID := c.Param("id")
	span.SetAttributes(attribute.String("ticket_id", ticketID))

	ticket, err := h.tickets.Redeem(ctx, ticketID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	response.Success(c, dto.TicketFromDomain(ticket))
}

// Refund handles POST /tickets/:id/refund
func (h *TicketHandler) Refund(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.ticket.refund")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	ticketID := c.Param("id")
	span.SetAttributes(attribute.String("ticket_id", ticketID))

	ticket, err := h.tickets.Refund(ctx, ticketID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	response.Success(c, dto.TicketFromDomain(ticket))
}
