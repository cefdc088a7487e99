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

// PurchaseHandler handles purchase finalization HTTP requests
type PurchaseHandler struct {
	purchase service.PurchaseService
}

// NewPurchaseHandler creates a new purchase handler
func NewPurchaseHandler(purchase service.PurchaseService) *PurchaseHandler {
	return &PurchaseHandler{purchase: purchase}
}

// Confirm handles POST /queue/entries/:id/confirm
func (h *PurchaseHandler) Confirm(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.purchase.confirm")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID, ok := middleware.GetUserID(c)
	if !ok {
		span.SetStatus(codes.Error, "unauthorized")
		response.Unauthorized(c, "authentication required")
		return
	}

	entryID := c.Param("id")

	var req dto.ConfirmPurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		response.BadRequest(c, err.Error())
		return
	}

	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.String("entry_id", entryID),
	)

	ticket, err := h.purchase.Confirm(ctx, entryID, userID, req.PaymentRef)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetAttributes(attribute.String("ticket_id", ticket.ID))
	span.SetStatus(codes.Ok, "")
	response.Created(c, dto.TicketFromDomain(ticket))
}
