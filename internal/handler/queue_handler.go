package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/EiadSorour/Ticketr/internal/dto"
	"github.com/EiadSorour/Ticketr/internal/service"
	"github.com/EiadSorour/Ticketr/pkg/middleware"
	"github.com/EiadSorour/Ticketr/pkg/response"
	"github.com/EiadSorour/Ticketr/pkg/telemetry"
)

// QueueHandler handles waiting-list HTTP requests
type QueueHandler struct {
	waitlist   service.WaitlistService
	allocation service.AllocationService
}

// NewQueueHandler creates a new queue handler
func NewQueueHandler(waitlist service.WaitlistService, allocation service.AllocationService) *QueueHandler {
	return &QueueHandler{
		waitlist:   waitlist,
		allocation: allocation,
	}
}

// Join handles POST /queue/join
func (h *QueueHandler) Join(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.queue.join")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID, ok := middleware.GetUserID(c)
	if !ok {
		span.SetStatus(codes.Error, "unauthorized")
		response.Unauthorized(c, "authentication required")
		return
	}

	var req dto.JoinQueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		response.BadRequest(c, err.Error())
		return
	}

	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.String("event_id", req.EventID),
	)

	status, err := h.waitlist.Join(ctx, req.EventID, userID, req.Requested.ToDomain())
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	response.Created(c, dto.QueueStatusFromDomain(status))
}

// Status handles GET /events/:id/queue/status
func (h *QueueHandler) Status(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.queue.status")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID, ok := middleware.GetUserID(c)
	if !ok {
		span.SetStatus(codes.Error, "unauthorized")
		response.Unauthorized(c, "authentication required")
		return
	}

	eventID := c.Param("id")

	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.String("event_id", eventID),
	)

	status, err := h.waitlist.Status(ctx, eventID, userID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	response.Success(c, dto.QueueStatusFromDomain(status))
}

// Release handles POST /queue/entries/:id/release
func (h *QueueHandler) Release(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.queue.release")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID, ok := middleware.GetUserID(c)
	if !ok {
		span.SetStatus(codes.Error, "unauthorized")
		response.Unauthorized(c, "authentication required")
		return
	}

	entryID := c.Param("id")

	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.String("entry_id", entryID),
	)

	if err := h.allocation.ReleaseOffer(ctx, entryID, userID); err != nil {
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, response.Response{
		Success: true,
		Data: dto.ReleaseOfferResponse{
			EntryID: entryID,
			Status:  "expired",
			Message: "offer released; the next eligible entry will be served",
		},
	})
}
