package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/EiadSorour/Ticketr/internal/domain"
	"github.com/EiadSorour/Ticketr/pkg/response"
)

// handleError converts domain errors to HTTP responses
func handleError(c *gin.Context, err error) {
	switch {
	case domain.IsNotFoundError(err):
		response.Error(c, http.StatusNotFound, "NOT_FOUND", err.Error(), "")
	case errors.Is(err, domain.ErrAlreadyInWaitingList):
		response.Error(c, http.StatusConflict, "ALREADY_IN_WAITING_LIST", err.Error(), "")
	case errors.Is(err, domain.ErrOfferNotActive):
		response.Error(c, http.StatusConflict, "OFFER_NOT_ACTIVE", err.Error(), "")
	case errors.Is(err, domain.ErrEntryOwnershipMismatch):
		response.Error(c, http.StatusForbidden, "FORBIDDEN", err.Error(), "")
	case errors.Is(err, domain.ErrCapacityExceeded):
		response.Error(c, http.StatusConflict, "CAPACITY_EXCEEDED", err.Error(), "")
	case errors.Is(err, domain.ErrCapacityBelowSold):
		response.Error(c, http.StatusConflict, "CAPACITY_REDUCTION", err.Error(), "")
	case errors.Is(err, domain.ErrTicketsOutstanding):
		response.Error(c, http.StatusConflict, "TICKETS_OUTSTANDING", err.Error(), "")
	case domain.IsInactiveError(err):
		response.Error(c, http.StatusConflict, "EVENT_CANCELLED", err.Error(), "")
	case domain.IsValidationError(err):
		response.Error(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), "")
	default:
		response.InternalError(c, errors.New("internal server error"))
	}
}
