package domain

import "errors"

// Domain errors
var (
	// Event errors
	ErrEventNotFound      = errors.New("event not found")
	ErrEventInactive      = errors.New("event is no longer active")
	ErrCapacityBelowSold  = errors.New("tier capacity cannot drop below tickets already sold")
	ErrTicketsOutstanding = errors.New("event has outstanding valid tickets")

	// Waiting-list errors
	ErrEntryNotFound          = errors.New("waiting list entry not found")
	ErrAlreadyInWaitingList   = errors.New("user already has an active waiting list entry for this event")
	ErrOfferNotActive         = errors.New("no valid ticket offer found")
	ErrEntryOwnershipMismatch = errors.New("waiting list entry does not belong to this user")

	// Capacity errors
	ErrCapacityExceeded = errors.New("requested counts exceed total tier capacity")

	// Ticket errors
	ErrTicketNotFound = errors.New("ticket not found")

	// Validation errors
	ErrInvalidUserID       = errors.New("invalid user id")
	ErrInvalidEventID      = errors.New("invalid event id")
	ErrInvalidEntryID      = errors.New("invalid waiting list entry id")
	ErrInvalidTicketID     = errors.New("invalid ticket id")
	ErrInvalidTicketCounts = errors.New("ticket counts must be non-negative and not all zero")
	ErrInvalidPaymentRef   = errors.New("invalid payment reference")
	ErrInvalidTicketStatus = errors.New("invalid ticket status")
)

// IsNotFoundError checks if the error is a not found error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrEventNotFound) ||
		errors.Is(err, ErrEntryNotFound) ||
		errors.Is(err, ErrTicketNotFound)
}

// IsConflictError checks if the error reflects caller-visible state that
// makes the operation impossible right now.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrAlreadyInWaitingList) ||
		errors.Is(err, ErrOfferNotActive) ||
		errors.Is(err, ErrEntryOwnershipMismatch) ||
		errors.Is(err, ErrCapacityBelowSold) ||
		errors.Is(err, ErrTicketsOutstanding)
}

// IsCapacityError checks if the error means the request can never fit.
func IsCapacityError(err error) bool {
	return errors.Is(err, ErrCapacityExceeded)
}

// IsInactiveError checks if the error is due to a cancelled event.
func IsInactiveError(err error) bool {
	return errors.Is(err, ErrEventInactive)
}

// IsValidationError checks if the error is a request validation error.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidUserID) ||
		errors.Is(err, ErrInvalidEventID) ||
		errors.Is(err, ErrInvalidEntryID) ||
		errors.Is(err, ErrInvalidTicketID) ||
		errors.Is(err, ErrInvalidTicketCounts) ||
		errors.Is(err, ErrInvalidPaymentRef) ||
		errors.Is(err, ErrInvalidTicketStatus)
}
