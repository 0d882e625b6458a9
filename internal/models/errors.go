package models

import (
	"errors"
	"fmt"
)

// Domain errors returned by the purchase engine and its collaborators.
// Handlers map these to HTTP statuses; everything else is a 500.
var (
	ErrEventNotFound       = errors.New("event not found")
	ErrEventCancelled      = errors.New("event cancelled")
	ErrEventAlreadyStarted = errors.New("event has already started")
	ErrEventEnded          = errors.New("event has ended")
	ErrTicketNotFound      = errors.New("ticket not found")
	ErrTicketTypeNotFound  = errors.New("ticket type not found")
	ErrTicketAlreadyUsed   = errors.New("ticket already used")
	ErrTicketCancelled     = errors.New("ticket cancelled")
	ErrInvalidCart         = errors.New("invalid cart")
	ErrInvalidTicketType   = errors.New("invalid ticket type")
	ErrDuplicateTicketType = errors.New("ticket type name already exists for this event")
	ErrMaxTicketTypes      = errors.New("ticket type limit reached for this event")
	ErrResizeBelowSold     = errors.New("total quantity cannot drop below sold tickets")
	ErrExceedsEventLimit   = errors.New("ticket quantities would exceed the event guest limit")
	ErrAlreadyFulfilled    = errors.New("payment reference already fulfilled")
	ErrInvalidCredential   = errors.New("credential rejected")
	ErrPaymentNotVerified  = errors.New("payment not successful")
	ErrNotOrganizer        = errors.New("caller is not the event organizer")
)

// InsufficientInventoryError reports which ticket type could not cover the
// requested quantity so the client can re-offer an adjusted cart.
type InsufficientInventoryError struct {
	TicketTypeID string
	Name         string
	Requested    int
	Available    int
}

func (e *InsufficientInventoryError) Error() string {
	return fmt.Sprintf("not enough %q tickets: requested %d, available %d",
		e.Name, e.Requested, e.Available)
}

// ReconciliationError means money moved but the purchase could not be
// applied. It is surfaced on a separate operational path and must never be
// silently dropped.
type ReconciliationError struct {
	Provider    string
	ProviderRef string
	Cause       error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("charge %s/%s confirmed but purchase failed: %v",
		e.Provider, e.ProviderRef, e.Cause)
}

func (e *ReconciliationError) Unwrap() error { return e.Cause }
