package main

import (
	"errors"
	"net/http"
)

// Ledger error kinds. All of them are user-facing conditions the handlers
// translate to an HTTP status; none are fatal.
var (
	ErrEventInactive         = errors.New("event is not active")
	ErrCapacityExceeded      = errors.New("event capacity exceeded")
	ErrDuplicateRegistration = errors.New("already registered for this event")
	ErrNotRegistered         = errors.New("not registered for this event")
	ErrEventAlreadyStarted   = errors.New("event has already started")
	ErrCircleFull            = errors.New("circle capacity exceeded")
	ErrNotAMember            = errors.New("not an active member of this circle")
	ErrForbidden             = errors.New("forbidden")
)

// ledgerErrorStatus maps a ledger error to the HTTP status the caller should
// see. Unknown errors are treated as internal.
func ledgerErrorStatus(err error) int {
	switch {
	case errors.Is(err, ErrCapacityExceeded),
		errors.Is(err, ErrDuplicateRegistration),
		errors.Is(err, ErrEventInactive),
		errors.Is(err, ErrEventAlreadyStarted),
		errors.Is(err, ErrCircleFull):
		return http.StatusConflict
	case errors.Is(err, ErrNotRegistered), errors.Is(err, ErrNotAMember):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
