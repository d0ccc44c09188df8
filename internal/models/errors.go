package models

import "errors"

// Sentinel errors shared by the booking core. Handlers map these to stable
// HTTP statuses; anything else is treated as an internal failure.
var (
	ErrInvalidRequest   = errors.New("invalid request")
	ErrNotFound         = errors.New("not found")
	ErrCapacityExceeded = errors.New("zone capacity exceeded")
	ErrZoneLocked       = errors.New("zone is locked by another purchase")
	ErrNotPaid          = errors.New("ticket is not paid")
	ErrAlreadyCheckedIn = errors.New("ticket already checked in")
	ErrAlreadyCancelled = errors.New("ticket is cancelled")
	ErrAlreadyPaid      = errors.New("payment group already paid")
	ErrSessionMismatch  = errors.New("ticket does not belong to this event/session")
)
