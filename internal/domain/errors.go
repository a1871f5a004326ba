package domain

import "errors"

var (
	ErrSerializationFailure = errors.New("serialization failure")
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrInvalidInput         = errors.New("invalid input")

	ErrEmptyCart        = errors.New("nothing to order")
	ErrLineItemVanished = errors.New("line item no longer available")
	ErrClassFull        = errors.New("class full")
	ErrScheduleInactive = errors.New("schedule inactive")
	ErrScheduleInPast   = errors.New("schedule in the past")
	ErrDuplicateBooking = errors.New("duplicate booking")
	ErrAlreadyCancelled = errors.New("booking already cancelled")
	ErrBookingNotActive = errors.New("booking not active")
	ErrNoMembership     = errors.New("no active membership")
)
