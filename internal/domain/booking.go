package domain

import (
	"time"

	"github.com/google/uuid"
)

func NewBooking(userID, scheduleID uuid.UUID, notes string) Booking {
	return Booking{
		ID:         uuid.New(),
		UserID:     userID,
		ScheduleID: scheduleID,
		Status:     BookingConfirmed,
		Notes:      notes,
		BookedAt:   time.Now().UTC(),
	}
}

// CanTransition reports whether a booking may move between the two states.
// Only confirmed bookings transition; cancelled, attended and no_show are
// terminal.
func CanTransition(from, to BookingStatus) bool {
	if from != BookingConfirmed {
		return false
	}
	switch to {
	case BookingCancelled, BookingAttended, BookingNoShow:
		return true
	}
	return false
}

// HoldsSeat reports whether a booking in this status counts against the
// schedule's capacity.
func (s BookingStatus) HoldsSeat() bool {
	return s == BookingConfirmed || s == BookingAttended
}

// UserBooking is a booking joined with its schedule, the shape of the
// member's bookings page.
type UserBooking struct {
	Booking
	ClassName string
	StartsAt  time.Time
}

// GroupBookings splits a member's bookings the way the bookings page shows
// them: cancelled in their own bucket, everything else divided by whether
// the class has started yet.
func GroupBookings(now time.Time, list []UserBooking) (upcoming, past, cancelled []UserBooking) {
	for _, b := range list {
		switch {
		case b.Status == BookingCancelled:
			cancelled = append(cancelled, b)
		case b.StartsAt.After(now):
			upcoming = append(upcoming, b)
		default:
			past = append(past, b)
		}
	}
	return upcoming, past, cancelled
}
