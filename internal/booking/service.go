package booking

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fitlife/checkout-and-bookings/internal/adapters/crdb"
	"github.com/fitlife/checkout-and-bookings/internal/domain"
	"github.com/fitlife/checkout-and-bookings/internal/observability"
	"github.com/google/uuid"
)

// Store is the transactional capacity ledger. Implementations must make the
// capacity check-and-decrement and the booking insert one atomic unit, and
// must reject a (user, schedule) duplicate at the storage layer even when
// two requests race past the precondition checks.
type Store interface {
	CreateBooking(ctx context.Context, booking domain.Booking, outbox crdb.OutboxRecord) (*domain.ClassSchedule, error)
	CancelBooking(ctx context.Context, bookingID, userID uuid.UUID, now time.Time, outbox crdb.OutboxRecord) error
	UpdateBookingStatus(ctx context.Context, bookingID uuid.UUID, to domain.BookingStatus) error
	GetBooking(ctx context.Context, bookingID uuid.UUID) (*domain.Booking, error)
	ListBookings(ctx context.Context, userID uuid.UUID) ([]domain.UserBooking, error)
}

type Entitlement interface {
	HasActiveMembership(ctx context.Context, userID uuid.UUID) (bool, error)
}

type Service struct {
	store       Store
	entitlement Entitlement
	logger      observability.Logger
}

func NewService(store Store, entitlement Entitlement, logger observability.Logger) *Service {
	return &Service{store: store, entitlement: entitlement, logger: logger}
}

func (s *Service) Create(ctx context.Context, userID, scheduleID uuid.UUID, notes string) (*domain.Booking, *domain.ClassSchedule, error) {
	active, err := s.entitlement.HasActiveMembership(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if !active {
		return nil, nil, domain.ErrNoMembership
	}

	b := domain.NewBooking(userID, scheduleID, notes)
	sched, err := s.store.CreateBooking(ctx, b, eventRecord(b, "booking.created"))
	if err != nil {
		if errors.Is(err, domain.ErrClassFull) {
			observability.CapacityConflicts.Inc()
		}
		// The storage layer reports a raced duplicate as a conflict.
		if errors.Is(err, domain.ErrConflict) {
			err = domain.ErrDuplicateBooking
		}
		observability.BookingsTotal.WithLabelValues("create", "rejected").Inc()
		return nil, nil, err
	}
	observability.BookingsTotal.WithLabelValues("create", "confirmed").Inc()
	s.logger.WithField("booking_id", b.ID).WithField("schedule_id", scheduleID).Info("booking confirmed")
	return &b, sched, nil
}

// Cancel restores the seat and marks the booking cancelled. Cancelling an
// already-cancelled booking surfaces ErrAlreadyCancelled, which callers
// report as a warning; the capacity counter is only ever incremented once.
func (s *Service) Cancel(ctx context.Context, bookingID, userID uuid.UUID) error {
	b := domain.Booking{ID: bookingID, UserID: userID, Status: domain.BookingCancelled}
	err := s.store.CancelBooking(ctx, bookingID, userID, time.Now().UTC(), eventRecord(b, "booking.cancelled"))
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyCancelled) {
			s.logger.WithField("booking_id", bookingID).Warn("booking already cancelled")
		}
		observability.BookingsTotal.WithLabelValues("cancel", "rejected").Inc()
		return err
	}
	observability.BookingsTotal.WithLabelValues("cancel", "cancelled").Inc()
	return nil
}

func (s *Service) MarkAttended(ctx context.Context, bookingID uuid.UUID) error {
	return s.store.UpdateBookingStatus(ctx, bookingID, domain.BookingAttended)
}

func (s *Service) MarkNoShow(ctx context.Context, bookingID uuid.UUID) error {
	return s.store.UpdateBookingStatus(ctx, bookingID, domain.BookingNoShow)
}

func (s *Service) Get(ctx context.Context, bookingID uuid.UUID) (*domain.Booking, error) {
	return s.store.GetBooking(ctx, bookingID)
}

func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]domain.UserBooking, error) {
	return s.store.ListBookings(ctx, userID)
}

func eventRecord(b domain.Booking, eventType string) crdb.OutboxRecord {
	payload, _ := json.Marshal(map[string]interface{}{
		"booking_id":  b.ID,
		"user_id":     b.UserID,
		"schedule_id": b.ScheduleID,
	})
	return crdb.OutboxRecord{
		ID:            uuid.New(),
		AggregateType: "booking",
		AggregateID:   b.ID,
		EventType:     eventType,
		Payload:       payload,
		DedupeKey:     uuid.New().String(),
	}
}
