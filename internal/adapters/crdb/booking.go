package crdb

import (
	"context"
	"time"

	"github.com/fitlife/checkout-and-bookings/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CreateBooking inserts the booking and decrements the schedule's available
// spots in one serializable transaction. The schedule row is locked first so
// concurrent attempts serialize on the capacity check-and-decrement; the
// partial unique index on (user_id, schedule_id) rejects a duplicate even if
// two requests for the same user race past the precondition check.
func (r *Repository) CreateBooking(ctx context.Context, booking domain.Booking, outbox OutboxRecord) (*domain.ClassSchedule, error) {
	var sched domain.ClassSchedule
	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			SELECT id, class_name, starts_at, capacity, available_spots, is_active
			FROM class_schedules WHERE id = $1 FOR UPDATE
		`, booking.ScheduleID).Scan(&sched.ID, &sched.ClassName, &sched.StartsAt, &sched.Capacity, &sched.AvailableSpots, &sched.IsActive)
		if err == pgx.ErrNoRows {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}
		if !sched.IsActive {
			return domain.ErrScheduleInactive
		}
		if sched.AvailableSpots <= 0 {
			return domain.ErrClassFull
		}

		result, err := tx.Exec(ctx, `
			INSERT INTO bookings (id, user_id, schedule_id, status, notes, booked_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (user_id, schedule_id) WHERE status IN ('confirmed', 'attended') DO NOTHING
		`, booking.ID, booking.UserID, booking.ScheduleID, booking.Status, booking.Notes, booking.BookedAt)
		if err != nil {
			return err
		}
		if result.RowsAffected() == 0 {
			return domain.ErrDuplicateBooking
		}

		if _, err := tx.Exec(ctx, `
			UPDATE class_schedules SET available_spots = available_spots - 1 WHERE id = $1
		`, booking.ScheduleID); err != nil {
			return err
		}
		sched.AvailableSpots--

		return r.InsertOutbox(ctx, tx, outbox)
	})
	if err != nil {
		return nil, err
	}
	return &sched, nil
}

// CancelBooking moves a confirmed booking to cancelled and restores the
// seat, atomically. Cancelling twice returns ErrAlreadyCancelled without
// touching the counter.
func (r *Repository) CancelBooking(ctx context.Context, bookingID, userID uuid.UUID, now time.Time, outbox OutboxRecord) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		var status domain.BookingStatus
		var scheduleID uuid.UUID
		var startsAt time.Time
		err := tx.QueryRow(ctx, `
			SELECT b.status, b.schedule_id, s.starts_at
			FROM bookings b
			JOIN class_schedules s ON s.id = b.schedule_id
			WHERE b.id = $1 AND b.user_id = $2
			FOR UPDATE OF b
		`, bookingID, userID).Scan(&status, &scheduleID, &startsAt)
		if err == pgx.ErrNoRows {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}

		if startsAt.Before(now) {
			return domain.ErrScheduleInPast
		}
		if status == domain.BookingCancelled {
			return domain.ErrAlreadyCancelled
		}
		if !domain.CanTransition(status, domain.BookingCancelled) {
			return domain.ErrBookingNotActive
		}

		if _, err := tx.Exec(ctx, `
			UPDATE bookings SET status = 'cancelled' WHERE id = $1
		`, bookingID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			UPDATE class_schedules SET available_spots = available_spots + 1 WHERE id = $1
		`, scheduleID); err != nil {
			return err
		}
		return r.InsertOutbox(ctx, tx, outbox)
	})
}

// UpdateBookingStatus applies the attended / no_show transitions. Neither
// releases the seat, so the capacity counter is untouched.
func (r *Repository) UpdateBookingStatus(ctx context.Context, bookingID uuid.UUID, to domain.BookingStatus) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		var status domain.BookingStatus
		err := tx.QueryRow(ctx, `
			SELECT status FROM bookings WHERE id = $1 FOR UPDATE
		`, bookingID).Scan(&status)
		if err == pgx.ErrNoRows {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}
		if !domain.CanTransition(status, to) {
			return domain.ErrBookingNotActive
		}
		_, err = tx.Exec(ctx, `UPDATE bookings SET status = $2 WHERE id = $1`, bookingID, to)
		return err
	})
}

func (r *Repository) GetBooking(ctx context.Context, bookingID uuid.UUID) (*domain.Booking, error) {
	var b domain.Booking
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, schedule_id, status, notes, booked_at
		FROM bookings WHERE id = $1
	`, bookingID).Scan(&b.ID, &b.UserID, &b.ScheduleID, &b.Status, &b.Notes, &b.BookedAt)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ListBookings returns the member's bookings joined with their schedules,
// ordered by class start time; callers bucket them for display.
func (r *Repository) ListBookings(ctx context.Context, userID uuid.UUID) ([]domain.UserBooking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT b.id, b.user_id, b.schedule_id, b.status, b.notes, b.booked_at, s.class_name, s.starts_at
		FROM bookings b
		JOIN class_schedules s ON s.id = b.schedule_id
		WHERE b.user_id = $1 ORDER BY s.starts_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []domain.UserBooking
	for rows.Next() {
		var b domain.UserBooking
		if err := rows.Scan(&b.ID, &b.UserID, &b.ScheduleID, &b.Status, &b.Notes, &b.BookedAt, &b.ClassName, &b.StartsAt); err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func (r *Repository) GetSchedule(ctx context.Context, scheduleID uuid.UUID) (*domain.ClassSchedule, error) {
	var s domain.ClassSchedule
	err := r.pool.QueryRow(ctx, `
		SELECT id, class_name, starts_at, capacity, available_spots, is_active
		FROM class_schedules WHERE id = $1
	`, scheduleID).Scan(&s.ID, &s.ClassName, &s.StartsAt, &s.Capacity, &s.AvailableSpots, &s.IsActive)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
