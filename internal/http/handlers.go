package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fitlife/checkout-and-bookings/internal/booking"
	"github.com/fitlife/checkout-and-bookings/internal/checkout"
	"github.com/fitlife/checkout-and-bookings/internal/config"
	"github.com/fitlife/checkout-and-bookings/internal/domain"
	"github.com/fitlife/checkout-and-bookings/internal/idempotency"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type Handlers struct {
	cfg        *config.Config
	initiator  *checkout.Initiator
	reconciler *checkout.Reconciler
	bookings   *booking.Service
	idemp      *idempotency.Idempotency
}

func NewHandlers(cfg *config.Config, initiator *checkout.Initiator, reconciler *checkout.Reconciler, bookings *booking.Service, idemp *idempotency.Idempotency) *Handlers {
	return &Handlers{
		cfg:        cfg,
		initiator:  initiator,
		reconciler: reconciler,
		bookings:   bookings,
		idemp:      idemp,
	}
}

type billingPayload struct {
	FullName       string `json:"full_name"`
	Email          string `json:"email"`
	PhoneNumber    string `json:"phone_number"`
	StreetAddress1 string `json:"street_address1"`
	StreetAddress2 string `json:"street_address2"`
	TownOrCity     string `json:"town_or_city"`
	County         string `json:"county"`
	Postcode       string `json:"postcode"`
	Country        string `json:"country"`
}

func (p billingPayload) toDomain() domain.BillingDetails {
	return domain.BillingDetails{
		FullName:       p.FullName,
		Email:          p.Email,
		PhoneNumber:    p.PhoneNumber,
		StreetAddress1: p.StreetAddress1,
		StreetAddress2: p.StreetAddress2,
		TownOrCity:     p.TownOrCity,
		County:         p.County,
		Postcode:       p.Postcode,
		Country:        p.Country,
	}
}

type cartLinePayload struct {
	ItemID   uuid.UUID `json:"item_id"`
	Kind     string    `json:"kind"`
	Quantity int       `json:"quantity"`
}

func toCartLines(payload []cartLinePayload) []domain.CartLine {
	lines := make([]domain.CartLine, len(payload))
	for i, l := range payload {
		lines[i] = domain.CartLine{ItemID: l.ItemID, Kind: domain.ItemKind(l.Kind), Quantity: l.Quantity}
	}
	return lines
}

// Checkout is the sync path: the browser calls it right after the
// client-side payment confirmation.
func (h *Handlers) Checkout(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("Idempotency-Key")
	existing, err := h.idemp.Get(r.Context(), key)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if existing != nil {
		w.WriteHeader(existing.Status)
		w.Write(existing.Result)
		return
	}

	var req struct {
		Billing billingPayload    `json:"billing"`
		Lines   []cartLinePayload `json:"lines"`
		UserID  *uuid.UUID        `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	snapshot := domain.CartSnapshot{Lines: toCartLines(req.Lines)}
	order, err := h.initiator.Checkout(r.Context(), snapshot, req.Billing.toDomain(), req.UserID)
	if err != nil {
		writeCheckoutError(w, err)
		return
	}

	resp := map[string]interface{}{
		"order_number": order.OrderNumber,
		"grand_total":  order.GrandTotal.String(),
	}
	data, _ := json.Marshal(resp)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	w.Write(data)

	h.idemp.Set(r.Context(), key, idempotency.Response{Status: http.StatusCreated, Result: data})
}

func writeCheckoutError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrEmptyCart):
		http.Error(w, "there's nothing in your bag at the moment", http.StatusBadRequest)
	case errors.Is(err, domain.ErrInvalidInput):
		http.Error(w, "invalid buyer details", http.StatusBadRequest)
	case errors.Is(err, domain.ErrLineItemVanished):
		http.Error(w, "an item in your bag is no longer available", http.StatusConflict)
	case errors.Is(err, domain.ErrSerializationFailure):
		http.Error(w, "conflict, try again", http.StatusConflict)
	default:
		http.Error(w, "could not create order", http.StatusInternalServerError)
	}
}

// PaymentWebhook is the async path. 2xx acknowledges the delivery, 5xx asks
// the provider to redeliver.
func (h *Handlers) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type         string            `json:"type"`
		IntentID     string            `json:"intent_id"`
		Amount       int64             `json:"amount"`
		Billing      billingPayload    `json:"billing_details"`
		Items        []cartLinePayload `json:"items"`
		MembershipID *uuid.UUID        `json:"membership_id"`
		SaveInfo     bool              `json:"save_info"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	event := domain.PaymentEvent{
		Type:         req.Type,
		IntentID:     req.IntentID,
		Amount:       req.Amount,
		Billing:      req.Billing.toDomain(),
		Items:        toCartLines(req.Items),
		MembershipID: req.MembershipID,
		SaveInfo:     req.SaveInfo,
	}
	if err := h.reconciler.Handle(r.Context(), event); err != nil {
		http.Error(w, "webhook processing failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"received": event.Type})
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")

	order, err := h.initiator.GetOrder(r.Context(), number)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "order not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	items := make([]map[string]interface{}, len(order.Items))
	for i, item := range order.Items {
		items[i] = map[string]interface{}{
			"position":   item.Position,
			"kind":       item.Kind,
			"item_id":    item.ItemID,
			"quantity":   item.Quantity,
			"unit_price": item.UnitPrice.String(),
			"line_total": item.LineTotal.String(),
		}
	}
	resp := map[string]interface{}{
		"order_number":  order.OrderNumber,
		"subtotal":      order.Subtotal.String(),
		"delivery_cost": order.DeliveryCost.String(),
		"grand_total":   order.GrandTotal.String(),
		"items":         items,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (h *Handlers) CreateBooking(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("Idempotency-Key")
	existing, err := h.idemp.Get(r.Context(), key)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if existing != nil {
		w.WriteHeader(existing.Status)
		w.Write(existing.Result)
		return
	}

	var req struct {
		UserID     uuid.UUID `json:"user_id"`
		ScheduleID uuid.UUID `json:"schedule_id"`
		Notes      string    `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	b, sched, err := h.bookings.Create(r.Context(), req.UserID, req.ScheduleID, req.Notes)
	if err != nil {
		writeBookingError(w, err)
		return
	}

	resp := map[string]interface{}{
		"booking_id":      b.ID,
		"status":          b.Status,
		"class_name":      sched.ClassName,
		"available_spots": sched.AvailableSpots,
	}
	data, _ := json.Marshal(resp)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	w.Write(data)

	h.idemp.Set(r.Context(), key, idempotency.Response{Status: http.StatusCreated, Result: data})
}

func writeBookingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "schedule not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrNoMembership):
		http.Error(w, "an active membership is required to book classes", http.StatusForbidden)
	case errors.Is(err, domain.ErrClassFull):
		http.Error(w, "sorry, this class is full", http.StatusConflict)
	case errors.Is(err, domain.ErrScheduleInactive):
		http.Error(w, "this class schedule is no longer active", http.StatusConflict)
	case errors.Is(err, domain.ErrDuplicateBooking):
		http.Error(w, "you have already booked this class", http.StatusConflict)
	case errors.Is(err, domain.ErrSerializationFailure):
		http.Error(w, "conflict, try again", http.StatusConflict)
	default:
		http.Error(w, "could not create booking", http.StatusInternalServerError)
	}
}

func (h *Handlers) CancelBooking(w http.ResponseWriter, r *http.Request) {
	bookingID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	var req struct {
		UserID uuid.UUID `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = h.bookings.Cancel(r.Context(), bookingID, req.UserID)
	switch {
	case err == nil:
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "cancelled"})
	case errors.Is(err, domain.ErrAlreadyCancelled):
		// Benign: the seat was already restored, nothing double-incremented.
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "cancelled", "warning": "this booking is already cancelled"})
	case errors.Is(err, domain.ErrScheduleInPast):
		http.Error(w, "cannot cancel a past booking", http.StatusBadRequest)
	case errors.Is(err, domain.ErrBookingNotActive):
		http.Error(w, "booking can no longer be cancelled", http.StatusConflict)
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "booking not found", http.StatusNotFound)
	default:
		http.Error(w, "could not cancel booking", http.StatusInternalServerError)
	}
}

func (h *Handlers) markBooking(w http.ResponseWriter, r *http.Request, to domain.BookingStatus) {
	bookingID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	var updateErr error
	if to == domain.BookingAttended {
		updateErr = h.bookings.MarkAttended(r.Context(), bookingID)
	} else {
		updateErr = h.bookings.MarkNoShow(r.Context(), bookingID)
	}
	switch {
	case updateErr == nil:
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"status": to})
	case errors.Is(updateErr, domain.ErrNotFound):
		http.Error(w, "booking not found", http.StatusNotFound)
	case errors.Is(updateErr, domain.ErrBookingNotActive):
		http.Error(w, "booking is not confirmed", http.StatusConflict)
	default:
		http.Error(w, "could not update booking", http.StatusInternalServerError)
	}
}

func (h *Handlers) MarkAttended(w http.ResponseWriter, r *http.Request) {
	h.markBooking(w, r, domain.BookingAttended)
}

func (h *Handlers) MarkNoShow(w http.ResponseWriter, r *http.Request) {
	h.markBooking(w, r, domain.BookingNoShow)
}

func (h *Handlers) ListBookings(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.URL.Query().Get("user_id"))
	if err != nil {
		http.Error(w, "invalid user_id", http.StatusBadRequest)
		return
	}
	bookings, err := h.bookings.List(r.Context(), userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	upcoming, past, cancelled := domain.GroupBookings(time.Now().UTC(), bookings)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"upcoming":  bookingViews(upcoming),
		"past":      bookingViews(past),
		"cancelled": bookingViews(cancelled),
	})
}

func bookingViews(list []domain.UserBooking) []map[string]interface{} {
	out := make([]map[string]interface{}, len(list))
	for i, b := range list {
		out[i] = map[string]interface{}{
			"booking_id":  b.ID,
			"schedule_id": b.ScheduleID,
			"class_name":  b.ClassName,
			"starts_at":   b.StartsAt,
			"status":      b.Status,
			"booked_at":   b.BookedAt,
		}
	}
	return out
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}
