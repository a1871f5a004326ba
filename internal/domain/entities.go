package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ItemKind string

const (
	ItemKindProduct    ItemKind = "product"
	ItemKindMembership ItemKind = "membership"
)

type Order struct {
	ID             uuid.UUID
	OrderNumber    string
	UserID         *uuid.UUID
	FullName       string
	Email          string
	PhoneNumber    string
	StreetAddress1 string
	StreetAddress2 string
	TownOrCity     string
	County         string
	Postcode       string
	Country        string
	Subtotal       decimal.Decimal
	DeliveryCost   decimal.Decimal
	GrandTotal     decimal.Decimal
	CreatedAt      time.Time
	Items          []OrderLineItem
}

type OrderLineItem struct {
	Position  int
	Kind      ItemKind
	ItemID    uuid.UUID
	Quantity  int
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

type BillingDetails struct {
	FullName       string
	Email          string
	PhoneNumber    string
	StreetAddress1 string
	StreetAddress2 string
	TownOrCity     string
	County         string
	Postcode       string
	Country        string
}

type CartLine struct {
	ItemID   uuid.UUID
	Kind     ItemKind
	Quantity int
}

// CartSnapshot is the cart state captured at checkout time. The core never
// mutates it; the session layer owns the live cart.
type CartSnapshot struct {
	Lines      []CartLine
	GrandTotal decimal.Decimal
}

type BookingStatus string

const (
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingAttended  BookingStatus = "attended"
	BookingNoShow    BookingStatus = "no_show"
)

type Booking struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	ScheduleID uuid.UUID
	Status     BookingStatus
	Notes      string
	BookedAt   time.Time
}

type ClassSchedule struct {
	ID             uuid.UUID
	ClassName      string
	StartsAt       time.Time
	Capacity       int
	AvailableSpots int
	IsActive       bool
}

// PaymentEvent is the payload of a payment-provider webhook delivery.
// Amount is in minor currency units. Items is the snapshot of what was
// purchased, embedded in the event metadata at payment time.
type PaymentEvent struct {
	Type         string
	IntentID     string
	Amount       int64
	Billing      BillingDetails
	Items        []CartLine
	MembershipID *uuid.UUID
	SaveInfo     bool
}

// ChargedAmount converts the event's minor-unit amount to currency.
func (e PaymentEvent) ChargedAmount() decimal.Decimal {
	return decimal.New(e.Amount, -2)
}
