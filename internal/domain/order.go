package domain

import (
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// NewOrderNumber generates the opaque business key for an order:
// 32 uppercase hex characters, unique and immutable once assigned.
func NewOrderNumber() string {
	id := uuid.New()
	return strings.ToUpper(hex.EncodeToString(id[:]))
}

// DeliveryCost applies the threshold rule: orders below the free-delivery
// threshold pay the standard cost, everything else ships free.
func DeliveryCost(subtotal, freeThreshold, standardCost decimal.Decimal) decimal.Decimal {
	if subtotal.LessThan(freeThreshold) {
		return standardCost
	}
	return decimal.Zero
}

// PricedLine is a cart line after catalog resolution attached its unit price.
type PricedLine struct {
	Kind      ItemKind
	ItemID    uuid.UUID
	Quantity  int
	UnitPrice decimal.Decimal
}

// BuildOrder assembles an Order and its line items from priced lines.
// The grand total always equals the sum of line totals plus the delivery
// fee; callers persist the result in a single transaction.
func BuildOrder(billing BillingDetails, userID *uuid.UUID, lines []PricedLine, freeThreshold, standardDelivery decimal.Decimal) Order {
	items := make([]OrderLineItem, len(lines))
	subtotal := decimal.Zero
	for i, l := range lines {
		lineTotal := l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
		items[i] = OrderLineItem{
			Position:  i + 1,
			Kind:      l.Kind,
			ItemID:    l.ItemID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			LineTotal: lineTotal,
		}
		subtotal = subtotal.Add(lineTotal)
	}
	delivery := DeliveryCost(subtotal, freeThreshold, standardDelivery)

	return Order{
		ID:             uuid.New(),
		OrderNumber:    NewOrderNumber(),
		UserID:         userID,
		FullName:       billing.FullName,
		Email:          billing.Email,
		PhoneNumber:    billing.PhoneNumber,
		StreetAddress1: billing.StreetAddress1,
		StreetAddress2: billing.StreetAddress2,
		TownOrCity:     billing.TownOrCity,
		County:         billing.County,
		Postcode:       billing.Postcode,
		Country:        billing.Country,
		Subtotal:       subtotal,
		DeliveryCost:   delivery,
		GrandTotal:     subtotal.Add(delivery),
		CreatedAt:      time.Now().UTC(),
		Items:          items,
	}
}

// ValidateBilling rejects buyer details before anything is persisted.
func ValidateBilling(b BillingDetails) error {
	switch {
	case strings.TrimSpace(b.FullName) == "",
		strings.TrimSpace(b.PhoneNumber) == "",
		strings.TrimSpace(b.StreetAddress1) == "",
		strings.TrimSpace(b.TownOrCity) == "",
		strings.TrimSpace(b.Country) == "":
		return ErrInvalidInput
	case !strings.Contains(b.Email, "@"):
		return ErrInvalidInput
	}
	return nil
}
