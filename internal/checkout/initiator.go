package checkout

import (
	"context"
	"encoding/json"

	"github.com/fitlife/checkout-and-bookings/internal/adapters/crdb"
	"github.com/fitlife/checkout-and-bookings/internal/domain"
	"github.com/fitlife/checkout-and-bookings/internal/observability"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStore interface {
	OrderFinder
	CreateOrder(ctx context.Context, order domain.Order, outbox crdb.OutboxRecord) error
	GetOrderByNumber(ctx context.Context, number string) (*domain.Order, error)
}

type Catalog interface {
	ResolvePrice(ctx context.Context, kind domain.ItemKind, itemID uuid.UUID) (decimal.Decimal, error)
}

type Auditor interface {
	LogOrder(ctx context.Context, action string, order domain.Order) error
}

// Initiator is the sync checkout path. The browser calls it after the
// client-side payment confirmation; it builds the order from the cart
// snapshot in one transaction. It does not verify the payment itself, the
// reconciler handles the provider's confirmation independently.
type Initiator struct {
	store   OrderStore
	catalog Catalog
	audit   Auditor
	logger  observability.Logger

	freeDeliveryThreshold decimal.Decimal
	standardDeliveryCost  decimal.Decimal
}

func NewInitiator(store OrderStore, catalog Catalog, audit Auditor, logger observability.Logger, freeThreshold, standardCost decimal.Decimal) *Initiator {
	return &Initiator{
		store:                 store,
		catalog:               catalog,
		audit:                 audit,
		logger:                logger,
		freeDeliveryThreshold: freeThreshold,
		standardDeliveryCost:  standardCost,
	}
}

func (i *Initiator) Checkout(ctx context.Context, snapshot domain.CartSnapshot, billing domain.BillingDetails, userID *uuid.UUID) (*domain.Order, error) {
	if len(snapshot.Lines) == 0 {
		return nil, domain.ErrEmptyCart
	}
	if err := domain.ValidateBilling(billing); err != nil {
		return nil, err
	}

	lines, err := i.priceLines(ctx, snapshot.Lines)
	if err != nil {
		return nil, err
	}

	order := domain.BuildOrder(billing, userID, lines, i.freeDeliveryThreshold, i.standardDeliveryCost)
	if err := i.store.CreateOrder(ctx, order, orderCreatedRecord(order)); err != nil {
		return nil, err
	}
	observability.OrdersCreated.WithLabelValues("checkout").Inc()

	if err := i.audit.LogOrder(ctx, "order.created", order); err != nil {
		i.logger.WithField("order_number", order.OrderNumber).Warn("audit write failed", err)
	}
	return &order, nil
}

func (i *Initiator) GetOrder(ctx context.Context, number string) (*domain.Order, error) {
	return i.store.GetOrderByNumber(ctx, number)
}

func (i *Initiator) priceLines(ctx context.Context, cartLines []domain.CartLine) ([]domain.PricedLine, error) {
	lines := make([]domain.PricedLine, 0, len(cartLines))
	for _, l := range cartLines {
		if l.Quantity <= 0 {
			return nil, domain.ErrInvalidInput
		}
		price, err := i.catalog.ResolvePrice(ctx, l.Kind, l.ItemID)
		if err != nil {
			return nil, err
		}
		lines = append(lines, domain.PricedLine{Kind: l.Kind, ItemID: l.ItemID, Quantity: l.Quantity, UnitPrice: price})
	}
	return lines, nil
}

func orderCreatedRecord(order domain.Order) crdb.OutboxRecord {
	payload, _ := json.Marshal(map[string]interface{}{
		"order_number": order.OrderNumber,
		"email":        order.Email,
		"grand_total":  order.GrandTotal.String(),
	})
	return crdb.OutboxRecord{
		ID:            uuid.New(),
		AggregateType: "order",
		AggregateID:   order.ID,
		EventType:     "order.created",
		Payload:       payload,
		DedupeKey:     order.OrderNumber,
	}
}
