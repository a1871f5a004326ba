package checkout

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/fitlife/checkout-and-bookings/internal/domain"
	"github.com/fitlife/checkout-and-bookings/internal/observability"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	EventPaymentSucceeded = "payment_intent.succeeded"
	EventPaymentFailed    = "payment_intent.payment_failed"
)

type Notifier interface {
	SendOrderConfirmation(ctx context.Context, order domain.Order) error
}

// Reconciler is the async path: given a payment-success event it produces or
// confirms exactly one order. There is no shared transaction ID between the
// browser callback and the provider webhook, so correlation is by billing
// details plus charged amount; two distinct payments with identical billing
// and amount would collide, which is a known limitation of the matching key.
type Reconciler struct {
	store    OrderStore
	catalog  Catalog
	oracle   *Oracle
	notifier Notifier
	audit    Auditor
	logger   observability.Logger

	freeDeliveryThreshold decimal.Decimal
	standardDeliveryCost  decimal.Decimal
}

func NewReconciler(store OrderStore, catalog Catalog, oracle *Oracle, notifier Notifier, audit Auditor, logger observability.Logger, freeThreshold, standardCost decimal.Decimal) *Reconciler {
	return &Reconciler{
		store:                 store,
		catalog:               catalog,
		oracle:                oracle,
		notifier:              notifier,
		audit:                 audit,
		logger:                logger,
		freeDeliveryThreshold: freeThreshold,
		standardDeliveryCost:  standardCost,
	}
}

// Handle processes one webhook delivery. A nil return means the event is
// acknowledged; a non-nil return tells the transport to answer 5xx so the
// provider redelivers. Failed and unknown event types are acknowledged
// as-is, they carry nothing to reconcile.
func (r *Reconciler) Handle(ctx context.Context, event domain.PaymentEvent) error {
	log := r.logger.WithField("event_type", event.Type).WithField("intent_id", event.IntentID)

	switch event.Type {
	case EventPaymentSucceeded:
		return r.reconcile(ctx, event, log)
	case EventPaymentFailed:
		log.Info("payment failed event received")
		return nil
	default:
		log.Info("unhandled webhook event type")
		return nil
	}
}

func (r *Reconciler) reconcile(ctx context.Context, event domain.PaymentEvent, log observability.Logger) error {
	charged := event.ChargedAmount()

	order, found, err := r.oracle.Match(ctx, event.Billing, charged)
	if err != nil {
		return err
	}
	if found {
		log.WithField("order_number", order.OrderNumber).Info("verified order already in database")
		r.finish(ctx, *order, "order.matched")
		return nil
	}

	created, err := r.createFromEvent(ctx, event)
	if err != nil {
		// The order and its line items share one transaction; the failed
		// construction left nothing behind. Report upward so the provider
		// redelivers.
		log.Error("order construction from event failed", err)
		return err
	}
	observability.OrdersCreated.WithLabelValues("webhook").Inc()
	log.WithField("order_number", created.OrderNumber).Info("created order from webhook")
	r.finish(ctx, *created, "order.created")
	return nil
}

// createFromEvent builds the order from the event's own embedded snapshot,
// never from live cart state, which may have been cleared or mutated since
// the payment was taken.
func (r *Reconciler) createFromEvent(ctx context.Context, event domain.PaymentEvent) (*domain.Order, error) {
	cartLines := event.Items
	if event.MembershipID != nil {
		cartLines = append(cartLines, domain.CartLine{
			ItemID:   *event.MembershipID,
			Kind:     domain.ItemKindMembership,
			Quantity: 1,
		})
	}
	if len(cartLines) == 0 {
		return nil, errors.Wrap(domain.ErrInvalidInput, "event carries no items")
	}

	lines := make([]domain.PricedLine, 0, len(cartLines))
	for _, l := range cartLines {
		price, err := r.catalog.ResolvePrice(ctx, l.Kind, l.ItemID)
		if err != nil {
			return nil, err
		}
		lines = append(lines, domain.PricedLine{Kind: l.Kind, ItemID: l.ItemID, Quantity: l.Quantity, UnitPrice: price})
	}

	order := domain.BuildOrder(event.Billing, nil, lines, r.freeDeliveryThreshold, r.standardDeliveryCost)
	if err := r.store.CreateOrder(ctx, order, orderCreatedRecord(order)); err != nil {
		return nil, err
	}
	return &order, nil
}

// finish runs the post-commit side effects. Notification may repeat across
// independent deliveries of the same event; that is accepted at-least-once
// behavior, never a duplicate order. Neither side effect can fail the
// already-committed reconciliation, and neither can interrupt the other:
// an audit failure must not cancel an in-flight confirmation send, so the
// goroutines share no cancellation, only the parent context.
func (r *Reconciler) finish(ctx context.Context, order domain.Order, action string) {
	var g errgroup.Group
	g.Go(func() error {
		if err := r.notifier.SendOrderConfirmation(ctx, order); err != nil {
			observability.NotifySendFailures.Inc()
			return err
		}
		return nil
	})
	g.Go(func() error {
		return r.audit.LogOrder(ctx, action, order)
	})
	if err := g.Wait(); err != nil {
		r.logger.WithField("order_number", order.OrderNumber).Warn("post-commit side effect failed", err)
	}
}
