package checkout

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fitlife/checkout-and-bookings/internal/domain"
	"github.com/fitlife/checkout-and-bookings/internal/observability"
	"github.com/shopspring/decimal"
)

// OrderFinder is the ledger lookup the oracle retries against.
type OrderFinder interface {
	FindOrderByBilling(ctx context.Context, b domain.BillingDetails, grandTotal decimal.Decimal) (*domain.Order, error)
}

// Oracle correlates a payment event with an order the sync path may already
// have committed. A miss is retried a fixed number of times with a fixed
// delay, because the sync commit may not be visible yet when the webhook
// arrives. Exhausting the budget is not an error: the caller falls through
// to creating the order from the event payload.
type Oracle struct {
	finder   OrderFinder
	attempts int
	delay    time.Duration
	logger   observability.Logger
}

func NewOracle(finder OrderFinder, attempts int, delay time.Duration, logger observability.Logger) *Oracle {
	return &Oracle{finder: finder, attempts: attempts, delay: delay, logger: logger}
}

// Match returns (order, true) when an equivalent order exists, (nil, false)
// after the retry budget is exhausted without a hit.
func (o *Oracle) Match(ctx context.Context, billing domain.BillingDetails, grandTotal decimal.Decimal) (*domain.Order, bool, error) {
	for attempt := 1; attempt <= o.attempts; attempt++ {
		order, err := o.finder.FindOrderByBilling(ctx, billing, grandTotal)
		if err == nil {
			observability.OracleAttempts.Observe(float64(attempt))
			return order, true, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, false, err
		}
		if attempt == o.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-time.After(o.delay):
		}
	}
	observability.OracleAttempts.Observe(float64(o.attempts))
	o.logger.WithField("attempts", o.attempts).Info("no matching order found")
	return nil, false, nil
}
