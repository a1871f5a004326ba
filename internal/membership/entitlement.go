package membership

import (
	"context"
	"time"

	redisadapter "github.com/fitlife/checkout-and-bookings/internal/adapters/redis"
	"github.com/fitlife/checkout-and-bookings/internal/observability"
	"github.com/google/uuid"
)

type Source interface {
	HasActiveMembership(ctx context.Context, userID uuid.UUID) (bool, error)
}

// Checker answers the entitlement question for booking creation, caching
// positives and negatives for a short TTL so a burst of booking requests
// does not hammer the membership table.
type Checker struct {
	source Source
	cache  *redisadapter.Cache
	ttl    time.Duration
	logger observability.Logger
}

func NewChecker(source Source, cache *redisadapter.Cache, ttl time.Duration, logger observability.Logger) *Checker {
	return &Checker{source: source, cache: cache, ttl: ttl, logger: logger}
}

func (c *Checker) HasActiveMembership(ctx context.Context, userID uuid.UUID) (bool, error) {
	key := "membership:" + userID.String()

	active, hit, err := c.cache.GetBool(ctx, key)
	if err != nil {
		c.logger.Warn("membership cache read failed", err)
	} else if hit {
		return active, nil
	}

	active, err = c.source.HasActiveMembership(ctx, userID)
	if err != nil {
		return false, err
	}
	if err := c.cache.SetBool(ctx, key, active, c.ttl); err != nil {
		c.logger.Warn("membership cache write failed", err)
	}
	return active, nil
}
