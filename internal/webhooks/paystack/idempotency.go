package paystackwebhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jemi-ng/pickup-backend/pkg/paystack"
	"github.com/jemi-ng/pickup-backend/pkg/redis"
)

// IdempotencyGuard drops webhook deliveries already seen within the TTL.
// The order row stays the authority; this only saves a database round trip.
type IdempotencyGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
}

func NewIdempotencyGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &IdempotencyGuard{store: store, ttl: ttl, scope: scope}, nil
}

// CheckAndMark reports true when the delivery key was already recorded.
func (g *IdempotencyGuard) CheckAndMark(ctx context.Context, deliveryKey string) (bool, error) {
	if deliveryKey == "" {
		return false, errors.New("delivery key is required")
	}
	set, err := g.store.SetNX(ctx, g.store.IdempotencyKey(g.scope, deliveryKey), "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set idempotency key: %w", err)
	}
	return !set, nil
}

// Release forgets a delivery so the gateway's retry is processed again.
func (g *IdempotencyGuard) Release(ctx context.Context, deliveryKey string) error {
	if deliveryKey == "" {
		return errors.New("delivery key is required")
	}
	return g.store.Del(ctx, g.store.IdempotencyKey(g.scope, deliveryKey))
}

func deliveryKey(event *paystack.Event) string {
	return event.Data.Reference + ":" + event.Event
}
