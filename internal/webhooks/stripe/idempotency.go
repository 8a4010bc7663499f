package stripewebhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/tourbook-backend/pkg/redis"
)

// IdempotencyGuard short-circuits redelivered Stripe events by event id. It is
// a fast path only: a lost or expired claim just means the reconciler runs
// again, which is safe.
type IdempotencyGuard struct {
	store redis.ClaimStore
	ttl   time.Duration
	scope string
}

func NewIdempotencyGuard(store redis.ClaimStore, ttl time.Duration, scope string) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, errors.New("claim store is required")
	}
	if ttl <= 0 {
		return nil, errors.New("ttl must be positive")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &IdempotencyGuard{store: store, ttl: ttl, scope: scope}, nil
}

// CheckAndMark claims eventID and reports whether an earlier delivery already
// claimed it.
func (g *IdempotencyGuard) CheckAndMark(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, errors.New("event id is required")
	}
	claimed, err := g.store.Claim(ctx, g.scope, eventID, g.ttl)
	if err != nil {
		return false, fmt.Errorf("claim stripe event %s: %w", eventID, err)
	}
	return !claimed, nil
}

// FirstSeen reports when the current claim on eventID was taken.
func (g *IdempotencyGuard) FirstSeen(ctx context.Context, eventID string) (time.Time, error) {
	return g.store.ClaimedAt(ctx, g.scope, eventID)
}

// Delete releases the claim so the provider's retry is processed.
func (g *IdempotencyGuard) Delete(ctx context.Context, eventID string) error {
	if eventID == "" {
		return errors.New("event id is required")
	}
	return g.store.Release(ctx, g.scope, eventID)
}
