package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/menusam/partner-billing/pkg/redis"
)

const (
	// DefaultLease bounds how long a crashed handler can block redelivery of an event.
	DefaultLease = 2 * time.Minute

	markerInFlight = "inflight"
	markerDone     = "done"
)

// State is the outcome of claiming an event for a consumer.
type State int

const (
	// Claimed means the caller owns the event and must Commit or Release it.
	Claimed State = iota
	// InFlight means another delivery holds the lease; retry later.
	InFlight
	// Processed means the event was handled within the retention window.
	Processed
)

func (s State) String() string {
	switch s {
	case Claimed:
		return "claimed"
	case InFlight:
		return "in_flight"
	case Processed:
		return "processed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Guard deduplicates at-least-once deliveries per consumer. A claim takes a
// short lease; Commit replaces it with a marker kept for the retention window.
// Keys follow `sam:idempotency:evt:<consumer>:<event_id>`.
type Guard struct {
	store     redis.IdempotencyStore
	retention time.Duration
	lease     time.Duration
}

// NewGuard builds a guard that remembers committed events for retention.
func NewGuard(store redis.IdempotencyStore, retention time.Duration) (*Guard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if retention <= 0 {
		return nil, errors.New("retention must be positive")
	}
	return &Guard{store: store, retention: retention, lease: DefaultLease}, nil
}

// WithLease overrides the in-flight lease.
func (g *Guard) WithLease(lease time.Duration) *Guard {
	if lease > 0 {
		g.lease = lease
	}
	return g
}

// Ticket is a held claim on one event.
type Ticket struct {
	guard *Guard
	key   string
}

// Claim tries to take the lease for eventID. The ticket is only usable when
// the returned state is Claimed.
func (g *Guard) Claim(ctx context.Context, consumer string, eventID uuid.UUID) (Ticket, State, error) {
	key, err := g.key(consumer, eventID)
	if err != nil {
		return Ticket{}, 0, err
	}
	ok, err := g.store.SetNX(ctx, key, markerInFlight, g.lease)
	if err != nil {
		return Ticket{}, 0, fmt.Errorf("claim %s: %w", key, err)
	}
	if ok {
		return Ticket{guard: g, key: key}, Claimed, nil
	}

	current, err := g.store.Get(ctx, key)
	switch {
	case errors.Is(err, goredis.Nil):
		// Lease expired between SETNX and GET; let the broker redeliver.
		return Ticket{}, InFlight, nil
	case err != nil:
		return Ticket{}, 0, fmt.Errorf("inspect %s: %w", key, err)
	case current == markerDone:
		return Ticket{}, Processed, nil
	default:
		return Ticket{}, InFlight, nil
	}
}

// Commit records the event as processed.
func (t Ticket) Commit(ctx context.Context) error {
	if t.guard == nil {
		return errors.New("ticket not claimed")
	}
	return t.guard.store.Set(ctx, t.key, markerDone, t.guard.retention)
}

// Release drops the lease so a redelivery can retry immediately.
func (t Ticket) Release(ctx context.Context) error {
	if t.guard == nil {
		return nil
	}
	return t.guard.store.Del(ctx, t.key)
}

func (g *Guard) key(consumer string, eventID uuid.UUID) (string, error) {
	if consumer == "" {
		return "", errors.New("consumer name is required")
	}
	if eventID == uuid.Nil {
		return "", errors.New("event id is required")
	}
	return g.store.IdempotencyKey("evt:"+consumer, eventID.String()), nil
}
