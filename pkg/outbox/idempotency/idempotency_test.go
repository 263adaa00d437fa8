package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menusam/partner-billing/pkg/config"
	"github.com/menusam/partner-billing/pkg/redis"
)

const consumer = "billing-notifications"

func newGuard(t *testing.T) (*Guard, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := redis.New(context.Background(), config.RedisConfig{URL: "redis://" + mr.Addr()}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	guard, err := NewGuard(client, 24*time.Hour)
	require.NoError(t, err)
	return guard.WithLease(time.Minute), mr
}

func TestClaimCommitThenProcessed(t *testing.T) {
	guard, mr := newGuard(t)
	ctx := context.Background()
	eventID := uuid.New()

	ticket, state, err := guard.Claim(ctx, consumer, eventID)
	require.NoError(t, err)
	require.Equal(t, Claimed, state)

	key := "sam:idempotency:evt:" + consumer + ":" + eventID.String()
	assert.Equal(t, time.Minute, mr.TTL(key))

	require.NoError(t, ticket.Commit(ctx))
	assert.Equal(t, 24*time.Hour, mr.TTL(key))

	_, state, err = guard.Claim(ctx, consumer, eventID)
	require.NoError(t, err)
	assert.Equal(t, Processed, state)
}

func TestClaimWhileLeaseHeld(t *testing.T) {
	guard, mr := newGuard(t)
	ctx := context.Background()
	eventID := uuid.New()

	_, state, err := guard.Claim(ctx, consumer, eventID)
	require.NoError(t, err)
	require.Equal(t, Claimed, state)

	_, state, err = guard.Claim(ctx, consumer, eventID)
	require.NoError(t, err)
	assert.Equal(t, InFlight, state)

	mr.FastForward(2 * time.Minute)
	_, state, err = guard.Claim(ctx, consumer, eventID)
	require.NoError(t, err)
	assert.Equal(t, Claimed, state, "expired lease can be reclaimed")
}

func TestReleaseAllowsRetry(t *testing.T) {
	guard, _ := newGuard(t)
	ctx := context.Background()
	eventID := uuid.New()

	ticket, _, err := guard.Claim(ctx, consumer, eventID)
	require.NoError(t, err)
	require.NoError(t, ticket.Release(ctx))

	_, state, err := guard.Claim(ctx, consumer, eventID)
	require.NoError(t, err)
	assert.Equal(t, Claimed, state)
}

func TestClaimsAreScopedPerConsumer(t *testing.T) {
	guard, _ := newGuard(t)
	ctx := context.Background()
	eventID := uuid.New()

	ticket, _, err := guard.Claim(ctx, consumer, eventID)
	require.NoError(t, err)
	require.NoError(t, ticket.Commit(ctx))

	_, state, err := guard.Claim(ctx, "billing-audit", eventID)
	require.NoError(t, err)
	assert.Equal(t, Claimed, state)
}

func TestClaimValidation(t *testing.T) {
	guard, _ := newGuard(t)

	_, _, err := guard.Claim(context.Background(), "", uuid.New())
	assert.ErrorContains(t, err, "consumer name")
	_, _, err = guard.Claim(context.Background(), consumer, uuid.Nil)
	assert.ErrorContains(t, err, "event id")

	_, err = NewGuard(nil, time.Hour)
	assert.Error(t, err)

	var zero Ticket
	assert.Error(t, zero.Commit(context.Background()))
	assert.NoError(t, zero.Release(context.Background()))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "in_flight", InFlight.String())
	assert.Equal(t, "state(9)", State(9).String())
}
