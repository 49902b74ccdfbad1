package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestLockoutStoreThreshold(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewRedisLockoutStore(newTestClient(t))
	now := time.Now().UTC()

	for i := 1; i < 10; i++ {
		state, err := store.RecordFailure(ctx, "login:user@test", now, 10, 10*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i, state.FailedCount)
		assert.Nil(t, state.LockedUntil, "failure %d should not lock", i)
	}

	state, err := store.RecordFailure(ctx, "login:user@test", now, 10, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 10, state.FailedCount)
	require.NotNil(t, state.LockedUntil)
	assert.True(t, state.LockedUntil.After(now))

	got, err := store.Get(ctx, "login:user@test")
	require.NoError(t, err)
	assert.Equal(t, 10, got.FailedCount)
	require.NotNil(t, got.LockedUntil)

	require.NoError(t, store.Clear(ctx, "login:user@test"))
	got, err = store.Get(ctx, "login:user@test")
	require.NoError(t, err)
	assert.Zero(t, got.FailedCount)
	assert.Nil(t, got.LockedUntil)
}

func TestLockoutStoreKeysAreIsolated(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewRedisLockoutStore(newTestClient(t))
	now := time.Now().UTC()

	_, err := store.RecordFailure(ctx, "login:a@test", now, 10, 10*time.Minute)
	require.NoError(t, err)

	got, err := store.Get(ctx, "login:b@test")
	require.NoError(t, err)
	assert.Zero(t, got.FailedCount)
}

func TestSessionRevocationStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewRedisSessionRevocationStore(newTestClient(t))
	sessionID := uuid.New()

	revoked, err := store.IsRevoked(ctx, sessionID)
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, store.MarkRevoked(ctx, sessionID, time.Now().Add(time.Hour)))
	revoked, err = store.IsRevoked(ctx, sessionID)
	require.NoError(t, err)
	assert.True(t, revoked)

	// A different session stays unaffected.
	revoked, err = store.IsRevoked(ctx, uuid.New())
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestOTPIssuanceClaimIsExclusive(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewRedisOTPIssuanceStore(newTestClient(t))
	userID := uuid.New()

	won, err := store.Claim(ctx, userID, 5*time.Minute)
	require.NoError(t, err)
	assert.True(t, won)

	won, err = store.Claim(ctx, userID, 5*time.Minute)
	require.NoError(t, err)
	assert.False(t, won, "second claim inside the window must lose")

	require.NoError(t, store.Release(ctx, userID))
	won, err = store.Claim(ctx, userID, 5*time.Minute)
	require.NoError(t, err)
	assert.True(t, won, "claim succeeds again after release")
}
