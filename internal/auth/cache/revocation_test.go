package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRevocations(t *testing.T) (*Revocations, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return New(rdb, 0), mr
}

func TestLogoutBlacklist(t *testing.T) {
	r, _ := newTestRevocations(t)
	ctx := context.Background()

	blocked, err := r.IsLogoutBlacklisted(ctx, "sid-1")
	require.NoError(t, err)
	require.False(t, blocked)

	require.NoError(t, r.BlacklistLogout(ctx, "sid-1"))

	blocked, err = r.IsLogoutBlacklisted(ctx, "sid-1")
	require.NoError(t, err)
	require.True(t, blocked)

	// Other sessions are untouched.
	blocked, err = r.IsLogoutBlacklisted(ctx, "sid-2")
	require.NoError(t, err)
	require.False(t, blocked)
}

func TestLogoutMarkerExpires(t *testing.T) {
	r, mr := newTestRevocations(t)
	ctx := context.Background()

	require.NoError(t, r.BlacklistLogout(ctx, "sid-1"))

	mr.FastForward(DefaultTTL + time.Second)

	blocked, err := r.IsLogoutBlacklisted(ctx, "sid-1")
	require.NoError(t, err)
	require.False(t, blocked)
}

func TestAttributesStaleMarkAndClear(t *testing.T) {
	r, _ := newTestRevocations(t)
	ctx := context.Background()

	require.NoError(t, r.MarkAttributesStale(ctx, "sid-1"))

	stale, err := r.IsAttributesStale(ctx, "sid-1")
	require.NoError(t, err)
	require.True(t, stale)

	require.NoError(t, r.ClearAttributesStale(ctx, "sid-1"))

	stale, err = r.IsAttributesStale(ctx, "sid-1")
	require.NoError(t, err)
	require.False(t, stale)
}

func TestMarkersAreIndependent(t *testing.T) {
	r, _ := newTestRevocations(t)
	ctx := context.Background()

	require.NoError(t, r.MarkAttributesStale(ctx, "sid-1"))

	blocked, err := r.IsLogoutBlacklisted(ctx, "sid-1")
	require.NoError(t, err)
	require.False(t, blocked)

	require.NoError(t, r.BlacklistLogout(ctx, "sid-2"))

	stale, err := r.IsAttributesStale(ctx, "sid-2")
	require.NoError(t, err)
	require.False(t, stale)
}

func TestLogoutPublishesFanOut(t *testing.T) {
	r, _ := newTestRevocations(t)
	ctx := context.Background()

	sub := r.Subscribe(ctx)
	t.Cleanup(func() { _ = sub.Close() })

	_, err := sub.Receive(ctx) // subscription confirmation
	require.NoError(t, err)

	require.NoError(t, r.BlacklistLogout(ctx, "sid-1"))

	select {
	case msg := <-sub.Channel():
		require.Equal(t, "sid-1", msg.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("no revocation message received")
	}
}
