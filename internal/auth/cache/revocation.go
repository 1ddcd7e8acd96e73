// Package cache tracks token revocation state in Redis. Entries are keyed by
// session id and expire on their own after the access token lifetime has
// safely passed, so the gate only pays a Redis round trip for tokens that are
// still inside their validity window.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// logoutPrefix marks sessions whose tokens must be rejected outright.
	logoutPrefix = "jwt:logout:"

	// stalePrefix marks sessions whose access-control attributes changed
	// after the token was minted. Tokens are still trusted, but get
	// transparently reissued with fresh attributes.
	stalePrefix = "jwt:abac:"

	// revocationChannel carries logout fan-out to other instances so their
	// local state can react without polling.
	revocationChannel = "auth:revocations"

	// DefaultTTL keeps markers alive for the access token lifetime (15m)
	// so a revoked token can never outlive its marker.
	DefaultTTL = 15 * time.Minute
)

// Revocations is a thin, typed wrapper over a Redis client.
type Revocations struct {
	rdb *redis.Client
	ttl time.Duration
}

// New wraps an existing Redis client. A zero ttl falls back to DefaultTTL.
func New(rdb *redis.Client, ttl time.Duration) *Revocations {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Revocations{rdb: rdb, ttl: ttl}
}

// BlacklistLogout records that the session was logged out. Any token carrying
// this sid is rejected until the marker expires, by which time the token has
// expired anyway.
func (r *Revocations) BlacklistLogout(ctx context.Context, sid string) error {
	if err := r.rdb.Set(ctx, logoutPrefix+sid, "1", r.ttl).Err(); err != nil {
		return err
	}
	return r.rdb.Publish(ctx, revocationChannel, sid).Err()
}

// IsLogoutBlacklisted reports whether the session was logged out.
func (r *Revocations) IsLogoutBlacklisted(ctx context.Context, sid string) (bool, error) {
	return r.exists(ctx, logoutPrefix+sid)
}

// MarkAttributesStale flags the session for transparent reissuance on its
// next authenticated request.
func (r *Revocations) MarkAttributesStale(ctx context.Context, sid string) error {
	return r.rdb.Set(ctx, stalePrefix+sid, "1", r.ttl).Err()
}

// IsAttributesStale reports whether the session's claims lag behind the
// user's current attributes.
func (r *Revocations) IsAttributesStale(ctx context.Context, sid string) (bool, error) {
	return r.exists(ctx, stalePrefix+sid)
}

// ClearAttributesStale removes the staleness marker once a fresh token has
// been issued for the session.
func (r *Revocations) ClearAttributesStale(ctx context.Context, sid string) error {
	return r.rdb.Del(ctx, stalePrefix+sid).Err()
}

// Subscribe returns a subscription on the revocation fan-out channel. The
// caller owns the returned PubSub and must Close it.
func (r *Revocations) Subscribe(ctx context.Context) *redis.PubSub {
	return r.rdb.Subscribe(ctx, revocationChannel)
}

// Ping verifies the Redis connection is alive.
func (r *Revocations) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *Revocations) exists(ctx context.Context, key string) (bool, error) {
	err := r.rdb.Get(ctx, key).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
