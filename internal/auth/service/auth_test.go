package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/bbmovie/auth/internal/auth/cache"
	"github.com/bbmovie/auth/internal/auth/store"
	"github.com/bbmovie/auth/internal/auth/store/drivers/sqlite"
	"github.com/bbmovie/auth/pkg/cryptox"
	"github.com/bbmovie/auth/pkg/josex"
)

type testHarness struct {
	svc         *AuthService
	store       store.Store
	revocations *cache.Revocations
	strategy    *josex.Strategy
	keys        *josex.KeyCache
	redis       *miniredis.Miniredis
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()

	t.Setenv("AUTH_MASTER_KEY", "test-master-key")
	cryptox.ResetMasterKeyForTesting()
	cryptox.SetPepperPath(filepath.Join(t.TempDir(), "pepper"))

	db, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.ApplyMigrations())

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	revocations := cache.New(rdb, 0)

	keys := josex.NewKeyCache(store.NewKeyStoreAdapter(db), 2048)
	require.NoError(t, keys.Refresh(context.Background()))

	secret, err := josex.GenerateHMACSecret()
	require.NoError(t, err)

	strategy, err := josex.NewStrategy("rsa-jwe",
		josex.NewJWEProvider("rsa-jwe", keys),
		josex.NewJWSProvider("rsa-jws", keys),
		josex.NewHMACProviderWithSecret("hmac-jws", secret),
	)
	require.NoError(t, err)

	svc := NewAuthService(db, revocations, strategy, "bbmovie-auth", 0, 0)

	return &testHarness{
		svc:         svc,
		store:       db,
		revocations: revocations,
		strategy:    strategy,
		keys:        keys,
		redis:       mr,
	}
}

func (h *testHarness) register(t *testing.T, email, password string) {
	t.Helper()
	_, err := h.svc.Register(context.Background(), email, password)
	require.NoError(t, err)
}

func (h *testHarness) login(t *testing.T, email, password, device string) (pair tokenPair) {
	t.Helper()
	p, err := h.svc.Login(context.Background(), email, password, DeviceInfo{Name: device, OS: "linux", IP: "192.0.2.1"})
	require.NoError(t, err)
	return tokenPair{access: p.AccessToken, refresh: p.RefreshToken, sid: p.SID}
}

type tokenPair struct {
	access  string
	refresh string
	sid     string
}

func TestRegisterAndLogin(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	u, err := h.svc.Register(ctx, "alice@example.com", "hunter2hunter2")
	require.NoError(t, err)
	require.Equal(t, "USER", u.Role)
	require.Empty(t, u.PasswordHash)

	pair, err := h.svc.Login(ctx, "alice@example.com", "hunter2hunter2", DeviceInfo{Name: "laptop"})
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.Equal(t, "Bearer", pair.TokenType)
	require.NotEqual(t, pair.AccessToken, pair.RefreshToken)

	claims, _, err := h.strategy.Verify(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", claims.Subject)
	require.Equal(t, pair.SID, claims.SID)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	h.register(t, "alice@example.com", "hunter2hunter2")

	_, err := h.svc.Register(ctx, "alice@example.com", "different-password")
	require.ErrorIs(t, err, ErrUserExists)
}

func TestLoginBadCredentials(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	h.register(t, "alice@example.com", "hunter2hunter2")

	_, err := h.svc.Login(ctx, "alice@example.com", "wrong", DeviceInfo{Name: "laptop"})
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = h.svc.Login(ctx, "nobody@example.com", "hunter2hunter2", DeviceInfo{Name: "laptop"})
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginSameDeviceReplacesSession(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	h.register(t, "alice@example.com", "hunter2hunter2")
	first := h.login(t, "alice@example.com", "hunter2hunter2", "laptop")
	second := h.login(t, "alice@example.com", "hunter2hunter2", "laptop")
	require.NotEqual(t, first.sid, second.sid)

	sessions, err := h.svc.Sessions(ctx, "alice@example.com", second.sid)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, second.sid, sessions[0].SID)
	require.True(t, sessions[0].Current)

	// The replaced refresh token is dead.
	_, err = h.svc.Refresh(ctx, first.refresh)
	require.ErrorIs(t, err, josex.ErrInvalidToken)
}

func TestRefreshRotatesPair(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	h.register(t, "alice@example.com", "hunter2hunter2")
	pair := h.login(t, "alice@example.com", "hunter2hunter2", "laptop")

	next, err := h.svc.Refresh(ctx, pair.refresh)
	require.NoError(t, err)
	require.NotEqual(t, pair.sid, next.SID)

	// The redeemed refresh token cannot be replayed.
	_, err = h.svc.Refresh(ctx, pair.refresh)
	require.ErrorIs(t, err, josex.ErrInvalidToken)

	// The new one works.
	_, err = h.svc.Refresh(ctx, next.RefreshToken)
	require.NoError(t, err)
}

func TestRefreshRejectsAccessTokenReplay(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	h.register(t, "alice@example.com", "hunter2hunter2")
	pair := h.login(t, "alice@example.com", "hunter2hunter2", "laptop")

	// An access token verifies but does not match the session's refresh
	// jti or fingerprint.
	_, err := h.svc.Refresh(ctx, pair.access)
	require.ErrorIs(t, err, josex.ErrInvalidToken)
}

func TestRefreshBlockedAfterLogout(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	h.register(t, "alice@example.com", "hunter2hunter2")
	pair := h.login(t, "alice@example.com", "hunter2hunter2", "laptop")

	require.NoError(t, h.svc.Logout(ctx, "alice@example.com", pair.sid))

	_, err := h.svc.Refresh(ctx, pair.refresh)
	require.ErrorIs(t, err, josex.ErrInvalidToken)

	blocked, err := h.revocations.IsLogoutBlacklisted(ctx, pair.sid)
	require.NoError(t, err)
	require.True(t, blocked)
}

func TestLogoutDevice(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	h.register(t, "alice@example.com", "hunter2hunter2")
	laptop := h.login(t, "alice@example.com", "hunter2hunter2", "laptop")
	phone := h.login(t, "alice@example.com", "hunter2hunter2", "phone")

	// Revoking your own session through the device endpoint is refused.
	err := h.svc.LogoutDevice(ctx, "alice@example.com", laptop.sid, laptop.sid)
	require.ErrorIs(t, err, ErrCurrentSession)

	// Unknown sid.
	err = h.svc.LogoutDevice(ctx, "alice@example.com", laptop.sid, "no-such-sid")
	require.ErrorIs(t, err, ErrSessionNotFound)

	// Another user's sid is invisible.
	h.register(t, "bob@example.com", "hunter2hunter2")
	bob := h.login(t, "bob@example.com", "hunter2hunter2", "laptop")
	err = h.svc.LogoutDevice(ctx, "alice@example.com", laptop.sid, bob.sid)
	require.ErrorIs(t, err, ErrSessionNotFound)

	// Revoking the other device works and blacklists it.
	require.NoError(t, h.svc.LogoutDevice(ctx, "alice@example.com", laptop.sid, phone.sid))

	blocked, err := h.revocations.IsLogoutBlacklisted(ctx, phone.sid)
	require.NoError(t, err)
	require.True(t, blocked)

	sessions, err := h.svc.Sessions(ctx, "alice@example.com", laptop.sid)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, laptop.sid, sessions[0].SID)
}

func TestLogoutAll(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	h.register(t, "alice@example.com", "hunter2hunter2")
	laptop := h.login(t, "alice@example.com", "hunter2hunter2", "laptop")
	phone := h.login(t, "alice@example.com", "hunter2hunter2", "phone")

	require.NoError(t, h.svc.LogoutAll(ctx, "alice@example.com"))

	sessions, err := h.svc.Sessions(ctx, "alice@example.com", laptop.sid)
	require.NoError(t, err)
	require.Empty(t, sessions)

	for _, sid := range []string{laptop.sid, phone.sid} {
		blocked, err := h.revocations.IsLogoutBlacklisted(ctx, sid)
		require.NoError(t, err)
		require.True(t, blocked)
	}
}

func TestUpdateAttributesFlagsSessions(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	h.register(t, "alice@example.com", "hunter2hunter2")
	laptop := h.login(t, "alice@example.com", "hunter2hunter2", "laptop")
	phone := h.login(t, "alice@example.com", "hunter2hunter2", "phone")

	next := josex.Attributes{SubscriptionTier: "premium", Region: "AU"}
	require.NoError(t, h.svc.UpdateAttributes(ctx, "alice@example.com", next))

	for _, sid := range []string{laptop.sid, phone.sid} {
		stale, err := h.revocations.IsAttributesStale(ctx, sid)
		require.NoError(t, err)
		require.True(t, stale)
	}

	u, err := h.svc.User(ctx, "alice@example.com")
	require.NoError(t, err)
	require.Equal(t, next, u.Attributes)
}

func TestReissueCarriesFreshAttributesAndSID(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	h.register(t, "alice@example.com", "hunter2hunter2")
	pair := h.login(t, "alice@example.com", "hunter2hunter2", "laptop")

	next := josex.Attributes{SubscriptionTier: "premium"}
	require.NoError(t, h.svc.UpdateAttributes(ctx, "alice@example.com", next))

	claims, _, err := h.strategy.Verify(pair.access)
	require.NoError(t, err)

	reissued, err := h.svc.Reissue(ctx, claims)
	require.NoError(t, err)
	require.NotEqual(t, pair.sid, reissued.SID)

	newClaims, _, err := h.strategy.Verify(reissued.AccessToken)
	require.NoError(t, err)
	require.Equal(t, next, newClaims.Attributes)
	require.Equal(t, reissued.SID, newClaims.SID)

	// The staleness marker is consumed.
	stale, err := h.revocations.IsAttributesStale(ctx, pair.sid)
	require.NoError(t, err)
	require.False(t, stale)
}

func TestTokensSurviveProviderSwitch(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	h.register(t, "alice@example.com", "hunter2hunter2")
	pair := h.login(t, "alice@example.com", "hunter2hunter2", "laptop")

	require.NoError(t, h.strategy.Switch("hmac-jws"))

	// The in-flight JWE pair still verifies via the previous slot.
	_, _, err := h.strategy.Verify(pair.access)
	require.NoError(t, err)

	next, err := h.svc.Refresh(ctx, pair.refresh)
	require.NoError(t, err)

	// New tokens come from the HMAC provider: three segments, not five.
	_, err = josex.NewHMACProviderWithSecret("x", []byte("wrong")).Verify(next.AccessToken)
	require.Error(t, err)
	claims, p, err := h.strategy.Verify(next.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "hmac-jws", p.Name())
	require.Equal(t, "alice@example.com", claims.Subject)
}

func TestJWSPairIssuerLinkage(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	h.register(t, "alice@example.com", "hunter2hunter2")
	require.NoError(t, h.strategy.Switch("rsa-jws"))

	pair, err := h.svc.Login(ctx, "alice@example.com", "hunter2hunter2", DeviceInfo{Name: "laptop"})
	require.NoError(t, err)

	access, _, err := h.strategy.Verify(pair.AccessToken)
	require.NoError(t, err)
	refresh, _, err := h.strategy.Verify(pair.RefreshToken)
	require.NoError(t, err)

	require.Equal(t, refresh.ID, access.Issuer)
	require.Equal(t, "bbmovie-auth", refresh.Issuer)
}

func TestRefreshExpiredSession(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	h.register(t, "alice@example.com", "hunter2hunter2")
	pair := h.login(t, "alice@example.com", "hunter2hunter2", "laptop")

	// Force the session past its expiry.
	sess, err := h.store.Sessions().GetSessionBySID(ctx, pair.sid)
	require.NoError(t, err)
	sess.ExpiresAt = time.Now().UTC().Add(-time.Minute)
	require.NoError(t, h.store.Sessions().UpsertSession(ctx, sess))

	_, err = h.svc.Refresh(ctx, pair.refresh)
	require.ErrorIs(t, err, josex.ErrInvalidToken)
}
