package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/bbmovie/auth/internal/auth/cache"
	"github.com/bbmovie/auth/internal/auth/domain"
	"github.com/bbmovie/auth/internal/auth/service"
	"github.com/bbmovie/auth/internal/auth/store"
	"github.com/bbmovie/auth/internal/auth/store/drivers/sqlite"
	"github.com/bbmovie/auth/pkg/cryptox"
	"github.com/bbmovie/auth/pkg/idx"
	"github.com/bbmovie/auth/pkg/josex"
)

type testServer struct {
	router      *Router
	store       store.Store
	revocations *cache.Revocations
	strategy    *josex.Strategy
	auth        *service.AuthService
}

func newTestServer(t *testing.T) *testServer {
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

	auth := service.NewAuthService(db, revocations, strategy, "bbmovie-auth", 0, 0)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := NewRouter(keys, strategy, "test", db, revocations, logger)
	router.AuthService = auth
	router.ApplyRoutes()

	return &testServer{
		router:      router,
		store:       db,
		revocations: revocations,
		strategy:    strategy,
		auth:        auth,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) registerAndLogin(t *testing.T, email string) domain.TokenPair {
	t.Helper()

	rec := s.do(t, "POST", "/v1/auth/register", map[string]string{
		"email": email, "password": "hunter2hunter2",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, "POST", "/v1/auth/login", map[string]string{
		"email": email, "password": "hunter2hunter2", "deviceName": "laptop",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var pair domain.TokenPair
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pair))
	return pair
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func (s *testServer) seedAdmin(t *testing.T, email string) domain.TokenPair {
	t.Helper()

	hash, err := cryptox.HashPassword("hunter2hunter2")
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, s.store.Users().CreateUser(context.Background(), domain.User{
		ID:           idx.New().String(),
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}))

	rec := s.do(t, "POST", "/v1/auth/login", map[string]string{
		"email": email, "password": "hunter2hunter2", "deviceName": "laptop",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var pair domain.TokenPair
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pair))
	return pair
}

func TestLoginAndUserInfo(t *testing.T) {
	s := newTestServer(t)
	pair := s.registerAndLogin(t, "alice@example.com")

	rec := s.do(t, "GET", "/v1/auth/me", nil, bearer(pair.AccessToken))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body userInfoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "alice@example.com", body.Email)
	require.Equal(t, "USER", body.Role)
}

func TestLoginWrongPassword(t *testing.T) {
	s := newTestServer(t)
	s.registerAndLogin(t, "alice@example.com")

	rec := s.do(t, "POST", "/v1/auth/login", map[string]string{
		"email": "alice@example.com", "password": "wrong-password", "deviceName": "laptop",
	}, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGateRejectsMissingAndGarbageTokens(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, "GET", "/v1/auth/me", nil, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Header().Get("WWW-Authenticate"), "invalid_token")

	rec = s.do(t, "GET", "/v1/auth/me", nil, bearer("not.a.token"))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Header().Get("WWW-Authenticate"), "invalid_token")
}

func TestGateAcceptsCookie(t *testing.T) {
	s := newTestServer(t)
	pair := s.registerAndLogin(t, "alice@example.com")

	req := httptest.NewRequest("GET", "/v1/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: accessTokenCookie, Value: pair.AccessToken})
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestLogoutBlacklistsToken(t *testing.T) {
	s := newTestServer(t)
	pair := s.registerAndLogin(t, "alice@example.com")

	rec := s.do(t, "POST", "/v1/auth/logout", nil, bearer(pair.AccessToken))
	require.Equal(t, http.StatusNoContent, rec.Code)

	// The still-unexpired token is now rejected.
	rec = s.do(t, "GET", "/v1/auth/me", nil, bearer(pair.AccessToken))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefreshEndpoint(t *testing.T) {
	s := newTestServer(t)
	pair := s.registerAndLogin(t, "alice@example.com")

	rec := s.do(t, "POST", "/v1/auth/refresh", map[string]string{
		"refresh_token": pair.RefreshToken,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var next domain.TokenPair
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &next))
	require.NotEqual(t, pair.AccessToken, next.AccessToken)

	// Replaying the redeemed refresh token fails uniformly.
	rec = s.do(t, "POST", "/v1/auth/refresh", map[string]string{
		"refresh_token": pair.RefreshToken,
	}, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTransparentReissueOnStaleAttributes(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	pair := s.registerAndLogin(t, "alice@example.com")

	next := josex.Attributes{SubscriptionTier: "premium"}
	require.NoError(t, s.auth.UpdateAttributes(ctx, "alice@example.com", next))

	rec := s.do(t, "GET", "/v1/auth/me", nil, bearer(pair.AccessToken))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	reissued := rec.Header().Get("X-New-Access-Token")
	require.NotEmpty(t, reissued)

	claims, _, err := s.strategy.Verify(reissued)
	require.NoError(t, err)
	require.Equal(t, "premium", claims.SubscriptionTier)
	require.NotEqual(t, s.sidOf(t, pair.AccessToken), claims.SID)

	// No second reissue: the marker was consumed with the first one.
	rec = s.do(t, "GET", "/v1/auth/me", nil, bearer(reissued))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, rec.Header().Get("X-New-Access-Token"))
}

func (s *testServer) sidOf(t *testing.T, token string) string {
	t.Helper()
	claims, _, err := s.strategy.Verify(token)
	require.NoError(t, err)
	return claims.SID
}

func TestLogoutWinsOverStaleness(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	pair := s.registerAndLogin(t, "alice@example.com")
	sid := s.sidOf(t, pair.AccessToken)

	require.NoError(t, s.revocations.MarkAttributesStale(ctx, sid))
	require.NoError(t, s.revocations.BlacklistLogout(ctx, sid))

	// Both markers set: the request is rejected, never reissued.
	rec := s.do(t, "GET", "/v1/auth/me", nil, bearer(pair.AccessToken))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Empty(t, rec.Header().Get("X-New-Access-Token"))
}

func TestDeviceSessionEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.registerAndLogin(t, "alice@example.com")

	rec := s.do(t, "POST", "/v1/auth/login", map[string]string{
		"email": "alice@example.com", "password": "hunter2hunter2", "deviceName": "phone",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var phone domain.TokenPair
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &phone))

	rec = s.do(t, "GET", "/v1/auth/sessions", nil, bearer(phone.AccessToken))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var listing sessionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	require.Len(t, listing.Sessions, 2)

	var ownSID, otherSID string
	for _, sess := range listing.Sessions {
		if sess.Current {
			ownSID = sess.SID
		} else {
			otherSID = sess.SID
		}
	}
	require.NotEmpty(t, ownSID)
	require.NotEmpty(t, otherSID)

	// Revoking your own session through the device endpoint is a 400.
	rec = s.do(t, "DELETE", "/v1/auth/sessions/"+ownSID, nil, bearer(phone.AccessToken))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, "DELETE", "/v1/auth/sessions/"+otherSID, nil, bearer(phone.AccessToken))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, "GET", "/v1/auth/sessions", nil, bearer(phone.AccessToken))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	require.Len(t, listing.Sessions, 1)
}

func TestLogoutAllEndpoint(t *testing.T) {
	s := newTestServer(t)
	pair := s.registerAndLogin(t, "alice@example.com")

	rec := s.do(t, "POST", "/v1/auth/logout-all", nil, bearer(pair.AccessToken))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, "GET", "/v1/auth/me", nil, bearer(pair.AccessToken))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminAttributesEndpoint(t *testing.T) {
	s := newTestServer(t)
	user := s.registerAndLogin(t, "alice@example.com")
	admin := s.seedAdmin(t, "root@example.com")

	// Plain users are refused.
	rec := s.do(t, "POST", "/v1/admin/users/alice@example.com/attributes",
		josex.Attributes{SubscriptionTier: "premium"}, bearer(user.AccessToken))
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, "POST", "/v1/admin/users/alice@example.com/attributes",
		josex.Attributes{SubscriptionTier: "premium"}, bearer(admin.AccessToken))
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	// Unknown user.
	rec = s.do(t, "POST", "/v1/admin/users/nobody@example.com/attributes",
		josex.Attributes{}, bearer(admin.AccessToken))
	require.Equal(t, http.StatusNotFound, rec.Code)

	// Alice's next request gets a reissued token with the new attributes.
	rec = s.do(t, "GET", "/v1/auth/me", nil, bearer(user.AccessToken))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-New-Access-Token"))
}

func TestAdminProviderSwitch(t *testing.T) {
	s := newTestServer(t)
	user := s.registerAndLogin(t, "alice@example.com")
	admin := s.seedAdmin(t, "root@example.com")

	rec := s.do(t, "POST", "/v1/admin/provider",
		map[string]string{"provider": "hmac-jws"}, bearer(user.AccessToken))
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, "POST", "/v1/admin/provider",
		map[string]string{"provider": "hmac-jws"}, bearer(admin.AccessToken))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp providerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "hmac-jws", resp.Active)
	require.Equal(t, "rsa-jwe", resp.Previous)

	// Tokens minted before the switch still work via the previous slot.
	rec = s.do(t, "GET", "/v1/auth/me", nil, bearer(user.AccessToken))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, "POST", "/v1/admin/provider",
		map[string]string{"provider": "no-such-provider"}, bearer(admin.AccessToken))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJWKSEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, "GET", "/.well-known/jwks.json", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var doc josex.JWKS
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	require.NotEmpty(t, doc.Keys)
	for _, k := range doc.Keys {
		require.Equal(t, "RSA", k.Kty)
		require.NotEmpty(t, k.N)
	}
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, "GET", "/livez", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, "GET", "/readyz", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var health healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	require.Equal(t, "ok", health.Status)
}
