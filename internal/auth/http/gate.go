package http

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/bbmovie/auth/internal/auth/cache"
	"github.com/bbmovie/auth/internal/auth/service"
	"github.com/bbmovie/auth/pkg/httpx"
	"github.com/bbmovie/auth/pkg/josex"
	"github.com/bbmovie/auth/pkg/slogx"
)

// accessTokenCookie is the cookie fallback for clients that can't set an
// Authorization header.
const accessTokenCookie = "accessToken"

// newAccessTokenHeader carries a transparently reissued access token back to
// the client. Clients should replace their stored token when they see it.
const newAccessTokenHeader = "X-New-Access-Token"

// Gate is the authentication middleware. It resolves the bearer token (or
// cookie), verifies it against the provider strategy, enforces the logout
// blacklist, and transparently reissues tokens whose attributes went stale.
type Gate struct {
	Auth        *service.AuthService
	Revocations *cache.Revocations
	Strategy    *josex.Strategy
}

// Authenticate wraps next with the token gate. Requests that pass carry the
// verified email, sid, role, and claims in their context.
func (g *Gate) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		log := slogx.FromContext(ctx)

		token := httpx.ExtractBearer(r)
		if token == "" {
			if c, err := r.Cookie(accessTokenCookie); err == nil {
				token = c.Value
			}
		}
		if token == "" {
			httpx.WriteBearerError(w, "missing access token")
			return
		}

		claims, _, err := g.Strategy.Verify(token)
		if err != nil {
			httpx.WriteBearerError(w, "invalid access token")
			return
		}

		// Logout wins over staleness: a logged-out session never gets a
		// fresh token, no matter what other markers exist.
		blocked, err := g.Revocations.IsLogoutBlacklisted(ctx, claims.SID)
		if err != nil {
			log.Error("blacklist lookup failed", "sid", claims.SID, "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "authentication check failed")
			return
		}
		if blocked {
			httpx.WriteBearerError(w, "invalid access token")
			return
		}

		stale, err := g.Revocations.IsAttributesStale(ctx, claims.SID)
		if err != nil {
			log.Error("staleness lookup failed", "sid", claims.SID, "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "authentication check failed")
			return
		}
		if stale {
			pair, err := g.Auth.Reissue(ctx, claims)
			if err != nil {
				log.Warn("transparent reissue failed", "sid", claims.SID, "err", err)
				httpx.WriteBearerError(w, "invalid access token")
				return
			}

			fresh, _, err := g.Strategy.Verify(pair.AccessToken)
			if err != nil {
				log.Error("reissued token failed verification", "sid", pair.SID, "err", err)
				httpx.WriteError(w, http.StatusInternalServerError, "server_error", "authentication check failed")
				return
			}

			w.Header().Set(newAccessTokenHeader, pair.AccessToken)
			log.Info("reissued access token", "old_sid", claims.SID, "sid", pair.SID)
			claims = fresh
		}

		ctx = context.WithValue(ctx, httpx.CtxKeyEmail, claims.Subject)
		ctx = context.WithValue(ctx, httpx.CtxKeySID, claims.SID)
		ctx = context.WithValue(ctx, httpx.CtxKeyRole, claims.Role)
		ctx = context.WithValue(ctx, httpx.CtxKeyClaims, claims)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin rejects non-admin subjects. Must run after Authenticate.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if httpx.RoleFromContext(r.Context()) != "ADMIN" {
			httpx.WriteError(w, http.StatusForbidden, "access_denied", "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP extracts the caller's IP for session bookkeeping, trusting the
// usual proxy headers first.
func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
