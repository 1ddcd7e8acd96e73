package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/bbmovie/auth/internal/auth/cache"
	"github.com/bbmovie/auth/internal/auth/service"
	"github.com/bbmovie/auth/internal/auth/store"
	"github.com/bbmovie/auth/pkg/httpx"
	"github.com/bbmovie/auth/pkg/josex"
	"github.com/bbmovie/auth/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *josex.KeyCache
	strategy     *josex.Strategy
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store       store.Store
	revocations *cache.Revocations
	AuthService *service.AuthService
}

func NewRouter(
	keys *josex.KeyCache,
	strategy *josex.Strategy,
	buildVersion string,
	st store.Store,
	revocations *cache.Revocations,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		strategy:     strategy,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		revocations:  revocations,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerSessions()
	r.registerAdmin()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) gate() *Gate {
	return &Gate{
		Auth:        r.AuthService,
		Revocations: r.revocations,
		Strategy:    r.strategy,
	}
}

func (r *Router) registerAuth() {
	// POST /login - strict rate limit (authentication attempts)
	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(&LoginHandler{AuthService: r.AuthService},
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// POST /register - strict rate limit by IP (public signup endpoint)
	r.Mux.Handle("POST /v1/auth/register",
		httpx.Chain(&RegisterHandler{AuthService: r.AuthService},
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// POST /refresh - moderate rate limit; the token itself is the credential
	r.Mux.Handle("POST /v1/auth/refresh",
		httpx.Chain(&RefreshHandler{AuthService: r.AuthService},
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerSessions() {
	gate := r.gate()

	r.Mux.Handle("POST /v1/auth/logout",
		httpx.Chain(&LogoutHandler{AuthService: r.AuthService},
			gate.Authenticate,
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)

	r.Mux.Handle("POST /v1/auth/logout-all",
		httpx.Chain(&LogoutAllHandler{AuthService: r.AuthService},
			gate.Authenticate,
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)

	r.Mux.Handle("GET /v1/auth/sessions",
		httpx.Chain(&SessionsHandler{AuthService: r.AuthService},
			gate.Authenticate,
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)

	r.Mux.Handle("DELETE /v1/auth/sessions/{sid}",
		httpx.Chain(&LogoutDeviceHandler{AuthService: r.AuthService},
			gate.Authenticate,
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)

	r.Mux.Handle("GET /v1/auth/me",
		httpx.Chain(&UserInfoHandler{AuthService: r.AuthService},
			gate.Authenticate,
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerAdmin() {
	gate := r.gate()

	r.Mux.Handle("POST /v1/admin/users/{email}/attributes",
		httpx.Chain(&AttributesHandler{AuthService: r.AuthService},
			gate.Authenticate,
			RequireAdmin,
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)

	r.Mux.Handle("POST /v1/admin/provider",
		httpx.Chain(&ProviderHandler{Strategy: r.strategy},
			gate.Authenticate,
			RequireAdmin,
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerSystem() {
	// GET /jwks.json - public endpoint with high limit
	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.keys),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)

	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store, r.revocations, r.keys))
}
