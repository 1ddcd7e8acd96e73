package http

import (
	"net/http"
	"time"

	"github.com/bbmovie/auth/internal/auth/cache"
	"github.com/bbmovie/auth/internal/auth/store"
	"github.com/bbmovie/auth/pkg/httpx"
	"github.com/bbmovie/auth/pkg/josex"
)

// ReadyzHandler is the readiness probe. It checks the database, the Redis
// revocation cache, and whether a signing key is loaded.
func ReadyzHandler(
	startTime time.Time,
	version string,
	st store.Store,
	revocations *cache.Revocations,
	keys *josex.KeyCache,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &healthChecks{
			Database: "ok",
			Cache:    "ok",
			Signer:   "ok",
		}
		status := "ok"
		code := http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			checks.Database = "error: " + err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		if err := revocations.Ping(r.Context()); err != nil {
			checks.Cache = "error: " + err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		if !keys.IsReady() {
			checks.Signer = "error: no signing key loaded"
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		httpx.WriteJSON(w, code, healthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
