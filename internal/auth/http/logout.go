package http

import (
	"errors"
	"net/http"

	"github.com/bbmovie/auth/internal/auth/service"
	"github.com/bbmovie/auth/pkg/httpx"
	"github.com/bbmovie/auth/pkg/slogx"
)

type LogoutHandler struct {
	AuthService *service.AuthService
}

// ServeHTTP closes the caller's own session.
func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	email := httpx.EmailFromContext(ctx)
	sid := httpx.SIDFromContext(ctx)

	if err := h.AuthService.Logout(ctx, email, sid); err != nil {
		log.Error("logout failed", "sid", sid, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "logout failed")
		return
	}

	clearAccessTokenCookie(w)
	log.Info("user logged out", "email", email, "sid", sid)
	w.WriteHeader(http.StatusNoContent)
}

type LogoutAllHandler struct {
	AuthService *service.AuthService
}

// ServeHTTP closes every session the caller holds, on every device.
func (h *LogoutAllHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	email := httpx.EmailFromContext(ctx)

	if err := h.AuthService.LogoutAll(ctx, email); err != nil {
		log.Error("logout-all failed", "email", email, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "logout failed")
		return
	}

	clearAccessTokenCookie(w)
	log.Info("user logged out everywhere", "email", email)
	w.WriteHeader(http.StatusNoContent)
}

type LogoutDeviceHandler struct {
	AuthService *service.AuthService
}

// ServeHTTP closes one of the caller's other device sessions. The target sid
// comes from the path; revoking the current session this way is rejected.
func (h *LogoutDeviceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	email := httpx.EmailFromContext(ctx)
	ownSID := httpx.SIDFromContext(ctx)
	targetSID := r.PathValue("sid")

	err := h.AuthService.LogoutDevice(ctx, email, ownSID, targetSID)
	switch {
	case errors.Is(err, service.ErrCurrentSession):
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "use the logout endpoint to end the current session")
		return
	case errors.Is(err, service.ErrSessionNotFound):
		httpx.WriteError(w, http.StatusNotFound, "invalid_request", "session not found")
		return
	case err != nil:
		log.Error("device logout failed", "sid", targetSID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "logout failed")
		return
	}

	log.Info("device session revoked", "email", email, "sid", targetSID)
	w.WriteHeader(http.StatusNoContent)
}

func clearAccessTokenCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     accessTokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
