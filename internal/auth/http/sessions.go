package http

import (
	"net/http"

	"github.com/bbmovie/auth/internal/auth/service"
	"github.com/bbmovie/auth/pkg/httpx"
	"github.com/bbmovie/auth/pkg/slogx"
)

type SessionsHandler struct {
	AuthService *service.AuthService
}

type sessionsResponse struct {
	Sessions []service.DeviceSession `json:"sessions"`
}

// ServeHTTP lists the caller's live device sessions, flagging the current one.
func (h *SessionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	email := httpx.EmailFromContext(ctx)
	sid := httpx.SIDFromContext(ctx)

	sessions, err := h.AuthService.Sessions(ctx, email, sid)
	if err != nil {
		log.Error("failed to list sessions", "email", email, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "failed to list sessions")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, sessionsResponse{Sessions: sessions})
}
