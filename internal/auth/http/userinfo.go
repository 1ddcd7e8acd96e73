package http

import (
	"net/http"
	"time"

	"github.com/bbmovie/auth/internal/auth/service"
	"github.com/bbmovie/auth/pkg/httpx"
	"github.com/bbmovie/auth/pkg/josex"
	"github.com/bbmovie/auth/pkg/slogx"
)

type UserInfoHandler struct {
	AuthService *service.AuthService
}

type userInfoResponse struct {
	Email      string           `json:"email"`
	Role       string           `json:"role"`
	Attributes josex.Attributes `json:"attributes"`
	CreatedAt  time.Time        `json:"createdAt"`
}

// ServeHTTP returns the authenticated user's profile.
func (h *UserInfoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	email := httpx.EmailFromContext(ctx)

	u, err := h.AuthService.User(ctx, email)
	if err != nil {
		log.Warn("failed to load user", "email", email, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "failed to load user")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, userInfoResponse{
		Email:      u.Email,
		Role:       u.Role,
		Attributes: u.Attributes,
		CreatedAt:  u.CreatedAt,
	})
}
