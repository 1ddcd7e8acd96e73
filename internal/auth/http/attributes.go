package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bbmovie/auth/internal/auth/service"
	"github.com/bbmovie/auth/internal/auth/store"
	"github.com/bbmovie/auth/pkg/httpx"
	"github.com/bbmovie/auth/pkg/josex"
	"github.com/bbmovie/auth/pkg/slogx"
)

// AttributesHandler lets admins replace a user's access-control attributes.
// Affected sessions are flagged and their tokens transparently reissued on
// the next request; nobody gets logged out.
type AttributesHandler struct {
	AuthService *service.AuthService
}

func (h *AttributesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	email := r.PathValue("email")
	if email == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "email path parameter is required")
		return
	}

	var attrs josex.Attributes
	if err := json.NewDecoder(r.Body).Decode(&attrs); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	if err := h.AuthService.UpdateAttributes(ctx, email, attrs); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "invalid_request", "user not found")
			return
		}
		log.Error("attribute update failed", "email", email, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "attribute update failed")
		return
	}

	log.Info("user attributes updated", "email", email, "by", httpx.EmailFromContext(ctx))
	w.WriteHeader(http.StatusNoContent)
}
