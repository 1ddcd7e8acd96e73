package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bbmovie/auth/pkg/httpx"
	"github.com/bbmovie/auth/pkg/josex"
	"github.com/bbmovie/auth/pkg/slogx"
)

// ProviderHandler hot-switches the active token provider. Tokens minted by
// the demoted provider keep verifying until they expire.
type ProviderHandler struct {
	Strategy *josex.Strategy
}

type providerSwitchRequest struct {
	Provider string `json:"provider"`
}

type providerResponse struct {
	Active    string   `json:"active"`
	Previous  string   `json:"previous,omitempty"`
	Available []string `json:"available"`
}

func (h *ProviderHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req providerSwitchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if req.Provider == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "provider is required")
		return
	}

	if err := h.Strategy.Switch(req.Provider); err != nil {
		if errors.Is(err, josex.ErrUnknownProvider) {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "unknown provider")
			return
		}
		log.Error("provider switch failed", "provider", req.Provider, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "provider switch failed")
		return
	}

	log.Info("token provider switched", "provider", req.Provider, "by", httpx.EmailFromContext(ctx))

	resp := providerResponse{
		Active:    h.Strategy.Active().Name(),
		Available: h.Strategy.Names(),
	}
	if prev := h.Strategy.Previous(); prev != nil {
		resp.Previous = prev.Name()
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}
