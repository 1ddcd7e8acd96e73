package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bbmovie/auth/internal/auth/domain"
	"github.com/bbmovie/auth/internal/auth/service"
	"github.com/bbmovie/auth/pkg/httpx"
	"github.com/bbmovie/auth/pkg/slogx"
)

type LoginHandler struct {
	AuthService *service.AuthService
}

type loginRequest struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	DeviceName     string `json:"deviceName"`
	DeviceOS       string `json:"deviceOs"`
	Browser        string `json:"browser"`
	BrowserVersion string `json:"browserVersion"`
}

func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if req.Email == "" || req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}
	if req.DeviceName == "" {
		req.DeviceName = "unknown"
	}

	pair, err := h.AuthService.Login(ctx, req.Email, req.Password, service.DeviceInfo{
		Name:           req.DeviceName,
		OS:             req.DeviceOS,
		IP:             clientIP(r),
		Browser:        req.Browser,
		BrowserVersion: req.BrowserVersion,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			httpx.WriteError(w, http.StatusUnauthorized, "invalid_grant", "invalid email or password")
			return
		}
		log.Error("login failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "login failed")
		return
	}

	log.Info("user logged in", "email", req.Email, "device", req.DeviceName)
	setAccessTokenCookie(w, pair)
	httpx.WriteJSON(w, http.StatusOK, pair)
}

// setAccessTokenCookie mirrors the access token into a cookie for browser
// clients. The gate accepts either form.
func setAccessTokenCookie(w http.ResponseWriter, pair domain.TokenPair) {
	http.SetCookie(w, &http.Cookie{
		Name:     accessTokenCookie,
		Value:    pair.AccessToken,
		Path:     "/",
		MaxAge:   int(pair.ExpiresIn),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
