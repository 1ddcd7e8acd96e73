package http

import (
	"net/http"

	"github.com/bbmovie/auth/pkg/httpx"
	"github.com/bbmovie/auth/pkg/josex"
)

// JWKSHandler exposes the JSON Web Key Set for public key discovery. Only
// RSA keys appear here; the HMAC provider's secret is never published.
func JWKSHandler(keys *josex.KeyCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, keys.JWKS())
	}
}
