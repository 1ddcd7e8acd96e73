package josex

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bbmovie/auth/pkg/idx"
)

// Default token TTL constants. Access tokens are deliberately short-lived;
// the revocation caches only need to outlive them.
const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// Attributes is the access-control attribute bag carried in every token.
// The struct is comparable on purpose: a simple != against the user's
// current attributes is how staleness is detected.
type Attributes struct {
	SubscriptionTier string `json:"subscriptionTier,omitempty"`
	Age              int    `json:"age,omitempty"`
	Region           string `json:"region,omitempty"`
	ParentalControls bool   `json:"parentalControlsEnabled"`
	Accounting       bool   `json:"accounting-enabled"`
}

// Claims are the token claims shared by all providers. The JWS providers
// sign them directly; the JWE provider carries them as the encrypted
// payload. Keep changes additive.
type Claims struct {
	jwt.RegisteredClaims
	Attributes

	// Session ID binding the token to a device session.
	SID string `json:"sid,omitempty"`

	// Role of the subject, e.g. "USER" or "ADMIN".
	Role string `json:"role,omitempty"`
}

// NewClaims builds minimally-correct claims for a token. The subject is the
// user's email, and jti is always freshly generated.
func NewClaims(
	subject, role string,
	attrs Attributes,
	sid, issuer string,
	ttl time.Duration,
	now time.Time,
) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        idx.New().String(),
		},
		Attributes: attrs,
		SID:        sid,
		Role:       role,
	}
}

// validateExpiry ensures the token hasn't expired. Providers call this after
// signature or decryption checks, so a failure still surfaces as the uniform
// invalid-token error.
func (c *Claims) validateExpiry(now time.Time) error {
	if c.ExpiresAt == nil {
		return invalidf("missing exp")
	}
	if now.After(c.ExpiresAt.Time) {
		return invalidf("expired")
	}
	return nil
}
