package josex

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// HMACProvider mints HS256-signed tokens with a single shared secret held
// for the process lifetime. Restarting the service (or rotating the secret)
// invalidates every outstanding HMAC token, and the secret is never
// published through the JWKS document.
type HMACProvider struct {
	name   string
	secret []byte
}

// NewHMACProvider creates a provider with a freshly generated 256-bit secret.
func NewHMACProvider(name string) (*HMACProvider, error) {
	secret, err := GenerateHMACSecret()
	if err != nil {
		return nil, err
	}
	return &HMACProvider{name: name, secret: secret}, nil
}

// NewHMACProviderWithSecret creates a provider over an externally supplied
// secret. Used when the secret comes from configuration or in tests.
func NewHMACProviderWithSecret(name string, secret []byte) *HMACProvider {
	return &HMACProvider{name: name, secret: secret}
}

func (p *HMACProvider) Name() string { return p.name }
func (p *HMACProvider) Kind() Kind   { return KindJWS }

// Mint signs the claims with the shared secret.
func (p *HMACProvider) Mint(c Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return t.SignedString(p.secret)
}

// Verify parses and validates an HS256 token against the shared secret.
func (p *HMACProvider) Verify(token string) (Claims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	parsed, err := parser.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return p.secret, nil
	})
	if err != nil {
		return Claims{}, invalidf("parse or verify: %v", err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, invalidf("invalid claims")
	}

	if err := claims.validateExpiry(time.Now().UTC()); err != nil {
		return Claims{}, err
	}

	return *claims, nil
}
