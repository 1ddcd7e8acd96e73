package josex

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWSProvider mints RS256-signed tokens. Verification resolves the kid
// header against every retained public key, which is what keeps tokens from
// the previous rotation valid through the grace window.
type JWSProvider struct {
	name string
	keys *KeyCache
}

// NewJWSProvider returns a signed-token provider over the shared key cache.
func NewJWSProvider(name string, keys *KeyCache) *JWSProvider {
	return &JWSProvider{name: name, keys: keys}
}

func (p *JWSProvider) Name() string { return p.name }
func (p *JWSProvider) Kind() Kind   { return KindJWS }

// Mint signs the claims with the active key and stamps its kid.
func (p *JWSProvider) Mint(c Claims) (string, error) {
	priv, kid, err := p.keys.ActiveKey()
	if err != nil {
		return "", err
	}

	t := jwt.NewWithClaims(jwt.SigningMethodRS256, c)
	t.Header["kid"] = kid
	return t.SignedString(priv)
}

// Verify parses and validates the token, matching its kid against the
// retained key set.
func (p *JWSProvider) Verify(token string) (Claims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))

	parsed, err := parser.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, invalidf("missing kid")
		}

		pub, ok := p.keys.PublicByKid(kid)
		if !ok {
			return nil, invalidf("unknown kid %q", kid)
		}
		return pub, nil
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
