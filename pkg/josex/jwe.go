package josex

import (
	"encoding/json"
	"strings"
	"time"

	jose "github.com/go-jose/go-jose/v3"
)

// jweSegments is the compact serialization segment count for a JWE:
// header.encryptedKey.iv.ciphertext.tag
const jweSegments = 5

// JWEProvider mints encrypted tokens (RSA-OAEP-256 key wrapping with A256GCM
// content encryption). Claims never travel in cleartext, which is what makes
// this the default provider.
type JWEProvider struct {
	name string
	keys *KeyCache
}

// NewJWEProvider returns an encrypted-token provider over the shared key cache.
func NewJWEProvider(name string, keys *KeyCache) *JWEProvider {
	return &JWEProvider{name: name, keys: keys}
}

func (p *JWEProvider) Name() string { return p.name }
func (p *JWEProvider) Kind() Kind   { return KindJWE }

// Mint encrypts the claims against the active key's public half and stamps
// the kid into the protected header.
func (p *JWEProvider) Mint(c Claims) (string, error) {
	priv, kid, err := p.keys.ActiveKey()
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(c)
	if err != nil {
		return "", err
	}

	opts := (&jose.EncrypterOptions{}).
		WithContentType("JWT").
		WithHeader(jose.HeaderKey("kid"), kid)

	enc, err := jose.NewEncrypter(
		jose.A256GCM,
		jose.Recipient{Algorithm: jose.RSA_OAEP_256, Key: &priv.PublicKey},
		opts,
	)
	if err != nil {
		return "", err
	}

	obj, err := enc.Encrypt(payload)
	if err != nil {
		return "", err
	}

	return obj.CompactSerialize()
}

// Verify rejects anything that isn't structurally a 5-segment JWE before
// touching the parser, then decrypts with the retained private key matching
// the token's kid and checks expiry. An unknown or pruned kid fails closed.
// Every failure mode collapses into ErrInvalidToken.
func (p *JWEProvider) Verify(token string) (Claims, error) {
	if strings.Count(token, ".") != jweSegments-1 {
		return Claims{}, invalidf("not a compact JWE")
	}

	obj, err := jose.ParseEncrypted(token)
	if err != nil {
		return Claims{}, invalidf("parse: %v", err)
	}

	kid, _ := obj.Header.ExtraHeaders[jose.HeaderKey("kid")].(string)
	if kid == "" {
		kid = obj.Header.KeyID
	}
	if kid == "" {
		return Claims{}, invalidf("missing kid")
	}

	priv, ok := p.keys.PrivateByKid(kid)
	if !ok {
		return Claims{}, invalidf("unknown kid %q", kid)
	}

	payload, err := obj.Decrypt(priv)
	if err != nil {
		return Claims{}, invalidf("decrypt: %v", err)
	}

	var c Claims
	if err := json.Unmarshal(payload, &c); err != nil {
		return Claims{}, invalidf("claims: %v", err)
	}

	if err := c.validateExpiry(time.Now().UTC()); err != nil {
		return Claims{}, err
	}

	return c, nil
}
