package josex

// Kind distinguishes the two token shapes a provider can produce.
type Kind string

const (
	// KindJWE is a 5-segment encrypted token. Claims are confidential.
	KindJWE Kind = "JWE"
	// KindJWS is a 3-segment signed token. Claims are readable by anyone.
	KindJWS Kind = "JWS"
)

// Provider mints and verifies tokens. Implementations are safe for
// concurrent use; key material is resolved through the KeyCache snapshot at
// call time, so a rotation never tears a half-updated provider.
type Provider interface {
	// Name is the registration name used by the strategy context.
	Name() string

	// Kind reports the token shape this provider produces.
	Kind() Kind

	// Mint serializes the claims into a token string.
	Mint(c Claims) (string, error)

	// Verify checks the token and returns its claims. Any failure is
	// reported as ErrInvalidToken.
	Verify(token string) (Claims, error)
}
