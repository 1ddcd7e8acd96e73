package josex

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidToken is the uniform verification failure. Malformed input,
	// bad signatures, unknown kids, and expired tokens all collapse into this
	// one sentinel so the HTTP surface never leaks why a token was rejected.
	ErrInvalidToken = errors.New("josex: invalid token")

	// ErrUnknownProvider is returned when switching to a provider name that
	// was never registered. The strategy state is left untouched.
	ErrUnknownProvider = errors.New("josex: unknown provider")

	// ErrNoActiveKey indicates the key cache holds no usable signing key.
	ErrNoActiveKey = errors.New("josex: no active signing key")

	// ErrKeyNotFound must be returned by KeyStore implementations when no
	// matching signing key exists. The cache treats it as a signal to
	// self-heal by generating a fresh key.
	ErrKeyNotFound = errors.New("josex: signing key not found")
)

// invalidf wraps detail into ErrInvalidToken. The detail is for logs only;
// errors.Is(err, ErrInvalidToken) is what callers branch on.
func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidToken, fmt.Sprintf(format, args...))
}
