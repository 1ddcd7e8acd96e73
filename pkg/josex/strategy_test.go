package josex_test

import (
	"testing"
	"time"

	"github.com/bbmovie/auth/pkg/josex"
	"github.com/stretchr/testify/require"
)

func newTestStrategy(t *testing.T) (*josex.Strategy, *josex.KeyCache) {
	t.Helper()
	cache, _ := newTestCache(t)

	hmac := josex.NewHMACProviderWithSecret("hmac", []byte("0123456789abcdef0123456789abcdef"))
	s, err := josex.NewStrategy("jwe",
		josex.NewJWEProvider("jwe", cache),
		josex.NewJWSProvider("jws", cache),
		hmac,
	)
	require.NoError(t, err)
	return s, cache
}

func TestNewStrategy_UnknownActiveName(t *testing.T) {
	cache, _ := newTestCache(t)
	_, err := josex.NewStrategy("nope", josex.NewJWEProvider("jwe", cache))
	require.ErrorIs(t, err, josex.ErrUnknownProvider)
}

func TestStrategy_SwitchPromotesAndDemotes(t *testing.T) {
	s, _ := newTestStrategy(t)

	require.Equal(t, "jwe", s.Active().Name())
	require.Nil(t, s.Previous())

	require.NoError(t, s.Switch("jws"))
	require.Equal(t, "jws", s.Active().Name())
	require.Equal(t, "jwe", s.Previous().Name())

	require.NoError(t, s.Switch("hmac"))
	require.Equal(t, "hmac", s.Active().Name())
	require.Equal(t, "jws", s.Previous().Name())
}

func TestStrategy_SwitchUnknownLeavesStateUntouched(t *testing.T) {
	s, _ := newTestStrategy(t)

	err := s.Switch("nope")
	require.ErrorIs(t, err, josex.ErrUnknownProvider)
	require.Equal(t, "jwe", s.Active().Name())
	require.Nil(t, s.Previous())
}

func TestStrategy_VerifyFallsBackToPrevious(t *testing.T) {
	s, _ := newTestStrategy(t)

	tok, err := s.Active().Mint(testClaims(time.Minute))
	require.NoError(t, err)

	// After a switch the old token fails the active provider but passes the
	// previous one.
	require.NoError(t, s.Switch("hmac"))

	claims, p, err := s.Verify(tok)
	require.NoError(t, err)
	require.Equal(t, "jwe", p.Name())
	require.Equal(t, "alice@example.com", claims.Subject)
}

func TestStrategy_VerifyUniformFailure(t *testing.T) {
	s, _ := newTestStrategy(t)

	_, _, err := s.Verify("not-a-token")
	require.ErrorIs(t, err, josex.ErrInvalidToken)
}

func TestStrategy_LastOfKind(t *testing.T) {
	s, _ := newTestStrategy(t)

	require.Equal(t, "jwe", s.LastOfKind(josex.KindJWE).Name())
	require.Nil(t, s.LastOfKind(josex.KindJWS))

	require.NoError(t, s.Switch("jws"))
	require.Equal(t, "jws", s.LastOfKind(josex.KindJWS).Name())
	// JWE dropped to the previous slot but is still reachable by kind.
	require.Equal(t, "jwe", s.LastOfKind(josex.KindJWE).Name())

	require.NoError(t, s.Switch("hmac"))
	// Active hmac is a JWS kind; previous jws also is. Active wins.
	require.Equal(t, "hmac", s.LastOfKind(josex.KindJWS).Name())
	require.Nil(t, s.LastOfKind(josex.KindJWE))
}

func TestStrategy_Names(t *testing.T) {
	s, _ := newTestStrategy(t)
	require.Equal(t, []string{"hmac", "jwe", "jws"}, s.Names())
}
