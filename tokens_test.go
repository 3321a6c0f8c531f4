package authcore_test

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ac "github.com/interviewhub/authcore"
)

func newTestCodec(t *testing.T, clock *fakeClock) *ac.TokenCodec {
	t.Helper()
	codec, err := ac.NewTokenCodec(testSecret, "authcore-test")
	require.NoError(t, err)
	codec.Now = clock.Now
	return codec
}

func TestNewTokenCodec_ShortSecret(t *testing.T) {
	_, err := ac.NewTokenCodec([]byte("short"), "x")
	assert.Error(t, err)
}

func TestTokenCodec_RoundTrip(t *testing.T) {
	clock := newFakeClock()
	codec := newTestCodec(t, clock)

	tok, err := codec.Issue("user-1", ac.PurposeSession, 0, ac.WithEpoch(3))
	require.NoError(t, err)

	claims, err := codec.Verify(tok, ac.PurposeSession)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, ac.PurposeSession, claims.Purpose)
	assert.Equal(t, int64(3), claims.Epoch)
	assert.NotEmpty(t, claims.ID)
	assert.True(t, clock.Now().Equal(claims.IssuedAtTime()))
	assert.True(t, clock.Now().Add(ac.TokenExpirySession).Equal(claims.ExpiresAtTime()))
}

func TestTokenCodec_UniqueIDs(t *testing.T) {
	codec := newTestCodec(t, newFakeClock())
	a, err := codec.Issue("user-1", ac.PurposeVerifyEmail, 0)
	require.NoError(t, err)
	b, err := codec.Issue("user-1", ac.PurposeVerifyEmail, 0)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestTokenCodec_DefaultTTLs(t *testing.T) {
	tests := []struct {
		purpose ac.Purpose
		ttl     time.Duration
	}{
		{ac.PurposeSession, 7 * 24 * time.Hour},
		{ac.PurposeVerifyEmail, 24 * time.Hour},
		{ac.PurposeResetPassword, time.Hour},
	}
	for _, tc := range tests {
		t.Run(string(tc.purpose), func(t *testing.T) {
			clock := newFakeClock()
			codec := newTestCodec(t, clock)
			tok, err := codec.Issue("u", tc.purpose, 0)
			require.NoError(t, err)

			clock.Advance(tc.ttl - time.Second)
			_, err = codec.Verify(tok, tc.purpose)
			require.NoError(t, err)

			clock.Advance(2 * time.Second)
			_, err = codec.Verify(tok, tc.purpose)
			assert.ErrorIs(t, err, ac.ErrTokenExpired)
		})
	}
}

func TestTokenCodec_PurposeMismatch(t *testing.T) {
	codec := newTestCodec(t, newFakeClock())
	tok, err := codec.Issue("u", ac.PurposeVerifyEmail, 0)
	require.NoError(t, err)

	_, err = codec.Verify(tok, ac.PurposeResetPassword)
	assert.ErrorIs(t, err, ac.ErrPurposeMismatch)
	_, err = codec.Verify(tok, ac.PurposeSession)
	assert.ErrorIs(t, err, ac.ErrPurposeMismatch)
}

func TestTokenCodec_RejectsTampering(t *testing.T) {
	clock := newFakeClock()
	codec := newTestCodec(t, clock)
	tok, err := codec.Issue("u", ac.PurposeSession, 0)
	require.NoError(t, err)

	parts := strings.Split(tok, ".")
	require.Len(t, parts, 3)

	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}

	other, err := ac.NewTokenCodec([]byte("another-secret-0123456789"), "authcore-test")
	require.NoError(t, err)
	other.Now = clock.Now
	foreign, err := other.Issue("u", ac.PurposeSession, 0)
	require.NoError(t, err)

	wrongIssuer, err := ac.NewTokenCodec(testSecret, "someone-else")
	require.NoError(t, err)
	wrongIssuer.Now = clock.Now
	otherIss, err := wrongIssuer.Issue("u", ac.PurposeSession, 0)
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "u", "pur": "session", "iss": "authcore-test", "jti": "x",
		"exp": clock.Now().Add(time.Hour).Unix(),
	})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, bad := range map[string]string{
		"garbage":        "not-a-token",
		"empty":          "",
		"bad signature":  parts[0] + "." + parts[1] + "." + string(sig),
		"foreign secret": foreign,
		"wrong issuer":   otherIss,
		"alg none":       unsigned,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := codec.Verify(bad, ac.PurposeSession)
			assert.ErrorIs(t, err, ac.ErrTokenInvalid)
		})
	}
}

func TestTokenCodec_IssueRequiresSubject(t *testing.T) {
	codec := newTestCodec(t, newFakeClock())
	_, err := codec.Issue("", ac.PurposeSession, 0)
	assert.Error(t, err)
}
