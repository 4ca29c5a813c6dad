package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tech-e/apiserver/types"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func newTestIssuer(clock *fakeClock) *TokenIssuer {
	return NewTokenIssuer("test-secret", time.Hour).WithClock(clock.Now)
}

func TestIssueThenVerify(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	issuer := newTestIssuer(clock)

	token, expiresAt, err := issuer.Issue("user-1", types.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, clock.now.Add(time.Hour), expiresAt)

	principal, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, Principal{UserID: "user-1", Role: types.RoleAdmin}, principal)
}

func TestVerifyAfterExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	issuer := newTestIssuer(clock)

	token, _, err := issuer.Issue("user-1", types.RoleUser)
	require.NoError(t, err)

	clock.now = clock.now.Add(59 * time.Minute)
	_, err = issuer.Verify(token)
	require.NoError(t, err)

	clock.now = clock.now.Add(2 * time.Minute)
	_, err = issuer.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyTamperedSignature(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	issuer := newTestIssuer(clock)

	token, _, err := issuer.Issue("user-1", types.RoleUser)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	_, err = issuer.Verify(tampered)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyWrongSecret(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	token, _, err := newTestIssuer(clock).Issue("user-1", types.RoleUser)
	require.NoError(t, err)

	other := NewTokenIssuer("rotated-secret", time.Hour).WithClock(clock.Now)
	_, err = other.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyMalformed(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)

	for _, token := range []string{"", "abc", "a.b.c", "a.b"} {
		_, err := issuer.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken, "token %q", token)
	}
}

func TestVerifyRejectsOtherAlgorithms(t *testing.T) {
	claims := Claims{
		Role: types.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewTokenIssuer("test-secret", time.Hour).Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRequiresExpiryAndRole(t *testing.T) {
	secret := []byte("test-secret")
	issuer := NewTokenIssuer(string(secret), time.Hour)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role:             types.RoleUser,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
	}).SignedString(secret)
	require.NoError(t, err)
	_, err = issuer.Verify(noExp)
	assert.ErrorIs(t, err, ErrInvalidToken)

	badRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: types.Role("root"),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(secret)
	require.NoError(t, err)
	_, err = issuer.Verify(badRole)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssueWithoutSecret(t *testing.T) {
	_, _, err := NewTokenIssuer("", time.Hour).Issue("user-1", types.RoleUser)
	assert.ErrorIs(t, err, ErrEmptySecret)
}

func TestDefaultTTL(t *testing.T) {
	assert.Equal(t, DefaultTokenTTL, NewTokenIssuer("s", 0).TTL())
}
