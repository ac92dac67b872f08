package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParse_Success(t *testing.T) {
	t.Parallel()

	secret := []byte("super-secret")
	tok, err := GenerateToken(42, "ana", "sess-1", secret, time.Now().Add(time.Hour))
	require.NoError(t, err)

	claims, err := ParseToken(tok, secret)
	require.NoError(t, err)

	uid, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, uint(42), uid)
	assert.Equal(t, "sess-1", claims.ID)
	assert.Equal(t, "ana", claims.Username)
}

func TestParseToken_Expired(t *testing.T) {
	t.Parallel()

	secret := []byte("secret")
	tok, err := GenerateToken(1, "u", "s", secret, time.Now().Add(-time.Minute))
	require.NoError(t, err)

	_, err = ParseToken(tok, secret)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseToken_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, err := GenerateToken(1, "u", "s", []byte("right-secret"), time.Now().Add(time.Hour))
	require.NoError(t, err)

	_, err = ParseToken(tok, []byte("wrong-secret"))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseToken_Malformed(t *testing.T) {
	t.Parallel()

	_, err := ParseToken("not.a.jwt", []byte("k"))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseToken_RejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()

	secret := []byte("k")
	tok := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "1",
			ID:        "s",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	raw, err := tok.SignedString(secret)
	require.NoError(t, err)

	_, err = ParseToken(raw, secret)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseToken_RequiresSessionAndSubject(t *testing.T) {
	t.Parallel()

	secret := []byte("k")
	for name, claims := range map[string]Claims{
		"no jti":      {RegisteredClaims: jwt.RegisteredClaims{Subject: "1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}},
		"bad subject": {RegisteredClaims: jwt.RegisteredClaims{Subject: "ana", ID: "s", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}},
		"no expiry":   {RegisteredClaims: jwt.RegisteredClaims{Subject: "1", ID: "s"}},
	} {
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
		require.NoError(t, err)
		_, err = ParseToken(raw, secret)
		assert.ErrorIs(t, err, ErrInvalidToken, name)
	}
}
