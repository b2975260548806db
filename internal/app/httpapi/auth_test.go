package httpapi

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken("secret", "alice", time.Hour)
	require.NoError(t, err)

	member, err := validateToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, "alice", member)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	token, err := GenerateToken("secret-a", "alice", time.Hour)
	require.NoError(t, err)

	_, err = validateToken("secret-b", token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	token, err := GenerateToken("secret", "alice", -time.Minute)
	require.NoError(t, err)

	_, err = validateToken("secret", token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsWrongAlgorithm(t *testing.T) {
	// An unsigned token must not pass even with a matching payload.
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{Member: "alice"})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = validateToken("secret", raw)
	assert.Error(t, err)
}

func TestValidateTokenFallsBackToSubject(t *testing.T) {
	claims := &jwt.RegisteredClaims{
		Subject:   "bob",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	raw, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	member, err := validateToken("secret", raw)
	require.NoError(t, err)
	assert.Equal(t, "bob", member)
}
