package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	InitializeJWT("test-secret")

	token, err := GenerateToken("01HZY", "ada@example.com", time.Hour)
	require.NoError(t, err)

	claims, err := ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "01HZY", claims.UserID)
	assert.Equal(t, "ada@example.com", claims.Email)
	assert.NotNil(t, claims.ExpiresAt)
}

func TestValidateToken_Rejects(t *testing.T) {
	InitializeJWT("test-secret")

	claims := JWTClaims{
		UserID: "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	InitializeJWT("other-secret")
	foreign, err := GenerateToken("u1", "a@example.com", time.Hour)
	require.NoError(t, err)
	InitializeJWT("test-secret")

	for name, token := range map[string]string{
		"expired":      expired,
		"wrong secret": foreign,
		"garbage":      "not-a-token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ValidateToken(token)
			assert.Error(t, err)
		})
	}
}

func TestUninitializedSecret(t *testing.T) {
	InitializeJWT("")

	_, err := GenerateToken("u1", "a@example.com", time.Hour)
	assert.ErrorIs(t, err, ErrSecretNotInitialized)

	_, err = ValidateToken("x")
	assert.ErrorIs(t, err, ErrSecretNotInitialized)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)

	assert.NoError(t, VerifyPassword("correct horse", hash))
	assert.Error(t, VerifyPassword("battery staple", hash))
}

func TestGenerateSecret(t *testing.T) {
	a, err := GenerateSecret()
	require.NoError(t, err)
	b, err := GenerateSecret()
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}
