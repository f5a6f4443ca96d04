package auth

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateTokenPair(t *testing.T) {
	svc := NewJWTService("test-secret")
	userID := uuid.New()

	access, refresh, expiresAt, err := svc.GenerateTokenPair(userID, "Ana")
	require.NoError(t, err)
	assert.NotEmpty(t, access)
	assert.NotEmpty(t, refresh)
	assert.NotEqual(t, access, refresh)
	assert.Greater(t, expiresAt, int64(0))

	claims := &Claims{}
	_, err = jwt.ParseWithClaims(access, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.UserID)
	assert.Equal(t, "Ana", claims.DisplayName)
	assert.Equal(t, TokenTypeAccess, claims.TokenType)
}

func TestParseRefreshToken(t *testing.T) {
	svc := NewJWTService("test-secret")
	userID := uuid.New()

	t.Run("round trip keeps the display name", func(t *testing.T) {
		_, refresh, _, err := svc.GenerateTokenPair(userID, "Ana")
		require.NoError(t, err)

		parsedID, displayName, err := svc.ParseRefreshToken(refresh)
		require.NoError(t, err)
		assert.Equal(t, userID, parsedID)
		assert.Equal(t, "Ana", displayName)
	})

	t.Run("reissued access tokens keep the display name", func(t *testing.T) {
		_, refresh, _, err := svc.GenerateTokenPair(userID, "Ana")
		require.NoError(t, err)

		parsedID, displayName, err := svc.ParseRefreshToken(refresh)
		require.NoError(t, err)

		access, _, _, err := svc.GenerateTokenPair(parsedID, displayName)
		require.NoError(t, err)

		claims := &Claims{}
		_, err = jwt.ParseWithClaims(access, claims, func(token *jwt.Token) (interface{}, error) {
			return []byte("test-secret"), nil
		})
		require.NoError(t, err)
		assert.Equal(t, "Ana", claims.DisplayName)
	})

	t.Run("access token is not a refresh token", func(t *testing.T) {
		access, _, _, err := svc.GenerateTokenPair(userID, "Ana")
		require.NoError(t, err)

		_, _, err = svc.ParseRefreshToken(access)
		assert.Error(t, err)
	})

	t.Run("wrong secret", func(t *testing.T) {
		_, refresh, _, err := svc.GenerateTokenPair(userID, "Ana")
		require.NoError(t, err)

		_, _, err = NewJWTService("other-secret").ParseRefreshToken(refresh)
		assert.Error(t, err)
	})

	t.Run("garbage input", func(t *testing.T) {
		_, _, err := svc.ParseRefreshToken("not-a-token")
		assert.Error(t, err)
	})
}
