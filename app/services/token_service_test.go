package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokenService(t *testing.T, accessTTL, refreshTTL time.Duration) TokenService {
	t.Helper()

	service, err := NewTokenService(accessTTL, refreshTTL, "voximate-test", "voximate-test-clients", false, "", "", "test-secret-key")
	require.NoError(t, err)
	return service
}

func TestTokenService(t *testing.T) {
	t.Run("GenerateAndValidate", func(t *testing.T) {
		service := newTestTokenService(t, time.Hour, 24*time.Hour)

		accessToken, refreshToken, err := service.GenerateTokens(42)
		require.NoError(t, err)
		require.NotEmpty(t, accessToken)
		require.NotEmpty(t, refreshToken)
		assert.NotEqual(t, accessToken, refreshToken)

		accessClaims, err := service.ValidateToken(accessToken)
		require.NoError(t, err)
		assert.Equal(t, uint(42), accessClaims.UserID)
		assert.Equal(t, "access", accessClaims.TokenType)
		assert.NotEmpty(t, accessClaims.TokenID)
		assert.True(t, accessClaims.ExpiresAt.After(accessClaims.IssuedAt))

		refreshClaims, err := service.ValidateToken(refreshToken)
		require.NoError(t, err)
		assert.Equal(t, "refresh", refreshClaims.TokenType)
		assert.NotEqual(t, accessClaims.TokenID, refreshClaims.TokenID)
	})

	t.Run("RefreshRotatesTokens", func(t *testing.T) {
		service := newTestTokenService(t, time.Hour, 24*time.Hour)

		_, refreshToken, err := service.GenerateTokens(7)
		require.NoError(t, err)

		newAccess, newRefresh, err := service.RefreshToken(refreshToken)
		require.NoError(t, err)
		assert.NotEqual(t, refreshToken, newRefresh)

		claims, err := service.ValidateToken(newAccess)
		require.NoError(t, err)
		assert.Equal(t, uint(7), claims.UserID)
		assert.Equal(t, "access", claims.TokenType)
	})

	t.Run("AccessTokenCannotRefresh", func(t *testing.T) {
		service := newTestTokenService(t, time.Hour, 24*time.Hour)

		accessToken, _, err := service.GenerateTokens(7)
		require.NoError(t, err)

		_, _, err = service.RefreshToken(accessToken)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not a refresh token")
	})

	t.Run("ExpiredToken", func(t *testing.T) {
		service := newTestTokenService(t, -time.Minute, -time.Minute)

		accessToken, _, err := service.GenerateTokens(9)
		require.NoError(t, err)

		_, err = service.ValidateToken(accessToken)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("MalformedToken", func(t *testing.T) {
		service := newTestTokenService(t, time.Hour, 24*time.Hour)

		_, err := service.ValidateToken("not.a.token")
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("WrongSecretRejected", func(t *testing.T) {
		service := newTestTokenService(t, time.Hour, 24*time.Hour)
		other, err := NewTokenService(time.Hour, 24*time.Hour, "voximate-test", "voximate-test-clients", false, "", "", "different-secret")
		require.NoError(t, err)

		accessToken, _, err := service.GenerateTokens(3)
		require.NoError(t, err)

		_, err = other.ValidateToken(accessToken)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("SecretKeyRequired", func(t *testing.T) {
		_, err := NewTokenService(time.Hour, 24*time.Hour, "voximate-test", "voximate-test-clients", false, "", "", "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "secret key is required")
	})
}
