package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecretKey = "test-secret-key-that-is-long-enough-for-hmac"

func newTestTokenService(t *testing.T, accessTTL, refreshTTL time.Duration) TokenService {
	t.Helper()
	svc, err := NewTokenService(accessTTL, refreshTTL, "docnum-test", "docnum-test-api", testSecretKey)
	require.NoError(t, err)
	return svc
}

func TestNewTokenService(t *testing.T) {
	t.Run("RequiresSecretKey", func(t *testing.T) {
		_, err := NewTokenService(time.Hour, time.Hour, "iss", "aud", "")
		assert.Error(t, err)
	})
}

func TestTokenServiceUserTokens(t *testing.T) {
	svc := newTestTokenService(t, time.Hour, 24*time.Hour)

	t.Run("GenerateAndValidate", func(t *testing.T) {
		access, refresh, err := svc.GenerateTokens(42)
		require.NoError(t, err)
		assert.NotEmpty(t, access)
		assert.NotEmpty(t, refresh)
		assert.NotEqual(t, access, refresh)

		claims, err := svc.ValidateToken(access)
		require.NoError(t, err)
		assert.Equal(t, uint(42), claims.UserID)
		assert.Equal(t, "access", claims.TokenType)
		assert.NotEmpty(t, claims.TokenID)
		assert.True(t, claims.ExpiresAt.After(claims.IssuedAt))

		refreshClaims, err := svc.ValidateToken(refresh)
		require.NoError(t, err)
		assert.Equal(t, "refresh", refreshClaims.TokenType)
	})

	t.Run("RejectsGarbage", func(t *testing.T) {
		_, err := svc.ValidateToken("not-a-jwt")
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("RejectsWrongKey", func(t *testing.T) {
		other, err := NewTokenService(time.Hour, time.Hour, "docnum-test", "docnum-test-api",
			"a-completely-different-secret-key-material")
		require.NoError(t, err)

		access, _, err := other.GenerateTokens(1)
		require.NoError(t, err)

		_, err = svc.ValidateToken(access)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("RejectsExpired", func(t *testing.T) {
		shortLived := newTestTokenService(t, -time.Minute, -time.Minute)
		access, _, err := shortLived.GenerateTokens(1)
		require.NoError(t, err)

		_, err = shortLived.ValidateToken(access)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})
}

func TestTokenServiceRefresh(t *testing.T) {
	svc := newTestTokenService(t, time.Hour, 24*time.Hour)

	t.Run("RefreshIssuesNewPair", func(t *testing.T) {
		_, refresh, err := svc.GenerateTokens(7)
		require.NoError(t, err)

		newAccess, newRefresh, err := svc.RefreshToken(refresh)
		require.NoError(t, err)

		claims, err := svc.ValidateToken(newAccess)
		require.NoError(t, err)
		assert.Equal(t, uint(7), claims.UserID)
		assert.Equal(t, "access", claims.TokenType)
		assert.NotEqual(t, refresh, newRefresh)
	})

	t.Run("AccessTokenCannotRefresh", func(t *testing.T) {
		access, _, err := svc.GenerateTokens(7)
		require.NoError(t, err)

		_, _, err = svc.RefreshToken(access)
		assert.Error(t, err)
	})
}

func TestTokenServiceAdminTokens(t *testing.T) {
	svc := newTestTokenService(t, time.Hour, 24*time.Hour)

	access, _, err := svc.GenerateAdminTokens(3)
	require.NoError(t, err)

	claims, err := svc.ValidateAdminToken(access)
	require.NoError(t, err)
	assert.Equal(t, uint(3), claims.AdminID)
	assert.Equal(t, "access", claims.TokenType)

	// A user token does not carry admin claims
	userAccess, _, err := svc.GenerateTokens(3)
	require.NoError(t, err)
	_, err = svc.ValidateAdminToken(userAccess)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	// And an admin token does not carry user claims
	_, err = svc.ValidateToken(access)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
