package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTMaker_GenerateAndParseTokenPair(t *testing.T) {
	maker := NewJWTMaker("test_secret_key_1234567890", 15*time.Minute, 7*24*time.Hour)

	tests := []struct {
		name       string
		userUID    string
		telegramID int64
	}{
		{name: "regular account", userUID: "3f0f6c8e-8d0a-4f55-9d55-6f7b3a1b7c11", telegramID: 42},
		{name: "large telegram id", userUID: "a1b2c3d4-0000-4000-8000-000000000001", telegramID: 7_342_037_359},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pair, err := maker.GenerateTokenPair(tt.userUID, tt.telegramID)
			require.NoError(t, err)
			assert.NotEmpty(t, pair.Access)
			assert.NotEmpty(t, pair.Refresh)
			assert.NotEqual(t, pair.Access, pair.Refresh)

			access, err := maker.ParseToken(pair.Access, AccessToken)
			require.NoError(t, err)
			assert.Equal(t, tt.userUID, access.UserUID())
			assert.Equal(t, tt.telegramID, access.TelegramID)
			assert.Equal(t, AccessToken, access.TokenType)
			assert.NotEmpty(t, access.ID)
			assert.WithinDuration(t, time.Now().Add(15*time.Minute), access.ExpiresAt.Time, time.Second)

			refresh, err := maker.ParseToken(pair.Refresh, RefreshToken)
			require.NoError(t, err)
			assert.Equal(t, tt.userUID, refresh.UserUID())
			assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), refresh.ExpiresAt.Time, time.Second)
			assert.NotEqual(t, access.ID, refresh.ID)
		})
	}
}

func TestJWTMaker_ParseToken_InvalidTokens(t *testing.T) {
	secretKey := "test_secret_key_1234567890"
	maker := NewJWTMaker(secretKey, 15*time.Minute, time.Hour)

	pair, err := maker.GenerateTokenPair("uid", 1)
	require.NoError(t, err)

	tests := []struct {
		name      string
		token     string
		tokenType TokenType
	}{
		{name: "empty token", token: "", tokenType: AccessToken},
		{name: "malformed token", token: "invalid.token.here", tokenType: AccessToken},
		{name: "expired token", token: createExpiredToken(t, secretKey), tokenType: AccessToken},
		{name: "wrong secret key", token: createTokenWithWrongSecret(t), tokenType: AccessToken},
		{name: "tampered token", token: pair.Access + "tampered", tokenType: AccessToken},
		{name: "refresh used as access", token: pair.Refresh, tokenType: AccessToken},
		{name: "access used as refresh", token: pair.Access, tokenType: RefreshToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := maker.ParseToken(tt.token, tt.tokenType)
			assert.Error(t, err)
			assert.Nil(t, claims)
		})
	}
}

func TestJWTMaker_WrongTokenTypeError(t *testing.T) {
	maker := NewJWTMaker("secret", time.Minute, time.Hour)
	pair, err := maker.GenerateTokenPair("uid", 1)
	require.NoError(t, err)

	_, err = maker.ParseToken(pair.Refresh, AccessToken)
	assert.ErrorIs(t, err, ErrWrongTokenType)
}

func createExpiredToken(t *testing.T, secretKey string) string {
	maker := NewJWTMaker(secretKey, -time.Hour, -time.Hour)
	pair, err := maker.GenerateTokenPair("uid", 1)
	require.NoError(t, err)
	return pair.Access
}

func createTokenWithWrongSecret(t *testing.T) string {
	wrongMaker := NewJWTMaker("wrong_secret_key", 15*time.Minute, time.Hour)
	pair, err := wrongMaker.GenerateTokenPair("uid", 1)
	require.NoError(t, err)
	return pair.Access
}
