package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/highway-inspection/internal/model"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	tok, err := NewAccessToken("s3cret", 42, model.RoleAdmin, 15)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), tok.Exp, 5*time.Second)

	claims, err := ParseAccessToken("s3cret", tok.Token)
	require.NoError(t, err)
	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id)
	assert.Equal(t, model.RoleAdmin, claims.Role)

	_, err = ParseAccessToken("other", tok.Token)
	assert.Error(t, err)
}

func TestParseAccessTokenRejects(t *testing.T) {
	expired, err := NewAccessToken("k", 1, model.RoleOperator, -1)
	require.NoError(t, err)
	_, err = ParseAccessToken("k", expired.Token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	hs512 := jwt.NewWithClaims(jwt.SigningMethodHS512, AccessClaims{
		Role:             model.RoleOperator,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	})
	raw, err := hs512.SignedString([]byte("k"))
	require.NoError(t, err)
	_, err = ParseAccessToken("k", raw)
	assert.Error(t, err)

	badRole := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessClaims{
		Role:             "owner",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	})
	raw, err = badRole.SignedString([]byte("k"))
	require.NoError(t, err)
	_, err = ParseAccessToken("k", raw)
	assert.Error(t, err)
}

func TestRefreshToken(t *testing.T) {
	a, err := NewRefreshToken(7)
	require.NoError(t, err)
	b, err := NewRefreshToken(7)
	require.NoError(t, err)
	assert.Len(t, a.Raw, 96)
	assert.NotEqual(t, a.Raw, b.Raw)
	assert.Len(t, HashRefreshRaw(a.Raw), 64)
	assert.Equal(t, HashRefreshRaw(a.Raw), HashRefreshRaw(a.Raw))
}

func TestPassword(t *testing.T) {
	h, err := HashPassword("correct horse", 0)
	require.NoError(t, err)
	assert.True(t, VerifyPassword(h, "correct horse"))
	assert.False(t, VerifyPassword(h, "battery staple"))
}
